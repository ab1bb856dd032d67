package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"array/internal/clone"
	"array/internal/dialog"
	"array/internal/logging"
	"array/internal/repository"
)

// DefaultPollInterval is the reconciliation poller's tick.
const DefaultPollInterval = time.Second

// Cloner is the part of clone.Orchestrator the store drives.
type Cloner interface {
	InitiateClone(ctx context.Context, id repository.Identifier, target string, opts ...clone.StartOption) (*clone.Operation, error)
	DeregisterRepository(id repository.Identifier) int
	HasActive(id repository.Identifier) bool
}

// Options configures a Store.
type Options struct {
	// WorkspaceRoot returns the currently configured root. It is read on
	// every path derivation so configuration changes take effect without a
	// new Store.
	WorkspaceRoot func() string
	Validator     *repository.Validator
	Cloner        Cloner
	Dialog        dialog.Dialog
	Persistence   Persistence
	PollInterval  time.Duration
	Logger        *logging.AppLogger
}

// Store owns the workspace selection state and composes path resolution,
// validation, mismatch resolution, cloning, and reconciliation polling.
type Store struct {
	root        func() string
	validator   *repository.Validator
	cloner      Cloner
	dialog      dialog.Dialog
	resolver    *MismatchResolver
	persistence Persistence
	interval    time.Duration
	logger      *logging.AppLogger

	mu    sync.Mutex
	state State
	// pollGen identifies the live poller; ticks from older generations are ignored.
	pollGen    uint64
	pollCancel context.CancelFunc

	// notifyMu is taken before mu is released so subscribers see states in
	// commit order.
	notifyMu sync.Mutex
	subsMu   sync.Mutex
	subs     map[int]func(State)
	nextSub  int
}

// NewStore creates a Store. Cloner and Dialog are required.
func NewStore(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetDefault()
	}
	root := opts.WorkspaceRoot
	if root == nil {
		root = func() string { return "" }
	}
	validator := opts.Validator
	if validator == nil {
		validator = repository.NewValidator(nil)
	}
	persistence := opts.Persistence
	if persistence == nil {
		persistence = &MemoryPersistence{}
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger = logger.With("component", "workspace")

	return &Store{
		root:        root,
		validator:   validator,
		cloner:      opts.Cloner,
		dialog:      opts.Dialog,
		resolver:    NewMismatchResolver(opts.Dialog, logger),
		persistence: persistence,
		interval:    interval,
		logger:      logger,
		subs:        make(map[int]func(State)),
	}
}

// State returns a snapshot of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn to receive every committed state and returns a
// function that removes it. fn must not call back into the Store
// synchronously.
func (s *Store) Subscribe(fn func(State)) func() {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

// update applies fn under the lock and publishes the result.
func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	s.unlockAndNotify()
}

// unlockAndNotify must be called with mu held. It releases mu and delivers
// the committed state to subscribers.
func (s *Store) unlockAndNotify() {
	snap := s.state.clone()
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	s.subsMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// SelectRepository makes id the selected repository:
//
//  1. derive the path; an unset workspace root is shown as a blocking error
//     and nothing else happens
//  2. validate; a Valid result is committed directly
//  3. a different repository at the path goes through the mismatch prompt;
//     Cancel returns ErrMismatchCancelled and leaves the prior state as is
//  4. anything else (missing path, or content confirmed for replacement) is
//     cloned, and the reconciliation poller is started
//
// A confirmed replacement is deleted only after the credential probe passed.
// A failed probe is shown as a blocking error and returned; the selection
// then stays with PathExists false, no poller, and the directory untouched.
func (s *Store) SelectRepository(ctx context.Context, id repository.Identifier) error {
	if err := id.Validate(); err != nil {
		s.logger.Warn("Ignoring invalid repository identifier", "id", id, "error", err)
		return fmt.Errorf("invalid repository identifier: %w", err)
	}

	path, err := repository.ResolvePath(s.root(), id)
	if err != nil {
		s.showPathError(ctx, err)
		return err
	}

	s.update(func(st *State) { st.IsValidating = true })
	result := s.validator.Validate(path, id)
	s.update(func(st *State) { st.IsValidating = false })
	s.logger.Debug("Validated derived path", "repository", id, "path", path, "status", result.Status())

	if result.Valid {
		s.commitSelection(ctx, id, path, true)
		return nil
	}

	var opts []clone.StartOption
	if result.IsMismatch() {
		detected := *result.Detected
		proceed, err := s.resolver.Resolve(ctx, path, detected, id)
		if err != nil {
			s.showError(ctx, "Could not replace repository", err.Error())
			return err
		}
		if !proceed {
			return ErrMismatchCancelled
		}
		opts = append(opts, clone.WithPrepare(func() error {
			return s.resolver.Remove(path, detected)
		}))
	}

	s.commitSelection(ctx, id, path, false)

	if _, err := s.cloner.InitiateClone(ctx, id, path, opts...); err != nil {
		s.showError(ctx, fmt.Sprintf("Cannot clone %s", id), err.Error())
		return err
	}

	s.startPoller()
	return nil
}

// commitSelection replaces the selection, stops any poller, and persists.
func (s *Store) commitSelection(ctx context.Context, id repository.Identifier, path string, exists bool) {
	s.mu.Lock()
	prev := s.state.SelectedRepository
	s.stopPollerLocked()
	sel := id
	s.state.SelectedRepository = &sel
	s.state.DerivedPath = path
	s.state.PathExists = exists
	s.unlockAndNotify()

	if prev != nil && !prev.Equal(id) {
		s.cloner.DeregisterRepository(*prev)
	}
	if err := s.persistence.SaveSelection(ctx, &sel); err != nil {
		s.logger.Error("Failed to persist selection", "repository", id, "error", err)
	}
	s.logger.Info("Repository selected", "repository", id, "path", path, "exists", exists)
}

// ClearRepository forgets the selection, stops the poller, and drops
// interest in any clone of the previously selected repository.
func (s *Store) ClearRepository(ctx context.Context) error {
	s.mu.Lock()
	prev := s.state.SelectedRepository
	s.stopPollerLocked()
	s.state = State{}
	s.unlockAndNotify()

	if prev != nil {
		s.cloner.DeregisterRepository(*prev)
		s.logger.Info("Repository selection cleared", "repository", *prev)
	}
	if err := s.persistence.SaveSelection(ctx, nil); err != nil {
		return fmt.Errorf("failed to persist cleared selection: %w", err)
	}
	return nil
}

// ValidateAndUpdatePath recomputes the derived path from the current
// workspace root and re-validates it. It is used when settings change.
// Without a selection it only resets the path fields.
func (s *Store) ValidateAndUpdatePath(ctx context.Context) error {
	return s.revalidate(ctx, true)
}

// Load restores the persisted selection and recomputes the rest of the
// state. An unconfigured workspace is not an error here.
func (s *Store) Load(ctx context.Context) error {
	sel, err := s.persistence.LoadSelection(ctx)
	if err != nil {
		return fmt.Errorf("failed to load selection: %w", err)
	}
	if sel != nil {
		if err := sel.Validate(); err != nil {
			s.logger.Warn("Discarding invalid persisted selection", "selection", *sel, "error", err)
			sel = nil
		}
	}

	s.update(func(st *State) {
		st.SelectedRepository = sel
		st.DerivedPath = ""
		st.PathExists = false
	})
	if sel == nil {
		return nil
	}

	if err := s.revalidate(ctx, false); err != nil && !errors.Is(err, repository.ErrWorkspaceNotConfigured) {
		return err
	}
	return nil
}

func (s *Store) revalidate(ctx context.Context, interactive bool) error {
	current := s.State()
	id, ok := current.Selected()
	if !ok {
		s.mu.Lock()
		s.stopPollerLocked()
		s.state.DerivedPath = ""
		s.state.PathExists = false
		s.unlockAndNotify()
		return nil
	}

	path, err := repository.ResolvePath(s.root(), id)
	if err != nil {
		s.mu.Lock()
		s.stopPollerLocked()
		s.state.DerivedPath = ""
		s.state.PathExists = false
		s.unlockAndNotify()
		if interactive {
			s.showPathError(ctx, err)
		}
		return err
	}

	s.update(func(st *State) { st.IsValidating = true })
	result := s.validator.Validate(path, id)

	s.mu.Lock()
	s.state.IsValidating = false
	if s.state.SelectedRepository == nil || !s.state.SelectedRepository.Equal(id) {
		// selection changed while validating
		s.unlockAndNotify()
		return nil
	}
	s.state.DerivedPath = path
	s.state.PathExists = result.Valid
	s.unlockAndNotify()

	s.logger.Debug("Revalidated workspace path", "repository", id, "path", path, "status", result.Status())

	if !result.Valid && s.cloner.HasActive(id) {
		s.startPoller()
	}
	return nil
}

func (s *Store) showPathError(ctx context.Context, err error) {
	if errors.Is(err, repository.ErrWorkspaceNotConfigured) {
		s.showError(ctx, "Workspace not configured",
			"Choose a directory for your repositories with `array init <directory>` before selecting one.")
		return
	}
	s.showError(ctx, "Invalid workspace", err.Error())
}

func (s *Store) showError(ctx context.Context, title, detail string) {
	s.logger.Warn(title, "detail", detail)
	if s.dialog == nil {
		return
	}
	if _, err := s.dialog.Show(ctx, dialog.Message{
		Kind:    dialog.KindError,
		Title:   title,
		Detail:  detail,
		Buttons: []string{"OK"},
	}); err != nil {
		s.logger.Error("Failed to show error dialog", "title", title, "error", err)
	}
}
