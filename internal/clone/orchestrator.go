package clone

import (
	"context"
	"fmt"
	"sync"
	"time"

	"array/internal/logging"
	"array/internal/repository"

	"github.com/google/uuid"
)

// Options configures an Orchestrator.
type Options struct {
	Prober Prober
	Cloner Cloner
	// Registry defaults to a fresh one.
	Registry *Registry
	// RemoteURL maps an identifier to the URL handed to the Cloner.
	// Defaults to the SSH form on repository.DefaultHost.
	RemoteURL func(repository.Identifier) string
	// MaxOutputBytes bounds retained output per operation.
	MaxOutputBytes int
	Logger         *logging.AppLogger
}

// Orchestrator starts clones and tracks them in a Registry.
type Orchestrator struct {
	registry  *Registry
	prober    Prober
	cloner    Cloner
	remoteURL func(repository.Identifier) string
	maxOutput int
	logger    *logging.AppLogger
	newID     func() string
	now       func() time.Time

	// deliverMu makes "still registered" checks and listener calls atomic
	// with respect to deregistration through the Orchestrator.
	deliverMu sync.Mutex

	listenersMu  sync.Mutex
	listeners    map[int]func(ProgressEvent)
	nextListener int

	wg sync.WaitGroup
}

// NewOrchestrator creates an Orchestrator. Prober and Cloner are required.
func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetDefault()
	}
	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry(logger)
	}
	remoteURL := opts.RemoteURL
	if remoteURL == nil {
		remoteURL = func(id repository.Identifier) string { return id.RemoteURL(repository.DefaultHost) }
	}
	maxOutput := opts.MaxOutputBytes
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutputBytes
	}

	return &Orchestrator{
		registry:  registry,
		prober:    opts.Prober,
		cloner:    opts.Cloner,
		remoteURL: remoteURL,
		maxOutput: maxOutput,
		logger:    logger.With("component", "clone"),
		newID:     uuid.NewString,
		now:       time.Now,
		listeners: make(map[int]func(ProgressEvent)),
	}
}

// Registry returns the live operation set.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Subscribe registers fn for progress events of every operation and returns
// a function that removes it. fn runs on the clone's goroutine; it must not
// call Deregister or DeregisterRepository synchronously.
func (o *Orchestrator) Subscribe(fn func(ProgressEvent)) func() {
	o.listenersMu.Lock()
	id := o.nextListener
	o.nextListener++
	o.listeners[id] = fn
	o.listenersMu.Unlock()

	return func() {
		o.listenersMu.Lock()
		delete(o.listeners, id)
		o.listenersMu.Unlock()
	}
}

// HasActive reports whether a clone of id is still registered.
func (o *Orchestrator) HasActive(id repository.Identifier) bool {
	return o.registry.HasActive(id)
}

// Deregister drops operation id. Once it returns, no further events for id
// reach subscribers; the clone process itself keeps running.
func (o *Orchestrator) Deregister(id string) bool {
	o.deliverMu.Lock()
	defer o.deliverMu.Unlock()
	return o.registry.Deregister(id)
}

// DeregisterRepository drops every operation for id.
func (o *Orchestrator) DeregisterRepository(id repository.Identifier) int {
	o.deliverMu.Lock()
	defer o.deliverMu.Unlock()
	return o.registry.DeregisterRepository(id)
}

// StartOption adjusts a single InitiateClone call.
type StartOption func(*startConfig)

type startConfig struct {
	prepare func() error
}

// WithPrepare runs fn after the probe succeeded and before anything is
// registered or spawned. An error from fn aborts the clone.
func WithPrepare(fn func() error) StartOption {
	return func(c *startConfig) { c.prepare = fn }
}

// InitiateClone probes the remote, registers a cloning operation, and starts
// the clone in the background. A failed probe returns its *ProbeError and
// nothing is spawned or registered, and no WithPrepare hook runs. Earlier
// operations for the same repository are deregistered first.
//
// The returned Operation is a snapshot taken at registration. The clone is
// not bound to ctx beyond the probe; it runs until the process exits.
func (o *Orchestrator) InitiateClone(ctx context.Context, id repository.Identifier, target string, opts ...StartOption) (*Operation, error) {
	if err := id.Validate(); err != nil {
		return nil, fmt.Errorf("invalid repository identifier: %w", err)
	}
	if o.prober == nil || o.cloner == nil {
		return nil, fmt.Errorf("clone orchestrator is missing a prober or cloner")
	}
	var cfg startConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	url := o.remoteURL(id)

	start := time.Now()
	if err := o.prober.Probe(ctx, url); err != nil {
		o.logger.Warn("Clone precondition failed", "repository", id, "error", err)
		return nil, err
	}
	o.logger.LogPerformance("clone.probe", start)

	if cfg.prepare != nil {
		if err := cfg.prepare(); err != nil {
			o.logger.Warn("Clone preparation failed", "repository", id, "error", err)
			return nil, err
		}
	}

	if n := o.DeregisterRepository(id); n > 0 {
		o.logger.Info("Superseded earlier clone operations", "repository", id, "count", n)
	}

	op := Operation{
		ID:         o.newID(),
		Repository: id,
		TargetPath: target,
		StartedAt:  o.now(),
	}
	if !o.registry.Register(op) {
		return nil, fmt.Errorf("could not register clone operation %s", op.ID)
	}
	op.Status = StatusCloning

	o.logger.Info("Starting clone", "id", op.ID, "repository", id, "url", url, "target", target)

	o.wg.Add(1)
	go o.run(context.WithoutCancel(ctx), op, url)

	return &op, nil
}

// Wait blocks until every clone started by this orchestrator has exited.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) run(ctx context.Context, op Operation, url string) {
	defer o.wg.Done()

	tail := newTailBuffer(o.maxOutput)
	exitCode, err := o.cloner.Clone(ctx, url, op.TargetPath, func(chunk []byte) {
		tail.Write(chunk)
		text := string(chunk)
		o.deliver(op, func() (ProgressEvent, bool) {
			if !o.registry.IsActive(op.ID) {
				return ProgressEvent{}, false
			}
			if line := lastLine(text); line != "" {
				o.registry.UpdateMessage(op.ID, line)
			}
			return ProgressEvent{OperationID: op.ID, Repository: op.Repository, TargetPath: op.TargetPath, Kind: EventProgress, Message: text}, true
		})
	})

	status, kind, message := StatusComplete, EventComplete, fmt.Sprintf("Cloned %s into %s", op.Repository, op.TargetPath)
	switch {
	case err != nil:
		status, kind, message = StatusError, EventError, fmt.Sprintf("clone failed: %v", err)
	case exitCode != 0:
		status, kind = StatusError, EventError
		message = fmt.Sprintf("clone failed with exit code %d", exitCode)
		if last := tail.LastLine(); last != "" {
			message += ": " + last
		}
	}

	o.deliver(op, func() (ProgressEvent, bool) {
		if _, ok := o.registry.Finish(op.ID, status, message); !ok {
			return ProgressEvent{}, false
		}
		return ProgressEvent{OperationID: op.ID, Repository: op.Repository, TargetPath: op.TargetPath, Kind: kind, Message: message}, true
	})

	if status == StatusError {
		o.logger.Warn("Clone finished with error", "id", op.ID, "repository", op.Repository, "message", message)
	} else {
		o.logger.Info("Clone finished", "id", op.ID, "repository", op.Repository)
	}
	o.logger.LogPerformance("clone.run", op.StartedAt)
}

// deliver runs build under deliverMu and, when it reports the operation is
// still registered, hands the event to every subscriber.
func (o *Orchestrator) deliver(op Operation, build func() (ProgressEvent, bool)) {
	o.deliverMu.Lock()
	defer o.deliverMu.Unlock()

	ev, ok := build()
	if !ok {
		o.logger.Debug("Dropping event for inactive clone operation", "id", op.ID)
		return
	}

	o.listenersMu.Lock()
	fns := make([]func(ProgressEvent), 0, len(o.listeners))
	for _, fn := range o.listeners {
		fns = append(fns, fn)
	}
	o.listenersMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
