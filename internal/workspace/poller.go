package workspace

import (
	"context"
	"time"
)

// startPoller replaces any running poller with a new one. Nothing starts
// without a selected repository and a derived path.
func (s *Store) startPoller() {
	s.mu.Lock()
	s.stopPollerLocked()

	if s.state.SelectedRepository == nil || s.state.DerivedPath == "" {
		s.logger.Debug("Not starting poller without a selection and derived path")
		s.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.pollGen++
	gen := s.pollGen
	s.pollCancel = cancel
	s.state.IsSyncing = true
	s.logger.LogStateTransition("workspace.Poller", "stopped", "polling")
	s.unlockAndNotify()

	go s.pollLoop(ctx, gen)
}

// stopPollerLocked must be called with mu held.
func (s *Store) stopPollerLocked() {
	if s.pollCancel == nil {
		return
	}
	s.pollCancel()
	s.pollCancel = nil
	s.pollGen++
	s.state.IsSyncing = false
	s.logger.LogStateTransition("workspace.Poller", "polling", "stopped")
}

func (s *Store) pollLoop(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.tick(gen) {
				return
			}
		}
	}
}

// tick runs one reconciliation step and reports whether polling continues:
//
//   - no selection or no derived path: stop
//   - a clone of the selection is still registered: continue
//   - otherwise validate once; Valid marks the path as existing. Either way
//     polling stops, leaving PathExists false on failure.
func (s *Store) tick(gen uint64) bool {
	s.mu.Lock()
	if gen != s.pollGen {
		s.mu.Unlock()
		return false
	}
	sel, path := s.state.SelectedRepository, s.state.DerivedPath
	if sel == nil || path == "" {
		s.stopPollerLocked()
		s.unlockAndNotify()
		return false
	}
	id := *sel
	s.mu.Unlock()

	if s.cloner.HasActive(id) {
		return true
	}

	result := s.validator.Validate(path, id)

	s.mu.Lock()
	if gen != s.pollGen {
		s.mu.Unlock()
		return false
	}
	if result.Valid && !s.state.PathExists {
		s.state.PathExists = true
		s.logger.Info("Repository is now present", "repository", id, "path", path)
	} else if !result.Valid {
		s.logger.Warn("Clone finished but repository is not usable", "repository", id, "path", path, "reason", result.Reason)
	}
	s.stopPollerLocked()
	s.unlockAndNotify()
	return false
}
