package clone

import (
	"sort"
	"sync"

	"array/internal/logging"
	"array/internal/repository"
)

// Registry is the live set of clone operations, keyed by operation id.
// Operations are inserted when a clone starts and removed when they reach a
// terminal state or are deregistered. All methods are safe for concurrent use
// and return copies.
type Registry struct {
	mu     sync.RWMutex
	ops    map[string]*Operation
	logger *logging.AppLogger
}

// NewRegistry creates an empty registry. A nil logger uses the default.
func NewRegistry(logger *logging.AppLogger) *Registry {
	if logger == nil {
		logger = logging.GetDefault()
	}
	return &Registry{
		ops:    make(map[string]*Operation),
		logger: logger,
	}
}

// Register adds op in the cloning state. An empty or duplicate id is logged
// and ignored.
func (r *Registry) Register(op Operation) bool {
	if op.ID == "" {
		r.logger.Warn("Ignoring clone operation without id", "repository", op.Repository)
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ops[op.ID]; exists {
		r.logger.Warn("Ignoring duplicate clone operation", "id", op.ID)
		return false
	}

	op.Status = StatusCloning
	r.ops[op.ID] = &op
	r.logger.Debug("Clone operation registered", "id", op.ID, "repository", op.Repository, "target", op.TargetPath)
	return true
}

// Get returns a copy of the live operation with id.
func (r *Registry) Get(id string) (Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	op, ok := r.ops[id]
	if !ok {
		return Operation{}, false
	}
	return *op, true
}

// IsActive reports whether id is still registered.
func (r *Registry) IsActive(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// UpdateMessage records the latest progress line for a live operation.
func (r *Registry) UpdateMessage(id, message string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, ok := r.ops[id]
	if !ok {
		return false
	}
	op.Message = message
	return true
}

// Finish moves a live operation to a terminal status and removes it from the
// set. The final record is returned. Unknown ids and non-terminal statuses
// are logged and ignored.
func (r *Registry) Finish(id string, status Status, message string) (Operation, bool) {
	if !status.IsTerminal() {
		r.logger.Warn("Refusing non-terminal finish", "id", id, "status", status)
		return Operation{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	op, ok := r.ops[id]
	if !ok {
		r.logger.Debug("Finish for unknown clone operation", "id", id)
		return Operation{}, false
	}

	r.logger.LogStateTransition("clone.Operation", op.Status.String(), status.String())
	op.Status = status
	op.Message = message
	delete(r.ops, id)
	return *op, true
}

// Deregister drops interest in an operation without changing its status.
// The underlying process is not stopped.
func (r *Registry) Deregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ops[id]; !ok {
		r.logger.Debug("Deregister for unknown clone operation", "id", id)
		return false
	}
	delete(r.ops, id)
	r.logger.Debug("Clone operation deregistered", "id", id)
	return true
}

// DeregisterRepository deregisters every operation for id and returns how many
// were removed.
func (r *Registry) DeregisterRepository(id repository.Identifier) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for opID, op := range r.ops {
		if op.Repository.Equal(id) {
			delete(r.ops, opID)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Debug("Clone operations superseded", "repository", id, "count", removed)
	}
	return removed
}

// HasActive reports whether any live operation targets id.
func (r *Registry) HasActive(id repository.Identifier) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, op := range r.ops {
		if op.Repository.Equal(id) {
			return true
		}
	}
	return false
}

// Active returns the live operations ordered by start time.
func (r *Registry) Active() []Operation {
	r.mu.RLock()
	ops := make([]Operation, 0, len(r.ops))
	for _, op := range r.ops {
		ops = append(ops, *op)
	}
	r.mu.RUnlock()

	sort.Slice(ops, func(i, j int) bool {
		if ops[i].StartedAt.Equal(ops[j].StartedAt) {
			return ops[i].ID < ops[j].ID
		}
		return ops[i].StartedAt.Before(ops[j].StartedAt)
	})
	return ops
}

// Len returns the number of live operations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ops)
}
