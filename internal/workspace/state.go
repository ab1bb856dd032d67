package workspace

import (
	"context"
	"sync"

	"array/internal/repository"
)

// State is the externally observed selection state. Only SelectedRepository
// survives a restart; everything else is recomputed on Load.
type State struct {
	SelectedRepository *repository.Identifier `json:"selected_repository"`
	DerivedPath        string                 `json:"derived_path"`
	// PathExists is true only after a validation of DerivedPath returned Valid.
	PathExists   bool `json:"path_exists"`
	IsValidating bool `json:"is_validating"`
	// IsSyncing is true while the reconciliation poller runs.
	IsSyncing bool `json:"is_syncing"`
}

func (s State) clone() State {
	if s.SelectedRepository != nil {
		id := *s.SelectedRepository
		s.SelectedRepository = &id
	}
	return s
}

// Selected returns the selected identifier and whether one is set.
func (s State) Selected() (repository.Identifier, bool) {
	if s.SelectedRepository == nil {
		return repository.Identifier{}, false
	}
	return *s.SelectedRepository, true
}

// Persistence stores the selected repository across process restarts.
// SaveSelection(nil) forgets the selection.
type Persistence interface {
	LoadSelection(ctx context.Context) (*repository.Identifier, error)
	SaveSelection(ctx context.Context, id *repository.Identifier) error
}

// MemoryPersistence keeps the selection in memory.
type MemoryPersistence struct {
	mu  sync.Mutex
	sel *repository.Identifier
}

func (m *MemoryPersistence) LoadSelection(context.Context) (*repository.Identifier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sel == nil {
		return nil, nil
	}
	id := *m.sel
	return &id, nil
}

func (m *MemoryPersistence) SaveSelection(_ context.Context, id *repository.Identifier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == nil {
		m.sel = nil
		return nil
	}
	cp := *id
	m.sel = &cp
	return nil
}
