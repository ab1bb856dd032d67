package store

import (
	"context"
	"fmt"

	"array/internal/repository"
)

const selectionKey = "selected_repository"

// SelectionStore persists the selected repository as "organization/repository".
type SelectionStore struct {
	store *Store
}

// NewSelectionStore wraps s.
func NewSelectionStore(s *Store) *SelectionStore {
	return &SelectionStore{store: s}
}

// LoadSelection returns nil when nothing is stored.
func (ss *SelectionStore) LoadSelection(ctx context.Context) (*repository.Identifier, error) {
	raw, ok, err := ss.store.Get(ctx, selectionKey)
	if err != nil || !ok {
		return nil, err
	}
	id, err := repository.ParseIdentifier(raw)
	if err != nil {
		return nil, fmt.Errorf("stored selection %q is invalid: %w", raw, err)
	}
	return &id, nil
}

// SaveSelection stores id, or forgets the selection when id is nil or zero.
func (ss *SelectionStore) SaveSelection(ctx context.Context, id *repository.Identifier) error {
	if id == nil || id.IsZero() {
		return ss.store.Delete(ctx, selectionKey)
	}
	return ss.store.Set(ctx, selectionKey, id.String())
}
