package store

import (
	"context"
	"fmt"
	"time"

	"array/internal/clone"
	"array/internal/repository"
)

// CloneRecord is a finished clone operation.
type CloneRecord struct {
	OperationID string
	Repository  repository.Identifier
	TargetPath  string
	Status      string
	Message     string
	FinishedAt  time.Time
}

// RecordClone stores the terminal event of a clone operation. Progress
// events are ignored.
func (s *Store) RecordClone(ctx context.Context, ev clone.ProgressEvent) error {
	if ev.Kind == clone.EventProgress {
		return nil
	}
	status := clone.StatusComplete
	if ev.Kind == clone.EventError {
		status = clone.StatusError
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clone_history (operation_id, organization, repository, target_path, status, message, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ev.OperationID, ev.Repository.Organization, ev.Repository.Repository, ev.TargetPath, status.String(), ev.Message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record clone %s: %w", ev.OperationID, err)
	}
	return nil
}

// RecentClones returns up to limit records, newest first.
func (s *Store) RecentClones(ctx context.Context, limit int) ([]CloneRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT operation_id, organization, repository, target_path, status, message, finished_at
		FROM clone_history
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query clone history: %w", err)
	}
	defer rows.Close()

	var records []CloneRecord
	for rows.Next() {
		var r CloneRecord
		if err := rows.Scan(&r.OperationID, &r.Repository.Organization, &r.Repository.Repository,
			&r.TargetPath, &r.Status, &r.Message, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan clone history: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
