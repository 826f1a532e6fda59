package database

import (
	"context"
	"fmt"
	"time"

	"aquaflow/internal/models"
)

// RecordAttempt stores a pending journal entry for one dispatched write.
func (db *DB) RecordAttempt(ctx context.Context, task *models.SyncTask) error {
	now := time.Now().UTC()
	if task.Status == "" {
		task.Status = models.SyncPending
	}
	result, err := db.ExecContext(ctx, `
        INSERT INTO sync_journal (kind, record_id, payload, status, last_error, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(task.Kind), task.RecordID, task.Payload, task.Status, task.LastError, now, now)
	if err != nil {
		return fmt.Errorf("failed to record sync attempt: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now
	task.UpdatedAt = now
	return nil
}

func (db *DB) MarkConfirmed(ctx context.Context, id int64) error {
	return db.setJournalStatus(ctx, id, models.SyncConfirmed, nil)
}

func (db *DB) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	return db.setJournalStatus(ctx, id, models.SyncFailed, &errMsg)
}

func (db *DB) setJournalStatus(ctx context.Context, id int64, status string, errMsg *string) error {
	res, err := db.ExecContext(ctx, `UPDATE sync_journal SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		status, errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update sync journal %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sync journal entry %d not found", id)
	}
	return nil
}

// ListUnconfirmed returns entries that are not confirmed and have no later
// confirmed write for the same record, oldest first.
func (db *DB) ListUnconfirmed(ctx context.Context, limit int) ([]models.SyncTask, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
        SELECT j.id, j.kind, j.record_id, j.payload, j.status, j.last_error, j.created_at, j.updated_at
        FROM sync_journal j
        WHERE j.status != 'confirmed'
          AND NOT EXISTS (
            SELECT 1 FROM sync_journal c
            WHERE c.kind = j.kind AND c.record_id = j.record_id
              AND c.status = 'confirmed' AND c.id > j.id
          )
        ORDER BY j.id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unconfirmed writes: %w", err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		var (
			t    models.SyncTask
			kind string
		)
		if err := rows.Scan(&t.ID, &kind, &t.RecordID, &t.Payload, &t.Status, &t.LastError, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync journal: %w", err)
		}
		t.Kind = models.Kind(kind)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// PruneConfirmed deletes confirmed entries last touched before cutoff.
func (db *DB) PruneConfirmed(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM sync_journal WHERE status = 'confirmed' AND updated_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune sync journal: %w", err)
	}
	return res.RowsAffected()
}
