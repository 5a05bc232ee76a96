package repository

import (
	"context"
	"fmt"
)

// Activity actions.
const (
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionBulkLoad = "bulk_load"
)

// Activity outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// ActivityRepo stores the local journal of mutating requests.
type ActivityRepo struct {
	db DBTX
}

func NewActivityRepo(db DBTX) *ActivityRepo { return &ActivityRepo{db: db} }

func (r *ActivityRepo) Insert(ctx context.Context, e ActivityEntry) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO activity(id, action, record_id, instrumento, outcome, detail, request_id, requested_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?);
	`, e.ID, e.Action, e.RecordID, e.Instrumento, e.Outcome, e.Detail, e.RequestID, e.RequestedAt)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// ListRecent returns up to limit entries, newest first.
func (r *ActivityRepo) ListRecent(ctx context.Context, limit int) ([]ActivityEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, action, COALESCE(record_id, ''), COALESCE(instrumento, ''), outcome,
	       COALESCE(detail, ''), COALESCE(request_id, ''), requested_at
	FROM activity
	ORDER BY requested_at DESC, rowid DESC
	LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var out []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.RecordID, &e.Instrumento, &e.Outcome,
			&e.Detail, &e.RequestID, &e.RequestedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return out, nil
}

// Prune deletes everything but the newest keep entries and reports how many rows went.
func (r *ActivityRepo) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
	DELETE FROM activity
	WHERE rowid NOT IN (
		SELECT rowid FROM activity ORDER BY requested_at DESC, rowid DESC LIMIT ?
	)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune activity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune activity: %w", err)
	}
	return n, nil
}
