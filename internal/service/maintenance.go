package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/brokernuam/calificaciones/internal/database"
	"github.com/brokernuam/calificaciones/internal/database/repository"
)

// JournalKeep is how many journal entries survive a prune.
const JournalKeep = 1000

// MaintenanceService houses housekeeping on the local databases.
type MaintenanceService struct {
	DB *sql.DB
}

// PruneJournal trims the activity journal to the newest keep entries and compacts the
// file when anything was removed.
func (s *MaintenanceService) PruneJournal(ctx context.Context, keep int) (int64, error) {
	if s.DB == nil {
		return 0, fmt.Errorf("maintenance: db not configured")
	}
	var removed int64
	if err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		n, err := repository.NewActivityRepo(tx).Prune(ctx, keep)
		removed = n
		return err
	}); err != nil {
		return 0, err
	}
	if removed > 0 {
		_, _ = s.DB.ExecContext(ctx, "VACUUM")
	}
	return removed, nil
}

// ResetStore empties the development store. The schema stays so the server keeps running.
func (s *MaintenanceService) ResetStore(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("maintenance: db not configured")
	}
	return database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		for _, t := range []string{"calificaciones", "activity"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("reset table %s: %w", t, err)
			}
		}
		return nil
	})
}
