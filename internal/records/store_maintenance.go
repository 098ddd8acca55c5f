package records

import (
	"context"
	"fmt"
)

// PurgeArchived removes archived records and their history. This is an
// explicit operator action outside the orchestrated lifecycle; the core
// itself never hard-deletes.
func (s *Store) PurgeArchived(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin purge tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(
		ctx,
		`DELETE FROM attempts WHERE record_id IN (SELECT id FROM records WHERE status = ?)`,
		StatusArchived,
	); err != nil {
		return 0, fmt.Errorf("purge archived attempts: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE status = ?`, StatusArchived)
	if err != nil {
		return 0, fmt.Errorf("purge archived records: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit purge: %w", err)
	}
	return affected, nil
}
