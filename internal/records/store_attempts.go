package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// AppendAttempt writes a history entry without a status change, used for
// intermediate tier failures inside one orchestration call. attempt_count is
// bumped in the same transaction.
func (s *Store) AppendAttempt(ctx context.Context, recordID int64, attempt *Attempt) error {
	if attempt == nil {
		return fmt.Errorf("attempt is nil")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attempt tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := appendAttemptTx(ctx, tx, recordID, attempt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE records SET attempt_count = attempt_count + 1 WHERE id = ?`, recordID); err != nil {
		return fmt.Errorf("bump attempt count: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attempt: %w", err)
	}
	return nil
}

// Attempts returns a record's processing history in append order.
func (s *Store) Attempts(ctx context.Context, recordID int64) ([]Attempt, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT record_id, seq, timestamp, stage, method, success, duration_ms, result_item_key, metadata_json
         FROM attempts WHERE record_id = ? ORDER BY seq`,
		recordID,
	)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var (
			attempt      Attempt
			timestampRaw string
			success      int
			itemKey      sql.NullString
			metadataRaw  sql.NullString
		)
		if err := rows.Scan(
			&attempt.RecordID,
			&attempt.Seq,
			&timestampRaw,
			&attempt.Stage,
			&attempt.Method,
			&success,
			&attempt.DurationMs,
			&itemKey,
			&metadataRaw,
		); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempt.Success = success != 0
		attempt.ResultItemKey = itemKey.String
		if ts, err := parseTimeString(timestampRaw); err == nil {
			attempt.Timestamp = ts
		}
		if metadataRaw.Valid && metadataRaw.String != "" {
			if err := json.Unmarshal([]byte(metadataRaw.String), &attempt.Metadata); err != nil {
				return nil, fmt.Errorf("decode attempt metadata: %w", err)
			}
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

// LastAttempt returns the most recent history entry, or nil when the record
// has none.
func (s *Store) LastAttempt(ctx context.Context, recordID int64) (*Attempt, error) {
	attempts, err := s.Attempts(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if len(attempts) == 0 {
		return nil, nil
	}
	return &attempts[len(attempts)-1], nil
}

// AttemptCount returns the number of history entries for a record.
func (s *Store) AttemptCount(ctx context.Context, recordID int64) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM attempts WHERE record_id = ?`, recordID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return count, nil
}
