package records

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// CommitTransition persists a transitioned record conditioned on the status
// the caller read (optimistic check), appending the attempt atomically when
// one is supplied. A stale expected status rolls everything back and returns
// ErrConflict; the attempt is discarded, never merged.
func (s *Store) CommitTransition(ctx context.Context, record *Record, expected Status, attempt *Attempt) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		errKind      any
		errMessage   any
		errRetryable int
	)
	if record.LastError != nil {
		errKind = record.LastError.Kind
		errMessage = record.LastError.Message
		errRetryable = boolToInt(record.LastError.Retryable)
	}

	attemptIncrement := 0
	if attempt != nil {
		attemptIncrement = 1
	}

	res, err := tx.ExecContext(
		ctx,
		`UPDATE records
         SET status = ?, external_item_key = ?, previous_item_key = ?, previous_status = ?,
             last_error_kind = ?, last_error_message = ?, last_error_retryable = ?,
             attempt_count = attempt_count + ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		record.Status,
		nullableString(record.ExternalItemKey),
		nullableString(record.PreviousItemKey),
		nullableString(string(record.PreviousStatus)),
		errKind,
		errMessage,
		errRetryable,
		attemptIncrement,
		record.UpdatedAt.Format(time.RFC3339Nano),
		record.ID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var current string
		row := tx.QueryRowContext(ctx, `SELECT status FROM records WHERE id = ?`, record.ID)
		if scanErr := row.Scan(&current); scanErr != nil {
			return fmt.Errorf("record %d not found", record.ID)
		}
		return fmt.Errorf("%w: record %d is %s, expected %s", ErrConflict, record.ID, current, expected)
	}

	if attempt != nil {
		if err := appendAttemptTx(ctx, tx, record.ID, attempt); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition tx: %w", err)
	}
	record.AttemptCount += attemptIncrement
	return nil
}

// ResetStuckProcessing recovers records left in processing states by a crash.
// Interrupted replacements are restored to their prior linked state with the
// old key intact; interrupted fresh attempts are failed with a recovery note.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	restored, err := s.db.ExecContext(
		ctx,
		`UPDATE records
         SET status = previous_status, external_item_key = previous_item_key,
             previous_item_key = NULL, previous_status = NULL, updated_at = ?
         WHERE status = ? AND previous_item_key IS NOT NULL AND previous_status IS NOT NULL`,
		now,
		StatusProcessingExternal,
	)
	if err != nil {
		return 0, fmt.Errorf("restore interrupted replacements: %w", err)
	}
	restoredCount, err := restored.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	failed, err := s.db.ExecContext(
		ctx,
		`UPDATE records
         SET status = ?, last_error_kind = 'unknown', last_error_message = ?,
             last_error_retryable = 0, updated_at = ?
         WHERE status IN (?, ?, ?)`,
		StatusFailed,
		ShutdownStopReason,
		now,
		StatusProcessingContent,
		StatusExtractingIdentifiers,
		StatusProcessingExternal,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck records: %w", err)
	}
	failedCount, err := failed.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return restoredCount + failedCount, nil
}

func appendAttemptTx(ctx context.Context, tx execQuerier, recordID int64, attempt *Attempt) error {
	var seq int
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM attempts WHERE record_id = ?`, recordID)
	if err := row.Scan(&seq); err != nil {
		return fmt.Errorf("next attempt seq: %w", err)
	}

	var metadataJSON any
	if len(attempt.Metadata) > 0 {
		encoded, err := json.Marshal(attempt.Metadata)
		if err != nil {
			return fmt.Errorf("marshal attempt metadata: %w", err)
		}
		metadataJSON = string(encoded)
	}

	timestamp := attempt.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO attempts (record_id, seq, timestamp, stage, method, success, duration_ms, result_item_key, metadata_json)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		recordID,
		seq,
		timestamp.UTC().Format(time.RFC3339Nano),
		attempt.Stage,
		attempt.Method,
		boolToInt(attempt.Success),
		attempt.DurationMs,
		nullableString(attempt.ResultItemKey),
		metadataJSON,
	); err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}

	attempt.RecordID = recordID
	attempt.Seq = seq
	attempt.Timestamp = timestamp
	return nil
}
