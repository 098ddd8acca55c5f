package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"citetrack/internal/config"
)

// Store manages record persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the records database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// NewURL inserts a record for a URL entering the system in not_started.
func (s *Store) NewURL(ctx context.Context, rawURL string) (*Record, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO records (url, status, intent, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		normalized,
		StatusNotStarted,
		IntentAuto,
		timestamp,
		timestamp,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateURL, normalized)
		}
		return nil, fmt.Errorf("insert record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a record by identifier. A missing id is ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

// FindByURL returns the record tracking a normalized URL. An untracked URL
// is ErrNotFound.
func (s *Store) FindByURL(ctx context.Context, rawURL string) (*Record, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE url = ?`, normalized)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("url %s: %w", normalized, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find by url: %w", err)
	}
	return record, nil
}

// List returns records filtered by status set (or all records when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Record, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + recordColumns + ` FROM records`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var result []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

// ListIDs returns record identifiers matching a status set in creation order.
func (s *Store) ListIDs(ctx context.Context, statuses ...Status) ([]int64, error) {
	matched, err := s.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(matched))
	for _, record := range matched {
		ids = append(ids, record.ID)
	}
	return ids, nil
}

// SetIntent updates the user policy overlay without touching status.
func (s *Store) SetIntent(ctx context.Context, id int64, intent Intent) error {
	if _, ok := intentSet[intent]; !ok {
		return fmt.Errorf("unknown intent %q", intent)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE records SET intent = ?, updated_at = ? WHERE id = ?`,
		intent,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set intent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("record %d not found", id)
	}
	return nil
}

// Stats returns a count of records grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("record stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates record state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch {
		case status == StatusNotStarted:
			health.NotStarted += count
		case status == StatusStored || status == StatusStoredIncomplete:
			health.Stored += count
		case status == StatusFailed:
			health.Failed += count
		case IsProcessing(status):
			health.Processing += count
		case NeedsAttention(status):
			health.Attention += count
		}
	}
	return health, nil
}

// Projection assembles the read-only view of a record including its history.
func (s *Store) Projection(ctx context.Context, id int64) (*Projection, error) {
	record, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	history, err := s.Attempts(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Projection{
		ID:              record.ID,
		URL:             record.URL,
		Status:          record.Status,
		Intent:          record.Intent,
		ExternalItemKey: record.ExternalItemKey,
		LastError:       record.LastError,
		History:         history,
		UpdatedAt:       record.UpdatedAt,
	}, nil
}

const recordColumns = "id, url, status, intent, external_item_key, previous_item_key, previous_status, last_error_kind, last_error_message, last_error_retryable, attempt_count, created_at, updated_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		id            int64
		url           string
		statusStr     string
		intentStr     string
		externalKey   sql.NullString
		previousKey   sql.NullString
		previousState sql.NullString
		errKind       sql.NullString
		errMessage    sql.NullString
		errRetryable  sql.NullInt64
		attemptCount  sql.NullInt64
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&url,
		&statusStr,
		&intentStr,
		&externalKey,
		&previousKey,
		&previousState,
		&errKind,
		&errMessage,
		&errRetryable,
		&attemptCount,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	record := &Record{
		ID:              id,
		URL:             url,
		Status:          Status(statusStr),
		Intent:          Intent(intentStr),
		ExternalItemKey: externalKey.String,
		PreviousItemKey: previousKey.String,
		PreviousStatus:  Status(previousState.String),
		AttemptCount:    int(attemptCount.Int64),
	}
	if errKind.Valid && errKind.String != "" {
		record.LastError = &Failure{
			Kind:      errKind.String,
			Message:   errMessage.String,
			Retryable: errRetryable.Int64 != 0,
		}
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		record.UpdatedAt = updated
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
