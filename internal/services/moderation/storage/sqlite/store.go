package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/bongbong-com/modl-panel-sub005/internal/platform/storage/sqlitemigrate"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage/integrity"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage/sqlite/migrations"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis reverses toMillis for persisted millisecond timestamps.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// toNullMillis maps optional domain times to sql.NullInt64 for nullable DB columns.
func toNullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

// fromNullMillis maps nullable SQL timestamps back into optional domain time values.
func fromNullMillis(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

// toNullDurationMillis maps optional durations to nullable millisecond columns.
func toNullDurationMillis(value *time.Duration) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: value.Milliseconds(), Valid: true}
}

// fromNullDurationMillis reverses toNullDurationMillis.
func fromNullDurationMillis(value sql.NullInt64) *time.Duration {
	if !value.Valid {
		return nil
	}
	d := time.Duration(value.Int64) * time.Millisecond
	return &d
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so read-model writes can run
// inside an exactly-once apply transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store provides a SQLite-backed store implementing all storage interfaces.
type Store struct {
	sqlDB                        *sql.DB
	db                           dbtx
	keyring                      *integrity.Keyring
	eventRegistry                *event.Registry
	projectionApplyOutboxEnabled bool
}

func (s *Store) withTx(tx *sql.Tx) *Store {
	if s == nil || tx == nil {
		return s
	}
	cloned := *s
	cloned.db = tx
	return &cloned
}

// OpenJournalOption configures journal-store behavior.
type OpenJournalOption func(*Store)

// WithProjectionApplyOutboxEnabled toggles enqueueing projection-apply work for appended events.
func WithProjectionApplyOutboxEnabled(enabled bool) OpenJournalOption {
	return func(s *Store) {
		s.projectionApplyOutboxEnabled = enabled
	}
}

// OpenJournal opens the SQLite punishment journal at the provided path.
//
// This path wires integrity key material and the event registry so every
// appended event can be consistently validated, hashed, and signed in one
// place.
func OpenJournal(path string, keyring *integrity.Keyring, registry *event.Registry, opts ...OpenJournalOption) (*Store, error) {
	store, err := openStore(path, migrations.EventsFS, "events", keyring)
	if err != nil {
		return nil, err
	}
	store.eventRegistry = registry
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// OpenProjections opens the SQLite read-model store at the provided path.
func OpenProjections(path string) (*Store, error) {
	return openStore(path, migrations.ProjectionsFS, "projections", nil)
}

// Close closes the underlying SQLite database.
//
// Close is intentionally nil-safe so callers can defer it in all startup paths.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// openStore boots a SQLite bundle for a domain purpose (events/projections)
// and applies embedded migrations before the store is handed to higher layers.
func openStore(path string, migrationFS fs.FS, migrationRoot string, keyring *integrity.Keyring) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	// modernc.org/sqlite only honors _pragma=name(value) query parameters.
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{
		sqlDB:   sqlDB,
		db:      sqlDB,
		keyring: keyring,
	}

	if err := runMigrations(sqlDB, migrationFS, migrationRoot); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// runMigrations executes embedded SQL migrations from the provided migration set.
// Files are sorted lexicographically to make startup behavior deterministic.
func runMigrations(sqlDB *sql.DB, migrationFS fs.FS, migrationRoot string) error {
	return sqlitemigrate.Apply(context.Background(), sqlDB, migrationFS, migrationRoot)
}
