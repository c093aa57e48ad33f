// Package sqlitemigrate applies embedded SQL migration scripts to a SQLite
// database at startup. Scripts run in lexicographic order, each at most once,
// with applied names tracked in a schema_migrations table.
package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

const (
	appliedTable = "schema_migrations"
	upMarker     = "-- +migrate Up"
	downMarker   = "-- +migrate Down"
)

// script is one migration file staged for execution. key is the name recorded
// in schema_migrations, including the root prefix when one was given.
type script struct {
	key string
	sql string
}

// Apply executes the .sql scripts found under root. Scripts already recorded
// in schema_migrations are skipped, so Apply is safe to run on every startup.
func Apply(ctx context.Context, sqlDB *sql.DB, fsys fs.FS, root string) error {
	if sqlDB == nil {
		return fmt.Errorf("sql db is required")
	}

	scripts, err := loadScripts(fsys, root)
	if err != nil {
		return err
	}

	if _, err := sqlDB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+appliedTable+` (
	    name TEXT PRIMARY KEY,
	    applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, sc := range scripts {
		applied, err := alreadyApplied(ctx, sqlDB, sc.key)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", sc.key, err)
		}
		if applied || strings.TrimSpace(sc.sql) == "" {
			continue
		}
		if err := applyScript(ctx, sqlDB, sc); err != nil {
			return err
		}
	}
	return nil
}

func loadScripts(fsys fs.FS, root string) ([]script, error) {
	readRoot := strings.TrimSpace(root)
	if readRoot == "" {
		readRoot = "."
	}

	entries, err := fs.ReadDir(fsys, readRoot)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	scripts := make([]script, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		name := path.Join(readRoot, entry.Name())
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		scripts = append(scripts, script{key: name, sql: upSection(string(content))})
	}
	sort.Slice(scripts, func(i, j int) bool { return scripts[i].key < scripts[j].key })
	return scripts, nil
}

// applyScript runs one script and records it in the same transaction, so a
// failed script stays unrecorded and is retried on the next startup.
func applyScript(ctx context.Context, sqlDB *sql.DB, sc script) error {
	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration transaction %s: %w", sc.key, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, sc.sql); err != nil && !isIdempotentDDLError(err) {
		return fmt.Errorf("exec migration %s: %w", sc.key, err)
	}
	if _, err := tx.ExecContext(
		ctx,
		"INSERT OR IGNORE INTO "+appliedTable+" (name, applied_at) VALUES (?, ?)",
		sc.key,
		time.Now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("record migration %s: %w", sc.key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", sc.key, err)
	}
	return nil
}

// upSection returns the statements between the Up and Down markers. Scripts
// without markers run whole.
func upSection(content string) string {
	upIdx := strings.Index(content, upMarker)
	if upIdx == -1 {
		return content
	}
	rest := content[upIdx+len(upMarker):]
	if downIdx := strings.Index(rest, downMarker); downIdx != -1 {
		return rest[:downIdx]
	}
	return rest
}

// isIdempotentDDLError reports whether a DDL failure means the schema object
// is already in place.
func isIdempotentDDLError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate column name")
}

func alreadyApplied(ctx context.Context, sqlDB *sql.DB, key string) (bool, error) {
	var one int
	err := sqlDB.QueryRowContext(ctx, "SELECT 1 FROM "+appliedTable+" WHERE name = ?", key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
