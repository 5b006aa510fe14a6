// Package db provides the embedded key-value store backing settings and
// per-channel schedule records, including schema migration and typed helpers.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // pure-Go sqlite driver registered as 'sqlite'
)

// The two logical namespaces. Each is a small kv table; values are JSON.
const (
	NamespaceSettings    = "settings"
	NamespaceLastMessage = "last_message"
)

var namespaces = []string{NamespaceSettings, NamespaceLastMessage}

// schemaVersion is written to PRAGMA user_version once all namespaces exist.
// Opening a store whose version is older (schema drift, e.g. a namespace
// table added after the file was created) upgrades in place without touching
// existing rows.
const schemaVersion = 2

// Connect opens (creating if needed) the sqlite database at path and runs
// migrations. The parent directory is created when missing.
func Connect(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single writer keeps per-key operations atomic without contention.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=wal;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := Migrate(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate ensures every namespace table exists. It is idempotent: tables that
// already exist (and their rows) are left untouched, only missing ones are
// created, and user_version is advanced.
func Migrate(ctx context.Context, db *sql.DB) error {
	version, err := userVersion(ctx, db)
	if err != nil {
		return fmt.Errorf("sqlite: user_version: %w", err)
	}

	created := 0
	for _, ns := range namespaces {
		exists, err := tableExists(ctx, db, ns)
		if err != nil {
			return fmt.Errorf("sqlite: describe %s: %w", ns, err)
		}
		if exists {
			continue
		}
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (strftime('%%Y-%%m-%%dT%%H:%%M:%%fZ','now'))
		)`, ns)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: create %s: %w", ns, err)
		}
		created++
	}

	if version < schemaVersion {
		if _, err := db.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version=%d;`, schemaVersion)); err != nil {
			return fmt.Errorf("sqlite: bump user_version: %w", err)
		}
	}
	if created > 0 {
		slog.Info("store migrated", slog.Int("namespaces_created", created), slog.Int("user_version", schemaVersion))
	}
	return nil
}

func userVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

func tableExists(ctx context.Context, db *sql.DB, table string) (bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s);`, table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return false, err
		}
		if strings.TrimSpace(name) != "" {
			return true, nil
		}
	}
	return false, rows.Err()
}
