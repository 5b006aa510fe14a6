package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/lurk-tender/backend/telemetry"
)

// Store wraps the sqlite handle with the namespace get/put contract: reads
// degrade to a caller-supplied default, writes return an error but never
// panic into unrelated code paths.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

func validNamespace(ns string) bool {
	for _, n := range namespaces {
		if n == ns {
			return true
		}
	}
	return false
}

// GetJSON reads the value at (ns, key) into out. Returns false when the key
// is absent or unreadable; out is untouched in that case.
func (s *Store) GetJSON(ctx context.Context, ns, key string, out any) bool {
	if !validNamespace(ns) {
		return false
	}
	var raw string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT value FROM %s WHERE key=?`, ns), key).Scan(&raw)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		if telemetry.StoreErrors != nil {
			telemetry.StoreErrors.Inc()
		}
		slog.Warn("store read failed", slog.String("namespace", ns), slog.String("key", key), slog.Any("err", err))
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		slog.Warn("store value unreadable", slog.String("namespace", ns), slog.String("key", key), slog.Any("err", err))
		return false
	}
	return true
}

// PutJSON writes value (JSON-encoded) at (ns, key).
func (s *Store) PutJSON(ctx context.Context, ns, key string, value any) error {
	if !validNamespace(ns) {
		return fmt.Errorf("unknown namespace %q", ns)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", ns, key, err)
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`, ns),
		key, string(raw), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		if telemetry.StoreErrors != nil {
			telemetry.StoreErrors.Inc()
		}
		return fmt.Errorf("put %s/%s: %w", ns, key, err)
	}
	return nil
}

// Delete removes a key from a namespace. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, ns, key string) error {
	if !validNamespace(ns) {
		return fmt.Errorf("unknown namespace %q", ns)
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key=?`, ns), key)
	return err
}
