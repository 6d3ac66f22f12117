package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// baselineSchema bootstraps a fresh database when no migrations directory
// is available. File-based migrations layered on top use the same version
// ledger, so switching between the two is safe.
const baselineSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	username      TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT 'user',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS sessions (
	token_hash TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	status       TEXT NOT NULL,
	creator_type TEXT NOT NULL,
	creator_sub  TEXT,
	source       TEXT NOT NULL,
	request      JSONB NOT NULL,
	started_at   TEXT,
	finished_at  TEXT,
	created_at   TEXT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	result       JSONB,
	risk         JSONB NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS run_events (
	run_id    TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	seq       BIGINT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
	stage     TEXT NOT NULL,
	message   TEXT NOT NULL,
	data      JSONB,
	PRIMARY KEY (run_id, seq)
);
CREATE TABLE IF NOT EXISTS audit_events (
	id         BIGSERIAL PRIMARY KEY,
	timestamp  TIMESTAMPTZ NOT NULL,
	run_id     TEXT,
	actor_type TEXT NOT NULL,
	actor_sub  TEXT,
	action     TEXT NOT NULL,
	result     TEXT NOT NULL,
	ip_hash    TEXT,
	ua_hash    TEXT,
	detail     TEXT
);
`

// RunMigrations applies the baseline schema, then any *.up.sql files from
// dir in lexical order, recording each version in schema_migrations.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, dir string) error {
	_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	if _, err := pool.Exec(ctx, baselineSchema); err != nil {
		return fmt.Errorf("apply baseline schema: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("no migrations directory; baseline schema only", "dir", dir)
			return nil
		}
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		version := strings.TrimSuffix(name, ".up.sql")
		var exists bool
		err := pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", version, err)
		}
		if exists {
			continue
		}
		sql, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx for %s: %w", version, err)
		}
		if _, err := tx.Exec(ctx, string(sql)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("exec migration %s: %w", version, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations(version) VALUES($1)`, version); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("record migration %s: %w", version, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit migration %s: %w", version, err)
		}
		slog.Info("applied migration", "version", version)
	}
	return nil
}
