package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema holds the tables used by the directory and account repositories.
const schema = `
CREATE TABLE IF NOT EXISTS directory_users (
    id            UUID PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    email         TEXT NOT NULL DEFAULT '',
    password_hash BYTEA NOT NULL,
    multifactor   BOOLEAN NOT NULL DEFAULT FALSE,
    created_at    TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS directory_workspaces (
    id       UUID PRIMARY KEY,
    user_id  UUID NOT NULL REFERENCES directory_users(id) ON DELETE CASCADE,
    name     TEXT NOT NULL,
    url      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS accounts (
    id             UUID PRIMARY KEY,
    username       TEXT NOT NULL UNIQUE,
    auth_token     TEXT NOT NULL,
    is_default     BOOLEAN NOT NULL DEFAULT FALSE,
    created_at     TIMESTAMPTZ NOT NULL,
    last_synced_at TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS accounts_single_default ON accounts (is_default) WHERE is_default;
CREATE TABLE IF NOT EXISTS workspaces (
    id         UUID PRIMARY KEY,
    account_id UUID REFERENCES accounts(id) ON DELETE SET NULL,
    name       TEXT NOT NULL,
    url        TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS social_links (
    account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    provider   TEXT NOT NULL,
    subject    TEXT NOT NULL,
    linked_at  TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (account_id, provider)
);`

// NewPostgresPool configures and returns a PostgreSQL connection pool.
func NewPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// EnsureSchema creates the tables the service needs when they are missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
