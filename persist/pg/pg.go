// Package pg persists the engine's source-of-truth view and audit log in
// PostgreSQL via pgx. One Store implements the assignment, override,
// attribute, tuple, and audit store interfaces; wire the ones you need:
//
//	store, err := pg.Open(ctx, cfg)
//	eng := authz.New(
//		authz.WithAssignmentStore(store.Assignments()),
//		authz.WithOverrideStore(store.Overrides()),
//		authz.WithAttributeStore(store.Attributes()),
//		authz.WithTupleStore(store.Tuples()),
//		authz.WithAuditStore(store.Audit()),
//	)
package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kelseyhightower/envconfig"

	"github.com/helmgate/authz/types"
)

// Config holds connection settings, readable from the environment with
// the AUTHZ_PG prefix.
type Config struct {
	URL             string `envconfig:"URL" required:"true"`
	MaxConns        int32  `envconfig:"MAX_CONNS" default:"8"`
	ApplySchemaOnUp bool   `envconfig:"APPLY_SCHEMA" default:"false"`
}

// ConfigFromEnv reads Config from AUTHZ_PG_* environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("AUTHZ_PG", &cfg); err != nil {
		return Config{}, fmt.Errorf("pg config: %w", err)
	}
	return cfg, nil
}

// Store bundles the per-entity stores sharing one pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// Assignments returns the role assignment store.
func (s *Store) Assignments() *AssignmentStore { return NewAssignmentStore(s.pool) }

// Overrides returns the permission override store.
func (s *Store) Overrides() *OverrideStore { return NewOverrideStore(s.pool) }

// Attributes returns the user attribute store.
func (s *Store) Attributes() *AttributeStore { return NewAttributeStore(s.pool) }

// Tuples returns the relationship tuple store.
func (s *Store) Tuples() *TupleStore { return NewTupleStore(s.pool) }

// Audit returns the audit log store.
func (s *Store) Audit() *AuditStore { return NewAuditStore(s.pool) }

// Open connects and optionally applies the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse pg url: %w", err)
	}
	pc.MaxConns = cfg.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect pg: %w", err)
	}

	s := &Store{pool: pool}
	if cfg.ApplySchemaOnUp {
		if err := s.ApplySchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewStore wraps an existing pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// ApplySchema creates the tables and indexes if they do not exist.
func (s *Store) ApplySchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS authz_role_assignments (
	user_id     TEXT NOT NULL,
	role        TEXT NOT NULL,
	scope_key   TEXT NOT NULL,
	metadata    JSONB,
	assigned_by TEXT NOT NULL DEFAULT '',
	expires_at  TIMESTAMPTZ,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, role, scope_key)
);

CREATE TABLE IF NOT EXISTS authz_overrides (
	id         UUID PRIMARY KEY,
	user_id    TEXT NOT NULL,
	permission TEXT NOT NULL,
	scope_key  TEXT NOT NULL,
	effect     TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL DEFAULT '',
	expires_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, permission, scope_key)
);

CREATE TABLE IF NOT EXISTS authz_attributes (
	user_id TEXT NOT NULL,
	key     TEXT NOT NULL,
	value   JSONB,
	PRIMARY KEY (user_id, key)
);

CREATE TABLE IF NOT EXISTS authz_tuples (
	subject_type TEXT NOT NULL,
	subject_id   TEXT NOT NULL,
	relation     TEXT NOT NULL,
	object_type  TEXT NOT NULL,
	object_id    TEXT NOT NULL,
	created_by   TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (subject_type, subject_id, relation, object_type, object_id)
);
CREATE INDEX IF NOT EXISTS authz_tuples_object ON authz_tuples (object_type, object_id);

CREATE TABLE IF NOT EXISTS authz_audit_log (
	id       UUID PRIMARY KEY,
	ts       TIMESTAMPTZ NOT NULL,
	action   TEXT NOT NULL,
	user_id  TEXT NOT NULL,
	actor_id TEXT NOT NULL DEFAULT '',
	details  JSONB
);
CREATE INDEX IF NOT EXISTS authz_audit_log_user ON authz_audit_log (user_id, ts DESC);
`

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{types.ErrNotFound}, args...)...)
}

func alreadyExists(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{types.ErrAlreadyExists}, args...)...)
}

func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
