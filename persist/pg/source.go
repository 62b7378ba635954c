package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helmgate/authz/types"
)

var _ types.AssignmentStore = (*AssignmentStore)(nil)

// AssignmentStore persists role assignments.
type AssignmentStore struct {
	pool *pgxpool.Pool
}

func NewAssignmentStore(pool *pgxpool.Pool) *AssignmentStore {
	return &AssignmentStore{pool: pool}
}

func (s *AssignmentStore) Insert(ctx context.Context, a types.RoleAssignment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var expiresAt *time.Time
	err = tx.QueryRow(ctx,
		`SELECT expires_at FROM authz_role_assignments
		 WHERE user_id = $1 AND role = $2 AND scope_key = $3 FOR UPDATE`,
		a.UserID, a.Role, a.Scope.Key()).Scan(&expiresAt)
	switch {
	case err == nil:
		if expiresAt == nil || time.Now().Before(*expiresAt) {
			return alreadyExists("assignment %s/%s@%s", a.UserID, a.Role, a.Scope.Key())
		}
		// expired row, take it over
		if _, err := tx.Exec(ctx,
			`UPDATE authz_role_assignments
			 SET metadata = $4, assigned_by = $5, expires_at = $6, created_at = $7
			 WHERE user_id = $1 AND role = $2 AND scope_key = $3`,
			a.UserID, a.Role, a.Scope.Key(), a.Metadata, a.AssignedBy, a.ExpiresAt, a.CreatedAt); err != nil {
			return err
		}
	case noRows(err):
		if _, err := tx.Exec(ctx,
			`INSERT INTO authz_role_assignments
			 (user_id, role, scope_key, metadata, assigned_by, expires_at, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			a.UserID, a.Role, a.Scope.Key(), a.Metadata, a.AssignedBy, a.ExpiresAt, a.CreatedAt); err != nil {
			return err
		}
	default:
		return err
	}

	return tx.Commit(ctx)
}

func (s *AssignmentStore) Delete(ctx context.Context, userID, role string, scope types.Scope) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM authz_role_assignments WHERE user_id = $1 AND role = $2 AND scope_key = $3`,
		userID, role, scope.Key())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound("assignment %s/%s@%s", userID, role, scope.Key())
	}
	return nil
}

func (s *AssignmentStore) ListByUser(ctx context.Context, userID string) ([]types.RoleAssignment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT role, scope_key, metadata, assigned_by, expires_at, created_at
		 FROM authz_role_assignments WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.RoleAssignment
	for rows.Next() {
		a := types.RoleAssignment{UserID: userID}
		var scopeKey string
		if err := rows.Scan(&a.Role, &scopeKey, &a.Metadata, &a.AssignedBy, &a.ExpiresAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		if a.Scope, err = types.ParseScopeKey(scopeKey); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *AssignmentStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM authz_role_assignments WHERE expires_at IS NOT NULL AND expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

var _ types.OverrideStore = (*OverrideStore)(nil)

// OverrideStore persists permission overrides.
type OverrideStore struct {
	pool *pgxpool.Pool
}

func NewOverrideStore(pool *pgxpool.Pool) *OverrideStore {
	return &OverrideStore{pool: pool}
}

func (s *OverrideStore) Upsert(ctx context.Context, o types.PermissionOverride) (types.PermissionOverride, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO authz_overrides
		 (id, user_id, permission, scope_key, effect, reason, created_by, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (user_id, permission, scope_key) DO UPDATE
		 SET effect = EXCLUDED.effect, reason = EXCLUDED.reason,
		     created_by = EXCLUDED.created_by, expires_at = EXCLUDED.expires_at
		 RETURNING id, created_at`,
		o.ID, o.UserID, o.Permission, o.Scope.Key(), string(o.Effect),
		o.Reason, o.CreatedBy, o.ExpiresAt, o.CreatedAt).
		Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return types.PermissionOverride{}, fmt.Errorf("upsert override: %w", err)
	}
	return o, nil
}

func (s *OverrideStore) Delete(ctx context.Context, userID, permission string, scope types.Scope) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM authz_overrides WHERE user_id = $1 AND permission = $2 AND scope_key = $3`,
		userID, permission, scope.Key())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound("override %s/%s@%s", userID, permission, scope.Key())
	}
	return nil
}

func (s *OverrideStore) ListByUser(ctx context.Context, userID string) ([]types.PermissionOverride, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, permission, scope_key, effect, reason, created_by, expires_at, created_at
		 FROM authz_overrides WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.PermissionOverride
	for rows.Next() {
		o := types.PermissionOverride{UserID: userID}
		var scopeKey, effect string
		if err := rows.Scan(&o.ID, &o.Permission, &scopeKey, &effect, &o.Reason, &o.CreatedBy, &o.ExpiresAt, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.Effect = types.Effect(effect)
		if o.Scope, err = types.ParseScopeKey(scopeKey); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *OverrideStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM authz_overrides WHERE expires_at IS NOT NULL AND expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

var _ types.AttributeStore = (*AttributeStore)(nil)

// AttributeStore persists user attributes as JSONB values.
type AttributeStore struct {
	pool *pgxpool.Pool
}

func NewAttributeStore(pool *pgxpool.Pool) *AttributeStore {
	return &AttributeStore{pool: pool}
}

func (s *AttributeStore) Upsert(ctx context.Context, a types.UserAttribute) error {
	value, err := json.Marshal(a.Value)
	if err != nil {
		return fmt.Errorf("encode attribute %s/%s: %w", a.UserID, a.Key, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO authz_attributes (user_id, key, value) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, key) DO UPDATE SET value = EXCLUDED.value`,
		a.UserID, a.Key, value)
	return err
}

func (s *AttributeStore) Delete(ctx context.Context, userID, key string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM authz_attributes WHERE user_id = $1 AND key = $2`, userID, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound("attribute %s/%s", userID, key)
	}
	return nil
}

func (s *AttributeStore) ListByUser(ctx context.Context, userID string) ([]types.UserAttribute, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, value FROM authz_attributes WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.UserAttribute
	for rows.Next() {
		a := types.UserAttribute{UserID: userID}
		var raw []byte
		if err := rows.Scan(&a.Key, &raw); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &a.Value); err != nil {
				return nil, fmt.Errorf("decode attribute %s/%s: %w", userID, a.Key, err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
