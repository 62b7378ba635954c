// Package redis keeps the derived index view in Redis. Every derived row
// is one hash field holding the row as JSON, so the fast read path stays a
// single HGET regardless of how many roles or overrides feed the row.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"

	"github.com/helmgate/authz/types"
)

// Config holds connection settings, readable from the environment with
// the AUTHZ_REDIS prefix.
type Config struct {
	Addr     string `envconfig:"ADDR" default:"localhost:6379"`
	Password string `envconfig:"PASSWORD" default:""`
	DB       int    `envconfig:"DB" default:"0"`
}

// ConfigFromEnv reads Config from AUTHZ_REDIS_* environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("AUTHZ_REDIS", &cfg); err != nil {
		return Config{}, fmt.Errorf("redis config: %w", err)
	}
	return cfg, nil
}

var _ types.IndexStore = (*IndexStore)(nil)

// IndexStore implements the derived-index view over a Redis client.
type IndexStore struct {
	rdb redis.UniversalClient
}

// Open connects a client from config.
func Open(cfg Config) *IndexStore {
	return New(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}))
}

// New wraps an existing client.
func New(rdb redis.UniversalClient) *IndexStore {
	return &IndexStore{rdb: rdb}
}

func permKey(userID string) string { return "authz:ep:" + userID }
func roleKey(userID string) string { return "authz:er:" + userID }

const relKey = "authz:rel"

func relParentKey(id string) string { return "authz:rel:from:" + id }

func permField(permission, scopeKey string) string { return permission + "|" + scopeKey }
func roleField(role, scopeKey string) string       { return role + "|" + scopeKey }

func relField(subjectKey, relation, objectKey string) string {
	return subjectKey + "#" + relation + "#" + objectKey
}

func (s *IndexStore) getJSON(ctx context.Context, key, field string, v any) error {
	raw, err := s.rdb.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return fmt.Errorf("%w: %s/%s", types.ErrNotFound, key, field)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), v)
}

func (s *IndexStore) setJSON(ctx context.Context, key, field string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, key, field, raw).Err()
}

func (s *IndexStore) del(ctx context.Context, key, field string) error {
	n, err := s.rdb.HDel(ctx, key, field).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", types.ErrNotFound, key, field)
	}
	return nil
}

func (s *IndexStore) GetPermission(ctx context.Context, userID, permission, scopeKey string) (types.EffectivePermission, error) {
	var p types.EffectivePermission
	if err := s.getJSON(ctx, permKey(userID), permField(permission, scopeKey), &p); err != nil {
		return types.EffectivePermission{}, err
	}
	return p, nil
}

func (s *IndexStore) UpsertPermission(ctx context.Context, p types.EffectivePermission) error {
	return s.setJSON(ctx, permKey(p.UserID), permField(p.Permission, p.ScopeKey), p)
}

func (s *IndexStore) DeletePermission(ctx context.Context, userID, permission, scopeKey string) error {
	return s.del(ctx, permKey(userID), permField(permission, scopeKey))
}

func (s *IndexStore) ListPermissions(ctx context.Context, userID string) ([]types.EffectivePermission, error) {
	fields, err := s.rdb.HGetAll(ctx, permKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]types.EffectivePermission, 0, len(fields))
	for _, raw := range fields {
		var p types.EffectivePermission
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *IndexStore) GetRole(ctx context.Context, userID, role, scopeKey string) (types.EffectiveRole, error) {
	var r types.EffectiveRole
	if err := s.getJSON(ctx, roleKey(userID), roleField(role, scopeKey), &r); err != nil {
		return types.EffectiveRole{}, err
	}
	return r, nil
}

func (s *IndexStore) UpsertRole(ctx context.Context, r types.EffectiveRole) error {
	return s.setJSON(ctx, roleKey(r.UserID), roleField(r.Role, r.ScopeKey), r)
}

func (s *IndexStore) DeleteRole(ctx context.Context, userID, role, scopeKey string) error {
	return s.del(ctx, roleKey(userID), roleField(role, scopeKey))
}

func (s *IndexStore) ListRoles(ctx context.Context, userID string) ([]types.EffectiveRole, error) {
	fields, err := s.rdb.HGetAll(ctx, roleKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]types.EffectiveRole, 0, len(fields))
	for _, raw := range fields {
		var r types.EffectiveRole
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *IndexStore) GetRelationship(ctx context.Context, subjectKey, relation, objectKey string) (types.EffectiveRelationship, error) {
	var r types.EffectiveRelationship
	if err := s.getJSON(ctx, relKey, relField(subjectKey, relation, objectKey), &r); err != nil {
		return types.EffectiveRelationship{}, err
	}
	return r, nil
}

func (s *IndexStore) InsertRelationship(ctx context.Context, r types.EffectiveRelationship) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	field := relField(r.SubjectKey, r.Relation, r.ObjectKey)
	ok, err := s.rdb.HSetNX(ctx, relKey, field, raw).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: effective relationship %s", types.ErrAlreadyExists, field)
	}
	if r.InheritedFrom != "" {
		return s.rdb.SAdd(ctx, relParentKey(r.InheritedFrom), field).Err()
	}
	return nil
}

func (s *IndexStore) DeleteRelationship(ctx context.Context, subjectKey, relation, objectKey string) error {
	field := relField(subjectKey, relation, objectKey)

	var r types.EffectiveRelationship
	if err := s.getJSON(ctx, relKey, field, &r); err != nil {
		return err
	}
	if err := s.rdb.HDel(ctx, relKey, field).Err(); err != nil {
		return err
	}
	if r.InheritedFrom != "" {
		return s.rdb.SRem(ctx, relParentKey(r.InheritedFrom), field).Err()
	}
	return nil
}

func (s *IndexStore) DeleteRelationshipsInheritedFrom(ctx context.Context, id string) (int, error) {
	fields, err := s.rdb.SMembers(ctx, relParentKey(id)).Result()
	if err != nil {
		return 0, err
	}
	if len(fields) > 0 {
		if err := s.rdb.HDel(ctx, relKey, fields...).Err(); err != nil {
			return 0, err
		}
	}
	if err := s.rdb.Del(ctx, relParentKey(id)).Err(); err != nil {
		return 0, err
	}
	return len(fields), nil
}

// DeleteExpired scans the permission and role hashes and drops expired
// fields. The scan walks every user key; it is meant for the externally
// driven sweep, not the hot path.
func (s *IndexStore) DeleteExpired(ctx context.Context, now time.Time) (int, int, error) {
	perms, err := s.sweepHashes(ctx, "authz:ep:*", func(raw string) (*time.Time, error) {
		var p types.EffectivePermission
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, err
		}
		return p.ExpiresAt, nil
	}, now)
	if err != nil {
		return 0, 0, err
	}

	roles, err := s.sweepHashes(ctx, "authz:er:*", func(raw string) (*time.Time, error) {
		var r types.EffectiveRole
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, err
		}
		return r.ExpiresAt, nil
	}, now)
	if err != nil {
		return perms, 0, err
	}
	return perms, roles, nil
}

func (s *IndexStore) sweepHashes(ctx context.Context, match string, expiry func(string) (*time.Time, error), now time.Time) (int, error) {
	removed := 0
	iter := s.rdb.Scan(ctx, 0, match, 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		fields, err := s.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return removed, err
		}
		var stale []string
		for field, raw := range fields {
			expiresAt, err := expiry(raw)
			if err != nil {
				return removed, err
			}
			if expiresAt != nil && now.After(*expiresAt) {
				stale = append(stale, field)
			}
		}
		if len(stale) > 0 {
			if err := s.rdb.HDel(ctx, key, stale...).Err(); err != nil {
				return removed, err
			}
			removed += len(stale)
		}
	}
	return removed, iter.Err()
}
