package mem

import (
	"context"
	"sync"
	"time"

	"github.com/helmgate/authz/types"
)

var _ types.IndexStore = (*IndexStore)(nil)

// IndexStore keeps the three derived caches with point lookups by their
// natural keys.
type IndexStore struct {
	mu          sync.RWMutex
	permissions map[string]map[string]types.EffectivePermission // userID -> permission|scopeKey
	roles       map[string]map[string]types.EffectiveRole       // userID -> role|scopeKey
	relations   map[string]types.EffectiveRelationship          // subjectKey#relation#objectKey
	byParent    map[string]map[string]struct{}                  // inheritedFrom id -> relation keys
}

func NewIndexStore() *IndexStore {
	return &IndexStore{
		permissions: make(map[string]map[string]types.EffectivePermission),
		roles:       make(map[string]map[string]types.EffectiveRole),
		relations:   make(map[string]types.EffectiveRelationship),
		byParent:    make(map[string]map[string]struct{}),
	}
}

func cellKey(a, b string) string { return a + "|" + b }

func relationKey(subjectKey, relation, objectKey string) string {
	return subjectKey + "#" + relation + "#" + objectKey
}

func (s *IndexStore) GetPermission(ctx context.Context, userID, permission, scopeKey string) (types.EffectivePermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.permissions[userID][cellKey(permission, scopeKey)]
	if !ok {
		return types.EffectivePermission{}, notFound("effective permission %s/%s@%s", userID, permission, scopeKey)
	}
	return row, nil
}

func (s *IndexStore) UpsertPermission(ctx context.Context, p types.EffectivePermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.permissions[p.UserID] == nil {
		s.permissions[p.UserID] = make(map[string]types.EffectivePermission)
	}
	s.permissions[p.UserID][cellKey(p.Permission, p.ScopeKey)] = p
	return nil
}

func (s *IndexStore) DeletePermission(ctx context.Context, userID, permission, scopeKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cellKey(permission, scopeKey)
	if _, ok := s.permissions[userID][key]; !ok {
		return notFound("effective permission %s/%s@%s", userID, permission, scopeKey)
	}
	delete(s.permissions[userID], key)
	return nil
}

func (s *IndexStore) ListPermissions(ctx context.Context, userID string) ([]types.EffectivePermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.EffectivePermission, 0, len(s.permissions[userID]))
	for _, p := range s.permissions[userID] {
		out = append(out, p)
	}
	return out, nil
}

func (s *IndexStore) GetRole(ctx context.Context, userID, role, scopeKey string) (types.EffectiveRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.roles[userID][cellKey(role, scopeKey)]
	if !ok {
		return types.EffectiveRole{}, notFound("effective role %s/%s@%s", userID, role, scopeKey)
	}
	return row, nil
}

func (s *IndexStore) UpsertRole(ctx context.Context, r types.EffectiveRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.roles[r.UserID] == nil {
		s.roles[r.UserID] = make(map[string]types.EffectiveRole)
	}
	s.roles[r.UserID][cellKey(r.Role, r.ScopeKey)] = r
	return nil
}

func (s *IndexStore) DeleteRole(ctx context.Context, userID, role, scopeKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cellKey(role, scopeKey)
	if _, ok := s.roles[userID][key]; !ok {
		return notFound("effective role %s/%s@%s", userID, role, scopeKey)
	}
	delete(s.roles[userID], key)
	return nil
}

func (s *IndexStore) ListRoles(ctx context.Context, userID string) ([]types.EffectiveRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.EffectiveRole, 0, len(s.roles[userID]))
	for _, r := range s.roles[userID] {
		out = append(out, r)
	}
	return out, nil
}

func (s *IndexStore) GetRelationship(ctx context.Context, subjectKey, relation, objectKey string) (types.EffectiveRelationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.relations[relationKey(subjectKey, relation, objectKey)]
	if !ok {
		return types.EffectiveRelationship{}, notFound("effective relationship %s -[%s]-> %s", subjectKey, relation, objectKey)
	}
	return row, nil
}

func (s *IndexStore) InsertRelationship(ctx context.Context, r types.EffectiveRelationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := relationKey(r.SubjectKey, r.Relation, r.ObjectKey)
	if _, ok := s.relations[key]; ok {
		return alreadyExists("effective relationship %s", key)
	}
	s.relations[key] = r

	if r.InheritedFrom != "" {
		if s.byParent[r.InheritedFrom] == nil {
			s.byParent[r.InheritedFrom] = make(map[string]struct{})
		}
		s.byParent[r.InheritedFrom][key] = struct{}{}
	}
	return nil
}

func (s *IndexStore) DeleteRelationship(ctx context.Context, subjectKey, relation, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := relationKey(subjectKey, relation, objectKey)
	row, ok := s.relations[key]
	if !ok {
		return notFound("effective relationship %s", key)
	}
	delete(s.relations, key)
	if row.InheritedFrom != "" {
		delete(s.byParent[row.InheritedFrom], key)
	}
	return nil
}

func (s *IndexStore) DeleteRelationshipsInheritedFrom(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.byParent[id]
	for key := range keys {
		delete(s.relations, key)
	}
	delete(s.byParent, id)
	return len(keys), nil
}

func (s *IndexStore) DeleteExpired(ctx context.Context, now time.Time) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	perms := 0
	for user, rows := range s.permissions {
		for key, p := range rows {
			if expired(p.ExpiresAt, now) {
				delete(rows, key)
				perms++
			}
		}
		if len(rows) == 0 {
			delete(s.permissions, user)
		}
	}

	roles := 0
	for user, rows := range s.roles {
		for key, r := range rows {
			if expired(r.ExpiresAt, now) {
				delete(rows, key)
				roles++
			}
		}
		if len(rows) == 0 {
			delete(s.roles, user)
		}
	}
	return perms, roles, nil
}
