package mem

import (
	"context"
	"sync"
	"time"

	"github.com/helmgate/authz/types"
)

var _ types.AssignmentStore = (*AssignmentStore)(nil)

// AssignmentStore keeps role assignments keyed by (user, role, scope).
type AssignmentStore struct {
	mu   sync.RWMutex
	rows map[string]map[string]types.RoleAssignment // userID -> role|scopeKey -> row
}

func NewAssignmentStore() *AssignmentStore {
	return &AssignmentStore{rows: make(map[string]map[string]types.RoleAssignment)}
}

func assignmentKey(role string, scope types.Scope) string {
	return role + "|" + scope.Key()
}

func (s *AssignmentStore) Insert(ctx context.Context, a types.RoleAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := assignmentKey(a.Role, a.Scope)
	if existing, ok := s.rows[a.UserID][key]; ok && !expired(existing.ExpiresAt, time.Now()) {
		return alreadyExists("assignment %s/%s@%s", a.UserID, a.Role, a.Scope.Key())
	}
	if s.rows[a.UserID] == nil {
		s.rows[a.UserID] = make(map[string]types.RoleAssignment)
	}
	s.rows[a.UserID][key] = a
	return nil
}

func (s *AssignmentStore) Delete(ctx context.Context, userID, role string, scope types.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := assignmentKey(role, scope)
	if _, ok := s.rows[userID][key]; !ok {
		return notFound("assignment %s/%s@%s", userID, role, scope.Key())
	}
	delete(s.rows[userID], key)
	return nil
}

func (s *AssignmentStore) ListByUser(ctx context.Context, userID string) ([]types.RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.RoleAssignment, 0, len(s.rows[userID]))
	for _, a := range s.rows[userID] {
		out = append(out, a)
	}
	return out, nil
}

func (s *AssignmentStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for user, rows := range s.rows {
		for key, a := range rows {
			if expired(a.ExpiresAt, now) {
				delete(rows, key)
				n++
			}
		}
		if len(rows) == 0 {
			delete(s.rows, user)
		}
	}
	return n, nil
}

var _ types.OverrideStore = (*OverrideStore)(nil)

// OverrideStore keeps permission overrides keyed by
// (user, permission, scope).
type OverrideStore struct {
	mu   sync.RWMutex
	rows map[string]map[string]types.PermissionOverride // userID -> permission|scopeKey -> row
}

func NewOverrideStore() *OverrideStore {
	return &OverrideStore{rows: make(map[string]map[string]types.PermissionOverride)}
}

func overrideKey(permission string, scope types.Scope) string {
	return permission + "|" + scope.Key()
}

func (s *OverrideStore) Upsert(ctx context.Context, o types.PermissionOverride) (types.PermissionOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := overrideKey(o.Permission, o.Scope)
	if existing, ok := s.rows[o.UserID][key]; ok {
		// patch in place, the row keeps its identity
		o.ID = existing.ID
		o.CreatedAt = existing.CreatedAt
	}
	if s.rows[o.UserID] == nil {
		s.rows[o.UserID] = make(map[string]types.PermissionOverride)
	}
	s.rows[o.UserID][key] = o
	return o, nil
}

func (s *OverrideStore) Delete(ctx context.Context, userID, permission string, scope types.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := overrideKey(permission, scope)
	if _, ok := s.rows[userID][key]; !ok {
		return notFound("override %s/%s@%s", userID, permission, scope.Key())
	}
	delete(s.rows[userID], key)
	return nil
}

func (s *OverrideStore) ListByUser(ctx context.Context, userID string) ([]types.PermissionOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.PermissionOverride, 0, len(s.rows[userID]))
	for _, o := range s.rows[userID] {
		out = append(out, o)
	}
	return out, nil
}

func (s *OverrideStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for user, rows := range s.rows {
		for key, o := range rows {
			if expired(o.ExpiresAt, now) {
				delete(rows, key)
				n++
			}
		}
		if len(rows) == 0 {
			delete(s.rows, user)
		}
	}
	return n, nil
}

var _ types.AttributeStore = (*AttributeStore)(nil)

// AttributeStore keeps one value per (user, key).
type AttributeStore struct {
	mu   sync.RWMutex
	rows map[string]map[string]any // userID -> key -> value
}

func NewAttributeStore() *AttributeStore {
	return &AttributeStore{rows: make(map[string]map[string]any)}
}

func (s *AttributeStore) Upsert(ctx context.Context, a types.UserAttribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rows[a.UserID] == nil {
		s.rows[a.UserID] = make(map[string]any)
	}
	s.rows[a.UserID][a.Key] = a.Value
	return nil
}

func (s *AttributeStore) Delete(ctx context.Context, userID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[userID][key]; !ok {
		return notFound("attribute %s/%s", userID, key)
	}
	delete(s.rows[userID], key)
	return nil
}

func (s *AttributeStore) ListByUser(ctx context.Context, userID string) ([]types.UserAttribute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.UserAttribute, 0, len(s.rows[userID]))
	for k, v := range s.rows[userID] {
		out = append(out, types.UserAttribute{UserID: userID, Key: k, Value: v})
	}
	return out, nil
}

var _ types.TupleStore = (*TupleStore)(nil)

// TupleStore keeps relationship tuples with subject and object indexes.
type TupleStore struct {
	mu        sync.RWMutex
	tuples    map[string]types.RelationshipTuple // 5-tuple key -> row
	bySubject map[string]map[string]struct{}     // subjectKey -> 5-tuple keys
	byObject  map[string]map[string]struct{}     // objectKey -> 5-tuple keys
}

func NewTupleStore() *TupleStore {
	return &TupleStore{
		tuples:    make(map[string]types.RelationshipTuple),
		bySubject: make(map[string]map[string]struct{}),
		byObject:  make(map[string]map[string]struct{}),
	}
}

func tupleKey(t types.RelationshipTuple) string {
	return t.SubjectKey() + "#" + t.Relation + "#" + t.ObjectKey()
}

func (s *TupleStore) Insert(ctx context.Context, t types.RelationshipTuple) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tupleKey(t)
	if _, ok := s.tuples[key]; ok {
		return alreadyExists("tuple %s", t.String())
	}
	s.tuples[key] = t

	if s.bySubject[t.SubjectKey()] == nil {
		s.bySubject[t.SubjectKey()] = make(map[string]struct{})
	}
	s.bySubject[t.SubjectKey()][key] = struct{}{}

	if s.byObject[t.ObjectKey()] == nil {
		s.byObject[t.ObjectKey()] = make(map[string]struct{})
	}
	s.byObject[t.ObjectKey()][key] = struct{}{}
	return nil
}

func (s *TupleStore) Delete(ctx context.Context, t types.RelationshipTuple) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tupleKey(t)
	if _, ok := s.tuples[key]; !ok {
		return notFound("tuple %s", t.String())
	}
	delete(s.tuples, key)
	delete(s.bySubject[t.SubjectKey()], key)
	delete(s.byObject[t.ObjectKey()], key)
	return nil
}

func (s *TupleStore) Has(ctx context.Context, subjectType, subjectID, relation, objectType, objectID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := subjectType + ":" + subjectID + "#" + relation + "#" + objectType + ":" + objectID
	_, ok := s.tuples[key]
	return ok, nil
}

func (s *TupleStore) ListBySubject(ctx context.Context, subjectType, subjectID string) ([]types.RelationshipTuple, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.bySubject[subjectType+":"+subjectID]
	out := make([]types.RelationshipTuple, 0, len(keys))
	for key := range keys {
		out = append(out, s.tuples[key])
	}
	return out, nil
}

func (s *TupleStore) ListByObject(ctx context.Context, objectType, objectID string) ([]types.RelationshipTuple, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.byObject[objectType+":"+objectID]
	out := make([]types.RelationshipTuple, 0, len(keys))
	for key := range keys {
		out = append(out, s.tuples[key])
	}
	return out, nil
}
