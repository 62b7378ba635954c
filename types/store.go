package types

import (
	"context"
	"time"
)

// The engine works against two explicit storage views: the source-of-truth
// stores below, and the derived IndexStore written only by the indexed
// write path. Every store is expected to provide per-call atomicity and
// indexed equality lookups; nothing here locks across calls.

// AssignmentStore persists role assignments.
type AssignmentStore interface {
	// Insert adds an assignment, failing with ErrAlreadyExists if a
	// non-expired assignment for the same (user, role, scope) exists.
	Insert(ctx context.Context, a RoleAssignment) error

	// Delete removes the assignment, failing with ErrNotFound if absent.
	Delete(ctx context.Context, userID, role string, scope Scope) error

	// ListByUser returns all assignments for the user, expired included.
	ListByUser(ctx context.Context, userID string) ([]RoleAssignment, error)

	// DeleteExpired removes assignments expired at now, returning the count.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// OverrideStore persists permission overrides.
type OverrideStore interface {
	// Upsert inserts the override, or patches the existing row for the
	// same (user, permission, scope) keeping its id. The stored row is
	// returned.
	Upsert(ctx context.Context, o PermissionOverride) (PermissionOverride, error)

	// Delete removes the override, failing with ErrNotFound if absent.
	Delete(ctx context.Context, userID, permission string, scope Scope) error

	// ListByUser returns all overrides for the user, expired included.
	ListByUser(ctx context.Context, userID string) ([]PermissionOverride, error)

	// DeleteExpired removes overrides expired at now, returning the count.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// AttributeStore persists user attributes, one row per (user, key).
type AttributeStore interface {
	Upsert(ctx context.Context, a UserAttribute) error

	// Delete removes the attribute, failing with ErrNotFound if absent.
	Delete(ctx context.Context, userID, key string) error

	ListByUser(ctx context.Context, userID string) ([]UserAttribute, error)
}

// TupleStore persists relationship tuples keyed by the full 5-tuple.
type TupleStore interface {
	// Insert adds a tuple, failing with ErrAlreadyExists on a duplicate.
	Insert(ctx context.Context, t RelationshipTuple) error

	// Delete removes a tuple, failing with ErrNotFound if absent.
	Delete(ctx context.Context, t RelationshipTuple) error

	// Has reports whether the exact tuple exists.
	Has(ctx context.Context, subjectType, subjectID, relation, objectType, objectID string) (bool, error)

	// ListBySubject returns all tuples with the given subject.
	ListBySubject(ctx context.Context, subjectType, subjectID string) ([]RelationshipTuple, error)

	// ListByObject returns all tuples with the given object.
	ListByObject(ctx context.Context, objectType, objectID string) ([]RelationshipTuple, error)
}

// IndexStore persists the three derived caches. The indexed write path is
// its only writer; reads are point lookups by natural key.
type IndexStore interface {
	// GetPermission returns the row or ErrNotFound.
	GetPermission(ctx context.Context, userID, permission, scopeKey string) (EffectivePermission, error)
	UpsertPermission(ctx context.Context, p EffectivePermission) error
	DeletePermission(ctx context.Context, userID, permission, scopeKey string) error
	ListPermissions(ctx context.Context, userID string) ([]EffectivePermission, error)

	// GetRole returns the row or ErrNotFound.
	GetRole(ctx context.Context, userID, role, scopeKey string) (EffectiveRole, error)
	UpsertRole(ctx context.Context, r EffectiveRole) error
	DeleteRole(ctx context.Context, userID, role, scopeKey string) error
	ListRoles(ctx context.Context, userID string) ([]EffectiveRole, error)

	// GetRelationship returns the row for the 3-key or ErrNotFound.
	GetRelationship(ctx context.Context, subjectKey, relation, objectKey string) (EffectiveRelationship, error)
	InsertRelationship(ctx context.Context, r EffectiveRelationship) error
	DeleteRelationship(ctx context.Context, subjectKey, relation, objectKey string) error

	// DeleteRelationshipsInheritedFrom removes all derived rows produced
	// by the direct row with the given id, returning the count.
	DeleteRelationshipsInheritedFrom(ctx context.Context, id string) (int, error)

	// DeleteExpired removes expired permission and role rows, returning
	// (permissions removed, roles removed).
	DeleteExpired(ctx context.Context, now time.Time) (int, int, error)
}

// AuditStore persists append-only audit entries.
type AuditStore interface {
	Append(ctx context.Context, e AuditEntry) error
	List(ctx context.Context, f AuditFilter, limit int) ([]AuditEntry, error)
}
