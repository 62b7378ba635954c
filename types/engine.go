package types

import "context"

// Engine is the top level interface for end use. It answers permission
// checks over roles, overrides, attributes, and relationships, through two
// interchangeable strategies: compute-on-read resolution, and precomputed
// indexes maintained on write.
type Engine interface {
	Resolver
	RoleManager
	OverrideManager
	AttributeManager
	RelationManager
	Indexed
	Auditor
}

// Resolver is the compute-on-read check path.
type Resolver interface {
	// CheckPermission resolves (user, permission, scope) against overrides
	// first, then role assignments via the injected role configuration.
	CheckPermission(ctx context.Context, userID, permission string, scope Scope, roles RolePermissions) (Decision, error)

	// EffectivePermissions lists everything the user may and may not do
	// within the scope.
	EffectivePermissions(ctx context.Context, userID string, scope Scope, roles RolePermissions) (PermissionSummary, error)

	// HasRole reports whether a non-expired assignment matches the scope.
	HasRole(ctx context.Context, userID, role string, scope Scope) (bool, error)

	// UserRoles returns the user's non-expired role assignments.
	UserRoles(ctx context.Context, userID string) ([]RoleAssignment, error)
}

// RoleManager mutates role assignments in the source-of-truth view.
type RoleManager interface {
	AssignRole(ctx context.Context, a RoleAssignment) error
	RevokeRole(ctx context.Context, userID, role string, scope Scope) error
}

// OverrideManager mutates direct permission overrides.
type OverrideManager interface {
	// GrantPermission upserts an allow override; a repeat call patches the
	// existing row.
	GrantPermission(ctx context.Context, o PermissionOverride) (PermissionOverride, error)

	// DenyPermission upserts a deny override.
	DenyPermission(ctx context.Context, o PermissionOverride) (PermissionOverride, error)

	// RevokeOverride deletes the override for (user, permission, scope).
	RevokeOverride(ctx context.Context, userID, permission string, scope Scope) error
}

// AttributeManager mutates and reads user attributes.
type AttributeManager interface {
	SetAttribute(ctx context.Context, userID, key string, value any) error
	RemoveAttribute(ctx context.Context, userID, key string) error
	UserAttributes(ctx context.Context, userID string) (map[string]any, error)
}

// RelationManager mutates the relationship graph and answers relation
// questions, directly or by rule-driven traversal.
type RelationManager interface {
	AddRelation(ctx context.Context, t RelationshipTuple) error
	RemoveRelation(ctx context.Context, t RelationshipTuple) error
	HasDirectRelation(ctx context.Context, subjectType, subjectID, relation, objectType, objectID string) (bool, error)

	// CheckRelation answers "does subject have relation to object" by
	// breadth-first traversal under the given rewrite rules, bounded by
	// maxDepth (a non-positive value selects the default bound).
	CheckRelation(ctx context.Context, subjectType, subjectID, relation, objectType, objectID string, rules map[string][]TraversalRule, maxDepth int) (TraversalResult, error)
}

// Indexed is the precomputed strategy: expensive writes that keep the
// derived caches current, and O(1) reads against them.
type Indexed interface {
	AssignRoleIndexed(ctx context.Context, a RoleAssignment, rolePermissions []string) error
	RevokeRoleIndexed(ctx context.Context, userID, role string, scope Scope, rolePermissions []string) error

	GrantDirect(ctx context.Context, o PermissionOverride) error
	DenyDirect(ctx context.Context, o PermissionOverride) error

	CheckPermissionFast(ctx context.Context, userID, permission string, scope Scope) (bool, error)
	HasRoleFast(ctx context.Context, userID, role string, scope Scope) (bool, error)
	UserRolesFast(ctx context.Context, userID string) ([]EffectiveRole, error)
	UserPermissionsFast(ctx context.Context, userID string) ([]EffectivePermission, error)

	AddRelationIndexed(ctx context.Context, t RelationshipTuple, inherit []InheritRule) error
	RemoveRelationIndexed(ctx context.Context, t RelationshipTuple) error
	HasRelationFast(ctx context.Context, subjectType, subjectID, relation, objectType, objectID string) (bool, error)

	// RebuildIndex re-derives the user's effective role and permission rows
	// from the source-of-truth view, recovering from any index desync.
	RebuildIndex(ctx context.Context, userID string, roles RolePermissions) error
}

// Auditor reads the audit log and sweeps expired rows.
type Auditor interface {
	AuditLog(ctx context.Context, f AuditFilter, limit int) ([]AuditEntry, error)

	// CleanupExpired removes expired assignments, overrides, and derived
	// rows. It is invoked externally; there is no background sweeper.
	CleanupExpired(ctx context.Context) (CleanupReport, error)
}
