package types

import "time"

// Effect is the outcome an override or policy applies to a permission.
type Effect string

// possible effects
const (
	Allow Effect = "allow"
	Deny  Effect = "deny"
)

// RolePermissions maps role names to the permission patterns they grant.
// It is injected by the caller at resolution time, keeping the resolver
// free of role configuration state.
type RolePermissions map[string][]string

// RoleAssignment binds a user to a role, optionally within a scope.
// At most one non-expired assignment may exist per (user, role, scope).
type RoleAssignment struct {
	UserID     string
	Role       string
	Scope      Scope
	Metadata   map[string]string
	AssignedBy string
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}

// UserAttribute is a single (user, key) -> value fact used by ABAC policies.
type UserAttribute struct {
	UserID string
	Key    string
	Value  any
}

// PermissionOverride is a direct allow or deny grant that bypasses role
// computation. At most one non-expired override may exist per
// (user, permission, scope); repeated grants patch the existing row.
type PermissionOverride struct {
	ID         string
	UserID     string
	Permission string
	Effect     Effect
	Scope      Scope
	Reason     string
	CreatedBy  string
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}

// RelationshipTuple is a subject-relation-object fact, unique per 5-tuple.
type RelationshipTuple struct {
	SubjectType string
	SubjectID   string
	Relation    string
	ObjectType  string
	ObjectID    string
	CreatedBy   string
	CreatedAt   time.Time
}

// SubjectKey serializes the subject side of the tuple.
func (t RelationshipTuple) SubjectKey() string {
	return t.SubjectType + ":" + t.SubjectID
}

// ObjectKey serializes the object side of the tuple.
func (t RelationshipTuple) ObjectKey() string {
	return t.ObjectType + ":" + t.ObjectID
}

func (t RelationshipTuple) String() string {
	return t.SubjectKey() + " -[" + t.Relation + "]-> " + t.ObjectKey()
}

// EffectivePermission is a derived cache row for one (user, permission,
// scope) cell. It exists iff at least one source remains: a contributing
// role in Sources, or a direct grant/deny.
type EffectivePermission struct {
	UserID      string
	Permission  string
	ScopeKey    string
	Effect      Effect
	Sources     []string
	DirectGrant bool
	DirectDeny  bool
	ExpiresAt   *time.Time
	UpdatedAt   time.Time
}

// HasSource reports whether role contributes to this row.
func (p EffectivePermission) HasSource(role string) bool {
	for _, s := range p.Sources {
		if s == role {
			return true
		}
	}
	return false
}

// EffectiveRole is a derived cache row mirroring a RoleAssignment 1:1.
type EffectiveRole struct {
	UserID    string
	Role      string
	ScopeKey  string
	ExpiresAt *time.Time
}

// EffectiveRelationship is a derived cache row for a relationship edge.
// Direct rows mirror tuples; derived rows carry the id of the direct row
// that produced them, used for single-level cascade deletion.
type EffectiveRelationship struct {
	ID            string
	SubjectKey    string
	Relation      string
	ObjectKey     string
	IsDirect      bool
	InheritedFrom string
	CreatedAt     time.Time
}

// TraversalRule rewrites a relation question during graph traversal:
// subject has `relation` to object if some entity P of type Through has a
// `Via` edge to object and subject has the `Inherit` relation to P.
// Rule sets are keyed by "objectType:relation".
type TraversalRule struct {
	Through string
	Via     string
	Inherit string
}

// InheritRule declares a proactive single-hop materialization for indexed
// relationship writes: when the new tuple's object is itself the subject of
// a FromRelation edge to a parent of type FromObjectType, a derived
// Relation edge to that parent is written alongside the direct row.
type InheritRule struct {
	Relation       string
	FromObjectType string
	FromRelation   string
}

// AuditEntry is one immutable audit log record.
type AuditEntry struct {
	ID        string
	Timestamp time.Time
	Action    string
	UserID    string
	ActorID   string
	Details   map[string]any
}

// AuditFilter selects audit entries; zero fields match everything.
type AuditFilter struct {
	UserID string
	Action string
	Since  time.Time
	Until  time.Time
}
