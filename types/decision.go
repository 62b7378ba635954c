package types

// Decision is the outcome of a permission check. Denial is a value, not an
// error: checks never fail because access is refused.
type Decision struct {
	Allowed         bool
	Reason          string
	MatchedRole     string
	MatchedOverride string
	MatchedPolicy   string
}

// PermissionSummary lists everything a user may and may not do within a
// scope: the union of role-granted patterns with overrides applied.
type PermissionSummary struct {
	Permissions       []string
	DeniedPermissions []string
	Roles             []string
}

// TraversalEdge is one hop of a traversal path.
type TraversalEdge struct {
	SubjectKey string
	Relation   string
	ObjectKey  string
}

// TraversalResult is the outcome of a relationship traversal check. Path
// holds the edges walked from the original object to the matching tuple.
type TraversalResult struct {
	Allowed bool
	Path    []TraversalEdge
	Reason  string
}

// CleanupReport counts rows removed by an expiry sweep, per view.
type CleanupReport struct {
	RoleAssignments      int
	Overrides            int
	EffectiveRoles       int
	EffectivePermissions int
}
