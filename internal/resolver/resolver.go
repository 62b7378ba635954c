// Package resolver implements the compute-on-read check strategy: cheap
// writes, reads costing O(roles x overrides).
package resolver

import (
	"context"
	"sort"
	"time"

	"github.com/go-logr/logr"

	"github.com/helmgate/authz/internal/override"
	"github.com/helmgate/authz/internal/pattern"
	"github.com/helmgate/authz/types"
)

// Resolver answers permission checks from the source-of-truth view. Role
// configuration is injected per call, keeping the resolver stateless.
type Resolver struct {
	assignments types.AssignmentStore
	overrides   types.OverrideStore
	now         func() time.Time
	log         logr.Logger
}

func New(assignments types.AssignmentStore, overrides types.OverrideStore, now func() time.Time, log logr.Logger) *Resolver {
	return &Resolver{
		assignments: assignments,
		overrides:   overrides,
		now:         now,
		log:         log,
	}
}

// CheckPermission resolves the check: overrides decide first, then any
// scope-matching role assignment whose configured patterns cover the
// permission allows it.
func (r *Resolver) CheckPermission(ctx context.Context, userID, permission string, scope types.Scope, roles types.RolePermissions) (types.Decision, error) {
	r.log.V(6).Info("check permission", "user", userID, "permission", permission, "scope", scope)

	now := r.now()

	ovs, err := r.overrides.ListByUser(ctx, userID)
	if err != nil {
		return types.Decision{}, err
	}
	if d := override.Evaluate(ovs, permission, scope, now); d != nil {
		return *d, nil
	}

	matched, err := r.matchingAssignments(ctx, userID, scope, now)
	if err != nil {
		return types.Decision{}, err
	}
	for _, a := range matched {
		for _, p := range roles[a.Role] {
			if pattern.Match(permission, p) {
				return types.Decision{
					Allowed:     true,
					Reason:      "granted by role " + a.Role,
					MatchedRole: a.Role,
				}, nil
			}
		}
	}

	return types.Decision{
		Allowed: false,
		Reason:  "no role or override grants this permission",
	}, nil
}

// EffectivePermissions returns the union of patterns granted by matching
// roles, with overrides applied on top: allows add, denies remove and land
// in the denied list.
func (r *Resolver) EffectivePermissions(ctx context.Context, userID string, scope types.Scope, roles types.RolePermissions) (types.PermissionSummary, error) {
	now := r.now()

	matched, err := r.matchingAssignments(ctx, userID, scope, now)
	if err != nil {
		return types.PermissionSummary{}, err
	}

	granted := make(map[string]struct{})
	roleNames := make([]string, 0, len(matched))
	for _, a := range matched {
		roleNames = append(roleNames, a.Role)
		for _, p := range roles[a.Role] {
			granted[p] = struct{}{}
		}
	}

	ovs, err := r.overrides.ListByUser(ctx, userID)
	if err != nil {
		return types.PermissionSummary{}, err
	}
	denied := make(map[string]struct{})
	for _, o := range ovs {
		if pattern.Expired(o.ExpiresAt, now) || !pattern.MatchScope(o.Scope, scope) {
			continue
		}
		switch o.Effect {
		case types.Allow:
			granted[o.Permission] = struct{}{}
		case types.Deny:
			for p := range granted {
				if pattern.Match(p, o.Permission) || p == o.Permission {
					delete(granted, p)
				}
			}
			denied[o.Permission] = struct{}{}
		}
	}

	summary := types.PermissionSummary{
		Permissions:       sortedKeys(granted),
		DeniedPermissions: sortedKeys(denied),
		Roles:             roleNames,
	}
	sort.Strings(summary.Roles)
	return summary, nil
}

// HasRole reports whether a non-expired assignment matches the scope. A
// global assignment satisfies any requested scope; a scoped one satisfies
// only the exact same scope.
func (r *Resolver) HasRole(ctx context.Context, userID, role string, scope types.Scope) (bool, error) {
	now := r.now()

	as, err := r.assignments.ListByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, a := range as {
		if a.Role != role || pattern.Expired(a.ExpiresAt, now) {
			continue
		}
		if pattern.MatchScope(a.Scope, scope) {
			return true, nil
		}
	}
	return false, nil
}

// UserRoles returns the user's non-expired assignments.
func (r *Resolver) UserRoles(ctx context.Context, userID string) ([]types.RoleAssignment, error) {
	now := r.now()

	as, err := r.assignments.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	live := make([]types.RoleAssignment, 0, len(as))
	for _, a := range as {
		if !pattern.Expired(a.ExpiresAt, now) {
			live = append(live, a)
		}
	}
	return live, nil
}

func (r *Resolver) matchingAssignments(ctx context.Context, userID string, scope types.Scope, now time.Time) ([]types.RoleAssignment, error) {
	as, err := r.assignments.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	matched := make([]types.RoleAssignment, 0, len(as))
	for _, a := range as {
		if pattern.Expired(a.ExpiresAt, now) {
			continue
		}
		if pattern.MatchScope(a.Scope, scope) {
			matched = append(matched, a)
		}
	}
	return matched, nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
