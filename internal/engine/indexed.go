package engine

import (
	"context"
	"errors"

	"github.com/helmgate/authz/internal/audit"
	"github.com/helmgate/authz/types"
)

// AssignRoleIndexed writes the assignment to the source view and fans the
// flattened permission list out into the derived caches. The same list
// must be supplied when the role is revoked; RebuildIndex recovers from a
// mismatch.
func (e *Engine) AssignRoleIndexed(ctx context.Context, a types.RoleAssignment, rolePermissions []string) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = e.now()
	}
	if err := e.assignments.Insert(ctx, a); err != nil && !errors.Is(err, types.ErrAlreadyExists) {
		return err
	}
	if err := e.maintainer.AssignRole(ctx, a, rolePermissions); err != nil {
		return err
	}

	e.recorder.Record(ctx, audit.ActionRoleAssigned, a.UserID, a.AssignedBy, map[string]any{
		"role":    a.Role,
		"scope":   a.Scope.Key(),
		"indexed": true,
	})
	return nil
}

// RevokeRoleIndexed removes the assignment from both views, unwinding the
// role's contribution to each listed permission row.
func (e *Engine) RevokeRoleIndexed(ctx context.Context, userID, role string, scope types.Scope, rolePermissions []string) error {
	if err := e.assignments.Delete(ctx, userID, role, scope); err != nil && !errors.Is(err, types.ErrNotFound) {
		return err
	}
	if err := e.maintainer.RevokeRole(ctx, userID, role, scope, rolePermissions); err != nil {
		return err
	}

	e.recorder.Record(ctx, audit.ActionRoleRevoked, userID, "", map[string]any{
		"role":    role,
		"scope":   scope.Key(),
		"indexed": true,
	})
	return nil
}

// GrantDirect upserts a direct allow row in the derived view and the
// override in the source view.
func (e *Engine) GrantDirect(ctx context.Context, o types.PermissionOverride) error {
	return e.directOverride(ctx, o, types.Allow, audit.ActionPermissionGranted)
}

// DenyDirect upserts a direct deny row.
func (e *Engine) DenyDirect(ctx context.Context, o types.PermissionOverride) error {
	return e.directOverride(ctx, o, types.Deny, audit.ActionPermissionDenied)
}

func (e *Engine) directOverride(ctx context.Context, o types.PermissionOverride, effect types.Effect, action string) error {
	if _, err := e.upsertOverride(ctx, o, effect, action); err != nil {
		return err
	}
	o.Effect = effect
	switch effect {
	case types.Deny:
		return e.maintainer.DenyDirect(ctx, o)
	default:
		return e.maintainer.GrantDirect(ctx, o)
	}
}

// CheckPermissionFast is the O(1) read path over the derived caches.
func (e *Engine) CheckPermissionFast(ctx context.Context, userID, permission string, scope types.Scope) (bool, error) {
	return e.maintainer.CheckPermission(ctx, userID, permission, scope)
}

func (e *Engine) HasRoleFast(ctx context.Context, userID, role string, scope types.Scope) (bool, error) {
	return e.maintainer.HasRole(ctx, userID, role, scope)
}

func (e *Engine) UserRolesFast(ctx context.Context, userID string) ([]types.EffectiveRole, error) {
	return e.maintainer.UserRoles(ctx, userID)
}

func (e *Engine) UserPermissionsFast(ctx context.Context, userID string) ([]types.EffectivePermission, error) {
	return e.maintainer.UserPermissions(ctx, userID)
}

// AddRelationIndexed writes the tuple to the source view and materializes
// the direct row plus any rule-derived single-hop rows.
func (e *Engine) AddRelationIndexed(ctx context.Context, t types.RelationshipTuple, inherit []types.InheritRule) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = e.now()
	}
	if err := e.graph.Add(ctx, t); err != nil {
		return err
	}

	// edges where the new tuple's object is itself the subject feed the
	// inherit rules
	objectEdges, err := e.graph.SubjectRelations(ctx, t.ObjectType, t.ObjectID, "", "")
	if err != nil {
		return err
	}
	if err := e.maintainer.AddRelation(ctx, t, inherit, objectEdges); err != nil {
		return err
	}

	e.recorder.Record(ctx, audit.ActionRelationAdded, t.SubjectKey(), t.CreatedBy, map[string]any{
		"relation": t.Relation,
		"object":   t.ObjectKey(),
		"indexed":  true,
	})
	return nil
}

// RemoveRelationIndexed removes the tuple from both views, cascading one
// level into rows derived from it.
func (e *Engine) RemoveRelationIndexed(ctx context.Context, t types.RelationshipTuple) error {
	if err := e.graph.Remove(ctx, t); err != nil && !errors.Is(err, types.ErrNotFound) {
		return err
	}
	if err := e.maintainer.RemoveRelation(ctx, t); err != nil {
		return err
	}

	e.recorder.Record(ctx, audit.ActionRelationRemoved, t.SubjectKey(), "", map[string]any{
		"relation": t.Relation,
		"object":   t.ObjectKey(),
		"indexed":  true,
	})
	return nil
}

func (e *Engine) HasRelationFast(ctx context.Context, subjectType, subjectID, relation, objectType, objectID string) (bool, error) {
	return e.maintainer.HasRelation(ctx, subjectType, subjectID, relation, objectType, objectID)
}

// RebuildIndex re-derives the user's effective rows from the source view.
func (e *Engine) RebuildIndex(ctx context.Context, userID string, roles types.RolePermissions) error {
	assignments, err := e.assignments.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	overrides, err := e.overrides.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	return e.maintainer.Rebuild(ctx, userID, roles, assignments, overrides)
}
