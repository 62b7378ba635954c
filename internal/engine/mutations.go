package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/helmgate/authz/internal/audit"
	"github.com/helmgate/authz/types"
)

// AssignRole creates a role assignment in the source-of-truth view. A
// non-expired assignment for the same (user, role, scope) already being
// present fails with ErrAlreadyExists.
func (e *Engine) AssignRole(ctx context.Context, a types.RoleAssignment) error {
	e.log.V(4).Info("assign role", "user", a.UserID, "role", a.Role, "scope", a.Scope)

	if a.CreatedAt.IsZero() {
		a.CreatedAt = e.now()
	}
	if err := e.assignments.Insert(ctx, a); err != nil {
		return err
	}

	e.recorder.Record(ctx, audit.ActionRoleAssigned, a.UserID, a.AssignedBy, map[string]any{
		"role":  a.Role,
		"scope": a.Scope.Key(),
	})
	return nil
}

// RevokeRole deletes the assignment, failing with ErrNotFound if absent.
func (e *Engine) RevokeRole(ctx context.Context, userID, role string, scope types.Scope) error {
	e.log.V(4).Info("revoke role", "user", userID, "role", role, "scope", scope)

	if err := e.assignments.Delete(ctx, userID, role, scope); err != nil {
		return err
	}

	e.recorder.Record(ctx, audit.ActionRoleRevoked, userID, "", map[string]any{
		"role":  role,
		"scope": scope.Key(),
	})
	return nil
}

// GrantPermission upserts an allow override. A repeat call for the same
// (user, permission, scope) patches the row rather than duplicating it.
func (e *Engine) GrantPermission(ctx context.Context, o types.PermissionOverride) (types.PermissionOverride, error) {
	return e.upsertOverride(ctx, o, types.Allow, audit.ActionPermissionGranted)
}

// DenyPermission upserts a deny override.
func (e *Engine) DenyPermission(ctx context.Context, o types.PermissionOverride) (types.PermissionOverride, error) {
	return e.upsertOverride(ctx, o, types.Deny, audit.ActionPermissionDenied)
}

func (e *Engine) upsertOverride(ctx context.Context, o types.PermissionOverride, effect types.Effect, action string) (types.PermissionOverride, error) {
	e.log.V(4).Info("upsert override", "user", o.UserID, "permission", o.Permission, "effect", effect, "scope", o.Scope)

	o.Effect = effect
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = e.now()
	}

	stored, err := e.overrides.Upsert(ctx, o)
	if err != nil {
		return types.PermissionOverride{}, err
	}

	e.recorder.Record(ctx, action, o.UserID, o.CreatedBy, map[string]any{
		"permission": o.Permission,
		"scope":      o.Scope.Key(),
		"reason":     o.Reason,
	})
	return stored, nil
}

// RevokeOverride deletes the override for (user, permission, scope).
func (e *Engine) RevokeOverride(ctx context.Context, userID, permission string, scope types.Scope) error {
	e.log.V(4).Info("revoke override", "user", userID, "permission", permission, "scope", scope)

	if err := e.overrides.Delete(ctx, userID, permission, scope); err != nil {
		return err
	}

	e.recorder.Record(ctx, audit.ActionOverrideRevoked, userID, "", map[string]any{
		"permission": permission,
		"scope":      scope.Key(),
	})
	return nil
}

// SetAttribute upserts a user attribute.
func (e *Engine) SetAttribute(ctx context.Context, userID, key string, value any) error {
	e.log.V(4).Info("set attribute", "user", userID, "key", key)

	if err := e.attributes.Upsert(ctx, types.UserAttribute{UserID: userID, Key: key, Value: value}); err != nil {
		return err
	}

	e.recorder.Record(ctx, audit.ActionAttributeSet, userID, "", map[string]any{"key": key})
	return nil
}

// RemoveAttribute deletes a user attribute, ErrNotFound if absent.
func (e *Engine) RemoveAttribute(ctx context.Context, userID, key string) error {
	e.log.V(4).Info("remove attribute", "user", userID, "key", key)

	if err := e.attributes.Delete(ctx, userID, key); err != nil {
		return err
	}

	e.recorder.Record(ctx, audit.ActionAttributeRemoved, userID, "", map[string]any{"key": key})
	return nil
}

// UserAttributes returns all attributes of the user as a map.
func (e *Engine) UserAttributes(ctx context.Context, userID string) (map[string]any, error) {
	rows, err := e.attributes.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(rows))
	for _, a := range rows {
		out[a.Key] = a.Value
	}
	return out, nil
}
