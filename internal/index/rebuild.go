package index

import (
	"context"
	"errors"

	"github.com/helmgate/authz/internal/pattern"
	"github.com/helmgate/authz/types"
)

// Rebuild re-derives a user's effective role and permission rows from the
// source-of-truth view: live assignments become role rows and permission
// sources under the supplied role configuration, live overrides become
// direct grant/deny rows. Existing derived rows for the user are dropped
// first, so stale sources left by mismatched revoke calls are flushed.
func (m *Maintainer) Rebuild(ctx context.Context, userID string, roles types.RolePermissions, assignments []types.RoleAssignment, overrides []types.PermissionOverride) error {
	m.log.V(4).Info("rebuild index", "user", userID, "assignments", len(assignments), "overrides", len(overrides))

	if err := m.clearUser(ctx, userID); err != nil {
		return err
	}

	now := m.now()
	for _, a := range assignments {
		if pattern.Expired(a.ExpiresAt, now) {
			continue
		}
		if err := m.AssignRole(ctx, a, roles[a.Role]); err != nil {
			return err
		}
	}

	for _, o := range overrides {
		if pattern.Expired(o.ExpiresAt, now) {
			continue
		}
		var err error
		switch o.Effect {
		case types.Deny:
			err = m.DenyDirect(ctx, o)
		default:
			err = m.GrantDirect(ctx, o)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Maintainer) clearUser(ctx context.Context, userID string) error {
	perms, err := m.index.ListPermissions(ctx, userID)
	if err != nil {
		return err
	}
	for _, p := range perms {
		if err := m.index.DeletePermission(ctx, userID, p.Permission, p.ScopeKey); err != nil && !errors.Is(err, types.ErrNotFound) {
			return err
		}
	}

	rows, err := m.index.ListRoles(ctx, userID)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := m.index.DeleteRole(ctx, userID, r.Role, r.ScopeKey); err != nil && !errors.Is(err, types.ErrNotFound) {
			return err
		}
	}
	return nil
}
