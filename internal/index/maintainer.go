// Package index maintains the derived caches that make permission checks
// O(1): effective permissions, effective roles, and effective
// relationships. Writes pay the cost; reads are point lookups.
//
// The maintainer is the only writer of the derived view. Its bookkeeping
// contract: the flattened permission list supplied when a role is revoked
// must be the one supplied when it was assigned, or source tracking
// desyncs. Rebuild recovers from a desync by re-deriving a user's rows
// from the source-of-truth view.
package index

import (
	"context"
	"errors"
	"time"

	"github.com/go-logr/logr"

	"github.com/helmgate/authz/internal/pattern"
	"github.com/helmgate/authz/types"
)

// Maintainer owns the derived index view.
type Maintainer struct {
	index types.IndexStore
	now   func() time.Time
	log   logr.Logger
}

func New(index types.IndexStore, now func() time.Time, log logr.Logger) *Maintainer {
	return &Maintainer{index: index, now: now, log: log}
}

// AssignRole upserts the effective role row and adds the role as a source
// on one effective permission row per granted pattern.
func (m *Maintainer) AssignRole(ctx context.Context, a types.RoleAssignment, rolePermissions []string) error {
	m.log.V(4).Info("assign role indexed", "user", a.UserID, "role", a.Role, "scope", a.Scope, "permissions", len(rolePermissions))

	scopeKey := a.Scope.Key()
	if err := m.index.UpsertRole(ctx, types.EffectiveRole{
		UserID:    a.UserID,
		Role:      a.Role,
		ScopeKey:  scopeKey,
		ExpiresAt: a.ExpiresAt,
	}); err != nil {
		return err
	}

	for _, perm := range rolePermissions {
		row, err := m.index.GetPermission(ctx, a.UserID, perm, scopeKey)
		switch {
		case errors.Is(err, types.ErrNotFound):
			row = types.EffectivePermission{
				UserID:     a.UserID,
				Permission: perm,
				ScopeKey:   scopeKey,
				Effect:     types.Allow,
				Sources:    []string{a.Role},
				ExpiresAt:  a.ExpiresAt,
			}
		case err != nil:
			return err
		default:
			if !row.HasSource(a.Role) {
				row.Sources = append(row.Sources, a.Role)
			}
		}
		row.UpdatedAt = m.now()
		if err := m.index.UpsertPermission(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// RevokeRole deletes the effective role row and removes the role from the
// sources of each listed permission row, deleting rows left with no
// contributing source and no direct grant or deny.
func (m *Maintainer) RevokeRole(ctx context.Context, userID, role string, scope types.Scope, rolePermissions []string) error {
	m.log.V(4).Info("revoke role indexed", "user", userID, "role", role, "scope", scope)

	scopeKey := scope.Key()
	if err := m.index.DeleteRole(ctx, userID, role, scopeKey); err != nil && !errors.Is(err, types.ErrNotFound) {
		return err
	}

	for _, perm := range rolePermissions {
		row, err := m.index.GetPermission(ctx, userID, perm, scopeKey)
		if errors.Is(err, types.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}

		sources := row.Sources[:0:0]
		for _, s := range row.Sources {
			if s != role {
				sources = append(sources, s)
			}
		}
		row.Sources = sources

		if len(row.Sources) == 0 && !row.DirectGrant && !row.DirectDeny {
			if err := m.index.DeletePermission(ctx, userID, perm, scopeKey); err != nil && !errors.Is(err, types.ErrNotFound) {
				return err
			}
			continue
		}
		row.UpdatedAt = m.now()
		if err := m.index.UpsertPermission(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// GrantDirect upserts a direct allow row, independent of role sources.
func (m *Maintainer) GrantDirect(ctx context.Context, o types.PermissionOverride) error {
	return m.upsertDirect(ctx, o, types.Allow)
}

// DenyDirect upserts a direct deny row.
func (m *Maintainer) DenyDirect(ctx context.Context, o types.PermissionOverride) error {
	return m.upsertDirect(ctx, o, types.Deny)
}

func (m *Maintainer) upsertDirect(ctx context.Context, o types.PermissionOverride, effect types.Effect) error {
	m.log.V(4).Info("direct override indexed", "user", o.UserID, "permission", o.Permission, "effect", effect, "scope", o.Scope)

	scopeKey := o.Scope.Key()
	row, err := m.index.GetPermission(ctx, o.UserID, o.Permission, scopeKey)
	if errors.Is(err, types.ErrNotFound) {
		row = types.EffectivePermission{
			UserID:     o.UserID,
			Permission: o.Permission,
			ScopeKey:   scopeKey,
		}
	} else if err != nil {
		return err
	}

	row.Effect = effect
	row.DirectGrant = effect == types.Allow
	row.DirectDeny = effect == types.Deny
	row.ExpiresAt = o.ExpiresAt
	row.UpdatedAt = m.now()
	return m.index.UpsertPermission(ctx, row)
}

// CheckPermission is the O(1) read path. Every (scope key, pattern
// candidate) cell is consulted; any non-expired deny found anywhere in the
// scan decides the check immediately, while an allow only counts once the
// scan completes without meeting a deny.
func (m *Maintainer) CheckPermission(ctx context.Context, userID, permission string, scope types.Scope) (bool, error) {
	now := m.now()
	allowed := false

	for _, scopeKey := range pattern.ScopeKeys(scope) {
		for _, candidate := range pattern.Candidates(permission) {
			row, err := m.index.GetPermission(ctx, userID, candidate, scopeKey)
			if errors.Is(err, types.ErrNotFound) {
				continue
			}
			if err != nil {
				return false, err
			}
			if pattern.Expired(row.ExpiresAt, now) {
				continue
			}
			if row.Effect == types.Deny {
				return false, nil
			}
			allowed = true
		}
	}
	return allowed, nil
}

// HasRole is an O(1) role membership check against the derived view. A
// global row satisfies any requested scope.
func (m *Maintainer) HasRole(ctx context.Context, userID, role string, scope types.Scope) (bool, error) {
	now := m.now()
	for _, scopeKey := range pattern.ScopeKeys(scope) {
		row, err := m.index.GetRole(ctx, userID, role, scopeKey)
		if errors.Is(err, types.ErrNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}
		if !pattern.Expired(row.ExpiresAt, now) {
			return true, nil
		}
	}
	return false, nil
}

// UserRoles lists the user's non-expired effective role rows.
func (m *Maintainer) UserRoles(ctx context.Context, userID string) ([]types.EffectiveRole, error) {
	rows, err := m.index.ListRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := m.now()
	live := rows[:0:0]
	for _, r := range rows {
		if !pattern.Expired(r.ExpiresAt, now) {
			live = append(live, r)
		}
	}
	return live, nil
}

// UserPermissions lists the user's non-expired effective permission rows.
func (m *Maintainer) UserPermissions(ctx context.Context, userID string) ([]types.EffectivePermission, error) {
	rows, err := m.index.ListPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := m.now()
	live := rows[:0:0]
	for _, p := range rows {
		if !pattern.Expired(p.ExpiresAt, now) {
			live = append(live, p)
		}
	}
	return live, nil
}
