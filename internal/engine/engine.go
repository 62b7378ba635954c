// Package engine assembles the resolution and indexing parts behind the
// public Engine interface.
package engine

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/helmgate/authz/internal/audit"
	"github.com/helmgate/authz/internal/index"
	"github.com/helmgate/authz/internal/pattern"
	"github.com/helmgate/authz/internal/policy"
	"github.com/helmgate/authz/internal/relation"
	"github.com/helmgate/authz/internal/resolver"
	"github.com/helmgate/authz/types"
)

var _ types.Engine = (*Engine)(nil)

// Config carries everything an Engine needs.
type Config struct {
	Assignments types.AssignmentStore
	Overrides   types.OverrideStore
	Attributes  types.AttributeStore
	Tuples      types.TupleStore
	Index       types.IndexStore
	Audit       types.AuditStore
	Policies    types.PolicySet
	Now         func() time.Time
	Log         logr.Logger
}

// Engine implements types.Engine over the two storage views.
type Engine struct {
	assignments types.AssignmentStore
	overrides   types.OverrideStore
	attributes  types.AttributeStore
	index       types.IndexStore

	resolver   *resolver.Resolver
	graph      *relation.Graph
	maintainer *index.Maintainer
	policies   *policy.Evaluator
	recorder   *audit.Recorder

	now func() time.Time
	log logr.Logger
}

func New(cfg Config) *Engine {
	return &Engine{
		assignments: cfg.Assignments,
		overrides:   cfg.Overrides,
		attributes:  cfg.Attributes,
		index:       cfg.Index,
		resolver:    resolver.New(cfg.Assignments, cfg.Overrides, cfg.Now, cfg.Log.WithName("resolver")),
		graph:       relation.NewGraph(cfg.Tuples, cfg.Log.WithName("relation")),
		maintainer:  index.New(cfg.Index, cfg.Now, cfg.Log.WithName("index")),
		policies:    policy.New(cfg.Policies, cfg.Log.WithName("policy")),
		recorder:    audit.NewRecorder(cfg.Audit, cfg.Now, cfg.Log.WithName("audit")),
		now:         cfg.Now,
		log:         cfg.Log,
	}
}

// CheckPermission runs the compute-on-read strategy, then layers
// configured ABAC policies over the base result.
func (e *Engine) CheckPermission(ctx context.Context, userID, permission string, scope types.Scope, roles types.RolePermissions) (types.Decision, error) {
	base, err := e.resolver.CheckPermission(ctx, userID, permission, scope, roles)
	if err != nil {
		return types.Decision{}, err
	}
	if e.policies.Empty() {
		return base, nil
	}

	pctx, err := e.policyContext(ctx, userID, permission, scope)
	if err != nil {
		return types.Decision{}, err
	}
	return e.policies.Apply(base, permission, pctx), nil
}

func (e *Engine) EffectivePermissions(ctx context.Context, userID string, scope types.Scope, roles types.RolePermissions) (types.PermissionSummary, error) {
	return e.resolver.EffectivePermissions(ctx, userID, scope, roles)
}

func (e *Engine) HasRole(ctx context.Context, userID, role string, scope types.Scope) (bool, error) {
	return e.resolver.HasRole(ctx, userID, role, scope)
}

func (e *Engine) UserRoles(ctx context.Context, userID string) ([]types.RoleAssignment, error) {
	return e.resolver.UserRoles(ctx, userID)
}

func (e *Engine) policyContext(ctx context.Context, userID, permission string, scope types.Scope) (types.PolicyContext, error) {
	attrs, err := e.UserAttributes(ctx, userID)
	if err != nil {
		return types.PolicyContext{}, err
	}

	assignments, err := e.resolver.UserRoles(ctx, userID)
	if err != nil {
		return types.PolicyContext{}, err
	}
	roleNames := make([]string, 0, len(assignments))
	for _, a := range assignments {
		if pattern.MatchScope(a.Scope, scope) {
			roleNames = append(roleNames, a.Role)
		}
	}

	action := permission
	if _, a, err := pattern.Parse(permission); err == nil {
		action = a
	}

	meta := types.RequestMetaFrom(ctx)
	return types.PolicyContext{
		UserID:     userID,
		Roles:      roleNames,
		Attributes: attrs,
		Resource:   meta.Resource,
		Action:     action,
		Timestamp:  e.now(),
		IP:         meta.IP,
	}, nil
}

func (e *Engine) AuditLog(ctx context.Context, f types.AuditFilter, limit int) ([]types.AuditEntry, error) {
	return e.recorder.List(ctx, f, limit)
}

// CleanupExpired sweeps expired assignments, overrides, and derived index
// rows. It is driven by the caller; the engine runs no timers.
func (e *Engine) CleanupExpired(ctx context.Context) (types.CleanupReport, error) {
	now := e.now()
	var report types.CleanupReport
	var err error

	if report.RoleAssignments, err = e.assignments.DeleteExpired(ctx, now); err != nil {
		return report, err
	}
	if report.Overrides, err = e.overrides.DeleteExpired(ctx, now); err != nil {
		return report, err
	}
	if report.EffectivePermissions, report.EffectiveRoles, err = e.index.DeleteExpired(ctx, now); err != nil {
		return report, err
	}

	e.log.V(4).Info("cleanup expired",
		"assignments", report.RoleAssignments, "overrides", report.Overrides,
		"effectivePermissions", report.EffectivePermissions, "effectiveRoles", report.EffectiveRoles)
	return report, nil
}
