// Package override applies direct allow/deny overrides ahead of role
// resolution.
package override

import (
	"time"

	"github.com/helmgate/authz/internal/pattern"
	"github.com/helmgate/authz/types"
)

// Evaluate runs the caller's full override set against one (permission,
// scope) query. Deny takes precedence over allow unconditionally: any
// matching non-expired deny decides the check, regardless of input order.
// A nil result means no override applies and role resolution proceeds.
func Evaluate(overrides []types.PermissionOverride, permission string, scope types.Scope, now time.Time) *types.Decision {
	var allowed *types.PermissionOverride

	for i := range overrides {
		o := &overrides[i]
		if pattern.Expired(o.ExpiresAt, now) {
			continue
		}
		if !pattern.Match(permission, o.Permission) || !pattern.MatchScope(o.Scope, scope) {
			continue
		}

		if o.Effect == types.Deny {
			return &types.Decision{
				Allowed:         false,
				Reason:          denyReason(o),
				MatchedOverride: o.ID,
			}
		}
		if allowed == nil {
			allowed = o
		}
	}

	if allowed != nil {
		return &types.Decision{
			Allowed:         true,
			Reason:          allowReason(allowed),
			MatchedOverride: allowed.ID,
		}
	}
	return nil
}

func denyReason(o *types.PermissionOverride) string {
	if o.Reason != "" {
		return o.Reason
	}
	return "denied by permission override"
}

func allowReason(o *types.PermissionOverride) string {
	if o.Reason != "" {
		return o.Reason
	}
	return "allowed by permission override"
}
