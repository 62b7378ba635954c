// Package policy layers attribute-based conditions over a base check
// result.
package policy

import (
	"github.com/go-logr/logr"

	"github.com/helmgate/authz/internal/pattern"
	"github.com/helmgate/authz/types"
)

// Evaluator selects and applies the most specific configured policy for a
// permission.
type Evaluator struct {
	policies types.PolicySet
	log      logr.Logger
}

func New(policies types.PolicySet, log logr.Logger) *Evaluator {
	return &Evaluator{policies: policies, log: log}
}

// Empty reports whether no policies are configured.
func (e *Evaluator) Empty() bool {
	return len(e.policies) == 0
}

// Apply evaluates the selected policy against the base decision.
//
// A deny policy leaves an already denied result alone; if the base result
// is allowed, a failing condition converts it to denied with the policy's
// message. An allow policy leaves alone anything already allowed, and
// anything denied by an explicit override; otherwise a passing condition
// flips the result to allowed.
func (e *Evaluator) Apply(base types.Decision, permission string, pctx types.PolicyContext) types.Decision {
	key, pol, ok := e.selectPolicy(permission)
	if !ok {
		return base
	}

	e.log.V(6).Info("apply policy", "permission", permission, "policy", key, "effect", pol.Effect)

	switch pol.Effect {
	case types.Deny:
		if !base.Allowed {
			return base
		}
		if pol.Condition != nil && !pol.Condition(pctx) {
			return types.Decision{
				Allowed:       false,
				Reason:        denyMessage(pol),
				MatchedPolicy: key,
			}
		}
		base.MatchedPolicy = key
		return base

	case types.Allow:
		if base.Allowed || base.MatchedOverride != "" {
			return base
		}
		if pol.Condition != nil && pol.Condition(pctx) {
			return types.Decision{
				Allowed:       true,
				Reason:        allowMessage(pol),
				MatchedPolicy: key,
			}
		}
		return base
	}

	return base
}

// selectPolicy picks the most specific policy key matching the
// permission: an exact key wins outright; otherwise matching pattern keys
// are scored 2 for a concrete resource, 1 for a concrete action, 0 per
// wildcarded part, highest score first.
func (e *Evaluator) selectPolicy(permission string) (string, types.Policy, bool) {
	if pol, ok := e.policies[permission]; ok {
		return permission, pol, true
	}

	bestScore := -1
	var bestKey string
	var best types.Policy
	for key, pol := range e.policies {
		if !pattern.Match(permission, key) {
			continue
		}
		score := specificity(key)
		if score > bestScore {
			bestScore, bestKey, best = score, key, pol
		}
	}
	if bestScore < 0 {
		return "", types.Policy{}, false
	}
	return bestKey, best, true
}

func specificity(key string) int {
	r, a, err := pattern.Parse(key)
	if err != nil {
		return 0
	}
	score := 0
	if r != pattern.Wildcard {
		score += 2
	}
	if a != pattern.Wildcard {
		score++
	}
	return score
}

func denyMessage(p types.Policy) string {
	if p.Message != "" {
		return p.Message
	}
	return "denied by policy condition"
}

func allowMessage(p types.Policy) string {
	if p.Message != "" {
		return p.Message
	}
	return "allowed by policy condition"
}
