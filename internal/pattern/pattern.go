// Package pattern implements permission string parsing and the matching
// rules shared by both check strategies: wildcard patterns over
// "resource:action" permissions, scope generality, and expiry.
package pattern

import (
	"fmt"
	"strings"
	"time"

	"github.com/helmgate/authz/types"
)

// Wildcard matches anything, whether used alone or in either position of a
// "resource:action" pattern.
const Wildcard = "*"

// Parse splits a permission string into its resource and action parts.
// The global wildcard forms "*" and "*:*" are sentinel cases handled by
// callers, not parsed here.
func Parse(s string) (resource, action string, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: permission %q must be resource:action", types.ErrInvalidFormat, s)
	}
	return parts[0], parts[1], nil
}

// Match reports whether permission satisfies pattern. "*" matches
// everything; otherwise resource and action are compared per part, with
// "*" in either position matching anything in that position.
func Match(permission, pattern string) bool {
	if pattern == Wildcard {
		return true
	}

	pr, pa, err := Parse(pattern)
	if err != nil {
		return false
	}
	r, a, err := Parse(permission)
	if err != nil {
		return false
	}

	if pr != Wildcard && pr != r {
		return false
	}
	if pa != Wildcard && pa != a {
		return false
	}
	return true
}

// MatchScope reports whether a candidate scope satisfies a requested one.
// A global candidate is the most general and satisfies any request; a
// specific candidate satisfies only the exact same (type, id), and never a
// global-only request.
func MatchScope(candidate, requested types.Scope) bool {
	if candidate.IsGlobal() {
		return true
	}
	if requested.IsGlobal() {
		return false
	}
	return candidate.Type == requested.Type && candidate.ID == requested.ID
}

// Expired reports whether a row with the given expiry is expired at now.
// Rows without an expiry never expire.
func Expired(expiresAt *time.Time, now time.Time) bool {
	return expiresAt != nil && now.After(*expiresAt)
}

// Candidates returns the pattern keys under which an indexed row could
// grant or deny the permission, from most to least specific.
func Candidates(permission string) []string {
	out := []string{permission}
	if r, a, err := Parse(permission); err == nil {
		out = append(out, r+":*", "*:"+a)
	}
	return append(out, "*:*", Wildcard)
}

// ScopeKeys returns the index scope keys a check against the given scope
// must consult: the specific key, if any, then the global key.
func ScopeKeys(scope types.Scope) []string {
	if scope.IsGlobal() {
		return []string{types.GlobalScopeKey}
	}
	return []string{scope.Key(), types.GlobalScopeKey}
}
