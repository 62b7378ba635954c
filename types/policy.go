package types

import "time"

// PolicyContext is what a policy condition gets to look at.
type PolicyContext struct {
	UserID     string
	Roles      []string
	Attributes map[string]any
	Resource   map[string]any
	Action     string
	Timestamp  time.Time
	IP         string
}

// Condition is a typed ABAC predicate.
type Condition func(PolicyContext) bool

// Policy attaches an attribute condition to a permission pattern.
//
// A deny policy can only take access away: it converts an allowed base
// result to denied when its condition fails. An allow policy can only add
// access: it flips a denied base result to allowed when its condition
// passes, unless the denial came from an explicit override.
type Policy struct {
	Effect    Effect
	Condition Condition
	Message   string
}

// PolicySet maps permission patterns to policies. Selection picks the most
// specific matching pattern: exact match wins outright, otherwise concrete
// parts outscore wildcards.
type PolicySet map[string]Policy
