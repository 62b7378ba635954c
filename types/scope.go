package types

import (
	"fmt"
	"strings"
)

// GlobalScopeKey is the index key used for rows not bound to any scope.
const GlobalScopeKey = "global"

// Scope narrows a role assignment, override, or permission row to one
// resource. The zero value is the global scope, which is the most general
// one: it satisfies a check against any requested scope.
type Scope struct {
	Type string
	ID   string
}

// IsGlobal reports whether s is the global (absent) scope.
func (s Scope) IsGlobal() bool {
	return s.Type == "" && s.ID == ""
}

// Key serializes s for use as an index key: "global" or "type:id".
func (s Scope) Key() string {
	if s.IsGlobal() {
		return GlobalScopeKey
	}
	return s.Type + ":" + s.ID
}

func (s Scope) String() string {
	return s.Key()
}

// ParseScopeKey parses a key produced by Scope.Key.
func ParseScopeKey(key string) (Scope, error) {
	if key == GlobalScopeKey {
		return Scope{}, nil
	}
	i := strings.Index(key, ":")
	if i <= 0 || i == len(key)-1 {
		return Scope{}, fmt.Errorf("%w: scope key %q", ErrInvalidFormat, key)
	}
	return Scope{Type: key[:i], ID: key[i+1:]}, nil
}
