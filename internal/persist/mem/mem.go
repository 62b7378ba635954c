// Package mem provides in-memory store implementations. They are the
// default backends of the engine and the workhorses of the test suites;
// durable deployments swap in the persist/pg and persist/redis packages.
//
// Each store serializes access with an RWMutex, which gives every call the
// per-call atomicity the engine expects from its storage collaborator.
package mem

import (
	"fmt"
	"time"

	"github.com/helmgate/authz/types"
)

func expired(t *time.Time, now time.Time) bool {
	return t != nil && now.After(*t)
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{types.ErrNotFound}, args...)...)
}

func alreadyExists(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{types.ErrAlreadyExists}, args...)...)
}
