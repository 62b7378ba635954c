// Package audit appends immutable log entries for role, permission,
// attribute, and relationship mutations.
package audit

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/helmgate/authz/types"
)

// audit actions recorded by the engine
const (
	ActionRoleAssigned      = "role.assigned"
	ActionRoleRevoked       = "role.revoked"
	ActionPermissionGranted = "permission.granted"
	ActionPermissionDenied  = "permission.denied"
	ActionOverrideRevoked   = "permission.override_revoked"
	ActionAttributeSet      = "attribute.set"
	ActionAttributeRemoved  = "attribute.removed"
	ActionRelationAdded     = "relation.added"
	ActionRelationRemoved   = "relation.removed"
)

// Recorder writes audit entries. A failed append never fails the mutation
// it describes; the error is logged and the mutation result stands.
type Recorder struct {
	store types.AuditStore
	now   func() time.Time
	log   logr.Logger
}

func NewRecorder(store types.AuditStore, now func() time.Time, log logr.Logger) *Recorder {
	return &Recorder{store: store, now: now, log: log}
}

// Record appends one entry.
func (r *Recorder) Record(ctx context.Context, action, userID, actorID string, details map[string]any) {
	e := types.AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: r.now(),
		Action:    action,
		UserID:    userID,
		ActorID:   actorID,
		Details:   details,
	}
	if err := r.store.Append(ctx, e); err != nil {
		r.log.Error(err, "append audit entry", "action", action, "user", userID)
	}
}

// List returns entries matching the filter, newest first, up to limit.
func (r *Recorder) List(ctx context.Context, f types.AuditFilter, limit int) ([]types.AuditEntry, error) {
	return r.store.List(ctx, f, limit)
}
