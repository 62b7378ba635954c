package mem

import (
	"context"
	"sync"

	"github.com/helmgate/authz/types"
)

var _ types.AuditStore = (*AuditStore)(nil)

// AuditStore keeps audit entries append-only, in insertion order.
type AuditStore struct {
	mu      sync.RWMutex
	entries []types.AuditEntry
}

func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (s *AuditStore) Append(ctx context.Context, e types.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

// List returns matching entries newest first, up to limit (non-positive
// means no limit).
func (s *AuditStore) List(ctx context.Context, f types.AuditFilter, limit int) ([]types.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.AuditEntry, 0)
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if f.UserID != "" && e.UserID != f.UserID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
