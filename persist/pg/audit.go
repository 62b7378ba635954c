package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helmgate/authz/types"
)

var _ types.AuditStore = (*AuditStore)(nil)

// AuditStore persists append-only audit entries.
type AuditStore struct {
	pool *pgxpool.Pool
}

func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

func (s *AuditStore) Append(ctx context.Context, e types.AuditEntry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("encode audit details: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO authz_audit_log (id, ts, action, user_id, actor_id, details)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Timestamp, e.Action, e.UserID, e.ActorID, details)
	return err
}

func (s *AuditStore) List(ctx context.Context, f types.AuditFilter, limit int) ([]types.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.UserID != "" {
		where = append(where, "user_id = "+arg(f.UserID))
	}
	if f.Action != "" {
		where = append(where, "action = "+arg(f.Action))
	}
	if !f.Since.IsZero() {
		where = append(where, "ts >= "+arg(f.Since))
	}
	if !f.Until.IsZero() {
		where = append(where, "ts <= "+arg(f.Until))
	}

	q := `SELECT id, ts, action, user_id, actor_id, details FROM authz_audit_log`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY ts DESC"
	if limit > 0 {
		q += " LIMIT " + arg(limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.AuditEntry
	for rows.Next() {
		var e types.AuditEntry
		var details []byte
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Action, &e.UserID, &e.ActorID, &details); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
