package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helmgate/authz/types"
)

var _ types.TupleStore = (*TupleStore)(nil)

// TupleStore persists relationship tuples.
type TupleStore struct {
	pool *pgxpool.Pool
}

func NewTupleStore(pool *pgxpool.Pool) *TupleStore {
	return &TupleStore{pool: pool}
}

func (s *TupleStore) Insert(ctx context.Context, t types.RelationshipTuple) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO authz_tuples
		 (subject_type, subject_id, relation, object_type, object_id, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT DO NOTHING`,
		t.SubjectType, t.SubjectID, t.Relation, t.ObjectType, t.ObjectID, t.CreatedBy, t.CreatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return alreadyExists("tuple %s", t.String())
	}
	return nil
}

func (s *TupleStore) Delete(ctx context.Context, t types.RelationshipTuple) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM authz_tuples
		 WHERE subject_type = $1 AND subject_id = $2 AND relation = $3
		   AND object_type = $4 AND object_id = $5`,
		t.SubjectType, t.SubjectID, t.Relation, t.ObjectType, t.ObjectID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound("tuple %s", t.String())
	}
	return nil
}

func (s *TupleStore) Has(ctx context.Context, subjectType, subjectID, relation, objectType, objectID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM authz_tuples
		   WHERE subject_type = $1 AND subject_id = $2 AND relation = $3
		     AND object_type = $4 AND object_id = $5)`,
		subjectType, subjectID, relation, objectType, objectID).Scan(&exists)
	return exists, err
}

func (s *TupleStore) ListBySubject(ctx context.Context, subjectType, subjectID string) ([]types.RelationshipTuple, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT subject_type, subject_id, relation, object_type, object_id, created_by, created_at
		 FROM authz_tuples WHERE subject_type = $1 AND subject_id = $2`,
		subjectType, subjectID)
	if err != nil {
		return nil, err
	}
	return scanTuples(rows)
}

func (s *TupleStore) ListByObject(ctx context.Context, objectType, objectID string) ([]types.RelationshipTuple, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT subject_type, subject_id, relation, object_type, object_id, created_by, created_at
		 FROM authz_tuples WHERE object_type = $1 AND object_id = $2`,
		objectType, objectID)
	if err != nil {
		return nil, err
	}
	return scanTuples(rows)
}

func scanTuples(rows pgx.Rows) ([]types.RelationshipTuple, error) {
	defer rows.Close()

	var out []types.RelationshipTuple
	for rows.Next() {
		var t types.RelationshipTuple
		if err := rows.Scan(&t.SubjectType, &t.SubjectID, &t.Relation, &t.ObjectType, &t.ObjectID, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
