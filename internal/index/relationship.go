package index

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/helmgate/authz/types"
)

// AddRelation inserts the direct effective relationship row, then
// materializes one derived row per matching inherit rule: for each parent
// the tuple's object points at through a FromRelation edge, the tuple's
// subject gets the rule's Relation to that parent. Materialization is
// single-hop and declared by the caller; on-demand traversal covers the
// rest.
func (m *Maintainer) AddRelation(ctx context.Context, t types.RelationshipTuple, inherit []types.InheritRule, objectEdges []types.RelationshipTuple) error {
	m.log.V(4).Info("add relation indexed", "tuple", t.String(), "rules", len(inherit))

	direct, err := m.index.GetRelationship(ctx, t.SubjectKey(), t.Relation, t.ObjectKey())
	if errors.Is(err, types.ErrNotFound) {
		direct = types.EffectiveRelationship{
			ID:         uuid.NewString(),
			SubjectKey: t.SubjectKey(),
			Relation:   t.Relation,
			ObjectKey:  t.ObjectKey(),
			IsDirect:   true,
			CreatedAt:  m.now(),
		}
		if err := m.index.InsertRelationship(ctx, direct); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	for _, rule := range inherit {
		for _, edge := range objectEdges {
			if edge.Relation != rule.FromRelation || edge.ObjectType != rule.FromObjectType {
				continue
			}
			derived := types.EffectiveRelationship{
				ID:            uuid.NewString(),
				SubjectKey:    t.SubjectKey(),
				Relation:      rule.Relation,
				ObjectKey:     edge.ObjectKey(),
				InheritedFrom: direct.ID,
				CreatedAt:     m.now(),
			}
			if _, err := m.index.GetRelationship(ctx, derived.SubjectKey, derived.Relation, derived.ObjectKey); err == nil {
				continue
			} else if !errors.Is(err, types.ErrNotFound) {
				return err
			}
			if err := m.index.InsertRelationship(ctx, derived); err != nil {
				return err
			}
		}
	}
	return nil
}

// RemoveRelation deletes the derived rows produced by the direct row, then
// the direct row itself. The cascade is single-level: rows derived from
// derived rows are not chased.
func (m *Maintainer) RemoveRelation(ctx context.Context, t types.RelationshipTuple) error {
	m.log.V(4).Info("remove relation indexed", "tuple", t.String())

	direct, err := m.index.GetRelationship(ctx, t.SubjectKey(), t.Relation, t.ObjectKey())
	if errors.Is(err, types.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if n, err := m.index.DeleteRelationshipsInheritedFrom(ctx, direct.ID); err != nil {
		return err
	} else if n > 0 {
		m.log.V(4).Info("cascade removed derived relationships", "count", n, "from", direct.ID)
	}
	return m.index.DeleteRelationship(ctx, direct.SubjectKey, direct.Relation, direct.ObjectKey)
}

// HasRelation is an O(1) edge lookup against the derived view, covering
// both direct and materialized rows.
func (m *Maintainer) HasRelation(ctx context.Context, subjectType, subjectID, relation, objectType, objectID string) (bool, error) {
	_, err := m.index.GetRelationship(ctx, subjectType+":"+subjectID, relation, objectType+":"+objectID)
	if errors.Is(err, types.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
