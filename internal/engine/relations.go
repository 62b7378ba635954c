package engine

import (
	"context"

	"github.com/helmgate/authz/internal/audit"
	"github.com/helmgate/authz/types"
)

// AddRelation inserts a relationship tuple. Re-adding an existing tuple is
// a no-op.
func (e *Engine) AddRelation(ctx context.Context, t types.RelationshipTuple) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = e.now()
	}
	if err := e.graph.Add(ctx, t); err != nil {
		return err
	}

	e.recorder.Record(ctx, audit.ActionRelationAdded, t.SubjectKey(), t.CreatedBy, map[string]any{
		"relation": t.Relation,
		"object":   t.ObjectKey(),
	})
	return nil
}

// RemoveRelation deletes a tuple, failing with ErrNotFound if absent.
func (e *Engine) RemoveRelation(ctx context.Context, t types.RelationshipTuple) error {
	if err := e.graph.Remove(ctx, t); err != nil {
		return err
	}

	e.recorder.Record(ctx, audit.ActionRelationRemoved, t.SubjectKey(), "", map[string]any{
		"relation": t.Relation,
		"object":   t.ObjectKey(),
	})
	return nil
}

// HasDirectRelation checks for the exact stored tuple, no traversal.
func (e *Engine) HasDirectRelation(ctx context.Context, subjectType, subjectID, relation, objectType, objectID string) (bool, error) {
	return e.graph.Has(ctx, subjectType, subjectID, relation, objectType, objectID)
}

// CheckRelation answers the relation question by rule-driven traversal
// from the object toward its parents.
func (e *Engine) CheckRelation(ctx context.Context, subjectType, subjectID, relation, objectType, objectID string, rules map[string][]types.TraversalRule, maxDepth int) (types.TraversalResult, error) {
	return e.graph.Traverse(ctx, subjectType, subjectID, relation, objectType, objectID, rules, maxDepth)
}
