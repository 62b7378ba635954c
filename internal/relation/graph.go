// Package relation implements the relationship tuple graph: direct
// queries over stored tuples, and rule-driven traversal deriving indirect
// relations from them.
package relation

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/helmgate/authz/types"
)

// Graph answers direct relation queries and mutates the tuple set.
type Graph struct {
	tuples types.TupleStore
	log    logr.Logger
}

func NewGraph(tuples types.TupleStore, log logr.Logger) *Graph {
	return &Graph{tuples: tuples, log: log}
}

// Add inserts a tuple. Adding a tuple that already exists is a no-op.
func (g *Graph) Add(ctx context.Context, t types.RelationshipTuple) error {
	g.log.V(4).Info("add relation", "tuple", t.String())

	if err := g.tuples.Insert(ctx, t); err != nil {
		if errors.Is(err, types.ErrAlreadyExists) {
			return nil
		}
		return err
	}
	return nil
}

// Remove deletes a tuple, failing with ErrNotFound if absent.
func (g *Graph) Remove(ctx context.Context, t types.RelationshipTuple) error {
	g.log.V(4).Info("remove relation", "tuple", t.String())

	if err := g.tuples.Delete(ctx, t); err != nil {
		return fmt.Errorf("remove %s: %w", t.String(), err)
	}
	return nil
}

// Has reports whether the exact tuple exists.
func (g *Graph) Has(ctx context.Context, subjectType, subjectID, relation, objectType, objectID string) (bool, error) {
	return g.tuples.Has(ctx, subjectType, subjectID, relation, objectType, objectID)
}

// SubjectRelations returns tuples with the given subject, optionally
// filtered by relation and object type (empty filters match everything).
func (g *Graph) SubjectRelations(ctx context.Context, subjectType, subjectID, relation, objectType string) ([]types.RelationshipTuple, error) {
	ts, err := g.tuples.ListBySubject(ctx, subjectType, subjectID)
	if err != nil {
		return nil, err
	}
	out := ts[:0:0]
	for _, t := range ts {
		if relation != "" && t.Relation != relation {
			continue
		}
		if objectType != "" && t.ObjectType != objectType {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// ObjectRelations returns tuples with the given object, optionally
// filtered by relation and subject type.
func (g *Graph) ObjectRelations(ctx context.Context, objectType, objectID, relation, subjectType string) ([]types.RelationshipTuple, error) {
	ts, err := g.tuples.ListByObject(ctx, objectType, objectID)
	if err != nil {
		return nil, err
	}
	out := ts[:0:0]
	for _, t := range ts {
		if relation != "" && t.Relation != relation {
			continue
		}
		if subjectType != "" && t.SubjectType != subjectType {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
