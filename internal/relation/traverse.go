package relation

import (
	"context"
	"fmt"

	"github.com/helmgate/authz/types"
)

// DefaultMaxDepth bounds traversal when the caller does not.
const DefaultMaxDepth = 5

// RuleKey builds the key under which traversal rules for an
// (objectType, relation) pair are registered.
func RuleKey(objectType, relation string) string {
	return objectType + ":" + relation
}

type frame struct {
	objectType string
	objectID   string
	relation   string
	depth      int
	path       []types.TraversalEdge
}

// Traverse answers "does subject have relation to object" under the given
// rewrite rules. The search walks breadth-first from the object toward its
// owning entities: a rule {Through, Via, Inherit} registered for the
// current (objectType, relation) rewrites the question to "does subject
// have Inherit to P" for every P of type Through with a Via edge to the
// current object. A visited set over (objectType, objectID, relation) and
// the depth bound make the walk terminate on cyclic graphs.
func (g *Graph) Traverse(ctx context.Context, subjectType, subjectID, relation, objectType, objectID string, rules map[string][]types.TraversalRule, maxDepth int) (types.TraversalResult, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	g.log.V(6).Info("traverse",
		"subject", subjectType+":"+subjectID, "relation", relation,
		"object", objectType+":"+objectID, "maxDepth", maxDepth)

	queue := []frame{{objectType: objectType, objectID: objectID, relation: relation}}
	visited := make(map[string]struct{})

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		key := cur.objectType + ":" + cur.objectID + "#" + cur.relation
		if _, ok := visited[key]; ok {
			continue
		}
		visited[key] = struct{}{}
		if cur.depth >= maxDepth {
			continue
		}

		ok, err := g.tuples.Has(ctx, subjectType, subjectID, cur.relation, cur.objectType, cur.objectID)
		if err != nil {
			return types.TraversalResult{}, err
		}
		if ok {
			path := append(cur.path, types.TraversalEdge{
				SubjectKey: subjectType + ":" + subjectID,
				Relation:   cur.relation,
				ObjectKey:  cur.objectType + ":" + cur.objectID,
			})
			return types.TraversalResult{
				Allowed: true,
				Path:    path,
				Reason:  fmt.Sprintf("relation found via %d-edge path", len(path)),
			}, nil
		}

		for _, rule := range rules[RuleKey(cur.objectType, cur.relation)] {
			parents, err := g.ObjectRelations(ctx, cur.objectType, cur.objectID, rule.Via, rule.Through)
			if err != nil {
				return types.TraversalResult{}, err
			}
			for _, parent := range parents {
				edge := types.TraversalEdge{
					SubjectKey: parent.SubjectKey(),
					Relation:   rule.Via,
					ObjectKey:  parent.ObjectKey(),
				}
				path := make([]types.TraversalEdge, len(cur.path), len(cur.path)+1)
				copy(path, cur.path)
				queue = append(queue, frame{
					objectType: parent.SubjectType,
					objectID:   parent.SubjectID,
					relation:   rule.Inherit,
					depth:      cur.depth + 1,
					path:       append(path, edge),
				})
			}
		}
	}

	return types.TraversalResult{
		Allowed: false,
		Reason:  "no direct or derived relation found",
	}, nil
}
