package annotate

import (
	"context"

	"github.com/typedb/typedb-sub004/ir"
	"github.com/typedb/typedb-sub004/schema"
)

// InferTypes runs block-level type inference over a conjunctive pattern:
// it propagates candidate vertex type sets along edge constraints using
// pre-computed schema tables, iterating to a fixpoint (or failing with
// ErrUnsatisfiable when an edge's allowed set becomes empty). Nested
// disjunctions are inferred separately per branch and merged at the
// boundary.
func InferTypes(ctx context.Context, snap schema.Snapshot, tm schema.TypeManager, block *ir.Block, seed map[ir.Variable]*ir.TypeSet) (*TypeAnnotations, error) {
	ann := NewTypeAnnotations()
	for v, s := range seed {
		ann.VertexAnnotations[v] = s.Clone()
	}

	// Seed every vertex touched by an edge constraint with the universe
	// implied by its Label/Parameter vertices, or an unconstrained set
	// (nil, meaning "not yet known") for plain variables.
	for i := range block.Constraints {
		c := &block.Constraints[i]
		if c.Kind == ir.ConstraintComparison || c.Kind == ir.ConstraintFunctionCallBinding || c.Kind == ir.ConstraintExpressionBinding {
			continue
		}
		for _, vx := range c.Vertices() {
			if !vx.IsVariable() {
				continue
			}
			if _, ok := ann.VertexAnnotations[vx.Variable]; !ok {
				ann.VertexAnnotations[vx.Variable] = ir.NewTypeSet()
			}
		}
	}

	changed := true
	for changed {
		changed = false
		for i := range block.Constraints {
			c := &block.Constraints[i]
			if c.Kind == ir.ConstraintComparison || c.Kind == ir.ConstraintFunctionCallBinding || c.Kind == ir.ConstraintExpressionBinding {
				continue
			}
			e := c.Edge
			leftSet, rightSet, err := edgeCandidates(ctx, snap, tm, e)
			if err != nil {
				return nil, err
			}

			edgeAnn := NewEdgeAnnotation()
			for _, lt := range leftSet.Items() {
				rights, err := rightsFor(ctx, snap, tm, e, lt)
				if err != nil {
					return nil, err
				}
				edgeAnn.LeftToRight[lt] = rights
			}
			for _, rt := range rightSet.Items() {
				lefts, err := leftsFor(ctx, snap, tm, e, rt)
				if err != nil {
					return nil, err
				}
				edgeAnn.RightToLeft[rt] = lefts
			}
			ann.ConstraintAnnotations[c] = edgeAnn

			if narrowVertex(ann, e.Left, leftSet) {
				changed = true
			}
			if narrowVertex(ann, e.Right, rightSet) {
				changed = true
			}
			if leftSet.IsEmpty() || rightSet.IsEmpty() {
				return nil, ErrUnsatisfiable
			}
		}
	}

	for _, np := range block.Nested {
		switch np.Kind {
		case ir.NestedDisjunction:
			merged := NewTypeAnnotations()
			for _, branch := range np.Branches {
				branchAnn, err := InferTypes(ctx, snap, tm, branch, toSeed(ann))
				if err != nil {
					return nil, err
				}
				merged.Merge(branchAnn)
			}
			ann.Merge(merged)
		default:
			if np.Inner != nil {
				innerAnn, err := InferTypes(ctx, snap, tm, np.Inner, toSeed(ann))
				if err != nil {
					return nil, err
				}
				ann.Merge(innerAnn)
			}
		}
	}

	return ann, nil
}

func toSeed(ann *TypeAnnotations) map[ir.Variable]*ir.TypeSet {
	seed := make(map[ir.Variable]*ir.TypeSet, len(ann.VertexAnnotations))
	for v, s := range ann.VertexAnnotations {
		seed[v] = s.Clone()
	}
	return seed
}

// narrowVertex intersects a variable vertex's candidate set with newSet
// in place, reporting whether it changed. Label/Parameter vertices are
// not narrowed (they are already concrete).
func narrowVertex(ann *TypeAnnotations, v ir.Vertex, newSet *ir.TypeSet) bool {
	if !v.IsVariable() {
		return false
	}
	cur, ok := ann.VertexAnnotations[v.Variable]
	if !ok || cur.IsEmpty() {
		ann.VertexAnnotations[v.Variable] = newSet.Clone()
		return newSet.Len() > 0
	}
	narrowed := cur.Intersect(newSet)
	if narrowed.Len() == cur.Len() {
		return false
	}
	ann.VertexAnnotations[v.Variable] = narrowed
	*newSet = *narrowed
	return true
}

// edgeCandidates returns the current candidate type sets for an edge's
// left and right endpoints, resolving Label vertices to their singleton
// transitive-subtype set and Variable vertices from the running map.
func edgeCandidates(ctx context.Context, snap schema.Snapshot, tm schema.TypeManager, e *ir.EdgeConstraint) (*ir.TypeSet, *ir.TypeSet, error) {
	left, err := vertexCandidates(ctx, snap, tm, e.Left)
	if err != nil {
		return nil, nil, err
	}
	right, err := vertexCandidates(ctx, snap, tm, e.Right)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func vertexCandidates(ctx context.Context, snap schema.Snapshot, tm schema.TypeManager, v ir.Vertex) (*ir.TypeSet, error) {
	switch v.Kind {
	case ir.VertexLabel:
		t, ok, err := tm.Resolve(ctx, snap, v.Label)
		if err != nil {
			return nil, err
		}
		if !ok {
			return ir.NewTypeSet(), nil
		}
		subs, err := tm.GetSubtypesTransitive(ctx, snap, t)
		if err != nil {
			return nil, err
		}
		subs.Add(t)
		return subs, nil
	default:
		return ir.NewTypeSet(), nil
	}
}

// rightsFor/leftsFor resolve the schema-table lookup per edge kind: Owns
// restricts owner<->attribute, Plays restricts player<->role,
// Relates restricts relation<->role, Sub restricts sub<->super, Isa
// restricts thing<->type, Has/Links reuse Owns/Plays transitively.
func rightsFor(ctx context.Context, snap schema.Snapshot, tm schema.TypeManager, e *ir.EdgeConstraint, left ir.Type) ([]ir.Type, error) {
	switch e.Kind {
	case ir.ConstraintOwns, ir.ConstraintHas:
		s, err := tm.GetOwns(ctx, snap, left)
		if err != nil {
			return nil, err
		}
		return s.Items(), nil
	case ir.ConstraintPlays, ir.ConstraintLinks:
		s, err := tm.GetPlays(ctx, snap, left)
		if err != nil {
			return nil, err
		}
		return s.Items(), nil
	case ir.ConstraintRelates:
		s, err := tm.GetRelates(ctx, snap, left)
		if err != nil {
			return nil, err
		}
		return s.Items(), nil
	case ir.ConstraintSub:
		t, ok, err := tm.GetSupertype(ctx, snap, left)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return []ir.Type{t}, nil
	case ir.ConstraintIsa:
		return []ir.Type{left}, nil
	default:
		return nil, nil
	}
}

func leftsFor(ctx context.Context, snap schema.Snapshot, tm schema.TypeManager, e *ir.EdgeConstraint, right ir.Type) ([]ir.Type, error) {
	switch e.Kind {
	case ir.ConstraintOwns, ir.ConstraintHas:
		s, err := tm.OwnersOfAttribute(ctx, snap, right)
		if err != nil {
			return nil, err
		}
		return s.Items(), nil
	case ir.ConstraintPlays, ir.ConstraintLinks:
		s, err := tm.PlayersOfRole(ctx, snap, right)
		if err != nil {
			return nil, err
		}
		return s.Items(), nil
	case ir.ConstraintRelates:
		s, err := tm.RelationsOfRole(ctx, snap, right)
		if err != nil {
			return nil, err
		}
		return s.Items(), nil
	case ir.ConstraintSub:
		s, err := tm.GetSubtypes(ctx, snap, right)
		if err != nil {
			return nil, err
		}
		return s.Items(), nil
	case ir.ConstraintIsa:
		return []ir.Type{right}, nil
	default:
		return nil, nil
	}
}
