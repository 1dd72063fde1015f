// Package annotate implements the Annotator: type
// inference over the IR pattern graph plus expression and reducer
// compilation, producing an AnnotatedPipeline consumed by the planner.
package annotate

import "github.com/typedb/typedb-sub004/ir"

// EdgeAnnotation is the LeftRight (optionally role-filtered) type table
// attached to one edge-bearing constraint: for each type the left
// vertex may take, the set of types the right vertex may take, and vice
// versa. FiltersOnLeft/FiltersOnRight additionally restrict an n-ary
// edge (Links) by role type when HasFilter is set.
type EdgeAnnotation struct {
	LeftToRight map[ir.Type][]ir.Type
	RightToLeft map[ir.Type][]ir.Type

	HasFilter      bool
	FiltersOnLeft  map[ir.Type]map[ir.Type]bool // left type -> allowed role types
	FiltersOnRight map[ir.Type]map[ir.Type]bool // right type -> allowed role types
}

// NewEdgeAnnotation returns an empty, initialized EdgeAnnotation.
func NewEdgeAnnotation() *EdgeAnnotation {
	return &EdgeAnnotation{
		LeftToRight: map[ir.Type][]ir.Type{},
		RightToLeft: map[ir.Type][]ir.Type{},
	}
}

// TypeAnnotations is the immutable annotation bundle produced once per
// block and shared read-only by downstream stages: a vertex annotation
// map plus a constraint (edge) annotation map.
type TypeAnnotations struct {
	VertexAnnotations     map[ir.Variable]*ir.TypeSet
	ConstraintAnnotations map[*ir.Constraint]*EdgeAnnotation
}

// NewTypeAnnotations returns an empty, initialized TypeAnnotations.
func NewTypeAnnotations() *TypeAnnotations {
	return &TypeAnnotations{
		VertexAnnotations:     map[ir.Variable]*ir.TypeSet{},
		ConstraintAnnotations: map[*ir.Constraint]*EdgeAnnotation{},
	}
}

// VertexTypes returns the annotated type set for v, or an empty set if
// the variable was never seen by inference (e.g. it is a Value-category
// variable that carries no schema Type).
func (a *TypeAnnotations) VertexTypes(v ir.Variable) *ir.TypeSet {
	if s, ok := a.VertexAnnotations[v]; ok {
		return s
	}
	return ir.NewTypeSet()
}

// Merge folds other's vertex annotations into a, taking the union for any
// vertex seen by both (used when merging nested-disjunction branch
// annotations back into the enclosing block).
func (a *TypeAnnotations) Merge(other *TypeAnnotations) {
	for v, types := range other.VertexAnnotations {
		if existing, ok := a.VertexAnnotations[v]; ok {
			a.VertexAnnotations[v] = existing.Union(types)
		} else {
			a.VertexAnnotations[v] = types.Clone()
		}
	}
	for c, ann := range other.ConstraintAnnotations {
		a.ConstraintAnnotations[c] = ann
	}
}
