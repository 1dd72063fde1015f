package ir

// ConstraintKind enumerates every edge-bearing and non-traversing
// constraint the pattern graph can hold.
type ConstraintKind uint8

const (
	ConstraintIsa ConstraintKind = iota
	ConstraintHas
	ConstraintLinks
	ConstraintSub
	ConstraintOwns
	ConstraintPlays
	ConstraintRelates
	ConstraintAs
	ConstraintComparison
	ConstraintFunctionCallBinding
	ConstraintExpressionBinding
)

// Comparator is the set of comparison operators usable in a Comparison
// constraint or predicate.
type Comparator uint8

const (
	CompareEQ Comparator = iota
	CompareNE
	CompareLT
	CompareLTE
	CompareGT
	CompareGTE
)

// EdgeConstraint is any binary (or role-filtered n-ary) edge constraint:
// has/owns/plays/relates/sub/isa/links/as. Left and Right name the two
// endpoints the edge connects in the pattern graph; for Links (relation
// role-player edges) an optional RoleType vertex additionally filters
// which role the edge must be played in.
type EdgeConstraint struct {
	Kind     ConstraintKind
	Left     Vertex
	Right    Vertex
	RoleType Vertex // only meaningful for ConstraintLinks / ConstraintAs
	HasRole  bool
}

// Comparison is a non-traversing constraint relating two already-typed
// vertices, e.g. `$a1 == $a2` or `$x < 10`.
type Comparison struct {
	Op    Comparator
	Left  Vertex
	Right Vertex
}

// FunctionCallBinding binds a list of assigned variables from a function
// call's arguments, e.g. `$r = my_func($x, $y)`.
type FunctionCallBinding struct {
	FunctionID string
	Arguments  []Vertex
	Assigned   []Variable
}

// ExpressionBinding binds assigned variables from a compiled expression
// tree, e.g. `$z = $x + $y * 2`.
type ExpressionBinding struct {
	Assigned []Variable
	Tree     *ExpressionTree
}

// Constraint is one node in the conjunctive pattern hypergraph. Exactly
// one of the payload fields is populated, selected by Kind.
type Constraint struct {
	Kind       ConstraintKind
	Edge       *EdgeConstraint
	Comparison *Comparison
	Call       *FunctionCallBinding
	Expression *ExpressionBinding
}

// Vertices returns every Vertex this constraint touches, in a stable
// order (left-to-right as written). Used by the Annotator's fixpoint
// propagation and by the planner's cost estimation.
func (c Constraint) Vertices() []Vertex {
	switch c.Kind {
	case ConstraintComparison:
		return []Vertex{c.Comparison.Left, c.Comparison.Right}
	case ConstraintFunctionCallBinding:
		out := make([]Vertex, 0, len(c.Call.Arguments)+len(c.Call.Assigned))
		out = append(out, c.Call.Arguments...)
		for _, v := range c.Call.Assigned {
			out = append(out, VarVertex(v))
		}
		return out
	case ConstraintExpressionBinding:
		out := make([]Vertex, 0, len(c.Expression.Assigned)+len(c.Expression.Tree.Variables()))
		for _, v := range c.Expression.Assigned {
			out = append(out, VarVertex(v))
		}
		for _, v := range c.Expression.Tree.Variables() {
			out = append(out, VarVertex(v))
		}
		return out
	default:
		e := c.Edge
		vs := []Vertex{e.Left, e.Right}
		if e.HasRole {
			vs = append(vs, e.RoleType)
		}
		return vs
	}
}
