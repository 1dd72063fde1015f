package plan

import (
	"sort"

	"github.com/typedb/typedb-sub004/annotate"
	"github.com/typedb/typedb-sub004/ir"
)

// StepPlan is one planned step of a block: the physical instruction plus
// the set of variables it newly produces.
type StepPlan struct {
	Instruction *ConstraintInstruction
	Produces    []ir.Variable
}

// BlockPlan is the ordered instruction sequence for one Block, plus the
// bookkeeping the executor needs to size rows: Available lists every
// variable produced by some step (in first-production order), matching
// datalog/planner's Phase.Available/Provides bookkeeping.
type BlockPlan struct {
	Steps     []StepPlan
	Available []ir.Variable
}

// Planner greedily orders a Block's constraints by estimated selectivity
// and assigns each a physical instruction, mirroring a simplified form of
// the Rust planner's cost-based step selection (original_source
// compiler/match_/planner), grounded locally on
// datalog/planner's Phase/QueryPlan shape.
type Planner struct {
	Annotations *annotate.TypeAnnotations
	Stats       Statistics
}

// Statistics abstracts the schema cardinality estimates the planner uses
// to rank candidate edges; a real implementation reads these from stored
// counts, but the core planning algorithm only depends on this interface.
type Statistics interface {
	// EdgeFanout estimates how many right-hand matches one left-hand
	// binding produces for the given edge kind between two schema types.
	EdgeFanout(kind ir.ConstraintKind, left, right ir.Type) float64
}

// NewPlanner constructs a Planner over the given annotations and
// cardinality statistics.
func NewPlanner(ann *annotate.TypeAnnotations, stats Statistics) *Planner {
	return &Planner{Annotations: ann, Stats: stats}
}

// Plan orders block's constraints into a BlockPlan: at each step it picks
// the lowest-estimated-cost remaining constraint that is executable given
// the variables already bound, assigns it Inputs based on which of its
// endpoints are already bound, and folds any remaining constraints that
// have become pure checks (all variables already bound) into the chosen
// step's Checks list rather than planning them as separate generators.
func (p *Planner) Plan(block *ir.Block, preBound map[ir.Variable]bool) *BlockPlan {
	bound := map[ir.Variable]bool{}
	for v, ok := range preBound {
		if ok {
			bound[v] = true
		}
	}
	remaining := append([]ir.Constraint(nil), block.Constraints...)
	bp := &BlockPlan{}

	for len(remaining) > 0 {
		bestIdx := -1
		bestCost := -1.0
		var bestInstr *ConstraintInstruction
		for i, c := range remaining {
			instr, ok := p.toInstruction(c, bound)
			if !ok {
				continue
			}
			cost := p.estimateCost(c, instr, bound)
			if bestIdx == -1 || cost < bestCost {
				bestIdx, bestCost, bestInstr = i, cost, instr
			}
		}
		if bestIdx == -1 {
			// Nothing is executable given current bindings: fall back to
			// planning constraints in declared order to guarantee
			// termination (should only happen for malformed IR).
			bestIdx = 0
			bestInstr, _ = p.toInstruction(remaining[0], bound)
		}

		var produced []ir.Variable
		bestInstr.NewVariablesForeach(func(v ir.Variable) {
			if !bound[v] {
				bound[v] = true
				produced = append(produced, v)
				bp.Available = append(bp.Available, v)
			}
		})

		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)

		// Fold any remaining constraint whose variables are now fully
		// bound into this step as a Check rather than re-planning it as
		// its own generator step.
		var stillRemaining []ir.Constraint
		for _, c := range remaining {
			if allBound(c, bound) {
				if check, ok := asCheck(c); ok {
					bestInstr.AddCheck(check)
					continue
				}
			}
			stillRemaining = append(stillRemaining, c)
		}
		remaining = stillRemaining

		bp.Steps = append(bp.Steps, StepPlan{Instruction: bestInstr, Produces: produced})
	}

	return bp
}

func allBound(c ir.Constraint, bound map[ir.Variable]bool) bool {
	for _, v := range c.Vertices() {
		if v.IsVariable() && !bound[v.Variable] {
			return false
		}
	}
	return true
}

func asCheck(c ir.Constraint) (CheckInstruction, bool) {
	switch c.Kind {
	case ir.ConstraintComparison:
		return CheckInstruction{
			Kind:       CheckComparison,
			Lhs:        c.Comparison.Left.Variable,
			Rhs:        c.Comparison.Right.Variable,
			Comparator: c.Comparison.Op,
		}, true
	case ir.ConstraintHas:
		return CheckInstruction{
			Kind:  CheckHas,
			Owner: c.Edge.Left.Variable,
			Attr:  c.Edge.Right.Variable,
		}, true
	default:
		return CheckInstruction{}, false
	}
}

// toInstruction attempts to build a physical instruction for c given the
// current bindings, returning ok=false if c cannot yet produce anything
// (e.g. an expression binding whose inputs are not all bound).
func (p *Planner) toInstruction(c ir.Constraint, bound map[ir.Variable]bool) (*ConstraintInstruction, bool) {
	switch c.Kind {
	case ir.ConstraintIsa, ir.ConstraintHas, ir.ConstraintLinks, ir.ConstraintSub,
		ir.ConstraintOwns, ir.ConstraintPlays, ir.ConstraintRelates, ir.ConstraintAs:
		return p.toEdgeInstruction(c, bound)
	case ir.ConstraintComparison:
		return p.toComparisonInstruction(c, bound)
	case ir.ConstraintFunctionCallBinding:
		for _, a := range c.Call.Arguments {
			if a.IsVariable() && !bound[a.Variable] {
				return nil, false
			}
		}
		return &ConstraintInstruction{Kind: InstrFunctionCallBinding, Call: c.Call}, true
	case ir.ConstraintExpressionBinding:
		for _, v := range c.Expression.Tree.Variables() {
			if !bound[v] {
				return nil, false
			}
		}
		return &ConstraintInstruction{Kind: InstrExpressionBinding, Expression: c.Expression}, true
	}
	return nil, false
}

var forwardKind = map[ir.ConstraintKind]InstructionKind{
	ir.ConstraintIsa:     InstrIsa,
	ir.ConstraintHas:     InstrHas,
	ir.ConstraintLinks:   InstrLinks,
	ir.ConstraintSub:     InstrSub,
	ir.ConstraintOwns:    InstrOwns,
	ir.ConstraintPlays:   InstrPlays,
	ir.ConstraintRelates: InstrRelates,
	ir.ConstraintAs:      InstrAs,
}

var reverseKind = map[ir.ConstraintKind]InstructionKind{
	ir.ConstraintIsa:     InstrIsaReverse,
	ir.ConstraintHas:     InstrHasReverse,
	ir.ConstraintLinks:   InstrLinksReverse,
	ir.ConstraintSub:     InstrSubReverse,
	ir.ConstraintOwns:    InstrOwnsReverse,
	ir.ConstraintPlays:   InstrPlaysReverse,
	ir.ConstraintRelates: InstrRelatesReverse,
	ir.ConstraintAs:      InstrAsReverse,
}

// toEdgeInstruction picks a forward or reverse direction based on which
// endpoint is already bound, preferring forward (left-to-right) when
// neither or both are bound, matching the Rust planner's tie-break.
func (p *Planner) toEdgeInstruction(c ir.Constraint, bound map[ir.Variable]bool) (*ConstraintInstruction, bool) {
	e := c.Edge
	leftBound := !e.Left.IsVariable() || bound[e.Left.Variable]
	rightBound := !e.Right.IsVariable() || bound[e.Right.Variable]

	var inputs Inputs
	var kind InstructionKind
	switch {
	case leftBound && rightBound:
		inputs, kind = InputsDual, forwardKind[c.Kind]
	case leftBound:
		inputs, kind = InputsSingle, forwardKind[c.Kind]
	case rightBound:
		inputs, kind = InputsSingle, reverseKind[c.Kind]
	default:
		inputs, kind = InputsNone, forwardKind[c.Kind]
	}

	var types *ir.TypeSet
	if p.Annotations != nil {
		if rightVar := e.Right; rightVar.IsVariable() {
			types = p.Annotations.VertexTypes(rightVar.Variable)
		}
	}

	return &ConstraintInstruction{
		Kind: kind,
		Edge: &EdgeInstruction{
			Left:     e.Left,
			Right:    e.Right,
			RoleType: e.RoleType,
			HasRole:  e.HasRole,
			Inputs:   inputs,
			Types:    types,
		},
	}, true
}

func (p *Planner) toComparisonInstruction(c ir.Constraint, bound map[ir.Variable]bool) (*ConstraintInstruction, bool) {
	cmp := c.Comparison
	leftBound := !cmp.Left.IsVariable() || bound[cmp.Left.Variable]
	rightBound := !cmp.Right.IsVariable() || bound[cmp.Right.Variable]

	switch {
	case leftBound && rightBound:
		return &ConstraintInstruction{Kind: InstrComparisonCheck, Comparator: cmp.Op, Left: cmp.Left, Right: cmp.Right}, true
	case leftBound:
		return &ConstraintInstruction{Kind: InstrComparisonGenerator, Comparator: cmp.Op, Left: cmp.Left, Right: cmp.Right}, true
	case rightBound:
		return &ConstraintInstruction{Kind: InstrComparisonGeneratorReverse, Comparator: cmp.Op, Left: cmp.Left, Right: cmp.Right}, true
	default:
		return nil, false
	}
}

// estimateCost ranks candidate instructions by estimated output
// cardinality: bound-bound checks are free, single-input edges are
// priced from Statistics.EdgeFanout summed over the candidate type pairs,
// and fully-unbound edges (a full scan) are penalized heavily so the
// planner prefers seeded edges whenever one exists.
func (p *Planner) estimateCost(c ir.Constraint, instr *ConstraintInstruction, bound map[ir.Variable]bool) float64 {
	if instr.Kind == InstrComparisonCheck {
		return 0
	}
	if !instr.Kind.IsEdgeKind() {
		return 1
	}
	e := instr.Edge
	if e.Inputs == InputsDual {
		return 0.5
	}
	if e.Inputs == InputsNone {
		return 1e9
	}
	if p.Stats == nil || p.Annotations == nil {
		return 10
	}
	leftTypes := p.typesOf(e.Left)
	rightTypes := p.typesOf(e.Right)
	total := 0.0
	for _, l := range leftTypes {
		for _, r := range rightTypes {
			total += p.Stats.EdgeFanout(c.Kind, l, r)
		}
	}
	if total == 0 {
		return 10
	}
	return total
}

func (p *Planner) typesOf(v ir.Vertex) []ir.Type {
	if v.Kind == ir.VertexLabel {
		return []ir.Type{{Label: v.Label}}
	}
	if v.IsVariable() {
		return p.Annotations.VertexTypes(v.Variable).Items()
	}
	return nil
}

// sortedVariables is a small helper used by callers that want a
// deterministic iteration order over a variable set (e.g. logging).
func sortedVariables(vars map[ir.Variable]bool) []ir.Variable {
	out := make([]ir.Variable, 0, len(vars))
	for v := range vars {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
