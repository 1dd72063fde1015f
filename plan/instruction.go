// Package plan turns an annotated Block into an ordered list of
// ConstraintInstruction values with resolved Inputs/variable modes: the
// physical instruction selection step between type annotation and
// execution, grounded on
// original_source/compiler/match_/instructions.rs and
// datalog/planner's Phase/QueryPlan shape.
package plan

import (
	"github.com/typedb/typedb-sub004/ir"
)

// Inputs classifies which endpoints of an edge instruction are already
// bound when the instruction runs.
type Inputs uint8

const (
	InputsNone Inputs = iota
	InputsSingle
	InputsDual
)

// InstructionKind tags which ConstraintInstruction variant a step holds.
type InstructionKind uint8

const (
	InstrIsa InstructionKind = iota
	InstrIsaReverse
	InstrHas
	InstrHasReverse
	InstrLinks
	InstrLinksReverse
	InstrSub
	InstrSubReverse
	InstrOwns
	InstrOwnsReverse
	InstrPlays
	InstrPlaysReverse
	InstrRelates
	InstrRelatesReverse
	InstrAs
	InstrAsReverse
	InstrTypeList
	InstrFunctionCallBinding
	InstrComparisonGenerator
	InstrComparisonGeneratorReverse
	InstrComparisonCheck
	InstrExpressionBinding
)

// CheckKind tags a post-hoc CheckInstruction attached to a step, applied
// after the step produces a candidate row but before it is accepted.
type CheckKind uint8

const (
	CheckComparison CheckKind = iota
	CheckHas
)

// CheckInstruction is a cheap filter evaluated against an already-bound
// row, rather than used to generate candidates.
type CheckInstruction struct {
	Kind       CheckKind
	Lhs, Rhs   ir.Variable
	Comparator ir.Comparator
	Owner, Attr ir.Variable
}

// EdgeInstruction is the payload shared by every edge-traversing
// ConstraintInstruction variant (Isa, Has, Links, Sub, Owns, Plays,
// Relates, As and their Reverse counterparts).
type EdgeInstruction struct {
	Left, Right ir.Vertex
	RoleType    ir.Vertex
	HasRole     bool
	Inputs      Inputs
	Types       *ir.TypeSet // candidate right-hand type set, from annotation
	Checks      []CheckInstruction
}

// ConstraintInstruction is one physical step of a planned Block: either
// an edge traversal (in forward or reverse direction), a comparison used
// as a generator/reverse-generator/check, a function call binding, or an
// expression binding.
type ConstraintInstruction struct {
	Kind InstructionKind

	Edge *EdgeInstruction // Isa.../Has.../Links.../Sub.../Owns.../Plays.../Relates.../As...

	Comparator ir.Comparator // Comparison* kinds
	Left       ir.Vertex
	Right      ir.Vertex

	Call *ir.FunctionCallBinding // InstrFunctionCallBinding

	Expression *ir.ExpressionBinding // InstrExpressionBinding

	Checks []CheckInstruction
}

// InputVariablesForeach calls apply for every Variable this instruction
// requires to already be bound when it runs.
func (c *ConstraintInstruction) InputVariablesForeach(apply func(ir.Variable)) {
	switch c.Kind {
	case InstrIsa, InstrIsaReverse, InstrHas, InstrHasReverse, InstrLinks, InstrLinksReverse,
		InstrSub, InstrSubReverse, InstrOwns, InstrOwnsReverse, InstrPlays, InstrPlaysReverse,
		InstrRelates, InstrRelatesReverse, InstrAs, InstrAsReverse:
		reverse := c.Kind%2 == 1 // each XReverse kind directly follows X
		if c.Edge.Left.IsVariable() && (c.Edge.Inputs == InputsDual || (c.Edge.Inputs == InputsSingle && !reverse)) {
			apply(c.Edge.Left.Variable)
		}
		if c.Edge.Right.IsVariable() && (c.Edge.Inputs == InputsDual || (c.Edge.Inputs == InputsSingle && reverse)) {
			apply(c.Edge.Right.Variable)
		}
	case InstrComparisonGenerator:
		if c.Right.IsVariable() {
			apply(c.Right.Variable)
		}
	case InstrComparisonGeneratorReverse:
		if c.Left.IsVariable() {
			apply(c.Left.Variable)
		}
	case InstrComparisonCheck:
		if c.Left.IsVariable() {
			apply(c.Left.Variable)
		}
		if c.Right.IsVariable() {
			apply(c.Right.Variable)
		}
	case InstrFunctionCallBinding:
		for _, a := range c.Call.Arguments {
			if a.IsVariable() {
				apply(a.Variable)
			}
		}
	case InstrExpressionBinding:
		for _, v := range c.Expression.Tree.Variables() {
			apply(v)
		}
	}
}

// NewVariablesForeach calls apply for every Variable this instruction
// produces (binds for the first time) when it runs.
func (c *ConstraintInstruction) NewVariablesForeach(apply func(ir.Variable)) {
	switch c.Kind {
	case InstrIsa, InstrIsaReverse, InstrHas, InstrHasReverse, InstrLinks, InstrLinksReverse,
		InstrSub, InstrSubReverse, InstrOwns, InstrOwnsReverse, InstrPlays, InstrPlaysReverse,
		InstrRelates, InstrRelatesReverse, InstrAs, InstrAsReverse:
		reverse := c.Kind%2 == 1 // each XReverse kind directly follows X
		if c.Edge.Left.IsVariable() && (c.Edge.Inputs == InputsNone || (c.Edge.Inputs == InputsSingle && reverse)) {
			apply(c.Edge.Left.Variable)
		}
		if c.Edge.Right.IsVariable() && (c.Edge.Inputs == InputsNone || (c.Edge.Inputs == InputsSingle && !reverse)) {
			apply(c.Edge.Right.Variable)
		}
		if c.Edge.HasRole && c.Edge.RoleType.IsVariable() {
			apply(c.Edge.RoleType.Variable)
		}
	case InstrComparisonGenerator:
		if c.Left.IsVariable() {
			apply(c.Left.Variable)
		}
	case InstrComparisonGeneratorReverse:
		if c.Right.IsVariable() {
			apply(c.Right.Variable)
		}
	case InstrFunctionCallBinding:
		for _, v := range c.Call.Assigned {
			apply(v)
		}
	case InstrExpressionBinding:
		for _, v := range c.Expression.Assigned {
			apply(v)
		}
	}
}

// AddCheck appends a post-hoc filter check to the instruction.
func (c *ConstraintInstruction) AddCheck(check CheckInstruction) {
	c.Checks = append(c.Checks, check)
}

// IsEdgeKind reports whether kind traverses a schema edge (as opposed to
// being a comparison, call binding or expression binding).
func (k InstructionKind) IsEdgeKind() bool {
	return k <= InstrAsReverse
}
