package irtext

import (
	"fmt"
	"strconv"

	"github.com/typedb/typedb-sub004/ir"
)

// buildBlock parses a flat list of constraint and nested-pattern forms
// into one ir.Block. A nested form (or/not/try/inner-offset/inner-limit/
// call-inline) is recognized by head and appended to Nested instead of
// Constraints.
func (b *builder) buildBlock(forms []sexpr) (*ir.Block, error) {
	block := &ir.Block{Scope: b.scope()}
	for _, f := range forms {
		switch f.head() {
		case "or", "not", "try", "inner-offset", "inner-limit", "call-inline":
			np, err := b.buildNested(f)
			if err != nil {
				return nil, err
			}
			block.Nested = append(block.Nested, *np)
		default:
			c, err := b.buildConstraint(f)
			if err != nil {
				return nil, err
			}
			block.Constraints = append(block.Constraints, c)
		}
	}
	return block, nil
}

func (b *builder) buildConstraint(f sexpr) (ir.Constraint, error) {
	args := f.args()
	switch f.head() {
	case "isa":
		return b.edgeConstraint(ir.ConstraintIsa, args, false)
	case "has":
		return b.edgeConstraint(ir.ConstraintHas, args, false)
	case "sub":
		return b.edgeConstraint(ir.ConstraintSub, args, false)
	case "owns":
		return b.edgeConstraint(ir.ConstraintOwns, args, false)
	case "plays":
		return b.edgeConstraint(ir.ConstraintPlays, args, false)
	case "relates":
		return b.edgeConstraint(ir.ConstraintRelates, args, false)
	case "links":
		return b.edgeConstraint(ir.ConstraintLinks, args, true)

	case "cmp":
		if len(args) != 3 || args[0].kind != sSymbol {
			return ir.Constraint{}, fmt.Errorf("irtext: (cmp op left right) malformed, line %d", f.line)
		}
		op, err := parseComparator(args[0].text)
		if err != nil {
			return ir.Constraint{}, err
		}
		left, err := b.vertex(args[1])
		if err != nil {
			return ir.Constraint{}, err
		}
		right, err := b.vertex(args[2])
		if err != nil {
			return ir.Constraint{}, err
		}
		return ir.Constraint{Kind: ir.ConstraintComparison, Comparison: &ir.Comparison{Op: op, Left: left, Right: right}}, nil

	case "call":
		return b.buildCall(args, f.line)

	case "expr":
		return b.buildExprBinding(args, f.line)

	default:
		return ir.Constraint{}, fmt.Errorf("irtext: unknown constraint %q at line %d", f.head(), f.line)
	}
}

// edgeConstraint parses (kind left right [role]) into an EdgeConstraint.
// withRole additionally expects a trailing role vertex (Links only).
func (b *builder) edgeConstraint(kind ir.ConstraintKind, args []sexpr, withRole bool) (ir.Constraint, error) {
	want := 2
	if withRole {
		want = 3
	}
	if len(args) != want {
		return ir.Constraint{}, fmt.Errorf("irtext: wrong argument count for constraint kind %d", kind)
	}
	left, err := b.vertex(args[0])
	if err != nil {
		return ir.Constraint{}, err
	}
	right, err := b.vertex(args[1])
	if err != nil {
		return ir.Constraint{}, err
	}
	edge := &ir.EdgeConstraint{Kind: kind, Left: left, Right: right}
	if withRole {
		role, err := b.vertex(args[2])
		if err != nil {
			return ir.Constraint{}, err
		}
		edge.RoleType = role
		edge.HasRole = true
	}
	return ir.Constraint{Kind: kind, Edge: edge}, nil
}

func (b *builder) buildCall(args []sexpr, line int) (ir.Constraint, error) {
	if len(args) == 0 || args[0].kind != sString {
		return ir.Constraint{}, fmt.Errorf("irtext: call must start with a function name string, line %d", line)
	}
	call := &ir.FunctionCallBinding{FunctionID: args[0].text}
	for _, part := range args[1:] {
		switch part.head() {
		case "args":
			for _, v := range part.args() {
				vx, err := b.vertex(v)
				if err != nil {
					return ir.Constraint{}, err
				}
				call.Arguments = append(call.Arguments, vx)
			}
		case "assign":
			for _, v := range part.args() {
				call.Assigned = append(call.Assigned, b.variable(v.text))
			}
		default:
			return ir.Constraint{}, fmt.Errorf("irtext: unknown call section %q, line %d", part.head(), part.line)
		}
	}
	return ir.Constraint{Kind: ir.ConstraintFunctionCallBinding, Call: call}, nil
}

func (b *builder) buildExprBinding(args []sexpr, line int) (ir.Constraint, error) {
	if len(args) != 2 || args[0].head() != "assign" {
		return ir.Constraint{}, fmt.Errorf("irtext: (expr (assign $v...) <tree>) malformed, line %d", line)
	}
	var assigned []ir.Variable
	for _, v := range args[0].args() {
		assigned = append(assigned, b.variable(v.text))
	}
	tree := ir.NewExpressionTree()
	root, err := b.buildExprNode(tree, args[1])
	if err != nil {
		return ir.Constraint{}, err
	}
	tree.SetRoot(root)
	return ir.Constraint{Kind: ir.ConstraintExpressionBinding, Expression: &ir.ExpressionBinding{Assigned: assigned, Tree: tree}}, nil
}

// buildExprNode parses one prefix-notation expression form into tree,
// returning the id of the node it added.
func (b *builder) buildExprNode(tree *ir.ExpressionTree, f sexpr) (ir.ExpressionID, error) {
	switch f.kind {
	case sVariable:
		return tree.Add(ir.ExpressionNode{Kind: ir.NodeVariable, Variable: b.variable(f.text)}), nil
	case sNumber:
		n, err := strconv.ParseFloat(f.text, 64)
		if err != nil {
			return 0, err
		}
		if n == float64(int64(n)) {
			return tree.Add(ir.ExpressionNode{Kind: ir.NodeConstant, Constant: ir.Value{Type: ir.ValueTypeLong, Long: int64(n)}}), nil
		}
		return tree.Add(ir.ExpressionNode{Kind: ir.NodeConstant, Constant: ir.Value{Type: ir.ValueTypeDouble, Double: n}}), nil
	case sList:
		head := f.head()
		args := f.args()
		if head == "const" {
			if len(args) != 1 {
				return 0, fmt.Errorf("irtext: (const <value>) malformed, line %d", f.line)
			}
			val, err := parseValue(args[0])
			if err != nil {
				return 0, err
			}
			return tree.Add(ir.ExpressionNode{Kind: ir.NodeConstant, Constant: val}), nil
		}
		if op, ok := operatorOf(head); ok {
			if len(args) != 2 {
				return 0, fmt.Errorf("irtext: operator %q takes two operands, line %d", head, f.line)
			}
			lhs, err := b.buildExprNode(tree, args[0])
			if err != nil {
				return 0, err
			}
			rhs, err := b.buildExprNode(tree, args[1])
			if err != nil {
				return 0, err
			}
			return tree.Add(ir.ExpressionNode{Kind: ir.NodeOperation, Op: op, Lhs: lhs, Rhs: rhs}), nil
		}
		if fn, ok := builtInOf(head); ok {
			if len(args) != 1 {
				return 0, fmt.Errorf("irtext: built-in %q takes one operand, line %d", head, f.line)
			}
			arg, err := b.buildExprNode(tree, args[0])
			if err != nil {
				return 0, err
			}
			return tree.Add(ir.ExpressionNode{Kind: ir.NodeBuiltInCall, BuiltIn: fn, Args: []ir.ExpressionID{arg}}), nil
		}
		switch head {
		case "list":
			var items []ir.ExpressionID
			for _, a := range args {
				id, err := b.buildExprNode(tree, a)
				if err != nil {
					return 0, err
				}
				items = append(items, id)
			}
			return tree.Add(ir.ExpressionNode{Kind: ir.NodeListConstructor, ListItems: items}), nil
		case "index":
			if len(args) != 2 || args[0].kind != sVariable {
				return 0, fmt.Errorf("irtext: (index $list idx) malformed, line %d", f.line)
			}
			idx, err := b.buildExprNode(tree, args[1])
			if err != nil {
				return 0, err
			}
			return tree.Add(ir.ExpressionNode{Kind: ir.NodeListIndex, ListVariable: b.variable(args[0].text), IndexExpr: idx}), nil
		case "range":
			if len(args) != 3 || args[0].kind != sVariable {
				return 0, fmt.Errorf("irtext: (range $list from to) malformed, line %d", f.line)
			}
			from, err := b.buildExprNode(tree, args[1])
			if err != nil {
				return 0, err
			}
			to, err := b.buildExprNode(tree, args[2])
			if err != nil {
				return 0, err
			}
			return tree.Add(ir.ExpressionNode{Kind: ir.NodeListIndexRange, ListVariable: b.variable(args[0].text), FromExpr: from, ToExpr: to}), nil
		}
		return 0, fmt.Errorf("irtext: unknown expression form %q at line %d", head, f.line)
	default:
		return 0, fmt.Errorf("irtext: unexpected token in expression at line %d", f.line)
	}
}

func operatorOf(s string) (ir.Operator, bool) {
	switch s {
	case "+":
		return ir.OpAdd, true
	case "-":
		return ir.OpSubtract, true
	case "*":
		return ir.OpMultiply, true
	case "/":
		return ir.OpDivide, true
	case "%":
		return ir.OpModulo, true
	case "^":
		return ir.OpPower, true
	}
	return 0, false
}

func builtInOf(s string) (ir.BuiltIn, bool) {
	switch s {
	case "abs":
		return ir.BuiltInAbs, true
	case "ceil":
		return ir.BuiltInCeil, true
	case "floor":
		return ir.BuiltInFloor, true
	case "round":
		return ir.BuiltInRound, true
	}
	return 0, false
}

func parseComparator(s string) (ir.Comparator, error) {
	switch s {
	case "eq":
		return ir.CompareEQ, nil
	case "ne":
		return ir.CompareNE, nil
	case "lt":
		return ir.CompareLT, nil
	case "lte":
		return ir.CompareLTE, nil
	case "gt":
		return ir.CompareGT, nil
	case "gte":
		return ir.CompareGTE, nil
	default:
		return 0, fmt.Errorf("irtext: unknown comparator %q", s)
	}
}
