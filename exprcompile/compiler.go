package exprcompile

import (
	"fmt"

	"github.com/typedb/typedb-sub004/ir"
)

// ExpressionValueType is a compiled expression sub-term's static type:
// either a Single value category or a List of a value category.
type ExpressionValueType struct {
	IsList   bool
	Category ir.ValueType
}

// Single builds a non-list ExpressionValueType.
func Single(vt ir.ValueType) ExpressionValueType { return ExpressionValueType{Category: vt} }

// List builds a list ExpressionValueType.
func List(vt ir.ValueType) ExpressionValueType { return ExpressionValueType{IsList: true, Category: vt} }

// CompiledExpression is the linear stack-based program produced by
// Compile: an ordered instruction list, the variables and constants it
// references (in reference order), and its static return type.
type CompiledExpression struct {
	Instructions []OpCode
	Variables    []ir.Variable
	Constants    []ir.Value
	ReturnType   ExpressionValueType
}

// context holds compile-time state: the expression tree being compiled,
// the ambient variable -> type context, the running instruction/variable
// reference/constant lists, and a parallel type stack used purely to
// validate and specialize each operator as it's visited.
type context struct {
	tree  *ir.ExpressionTree
	types map[ir.Variable]ExpressionValueType

	typeStack []ExpressionValueType
	instrs    []OpCode
	variables []ir.Variable
	constants []ir.Value
}

// Compile compiles tree against the given variable -> value-type
// context into a CompiledExpression.
func Compile(tree *ir.ExpressionTree, types map[ir.Variable]ExpressionValueType) (*CompiledExpression, error) {
	c := &context{tree: tree, types: types}
	if err := c.compileRecursive(tree.Root()); err != nil {
		return nil, err
	}
	rt, err := c.popType()
	if err != nil {
		return nil, err
	}
	return &CompiledExpression{
		Instructions: c.instrs,
		Variables:    c.variables,
		Constants:    c.constants,
		ReturnType:   rt,
	}, nil
}

func (c *context) compileRecursive(id ir.ExpressionID) error {
	n := c.tree.Get(id)
	switch n.Kind {
	case ir.NodeConstant:
		return c.compileConstant(n.Constant)
	case ir.NodeVariable:
		return c.compileVariable(n.Variable)
	case ir.NodeOperation:
		return c.compileOp(n)
	case ir.NodeBuiltInCall:
		return c.compileBuiltin(n)
	case ir.NodeListConstructor:
		return c.compileListConstructor(n)
	case ir.NodeListIndex:
		return c.compileListIndex(n)
	case ir.NodeListIndexRange:
		return c.compileListIndexRange(n)
	default:
		return &CompileError{Reason: "unknown expression node kind", Err: ErrInternalStackEmpty}
	}
}

func (c *context) compileConstant(v ir.Value) error {
	c.constants = append(c.constants, v)
	c.pushTypeSingle(v.Type)
	c.append(OpLoadConstant)
	return nil
}

func (c *context) compileVariable(v ir.Variable) error {
	c.variables = append(c.variables, v)
	c.append(OpLoadVariable)
	t, ok := c.types[v]
	if !ok {
		return &CompileError{Reason: "unbound variable in expression", Err: ErrInternalStackEmpty}
	}
	if t.IsList {
		c.pushTypeList(t.Category)
	} else {
		c.pushTypeSingle(t.Category)
	}
	return nil
}

func (c *context) compileListConstructor(n ir.ExpressionNode) error {
	for i := len(n.ListItems) - 1; i >= 0; i-- {
		if err := c.compileRecursive(n.ListItems[i]); err != nil {
			return err
		}
	}
	if err := c.compileConstant(ir.Value{Type: ir.ValueTypeLong, Long: int64(len(n.ListItems))}); err != nil {
		return err
	}
	c.append(OpListConstructor)

	lengthType, err := c.popTypeSingle()
	if err != nil {
		return err
	}
	if lengthType != ir.ValueTypeLong {
		return &CompileError{Reason: "list length", Err: ErrInternalStackEmpty}
	}
	if len(n.ListItems) == 0 {
		return &CompileError{Reason: "list constructor", Err: ErrEmptyListConstructor}
	}
	elementType, err := c.popTypeSingle()
	if err != nil {
		return err
	}
	for i := 1; i < len(n.ListItems); i++ {
		t, err := c.popTypeSingle()
		if err != nil {
			return err
		}
		if t != elementType {
			return &CompileError{Reason: "list constructor", Err: ErrHeterogenousList}
		}
	}
	c.pushTypeList(elementType)
	return nil
}

func (c *context) compileListIndex(n ir.ExpressionNode) error {
	if err := c.compileRecursive(n.IndexExpr); err != nil {
		return err
	}
	if err := c.compileVariable(n.ListVariable); err != nil {
		return err
	}
	c.append(OpListIndex)

	listType, err := c.popTypeList()
	if err != nil {
		return err
	}
	indexType, err := c.popTypeSingle()
	if err != nil {
		return err
	}
	if indexType != ir.ValueTypeLong {
		return &CompileError{Reason: "list index", Err: ErrListIndexMustBeLong}
	}
	c.pushTypeSingle(listType)
	return nil
}

func (c *context) compileListIndexRange(n ir.ExpressionNode) error {
	if err := c.compileRecursive(n.FromExpr); err != nil {
		return err
	}
	if err := c.compileRecursive(n.ToExpr); err != nil {
		return err
	}
	if err := c.compileVariable(n.ListVariable); err != nil {
		return err
	}
	c.append(OpListIndexRange)

	listType, err := c.popTypeList()
	if err != nil {
		return err
	}
	toType, err := c.popTypeSingle()
	if err != nil {
		return err
	}
	if toType != ir.ValueTypeLong {
		return &CompileError{Reason: "list index range to", Err: ErrListIndexMustBeLong}
	}
	fromType, err := c.popTypeSingle()
	if err != nil {
		return err
	}
	if fromType != ir.ValueTypeLong {
		return &CompileError{Reason: "list index range from", Err: ErrListIndexMustBeLong}
	}
	c.pushTypeList(listType)
	return nil
}

func (c *context) compileOp(n ir.ExpressionNode) error {
	op := n.Op
	rightID := n.Rhs
	if err := c.compileRecursive(n.Lhs); err != nil {
		return err
	}
	leftCategory, err := c.peekTypeSingle()
	if err != nil {
		return err
	}
	switch leftCategory {
	case ir.ValueTypeLong:
		return c.compileOpLong(op, rightID)
	case ir.ValueTypeDouble:
		return c.compileOpDouble(op, rightID)
	default:
		// Boolean, Decimal, Date, DateTime, DateTimeTZ, Duration, String,
		// Struct: none of these support arithmetic operators. Compile the
		// right side anyway (to consume it off the tree / report its
		// category in the error), then unconditionally fail.
		if err := c.compileRecursive(rightID); err != nil {
			return err
		}
		rightCategory, err := c.peekTypeSingle()
		if err != nil {
			return err
		}
		return &CompileError{Reason: "operation", Err: &UnsupportedOperandsError{Op: op, Left: leftCategory, Right: rightCategory}}
	}
}

func (c *context) compileOpLong(op ir.Operator, rightID ir.ExpressionID) error {
	if err := c.compileRecursive(rightID); err != nil {
		return err
	}
	rightCategory, err := c.peekTypeSingle()
	if err != nil {
		return err
	}
	switch rightCategory {
	case ir.ValueTypeLong:
		return c.compileOpLongLong(op)
	case ir.ValueTypeDouble:
		if err := c.castLeftLongToDouble(); err != nil {
			return err
		}
		return c.compileOpDoubleDouble(op)
	default:
		return &CompileError{Reason: "operation", Err: &UnsupportedOperandsError{Op: op, Left: ir.ValueTypeLong, Right: rightCategory}}
	}
}

func (c *context) compileOpDouble(op ir.Operator, rightID ir.ExpressionID) error {
	if err := c.compileRecursive(rightID); err != nil {
		return err
	}
	rightCategory, err := c.peekTypeSingle()
	if err != nil {
		return err
	}
	switch rightCategory {
	case ir.ValueTypeLong:
		if err := c.castRightLongToDouble(); err != nil {
			return err
		}
		return c.compileOpDoubleDouble(op)
	case ir.ValueTypeDouble:
		return c.compileOpDoubleDouble(op)
	default:
		return &CompileError{Reason: "operation", Err: &UnsupportedOperandsError{Op: op, Left: ir.ValueTypeDouble, Right: rightCategory}}
	}
}

// castLeftLongToDouble rewrites the stack's [..., Long(left), X] to
// [..., Double(left), X] by inserting a cast opcode before the not-yet
// emitted binary operator. Because both operands are already pushed by
// the time this runs, we instead pop-cast-repush: pop the right (top),
// cast the left beneath it, repush. The emitted opcode itself operates on
// the runtime stack at execution time; here we only track and validate
// types and append the compile-time marker opcode in tree order, which
// is why the opcode is appended immediately and types are adjusted to
// match (mirrors the Rust CastLeftLongToDouble::validate_and_append).
func (c *context) castLeftLongToDouble() error {
	right, err := c.popTypeSingle()
	if err != nil {
		return err
	}
	left, err := c.popTypeSingle()
	if err != nil {
		return err
	}
	if left != ir.ValueTypeLong {
		return &CompileError{Reason: "cast", Err: ErrInternalStackEmpty}
	}
	c.append(OpCastLeftLongToDouble)
	c.pushTypeSingle(ir.ValueTypeDouble)
	c.pushTypeSingle(right)
	return nil
}

func (c *context) castRightLongToDouble() error {
	right, err := c.popTypeSingle()
	if err != nil {
		return err
	}
	if right != ir.ValueTypeLong {
		return &CompileError{Reason: "cast", Err: ErrInternalStackEmpty}
	}
	left, err := c.popTypeSingle()
	if err != nil {
		return err
	}
	c.append(OpCastRightLongToDouble)
	c.pushTypeSingle(left)
	c.pushTypeSingle(ir.ValueTypeDouble)
	return nil
}

func (c *context) compileOpLongLong(op ir.Operator) error {
	opcode, err := longLongOpCode(op)
	if err != nil {
		return err
	}
	return c.emitBinary(opcode, ir.ValueTypeLong)
}

func (c *context) compileOpDoubleDouble(op ir.Operator) error {
	opcode, err := doubleDoubleOpCode(op)
	if err != nil {
		return err
	}
	return c.emitBinary(opcode, ir.ValueTypeDouble)
}

func longLongOpCode(op ir.Operator) (OpCode, error) {
	switch op {
	case ir.OpAdd:
		return OpLongAddLong, nil
	case ir.OpSubtract:
		return OpLongSubtractLong, nil
	case ir.OpMultiply:
		return OpLongMultiplyLong, nil
	case ir.OpDivide:
		return OpLongDivideLong, nil
	case ir.OpModulo:
		return OpLongModuloLong, nil
	case ir.OpPower:
		return OpLongPowerLong, nil
	default:
		return 0, fmt.Errorf("unknown operator %v", op)
	}
}

func doubleDoubleOpCode(op ir.Operator) (OpCode, error) {
	switch op {
	case ir.OpAdd:
		return OpDoubleAddDouble, nil
	case ir.OpSubtract:
		return OpDoubleSubtractDouble, nil
	case ir.OpMultiply:
		return OpDoubleMultiplyDouble, nil
	case ir.OpDivide:
		return OpDoubleDivideDouble, nil
	case ir.OpModulo:
		return OpDoubleModuloDouble, nil
	case ir.OpPower:
		return OpDoublePowerDouble, nil
	default:
		return 0, fmt.Errorf("unknown operator %v", op)
	}
}

func (c *context) emitBinary(opcode OpCode, resultCategory ir.ValueType) error {
	if _, err := c.popTypeSingle(); err != nil {
		return err
	}
	if _, err := c.popTypeSingle(); err != nil {
		return err
	}
	c.append(opcode)
	c.pushTypeSingle(resultCategory)
	return nil
}

func (c *context) compileBuiltin(n ir.ExpressionNode) error {
	if err := c.compileRecursive(n.Args[0]); err != nil {
		return err
	}
	argCategory, err := c.peekTypeSingle()
	if err != nil {
		return err
	}
	switch n.BuiltIn {
	case ir.BuiltInAbs:
		switch argCategory {
		case ir.ValueTypeLong:
			return c.emitUnary(OpMathAbsLong, ir.ValueTypeLong)
		case ir.ValueTypeDouble:
			return c.emitUnary(OpMathAbsDouble, ir.ValueTypeDouble)
		default:
			return &CompileError{Reason: "abs", Err: ErrUnsupportedArgsForBuiltin}
		}
	case ir.BuiltInCeil:
		if argCategory != ir.ValueTypeDouble {
			return &CompileError{Reason: "ceil", Err: ErrUnsupportedArgsForBuiltin}
		}
		return c.emitUnary(OpMathCeilDouble, ir.ValueTypeDouble)
	case ir.BuiltInFloor:
		if argCategory != ir.ValueTypeDouble {
			return &CompileError{Reason: "floor", Err: ErrUnsupportedArgsForBuiltin}
		}
		return c.emitUnary(OpMathFloorDouble, ir.ValueTypeDouble)
	case ir.BuiltInRound:
		if argCategory != ir.ValueTypeDouble {
			return &CompileError{Reason: "round", Err: ErrUnsupportedArgsForBuiltin}
		}
		return c.emitUnary(OpMathRoundDouble, ir.ValueTypeDouble)
	default:
		return &CompileError{Reason: "builtin", Err: ErrUnsupportedArgsForBuiltin}
	}
}

func (c *context) emitUnary(opcode OpCode, resultCategory ir.ValueType) error {
	if _, err := c.popTypeSingle(); err != nil {
		return err
	}
	c.append(opcode)
	c.pushTypeSingle(resultCategory)
	return nil
}

func (c *context) append(op OpCode) { c.instrs = append(c.instrs, op) }

func (c *context) pushTypeSingle(vt ir.ValueType) { c.typeStack = append(c.typeStack, Single(vt)) }
func (c *context) pushTypeList(vt ir.ValueType)    { c.typeStack = append(c.typeStack, List(vt)) }

func (c *context) popType() (ExpressionValueType, error) {
	if len(c.typeStack) == 0 {
		return ExpressionValueType{}, &CompileError{Reason: "pop", Err: ErrInternalStackEmpty}
	}
	t := c.typeStack[len(c.typeStack)-1]
	c.typeStack = c.typeStack[:len(c.typeStack)-1]
	return t, nil
}

func (c *context) popTypeSingle() (ir.ValueType, error) {
	t, err := c.popType()
	if err != nil {
		return 0, err
	}
	if t.IsList {
		return 0, &CompileError{Reason: "pop single", Err: ErrExpectedSingleWasList}
	}
	return t.Category, nil
}

func (c *context) popTypeList() (ir.ValueType, error) {
	t, err := c.popType()
	if err != nil {
		return 0, err
	}
	if !t.IsList {
		return 0, &CompileError{Reason: "pop list", Err: ErrExpectedListWasSingle}
	}
	return t.Category, nil
}

func (c *context) peekTypeSingle() (ir.ValueType, error) {
	if len(c.typeStack) == 0 {
		return 0, &CompileError{Reason: "peek", Err: ErrInternalStackEmpty}
	}
	t := c.typeStack[len(c.typeStack)-1]
	if t.IsList {
		return 0, &CompileError{Reason: "peek single", Err: ErrExpectedSingleWasList}
	}
	return t.Category, nil
}
