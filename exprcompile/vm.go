package exprcompile

import (
	"errors"
	"fmt"
	"math"

	"github.com/typedb/typedb-sub004/ir"
)

// RuntimeError is the family of errors Eval can return once a
// CompiledExpression is actually executed against bound values, as
// opposed to the static CompileError family above.
type RuntimeError struct {
	Reason string
	Err    error
}

func (e *RuntimeError) Error() string { return fmt.Sprintf("expression eval: %s: %v", e.Reason, e.Err) }
func (e *RuntimeError) Unwrap() error  { return e.Err }

var (
	ErrDivisionByZero      = errors.New("DivisionByZero")
	ErrListIndexOutOfRange = errors.New("ListIndexOutOfRange")
	ErrStackUnderflow      = errors.New("StackUnderflow")
	ErrUnknownOpcode       = errors.New("UnknownOpcode")
)

// Value is the runtime counterpart of ExpressionValueType: either a
// scalar ir.Value or a list of them. ir.Value itself carries no list
// variant, so the VM's stack and variable lookups traffic in Value
// rather than ir.Value directly.
type Value struct {
	IsList bool
	Scalar ir.Value
	List   []ir.Value
}

// ScalarValue wraps a single ir.Value as a non-list Value.
func ScalarValue(v ir.Value) Value { return Value{Scalar: v} }

// ListValue wraps items as a list Value.
func ListValue(items []ir.Value) Value { return Value{IsList: true, List: items} }

// Category reports the value category a Value's scalar (or list
// element) carries.
func (v Value) Category() ir.ValueType {
	if v.IsList {
		if len(v.List) == 0 {
			return ir.ValueTypeLong
		}
		return v.List[0].Type
	}
	return v.Scalar.Type
}

// VariableLookup resolves a variable reference during Eval. pipeline
// supplies this, reading either a bound row value or (for attribute
// variables) the value materialized through schema.ThingManager.
type VariableLookup func(ir.Variable) (Value, error)

// Eval executes expr's instruction program against lookup, returning
// the single result Value expr.ReturnType describes.
func Eval(expr *CompiledExpression, lookup VariableLookup) (Value, error) {
	m := &machine{expr: expr, lookup: lookup}
	for _, op := range expr.Instructions {
		if err := m.step(op); err != nil {
			return Value{}, err
		}
	}
	return m.pop()
}

// machine holds the VM's runtime stack plus the two running counters
// that walk Variables/Constants in lockstep with the OpLoadVariable/
// OpLoadConstant instructions that reference them: compiler.go appends
// to Variables (resp. Constants) exactly once per matching opcode it
// emits, in emission order, so a single forward counter per slice
// recovers the intended operand without re-encoding it in the opcode.
type machine struct {
	expr   *CompiledExpression
	lookup VariableLookup

	stack    []Value
	varIdx   int
	constIdx int
}

func (m *machine) push(v Value) { m.stack = append(m.stack, v) }

func (m *machine) pop() (Value, error) {
	if len(m.stack) == 0 {
		return Value{}, &RuntimeError{Reason: "pop", Err: ErrStackUnderflow}
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

func (m *machine) popScalar(reason string) (ir.Value, error) {
	v, err := m.pop()
	if err != nil {
		return ir.Value{}, err
	}
	if v.IsList {
		return ir.Value{}, &RuntimeError{Reason: reason, Err: ErrExpectedSingleWasList}
	}
	return v.Scalar, nil
}

func (m *machine) popList(reason string) ([]ir.Value, error) {
	v, err := m.pop()
	if err != nil {
		return nil, err
	}
	if !v.IsList {
		return nil, &RuntimeError{Reason: reason, Err: ErrExpectedListWasSingle}
	}
	return v.List, nil
}

func (m *machine) popLong(reason string) (int64, error) {
	v, err := m.popScalar(reason)
	if err != nil {
		return 0, err
	}
	return v.Long, nil
}

func (m *machine) step(op OpCode) error {
	switch op {
	case OpLoadConstant:
		if m.constIdx >= len(m.expr.Constants) {
			return &RuntimeError{Reason: "load constant", Err: ErrStackUnderflow}
		}
		m.push(ScalarValue(m.expr.Constants[m.constIdx]))
		m.constIdx++
		return nil

	case OpLoadVariable:
		if m.varIdx >= len(m.expr.Variables) {
			return &RuntimeError{Reason: "load variable", Err: ErrStackUnderflow}
		}
		v, err := m.lookup(m.expr.Variables[m.varIdx])
		if err != nil {
			return &RuntimeError{Reason: "load variable", Err: err}
		}
		m.push(v)
		m.varIdx++
		return nil

	case OpCastLeftLongToDouble:
		right, err := m.popScalar("cast left")
		if err != nil {
			return err
		}
		left, err := m.popScalar("cast left")
		if err != nil {
			return err
		}
		m.push(ScalarValue(ir.Value{Type: ir.ValueTypeDouble, Double: float64(left.Long)}))
		m.push(ScalarValue(right))
		return nil

	case OpCastRightLongToDouble:
		right, err := m.popScalar("cast right")
		if err != nil {
			return err
		}
		left, err := m.popScalar("cast right")
		if err != nil {
			return err
		}
		m.push(ScalarValue(left))
		m.push(ScalarValue(ir.Value{Type: ir.ValueTypeDouble, Double: float64(right.Long)}))
		return nil

	case OpLongAddLong, OpLongSubtractLong, OpLongMultiplyLong, OpLongDivideLong, OpLongModuloLong, OpLongPowerLong:
		return m.binaryLong(op)

	case OpDoubleAddDouble, OpDoubleSubtractDouble, OpDoubleMultiplyDouble, OpDoubleDivideDouble, OpDoubleModuloDouble, OpDoublePowerDouble:
		return m.binaryDouble(op)

	case OpMathAbsLong:
		return m.unaryLong(func(n int64) int64 {
			if n < 0 {
				return -n
			}
			return n
		})
	case OpMathAbsDouble:
		return m.unaryDouble(math.Abs)
	case OpMathCeilDouble:
		return m.unaryDouble(math.Ceil)
	case OpMathFloorDouble:
		return m.unaryDouble(math.Floor)
	case OpMathRoundDouble:
		return m.unaryDouble(math.Round)

	case OpListConstructor:
		return m.listConstructor()
	case OpListIndex:
		return m.listIndex()
	case OpListIndexRange:
		return m.listIndexRange()

	default:
		return &RuntimeError{Reason: "step", Err: ErrUnknownOpcode}
	}
}

func (m *machine) binaryLong(op OpCode) error {
	right, err := m.popScalar("binary long")
	if err != nil {
		return err
	}
	left, err := m.popScalar("binary long")
	if err != nil {
		return err
	}
	var result int64
	switch op {
	case OpLongAddLong:
		result = left.Long + right.Long
	case OpLongSubtractLong:
		result = left.Long - right.Long
	case OpLongMultiplyLong:
		result = left.Long * right.Long
	case OpLongDivideLong:
		if right.Long == 0 {
			return &RuntimeError{Reason: "long divide", Err: ErrDivisionByZero}
		}
		result = left.Long / right.Long
	case OpLongModuloLong:
		if right.Long == 0 {
			return &RuntimeError{Reason: "long modulo", Err: ErrDivisionByZero}
		}
		result = left.Long % right.Long
	case OpLongPowerLong:
		result = ipow(left.Long, right.Long)
	}
	m.push(ScalarValue(ir.Value{Type: ir.ValueTypeLong, Long: result}))
	return nil
}

func (m *machine) binaryDouble(op OpCode) error {
	right, err := m.popScalar("binary double")
	if err != nil {
		return err
	}
	left, err := m.popScalar("binary double")
	if err != nil {
		return err
	}
	var result float64
	switch op {
	case OpDoubleAddDouble:
		result = left.Double + right.Double
	case OpDoubleSubtractDouble:
		result = left.Double - right.Double
	case OpDoubleMultiplyDouble:
		result = left.Double * right.Double
	case OpDoubleDivideDouble:
		if right.Double == 0 {
			return &RuntimeError{Reason: "double divide", Err: ErrDivisionByZero}
		}
		result = left.Double / right.Double
	case OpDoubleModuloDouble:
		if right.Double == 0 {
			return &RuntimeError{Reason: "double modulo", Err: ErrDivisionByZero}
		}
		result = math.Mod(left.Double, right.Double)
	case OpDoublePowerDouble:
		result = math.Pow(left.Double, right.Double)
	}
	m.push(ScalarValue(ir.Value{Type: ir.ValueTypeDouble, Double: result}))
	return nil
}

func (m *machine) unaryLong(f func(int64) int64) error {
	v, err := m.popScalar("unary long")
	if err != nil {
		return err
	}
	m.push(ScalarValue(ir.Value{Type: ir.ValueTypeLong, Long: f(v.Long)}))
	return nil
}

func (m *machine) unaryDouble(f func(float64) float64) error {
	v, err := m.popScalar("unary double")
	if err != nil {
		return err
	}
	m.push(ScalarValue(ir.Value{Type: ir.ValueTypeDouble, Double: f(v.Double)}))
	return nil
}

// listConstructor matches compileListConstructor's emission order:
// items pushed from last to first, then the item count, so at runtime
// the stack (top to bottom) reads [count, item0, item1, ..., itemN-1].
func (m *machine) listConstructor() error {
	count, err := m.popLong("list constructor")
	if err != nil {
		return err
	}
	items := make([]ir.Value, count)
	for i := int64(0); i < count; i++ {
		v, err := m.popScalar("list constructor")
		if err != nil {
			return err
		}
		items[i] = v
	}
	m.push(ListValue(items))
	return nil
}

// listIndex matches compileListIndex's emission order: index pushed
// first, then the list variable, so at runtime the stack (top to
// bottom) reads [list, index].
func (m *machine) listIndex() error {
	list, err := m.popList("list index")
	if err != nil {
		return err
	}
	idx, err := m.popLong("list index")
	if err != nil {
		return err
	}
	if idx < 0 || idx >= int64(len(list)) {
		return &RuntimeError{Reason: "list index", Err: ErrListIndexOutOfRange}
	}
	m.push(ScalarValue(list[idx]))
	return nil
}

// listIndexRange matches compileListIndexRange's emission order: from,
// then to, then the list variable, so at runtime the stack (top to
// bottom) reads [list, to, from].
func (m *machine) listIndexRange() error {
	list, err := m.popList("list index range")
	if err != nil {
		return err
	}
	to, err := m.popLong("list index range")
	if err != nil {
		return err
	}
	from, err := m.popLong("list index range")
	if err != nil {
		return err
	}
	if from < 0 || to > int64(len(list)) || from > to {
		return &RuntimeError{Reason: "list index range", Err: ErrListIndexOutOfRange}
	}
	m.push(ListValue(append([]ir.Value(nil), list[from:to]...)))
	return nil
}

func ipow(base, exp int64) int64 {
	if exp < 0 {
		return 0
	}
	result := int64(1)
	for ; exp > 0; exp-- {
		result *= base
	}
	return result
}
