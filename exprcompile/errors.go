// Package exprcompile compiles an ir.ExpressionTree into a linear
// stack-based program.
package exprcompile

import (
	"errors"
	"fmt"

	"github.com/typedb/typedb-sub004/ir"
)

// CompileError is the family of ExpressionCompileError variants.
type CompileError struct {
	Reason string
	Err    error
}

func (e *CompileError) Error() string { return fmt.Sprintf("expression compile: %s: %v", e.Reason, e.Err) }
func (e *CompileError) Unwrap() error { return e.Err }

var (
	ErrEmptyListConstructor      = errors.New("EmptyListConstructorCannotInferValueType")
	ErrHeterogenousList          = errors.New("HeterogenousValuesInList")
	ErrListIndexMustBeLong       = errors.New("ListIndexMustBeLong")
	ErrInternalStackEmpty        = errors.New("InternalStackWasEmpty")
	ErrExpectedSingleWasList     = errors.New("ExpectedSingleWasList")
	ErrExpectedListWasSingle     = errors.New("ExpectedListWasSingle")
	ErrUnsupportedArgsForBuiltin = errors.New("UnsupportedArgumentsForBuiltin")
)

// UnsupportedOperandsError carries the operator and both operand
// categories, mirroring the Rust original's
// `UnsupportedOperandsForOperation { op, left_category, right_category }`.
type UnsupportedOperandsError struct {
	Op    ir.Operator
	Left  ir.ValueType
	Right ir.ValueType
}

func (e *UnsupportedOperandsError) Error() string {
	return fmt.Sprintf("unsupported operands for operation %s: left=%s right=%s", e.Op, e.Left, e.Right)
}
