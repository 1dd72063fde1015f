package annotate

import (
	"errors"
	"fmt"

	"github.com/typedb/typedb-sub004/ir"
)

// AnnotationError is the family of compile-time errors raised while
// annotating a pipeline.
type AnnotationError struct {
	Op  string
	Err error
}

func (e *AnnotationError) Error() string { return fmt.Sprintf("annotation: %s: %v", e.Op, e.Err) }
func (e *AnnotationError) Unwrap() error { return e.Err }

var (
	// ErrUnsatisfiable is returned when an edge's allowed type set
	// becomes empty during fixpoint propagation.
	ErrUnsatisfiable = errors.New("constraint is unsatisfiable: no types remain after propagation")

	ErrUncomparableSortVariable           = errors.New("sort variable has pairwise incomparable value types")
	ErrCouldNotDetermineValueType         = errors.New("could not determine value type for reducer input")
	ErrReducerInputIsList                 = errors.New("reducer input variable is a list")
	ErrReducerInputNotSingleValueType     = errors.New("reducer input variable did not have a single value type")
	ErrUnsupportedValueTypeForReducer     = errors.New("value type unsupported for this reducer")
)

// UncomparableValueTypesForSortVariable names the offending variable.
func UncomparableValueTypesForSortVariable(v ir.Variable) error {
	return &AnnotationError{Op: "sort", Err: fmt.Errorf("%w: $%d", ErrUncomparableSortVariable, v)}
}

// CouldNotDetermineValueTypeForReducerInput names the offending variable.
func CouldNotDetermineValueTypeForReducerInput(v ir.Variable) error {
	return &AnnotationError{Op: "reduce", Err: fmt.Errorf("%w: $%d", ErrCouldNotDetermineValueType, v)}
}

// ReducerInputVariableIsList names the offending variable.
func ReducerInputVariableIsList(v ir.Variable) error {
	return &AnnotationError{Op: "reduce", Err: fmt.Errorf("%w: $%d", ErrReducerInputIsList, v)}
}

// ReducerInputVariableDidNotHaveSingleValueType names the offending variable.
func ReducerInputVariableDidNotHaveSingleValueType(v ir.Variable) error {
	return &AnnotationError{Op: "reduce", Err: fmt.Errorf("%w: $%d", ErrReducerInputNotSingleValueType, v)}
}

// UnsupportedValueTypeForReducer names the reducer and the offending value type.
func UnsupportedValueTypeForReducer(r ir.Reducer, vt ir.ValueType) error {
	return &AnnotationError{Op: "reduce", Err: fmt.Errorf("%w: reducer %d over %s", ErrUnsupportedValueTypeForReducer, r, vt)}
}
