// Package reduce implements grouped reduction over rows: the Annotator
// resolves each Reduce assignment to one of these strongly-typed
// ReduceInstruction variants.
package reduce

import "github.com/typedb/typedb-sub004/tuple"

// Kind tags which ReducerExecutor a ReduceInstruction builds.
type Kind uint8

const (
	Count Kind = iota
	CountVar
	SumLong
	SumDouble
	MaxLong
	MaxDouble
	MinLong
	MinDouble
	MeanLong
	MeanDouble
	MedianLong
	MedianDouble
	StdLong
	StdDouble
)

// Instruction is a strongly-typed, position-addressed reducer
// instruction produced by the Annotator after resolving the reducer
// input's value type.
type Instruction struct {
	Kind   Kind
	Target tuple.VariablePosition // unused for Count
}
