package exec

import (
	"context"

	"github.com/typedb/typedb-sub004/batch"
	"github.com/typedb/typedb-sub004/plan"
	"github.com/typedb/typedb-sub004/tuple"
)

// InstructionRunner opens a physical iterator over one planned
// instruction's candidate matches for a given already-partially-bound
// row. It is the seam between the pure control-stack driver in this
// package and whatever storage/schema machinery (package schema,
// package storage) actually resolves edges; supplying it is the
// responsibility of whatever assembles a PatternExecutor for a compiled
// query (package pipeline).
type InstructionRunner interface {
	Open(ctx context.Context, instr *plan.ConstraintInstruction, input *tuple.Row) (Source, tuple.TuplePositions, error)
}

// Source is the minimal iterator surface ImmediateExecutor drives; it is
// satisfied by *iter.SortedTupleIterator.
type Source interface {
	Peek(ctx context.Context) (tuple.Tuple, bool, error)
	AdvanceSingle(ctx context.Context) error
	WriteValues(row *tuple.Row, positions tuple.TuplePositions) error
	Multiplicity() uint64
}

// ImmediateExecutor drives one planned instruction: for each input row
// it opens a Source over the instruction's candidate matches and emits
// one output row per candidate, resuming across BatchContinue calls so a
// single step never needs to buffer more than MaxRows rows at a time.
type ImmediateExecutor struct {
	runner InstructionRunner
	instr  *plan.ConstraintInstruction
	width  int

	input        *batch.FixedBatch
	inputIter    *batch.RowIterator
	currentInput *tuple.Row
	source       Source
	positions    tuple.TuplePositions
}

// NewImmediateExecutor builds an executor for instr, producing rows of
// the given total width.
func NewImmediateExecutor(runner InstructionRunner, instr *plan.ConstraintInstruction, width int) *ImmediateExecutor {
	return &ImmediateExecutor{runner: runner, instr: instr, width: width}
}

// Prepare resets the executor to start consuming input.
func (e *ImmediateExecutor) Prepare(input *batch.FixedBatch) {
	e.input = input
	e.inputIter = input.Iterator()
	e.currentInput = nil
	e.source = nil
}

// BatchContinue produces up to one full FixedBatch of output rows,
// returning nil once the input is exhausted and no source remains open.
func (e *ImmediateExecutor) BatchContinue(ctx context.Context, interrupt batch.ExecutionInterrupt) (*batch.FixedBatch, error) {
	out := batch.NewFixedBatch(e.width)
	for !out.Full() {
		if err := interrupt.Check(); err != nil {
			return nil, err
		}
		if e.source == nil {
			row, ok := e.inputIter.Next()
			if !ok {
				if out.Len() == 0 {
					return nil, nil
				}
				return out, nil
			}
			e.currentInput = row
			src, positions, err := e.runner.Open(ctx, e.instr, row)
			if err != nil {
				return nil, err
			}
			e.source = src
			e.positions = positions
		}

		_, ok, err := e.source.Peek(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			e.source = nil
			continue
		}
		outRow := e.currentInput.Clone()
		if err := e.source.WriteValues(outRow, e.positions); err != nil {
			return nil, err
		}
		outRow.Multiplicity *= e.source.Multiplicity()
		out.Append(outRow)
		if err := e.source.AdvanceSingle(ctx); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Kind tags which alternative a StepExecutor holds.
type Kind uint8

const (
	KindImmediate Kind = iota
	KindNested
	KindTabledCall
	KindCollectingStage
	KindReshapeForReturn
)

// StepExecutor is one planned step's runtime form: a tagged union over
// the five executor shapes the control-stack driver understands.
type StepExecutor struct {
	Kind Kind

	Immediate        *ImmediateExecutor
	Nested           *NestedPatternExecutor
	TabledCall       *TabledCallExecutor
	CollectingStage  *CollectingStageExecutor
	ReshapeForReturn tuple.TuplePositions
}
