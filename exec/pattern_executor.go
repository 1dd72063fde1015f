package exec

import (
	"context"
	"fmt"

	"github.com/typedb/typedb-sub004/batch"
	"github.com/typedb/typedb-sub004/tabled"
	"github.com/typedb/typedb-sub004/tuple"
)

// ErrInterrupted wraps a context cancellation observed mid-execution.
type ErrInterrupted struct{ Cause error }

func (e *ErrInterrupted) Error() string { return fmt.Sprintf("execution interrupted: %v", e.Cause) }
func (e *ErrInterrupted) Unwrap() error { return e.Cause }

// ErrTabledFunctionLock reports a poisoned tabled-function mutex
// encountered while servicing a recursive call.
type ErrTabledFunctionLock struct {
	FunctionID string
	Arguments  tuple.Tuple
}

func (e *ErrTabledFunctionLock) Error() string {
	return fmt.Sprintf("tabled function lock poisoned: %s(%v)", e.FunctionID, []tuple.VariableValue(e.Arguments))
}

// controlKind tags which alternative a controlInstruction holds.
type controlKind uint8

const (
	cStart controlKind = iota
	cExecuteImmediate
	cMapRowBatchToRowForNested
	cExecuteNested
	cTabledCall
	cCollectingStage
	cStreamCollected
	cReshapeForReturn
	cYield
)

type controlInstruction struct {
	kind  controlKind
	index int
	batch *batch.FixedBatch

	rowIter *batch.RowIterator

	branchIndex int
	mapper      *ResultMapper
	input       *tuple.Row
}

// PatternExecutor is the cooperative, bounded-batch control-stack driver
// over one compiled step sequence: it threads a FixedBatch through each
// StepExecutor in order, recursing into nested branches and tabled calls
// as it goes, never holding more than one step's worth of rows in
// memory at a time.
type PatternExecutor struct {
	executors []StepExecutor
	stack     []controlInstruction
}

// NewPatternExecutor builds a driver over the given compiled steps.
func NewPatternExecutor(executors []StepExecutor) *PatternExecutor {
	return &PatternExecutor{executors: executors}
}

// Prepare resets the driver and seeds it with an initial input batch.
func (p *PatternExecutor) Prepare(input *batch.FixedBatch) {
	p.stack = p.stack[:0]
	p.stack = append(p.stack, controlInstruction{kind: cStart, batch: input})
}

// Reset clears any in-progress control stack, as if Prepare had never
// been called.
func (p *PatternExecutor) Reset() {
	p.stack = p.stack[:0]
}

// ComputeNextBatch is the external entry point matching
// tabled.PatternRunner: it drives batch_continue, threading the
// query-wide tabled-function registry and suspend-point accumulator
// through any recursive calls this pattern makes.
func (p *PatternExecutor) ComputeNextBatch(ctx context.Context, interrupt batch.ExecutionInterrupt, functions *tabled.TabledFunctions, suspends *[]tabled.SuspendPoint) (*batch.FixedBatch, error) {
	return p.BatchContinue(ctx, interrupt, functions, suspends)
}

// BatchContinue implements tabled.PatternRunner.
func (p *PatternExecutor) BatchContinue(ctx context.Context, interrupt batch.ExecutionInterrupt, functions *tabled.TabledFunctions, suspends *[]tabled.SuspendPoint) (*batch.FixedBatch, error) {
	for len(p.stack) > 0 {
		if err := interrupt.Check(); err != nil {
			return nil, &ErrInterrupted{Cause: err}
		}

		n := len(p.stack)
		instr := p.stack[n-1]
		p.stack = p.stack[:n-1]

		switch instr.kind {
		case cStart:
			if err := p.prepareNext(ctx, 0, instr.batch); err != nil {
				return nil, err
			}

		case cExecuteImmediate:
			exec := p.executors[instr.index].Immediate
			out, err := exec.BatchContinue(ctx, interrupt)
			if err != nil {
				return nil, err
			}
			if out != nil {
				p.stack = append(p.stack, controlInstruction{kind: cExecuteImmediate, index: instr.index})
				if err := p.prepareNext(ctx, instr.index+1, out); err != nil {
					return nil, err
				}
			}

		case cMapRowBatchToRowForNested:
			row, ok := instr.rowIter.Next()
			if ok {
				p.stack = append(p.stack, controlInstruction{kind: cMapRowBatchToRowForNested, index: instr.index, rowIter: instr.rowIter})
				p.prepareAndPushNested(instr.index, row)
			}

		case cExecuteNested:
			step := p.executors[instr.index].Nested
			branch := step.branchAt(instr.branchIndex)
			unmapped, err := branch.BatchContinue(ctx, interrupt, functions, suspends)
			if err != nil {
				return nil, err
			}
			result := instr.mapper.MapOutput(unmapped)
			if result.MustRetry {
				p.stack = append(p.stack, controlInstruction{kind: cExecuteNested, index: instr.index, branchIndex: instr.branchIndex, mapper: instr.mapper, input: instr.input})
			} else {
				branch.Reset()
			}
			if result.Batch != nil {
				if err := p.prepareNext(ctx, instr.index+1, result.Batch); err != nil {
					return nil, err
				}
			}

		case cTabledCall:
			if err := p.stepTabledCall(ctx, interrupt, functions, suspends, instr.index); err != nil {
				return nil, err
			}

		case cCollectingStage:
			step := p.executors[instr.index].CollectingStage
			out, err := p.collectingInner(instr.index).BatchContinue(ctx, interrupt, functions, suspends)
			if err != nil {
				return nil, err
			}
			if out != nil {
				step.Accept(out)
				p.stack = append(p.stack, controlInstruction{kind: cCollectingStage, index: instr.index})
			} else {
				step.Finalise()
				p.stack = append(p.stack, controlInstruction{kind: cStreamCollected, index: instr.index})
			}

		case cStreamCollected:
			step := p.executors[instr.index].CollectingStage
			out := step.BatchContinue()
			if out != nil {
				p.stack = append(p.stack, controlInstruction{kind: cStreamCollected, index: instr.index})
				if err := p.prepareNext(ctx, instr.index+1, out); err != nil {
					return nil, err
				}
			}

		case cReshapeForReturn:
			positions := p.executors[instr.index].ReshapeForReturn
			out := batch.NewFixedBatch(len(positions))
			it := instr.batch.Iterator()
			for {
				row, ok := it.Next()
				if !ok {
					break
				}
				mapped := tuple.NewRow(len(positions))
				for dst, src := range positions {
					if src != nil {
						mapped.Set(tuple.VariablePosition(dst), row.Get(*src))
					}
				}
				out.Append(mapped)
			}
			if err := p.prepareNext(ctx, instr.index+1, out); err != nil {
				return nil, err
			}

		case cYield:
			return instr.batch, nil
		}
	}
	return nil, nil
}

func (p *PatternExecutor) prepareNext(ctx context.Context, nextIndex int, b *batch.FixedBatch) error {
	if nextIndex >= len(p.executors) {
		p.stack = append(p.stack, controlInstruction{kind: cYield, batch: b})
		return nil
	}
	step := &p.executors[nextIndex]
	switch step.Kind {
	case KindImmediate:
		step.Immediate.Prepare(b)
		p.stack = append(p.stack, controlInstruction{kind: cExecuteImmediate, index: nextIndex})
	case KindNested, KindTabledCall:
		p.stack = append(p.stack, controlInstruction{kind: cMapRowBatchToRowForNested, index: nextIndex, rowIter: b.Iterator()})
	case KindCollectingStage:
		step.CollectingStage.Prepare()
		p.pushCollectingInner(nextIndex, b)
		p.stack = append(p.stack, controlInstruction{kind: cCollectingStage, index: nextIndex})
	case KindReshapeForReturn:
		p.stack = append(p.stack, controlInstruction{kind: cReshapeForReturn, index: nextIndex, batch: b})
	}
	return nil
}

func (p *PatternExecutor) prepareAndPushNested(index int, input *tuple.Row) {
	step := p.executors[index].Nested
	if step == nil {
		tc := p.executors[index].TabledCall
		singleton := batch.NewFixedBatch(len(input.Values))
		singleton.Append(input)
		tc.Prepare(singleton)
		p.stack = append(p.stack, controlInstruction{kind: cTabledCall, index: index})
		return
	}
	switch step.Kind {
	case NestedDisjunction:
		for bi, branch := range step.Branches {
			mapper := NewIdentityMapper()
			mapped := mapper.MapInput(input)
			single := batch.NewFixedBatch(len(mapped.Values))
			single.Append(mapped)
			branch.Prepare(single)
			p.stack = append(p.stack, controlInstruction{kind: cExecuteNested, index: index, branchIndex: bi, mapper: mapper, input: input})
		}
	case NestedNegation:
		mapper := NewNegationMapper(input)
		mapped := mapper.MapInput(input)
		single := batch.NewFixedBatch(len(mapped.Values))
		single.Append(mapped)
		step.Inner.Prepare(single)
		p.stack = append(p.stack, controlInstruction{kind: cExecuteNested, index: index, branchIndex: 0, mapper: mapper, input: input})
	case NestedOptional:
		mapper := &ResultMapper{kind: NestedOptional}
		mapped := mapper.MapInput(input)
		single := batch.NewFixedBatch(len(mapped.Values))
		single.Append(mapped)
		step.Inner.Prepare(single)
		p.stack = append(p.stack, controlInstruction{kind: cExecuteNested, index: index, branchIndex: 0, mapper: mapper, input: input})
	case NestedInlinedFunction:
		mapper := NewInlinedFunctionMapper(input, step.ArgMapping, step.ReturnMapping, step.OutputWidth, step.InnerWidth)
		mapped := mapper.MapInput(input)
		single := batch.NewFixedBatch(len(mapped.Values))
		single.Append(mapped)
		step.Inner.Prepare(single)
		p.stack = append(p.stack, controlInstruction{kind: cExecuteNested, index: index, branchIndex: 0, mapper: mapper, input: input})
	case NestedOffset:
		mapper := NewOffsetMapper(step.OffsetOrLimit)
		mapped := mapper.MapInput(input)
		single := batch.NewFixedBatch(len(mapped.Values))
		single.Append(mapped)
		step.Inner.Prepare(single)
		p.stack = append(p.stack, controlInstruction{kind: cExecuteNested, index: index, branchIndex: 0, mapper: mapper, input: input})
	case NestedLimit:
		mapper := NewLimitMapper(step.OffsetOrLimit)
		mapped := mapper.MapInput(input)
		single := batch.NewFixedBatch(len(mapped.Values))
		single.Append(mapped)
		step.Inner.Prepare(single)
		p.stack = append(p.stack, controlInstruction{kind: cExecuteNested, index: index, branchIndex: 0, mapper: mapper, input: input})
	}
}

func (step *NestedPatternExecutor) branchAt(i int) *PatternExecutor {
	if step.Kind == NestedDisjunction {
		return step.Branches[i]
	}
	return step.Inner
}

// stepTabledCall advances one tabled-call step: it first tries to serve
// the active input row's answers straight from the callee's memoization
// table, and only drives the callee's own PatternExecutor forward when
// the table has nothing further buffered yet (ServeFromTable's second
// return value is false).
func (p *PatternExecutor) stepTabledCall(ctx context.Context, interrupt batch.ExecutionInterrupt, functions *tabled.TabledFunctions, suspends *[]tabled.SuspendPoint, index int) error {
	exec := p.executors[index].TabledCall
	key, active := exec.ActiveCallKey()
	if !active {
		if !exec.advance() {
			return nil
		}
		key, _ = exec.ActiveCallKey()
	}
	state, err := functions.GetOrCreate(key)
	if err != nil {
		return err
	}

	served, ready := exec.ServeFromTable(state)
	if ready {
		if served == nil {
			// No more input rows for this step: let it end, same as an
			// ImmediateExecutor yielding a nil batch.
			return nil
		}
		// More input rows (or more of this row's answers) may remain;
		// keep this step alive regardless of whether this particular
		// visit produced any output.
		p.stack = append(p.stack, controlInstruction{kind: cTabledCall, index: index})
		if served.Len() > 0 {
			mapped := exec.MapOutput(ctx, served)
			return p.prepareNext(ctx, index+1, mapped)
		}
		return nil
	}

	// Mirrors the reference try_lock dispatch: Acquired drives the
	// callee's own PatternExecutor one batch further and, on a fresh
	// batch, re-queues this step before yielding the mapped output;
	// WouldBlock, or an empty Acquired batch whose callee left suspend
	// points, instead records a suspend point, and the step's control
	// frame drops for the round, to be retried once the semi-naive driver
	// reruns the whole query.
	switch state.TryAcquire() {
	case tabled.LockAcquired:
		out, err := state.Runner.(*PatternExecutor).BatchContinue(ctx, interrupt, functions, &state.SuspendPoints)
		if err != nil {
			state.Release(true)
			return err
		}
		if out != nil {
			exec.AddBatchToTable(state, out)
			state.Release(false)
			p.stack = append(p.stack, controlInstruction{kind: cTabledCall, index: index})
			mapped := exec.MapOutput(ctx, out)
			return p.prepareNext(ctx, index+1, mapped)
		}
		state.Exhausted = true
		if len(state.SuspendPoints) > 0 {
			*suspends = append(*suspends, tabled.SuspendPoint{Callee: key})
		}
		state.Release(false)
	case tabled.LockWouldBlock:
		*suspends = append(*suspends, tabled.SuspendPoint{Callee: key})
	case tabled.LockPoisoned:
		return &ErrTabledFunctionLock{FunctionID: key.FunctionID, Arguments: key.Arguments}
	}
	return nil
}

// collectingInner and pushCollectingInner let the control stack drive a
// CollectingStage's own inner pattern (held alongside it) the same way
// any other nested step is driven; the inner pattern is threaded through
// prepareNext/Accept/Finalise rather than kept in the control stack
// directly.
func (p *PatternExecutor) collectingInner(index int) *PatternExecutor {
	return p.executors[index].CollectingStage.inner
}

func (p *PatternExecutor) pushCollectingInner(index int, b *batch.FixedBatch) {
	p.executors[index].CollectingStage.inner.Prepare(b)
}
