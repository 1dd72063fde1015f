package exec

import (
	"context"

	"github.com/typedb/typedb-sub004/batch"
	"github.com/typedb/typedb-sub004/tabled"
	"github.com/typedb/typedb-sub004/tuple"
)

// ArgsExtractor reads the bound argument values for one tabled call out
// of an input row, forming the CallKey the answer-table registry
// memoizes on.
type ArgsExtractor func(row *tuple.Row) tuple.Tuple

// TabledCallExecutor drives one recursive function-call step: it
// resolves a CallKey per input row, serves previously-computed answers
// straight from the table, and otherwise drives the callee's own
// PatternExecutor forward (through the shared TabledFunctions registry,
// so mutually-recursive calls share one memoization table per query).
type TabledCallExecutor struct {
	functionID string
	extractArg ArgsExtractor
	returnMap  func(answer *tuple.Row, call *tuple.Row) *tuple.Row
	width      int

	input        *batch.FixedBatch
	inputIter    *batch.RowIterator
	currentInput *tuple.Row
	currentKey   tabled.CallKey
	servedUpTo   int
	active       bool
}

// NewTabledCallExecutor builds an executor for one InlinedFunction-style
// recursive call site.
func NewTabledCallExecutor(functionID string, extractArg ArgsExtractor, returnMap func(*tuple.Row, *tuple.Row) *tuple.Row, width int) *TabledCallExecutor {
	return &TabledCallExecutor{functionID: functionID, extractArg: extractArg, returnMap: returnMap, width: width}
}

// Prepare resets the executor over a fresh input batch.
func (e *TabledCallExecutor) Prepare(input *batch.FixedBatch) {
	e.input = input
	e.inputIter = input.Iterator()
	e.active = false
}

// ActiveCallKey reports the CallKey currently being serviced, if any.
func (e *TabledCallExecutor) ActiveCallKey() (tabled.CallKey, bool) {
	return e.currentKey, e.active
}

// advance moves to the next input row, computing its CallKey. Returns
// ok=false once the input is exhausted.
func (e *TabledCallExecutor) advance() bool {
	row, ok := e.inputIter.Next()
	if !ok {
		e.active = false
		return false
	}
	e.currentInput = row
	e.currentKey = tabled.CallKey{FunctionID: e.functionID, Arguments: e.extractArg(row)}
	e.servedUpTo = 0
	e.active = true
	return true
}

// ServeFromTable drains whatever answers the function state already has
// beyond what this executor has already served for the current input
// row, mapping each back through returnMap. ok=false means the table has
// nothing further buffered right now (the caller must fall back to
// driving the function's own PatternExecutor).
func (e *TabledCallExecutor) ServeFromTable(state *tabled.TabledFunctionState) (*batch.FixedBatch, bool) {
	if !e.active {
		if !e.advance() {
			return nil, true
		}
	}
	if e.servedUpTo >= len(state.AnswerTable) {
		if state.Exhausted {
			e.active = false
			out := batch.NewFixedBatch(e.width)
			return out, true
		}
		return nil, false
	}
	out := batch.NewFixedBatch(e.width)
	for !out.Full() && e.servedUpTo < len(state.AnswerTable) {
		answer := state.AnswerTable[e.servedUpTo]
		e.servedUpTo++
		out.Append(e.returnMap(answer, e.currentInput))
	}
	return out, true
}

// AddBatchToTable records a freshly-computed batch of the callee's
// answers (in the callee's own row shape) into its function state.
func (e *TabledCallExecutor) AddBatchToTable(state *tabled.TabledFunctionState, b *batch.FixedBatch) {
	state.AddToTable(b)
}

// MapOutput maps a batch of callee answer rows through returnMap against
// the currently-active input row.
func (e *TabledCallExecutor) MapOutput(ctx context.Context, b *batch.FixedBatch) *batch.FixedBatch {
	out := batch.NewFixedBatch(e.width)
	it := b.Iterator()
	for {
		row, ok := it.Next()
		if !ok {
			break
		}
		out.Append(e.returnMap(row, e.currentInput))
	}
	return out
}
