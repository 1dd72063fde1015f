package exec

import (
	"github.com/typedb/typedb-sub004/batch"
	"github.com/typedb/typedb-sub004/tuple"
)

// NestedKind tags which nested sub-pattern shape a NestedPatternExecutor
// holds.
type NestedKind uint8

const (
	NestedDisjunction NestedKind = iota
	NestedNegation
	NestedOptional
	NestedInlinedFunction
	NestedOffset
	NestedLimit
)

// NestedPatternExecutor drives one nested sub-pattern's branch
// executor(s): a Disjunction holds one PatternExecutor per branch,
// everything else holds exactly one inner PatternExecutor.
type NestedPatternExecutor struct {
	Kind     NestedKind
	Branches []*PatternExecutor
	Inner    *PatternExecutor

	ArgMapping    map[tuple.VariablePosition]tuple.VariablePosition
	ReturnMapping map[tuple.VariablePosition]tuple.VariablePosition
	OutputWidth   int
	OffsetOrLimit uint64

	// InnerWidth is the callee's own row width (InlinedFunction only): its
	// body may reference local variables beyond its arguments, so the row
	// MapInput builds must be sized to the whole callee, not just to
	// len(ArgMapping).
	InnerWidth int
}

// ResultMapper adapts one outer input row to/from a nested branch's own
// row shape, and decides whether the branch must be retried (e.g.
// Negation needs to see the branch run to exhaustion before it can
// decide whether to emit).
type ResultMapper struct {
	kind NestedKind

	// Negation: the original outer row, emitted by MapOutput when the
	// branch produced no rows. InlinedFunction: the outer row each return
	// row is mapped onto. Optional mappers leave it unset: an Optional
	// branch's rows pass through unchanged, as for a Disjunction branch,
	// and nothing is emitted when the branch produces no rows.
	outerInput *tuple.Row

	// InlinedFunction
	argMapping    map[tuple.VariablePosition]tuple.VariablePosition
	returnMapping map[tuple.VariablePosition]tuple.VariablePosition
	outputWidth   int
	innerWidth    int

	// Offset/Limit
	remaining uint64
	satisfied bool

	// Negation: whether the branch produced at least one row.
	sawAny bool
}

// NewIdentityMapper passes rows through unchanged (Disjunction branches).
func NewIdentityMapper() *ResultMapper { return &ResultMapper{kind: NestedDisjunction} }

// NewNegationMapper remembers outerInput so it can emit it exactly once,
// iff the inner branch produces zero rows.
func NewNegationMapper(outerInput *tuple.Row) *ResultMapper {
	return &ResultMapper{kind: NestedNegation, outerInput: outerInput}
}

// NewInlinedFunctionMapper projects the outer row's arguments into the
// function body's own variable space and maps its return row back.
func NewInlinedFunctionMapper(outerInput *tuple.Row, argMapping, returnMapping map[tuple.VariablePosition]tuple.VariablePosition, outputWidth, innerWidth int) *ResultMapper {
	return &ResultMapper{kind: NestedInlinedFunction, outerInput: outerInput, argMapping: argMapping, returnMapping: returnMapping, outputWidth: outputWidth, innerWidth: innerWidth}
}

// NewOffsetMapper skips the first n output rows.
func NewOffsetMapper(n uint64) *ResultMapper {
	return &ResultMapper{kind: NestedOffset, remaining: n}
}

// NewLimitMapper caps total output rows at n.
func NewLimitMapper(n uint64) *ResultMapper {
	return &ResultMapper{kind: NestedLimit, remaining: n}
}

// MapInput projects an outer row into the shape the nested branch
// expects to receive as its own input batch.
func (m *ResultMapper) MapInput(row *tuple.Row) *tuple.Row {
	switch m.kind {
	case NestedInlinedFunction:
		out := tuple.NewRow(m.innerWidth)
		for outerPos, innerPos := range m.argMapping {
			out.Set(innerPos, row.Get(outerPos))
		}
		return out
	default:
		return row.Clone()
	}
}

// MapOutputResult is the result of mapping one unmapped output batch: the
// batch to pass onward (nil if nothing to yield yet) and whether the
// branch must be driven further before this mapper is done.
type MapOutputResult struct {
	Batch     *batch.FixedBatch
	MustRetry bool
}

// MapOutput adapts the inner branch's raw output batch (nil once the
// branch is exhausted) back into the outer row shape.
func (m *ResultMapper) MapOutput(unmapped *batch.FixedBatch) MapOutputResult {
	switch m.kind {
	case NestedDisjunction, NestedOptional:
		if unmapped == nil {
			return MapOutputResult{}
		}
		return MapOutputResult{Batch: unmapped, MustRetry: true}

	case NestedNegation:
		if unmapped != nil {
			if unmapped.Len() > 0 {
				m.sawAny = true
			}
			return MapOutputResult{MustRetry: true}
		}
		if m.sawAny {
			return MapOutputResult{}
		}
		out := batch.NewFixedBatch(len(m.outerInput.Values))
		out.Append(m.outerInput.Clone())
		return MapOutputResult{Batch: out}

	case NestedInlinedFunction:
		if unmapped == nil {
			return MapOutputResult{}
		}
		out := batch.NewFixedBatch(m.outputWidth)
		it := unmapped.Iterator()
		for {
			row, ok := it.Next()
			if !ok {
				break
			}
			mapped := m.outerInput.Clone()
			for innerPos, outerPos := range m.returnMapping {
				mapped.Set(outerPos, row.Get(innerPos))
			}
			out.Append(mapped)
		}
		return MapOutputResult{Batch: out, MustRetry: true}

	case NestedOffset:
		if unmapped == nil {
			return MapOutputResult{}
		}
		out := batch.NewFixedBatch(unmapped.Width)
		it := unmapped.Iterator()
		for {
			row, ok := it.Next()
			if !ok {
				break
			}
			if m.remaining > 0 {
				m.remaining--
				continue
			}
			out.Append(row)
		}
		return MapOutputResult{Batch: out, MustRetry: true}

	case NestedLimit:
		if unmapped == nil || m.satisfied {
			return MapOutputResult{}
		}
		out := batch.NewFixedBatch(unmapped.Width)
		it := unmapped.Iterator()
		for {
			row, ok := it.Next()
			if !ok {
				break
			}
			if m.remaining == 0 {
				m.satisfied = true
				break
			}
			m.remaining--
			out.Append(row)
		}
		return MapOutputResult{Batch: out, MustRetry: !m.satisfied}

	default:
		return MapOutputResult{}
	}
}
