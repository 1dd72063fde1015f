// Package batch defines FixedBatch and ExecutionInterrupt, the two
// small types shared between the pattern executor (package exec) and
// the tabled-function registry (package tabled) that would otherwise
// force a dependency cycle between them; grounded
// on original_source/executor/batch.rs's FixedBatch shape.
package batch

import (
	"context"

	"github.com/typedb/typedb-sub004/tuple"
)

// MaxRows bounds how many rows one FixedBatch holds, keeping memory use
// predictable regardless of how selective a step turns out to be.
const MaxRows = 512

// FixedBatch is the bounded unit of row production the pattern executor
// passes between steps.
type FixedBatch struct {
	Width int
	Rows  []*tuple.Row
}

// NewFixedBatch allocates an empty batch of the given row width.
func NewFixedBatch(width int) *FixedBatch {
	return &FixedBatch{Width: width, Rows: make([]*tuple.Row, 0, MaxRows)}
}

// Len returns the number of rows currently held.
func (b *FixedBatch) Len() int { return len(b.Rows) }

// Full reports whether the batch has reached MaxRows.
func (b *FixedBatch) Full() bool { return len(b.Rows) >= MaxRows }

// Append adds row to the batch.
func (b *FixedBatch) Append(row *tuple.Row) {
	b.Rows = append(b.Rows, row)
}

// RowIterator walks a FixedBatch's rows in order.
type RowIterator struct {
	batch *FixedBatch
	pos   int
}

// Iterator returns a fresh RowIterator over b.
func (b *FixedBatch) Iterator() *RowIterator {
	return &RowIterator{batch: b}
}

// Next returns the next row, or ok=false once exhausted.
func (it *RowIterator) Next() (*tuple.Row, bool) {
	if it.pos >= len(it.batch.Rows) {
		return nil, false
	}
	row := it.batch.Rows[it.pos]
	it.pos++
	return row, true
}

// ExecutionInterrupt is a cooperative cancellation checkpoint the
// control-stack loop polls between steps, so a long-running query can be
// aborted without each step needing its own cancellation plumbing.
type ExecutionInterrupt struct {
	ctx context.Context
}

// NewExecutionInterrupt wraps ctx as an interrupt source.
func NewExecutionInterrupt(ctx context.Context) ExecutionInterrupt {
	return ExecutionInterrupt{ctx: ctx}
}

// Check returns a non-nil error if the underlying context has been
// cancelled, signalling the driver loop to unwind.
func (i ExecutionInterrupt) Check() error {
	if i.ctx == nil {
		return nil
	}
	select {
	case <-i.ctx.Done():
		return i.ctx.Err()
	default:
		return nil
	}
}
