package pipeline

import (
	"context"
	"sort"

	"github.com/typedb/typedb-sub004/batch"
	"github.com/typedb/typedb-sub004/ir"
	"github.com/typedb/typedb-sub004/reduce"
	"github.com/typedb/typedb-sub004/tuple"
)

// flattenBatches concatenates every row across a collecting stage's
// buffered batches, in order, ready for a whole-input transform.
func flattenBatches(batches []*batch.FixedBatch) []*tuple.Row {
	var rows []*tuple.Row
	for _, b := range batches {
		if b == nil {
			continue
		}
		it := b.Iterator()
		for {
			row, ok := it.Next()
			if !ok {
				break
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// chunkRows repacks rows back into batch.MaxRows-sized FixedBatches of
// the given width, ready to stream out of a CollectingStageExecutor.
func chunkRows(rows []*tuple.Row, width int) []*batch.FixedBatch {
	var out []*batch.FixedBatch
	for len(rows) > 0 {
		n := len(rows)
		if n > batch.MaxRows {
			n = batch.MaxRows
		}
		b := batch.NewFixedBatch(width)
		for _, r := range rows[:n] {
			b.Append(r)
		}
		out = append(out, b)
		rows = rows[n:]
	}
	return out
}

// sortApply orders the whole collected input by cols/dirs, stably so
// rows tying on every sort column keep their original relative order.
func sortApply(cols []tuple.VariablePosition, dirs []ir.OrderDirection) func([]*batch.FixedBatch) []*batch.FixedBatch {
	return func(batches []*batch.FixedBatch) []*batch.FixedBatch {
		rows := flattenBatches(batches)
		width := 0
		for _, b := range batches {
			if b != nil {
				width = b.Width
				break
			}
		}
		sort.SliceStable(rows, func(i, j int) bool {
			for k, c := range cols {
				cmp := tuple.Compare(rows[i].Get(c), rows[j].Get(c))
				if cmp == 0 {
					continue
				}
				if dirs[k] == ir.Descending {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
		return chunkRows(rows, width)
	}
}

// offsetLimitApply implements a whole-query Offset/Limit stage: unlike
// NestedOffset/NestedLimit (which trim a nested branch's own rows), this
// trims the pipeline's full accumulated result.
func offsetLimitApply(n uint64, isLimit bool) func([]*batch.FixedBatch) []*batch.FixedBatch {
	return func(batches []*batch.FixedBatch) []*batch.FixedBatch {
		rows := flattenBatches(batches)
		width := 0
		for _, b := range batches {
			if b != nil {
				width = b.Width
				break
			}
		}
		if isLimit {
			if uint64(len(rows)) > n {
				rows = rows[:n]
			}
		} else {
			if uint64(len(rows)) > n {
				rows = rows[n:]
			} else {
				rows = nil
			}
		}
		return chunkRows(rows, width)
	}
}

// requireApply drops any row with an unbound (Optional-produced empty)
// value in one of cols.
func requireApply(cols []tuple.VariablePosition) func([]*batch.FixedBatch) []*batch.FixedBatch {
	return func(batches []*batch.FixedBatch) []*batch.FixedBatch {
		rows := flattenBatches(batches)
		width := 0
		for _, b := range batches {
			if b != nil {
				width = b.Width
				break
			}
		}
		kept := rows[:0]
		for _, row := range rows {
			ok := true
			for _, c := range cols {
				if row.Get(c).Kind == tuple.ValueEmpty {
					ok = false
					break
				}
			}
			if ok {
				kept = append(kept, row)
			}
		}
		return chunkRows(kept, width)
	}
}

// reduceApply groups the whole collected input via reduce.GroupedReducer.
// GroupedReducer.Accept resolves attribute values through the snapshot,
// which can fail; since a collecting stage's apply function carries no
// error return, a failure is recorded into errOut for Execute to surface
// once the top-level pattern finishes draining.
func (c *compiler) reduceApply(ctx context.Context, groupBy []tuple.VariablePosition, instrs []reduce.Instruction, outputs []tuple.VariablePosition, width *int, errOut *error) func([]*batch.FixedBatch) []*batch.FixedBatch {
	return func(batches []*batch.FixedBatch) []*batch.FixedBatch {
		if *errOut != nil {
			return nil
		}
		grouped := reduce.NewGroupedReducer(c.snap, c.things, groupBy, instrs, outputs)
		for _, b := range batches {
			if b == nil {
				continue
			}
			it := b.Iterator()
			for {
				row, ok := it.Next()
				if !ok {
					break
				}
				if err := grouped.Accept(ctx, row); err != nil {
					*errOut = err
					return nil
				}
			}
		}
		return chunkRows(grouped.Finalise(*width), *width)
	}
}
