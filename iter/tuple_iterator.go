// Package iter implements the buffered, advance-past-aware tuple
// iterator every physical constraint source is wrapped in: a single
// edge instruction's candidate stream, peekable and advanceable one
// tuple at a time, with a counted advance-past primitive pipeline uses
// to fold candidates that agree on every projected column into one row
// with a multiplicity. Grounded on datalog/storage/matcher.go's
// range-scan shape and original_source/executor's SortedTupleIterator
// family.
package iter

import (
	"context"
	"fmt"

	"github.com/typedb/typedb-sub004/tuple"
)

// ErrExhausted is returned by WriteValues when there is no current tuple;
// Peek reports exhaustion with ok=false instead.
var ErrExhausted = fmt.Errorf("tuple iterator exhausted")

// Source produces tuples in ascending sort-column order: a thin
// adapter over a schema.Snapshot range scan for one edge instruction.
type Source interface {
	// Next advances to and returns the next tuple, or ok=false at end of
	// stream.
	Next(ctx context.Context) (tuple.Tuple, bool, error)
}

// WeightedSource is a Source that has already folded counted-distinct
// duplicates out of the tuples it emits, and can report how many
// collapsed into the tuple Next most recently returned.
type WeightedSource interface {
	Source
	CurrentMultiplicity() uint64
}

// TupleIteratorAPI is the shape every physical constraint iterator
// implements: peekable, advance-by-one, advance-past-a-value, and
// skip-forward-to-a-value, plus writing the current tuple's values into
// a Row at the positions the planner assigned.
type TupleIteratorAPI interface {
	Peek(ctx context.Context) (tuple.Tuple, bool, error)
	AdvanceSingle(ctx context.Context) error
	AdvancePast(ctx context.Context, value tuple.VariableValue, col int) (int, error)
	SkipUntilValue(ctx context.Context, value tuple.VariableValue, col int) error
	WriteValues(row *tuple.Row, positions tuple.TuplePositions) error
	Multiplicity() uint64
}

// SortedTupleIterator wraps a Source with one-tuple-of-lookahead buffering
// so Peek is idempotent, and implements the advance/skip operations the
// sort-merge join driver needs. Columns named in SortColumns must appear
// in the same relative order the underlying Source emits them in.
type SortedTupleIterator struct {
	src         Source
	SortColumns []int

	current Tuple
	hasNext bool
	done    bool
}

// Tuple is an alias of tuple.Tuple.
type Tuple = tuple.Tuple

// NewSortedTupleIterator wraps src, asserting (in debug builds via the
// caller) that it emits tuples in ascending order on sortColumns.
func NewSortedTupleIterator(src Source, sortColumns []int) *SortedTupleIterator {
	return &SortedTupleIterator{src: src, SortColumns: sortColumns}
}

func (it *SortedTupleIterator) fill(ctx context.Context) error {
	if it.hasNext || it.done {
		return nil
	}
	t, ok, err := it.src.Next(ctx)
	if err != nil {
		return err
	}
	if !ok {
		it.done = true
		return nil
	}
	it.current = t
	it.hasNext = true
	return nil
}

// Peek returns the current tuple without consuming it.
func (it *SortedTupleIterator) Peek(ctx context.Context) (tuple.Tuple, bool, error) {
	if err := it.fill(ctx); err != nil {
		return nil, false, err
	}
	if !it.hasNext {
		return nil, false, nil
	}
	return it.current, true, nil
}

// AdvanceSingle discards the current tuple, loading the next one.
func (it *SortedTupleIterator) AdvanceSingle(ctx context.Context) error {
	if err := it.fill(ctx); err != nil {
		return err
	}
	it.hasNext = false
	return nil
}

// AdvancePast discards every buffered/upcoming tuple whose value at col
// compares less-than-or-equal to value, stopping at the first tuple that
// sorts strictly after it (or end of stream), and returns how many
// tuples it consumed -- the counted-distinct multiplicity of value on
// col. The four cases from the reference design are (a) iterator
// already past value: no-op, count 0, (b) exactly at value: advance
// one, (c) strictly before value: keep advancing, (d) exhausted: no-op.
func (it *SortedTupleIterator) AdvancePast(ctx context.Context, value tuple.VariableValue, col int) (int, error) {
	count := 0
	for {
		t, ok, err := it.Peek(ctx)
		if err != nil {
			return count, err
		}
		if !ok {
			return count, nil // case (d)
		}
		cmp := tuple.Compare(t[col], value)
		if cmp > 0 {
			return count, nil // case (a)
		}
		if err := it.AdvanceSingle(ctx); err != nil {
			return count, err
		}
		count++
		// cmp == 0 -> case (b) consumed, loop re-peeks in case of
		// duplicate keys; cmp < 0 -> case (c), keep advancing.
	}
}

// SkipUntilValue advances until the current tuple's value at col is >=
// value (or the stream is exhausted), without consuming the tuple that
// first satisfies it.
func (it *SortedTupleIterator) SkipUntilValue(ctx context.Context, value tuple.VariableValue, col int) error {
	for {
		t, ok, err := it.Peek(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if tuple.Compare(t[col], value) >= 0 {
			return nil
		}
		if err := it.AdvanceSingle(ctx); err != nil {
			return err
		}
	}
}

// Multiplicity reports the current tuple's multiplicity: how many
// counted-distinct candidates it stands in for, 1 if the wrapped
// Source does not track that.
func (it *SortedTupleIterator) Multiplicity() uint64 {
	if ws, ok := it.src.(WeightedSource); ok {
		return ws.CurrentMultiplicity()
	}
	return 1
}

// WriteValues copies the current tuple's columns into row at the
// positions named by positions (nil entries are skipped: Check columns
// contribute no row position).
func (it *SortedTupleIterator) WriteValues(row *tuple.Row, positions tuple.TuplePositions) error {
	if !it.hasNext {
		return ErrExhausted
	}
	for i, pos := range positions {
		if pos == nil {
			continue
		}
		if i >= len(it.current) {
			return fmt.Errorf("tuple iterator: column %d out of range (tuple width %d)", i, len(it.current))
		}
		row.Set(*pos, it.current[i])
	}
	return nil
}

// assertOrdering is a debug-only invariant check a Source implementation
// can call after producing each tuple to verify it never regresses on
// SortColumns; kept as a free function so it compiles out trivially when
// unused.
func assertOrdering(prev, next tuple.Tuple, cols []int) bool {
	if prev == nil {
		return true
	}
	for _, c := range cols {
		cmp := tuple.Compare(prev[c], next[c])
		if cmp != 0 {
			return cmp < 0
		}
	}
	return true
}
