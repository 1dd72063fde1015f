package pipeline

import (
	"context"

	"github.com/typedb/typedb-sub004/iter"
	"github.com/typedb/typedb-sub004/tuple"
)

// sliceSource adapts a pre-materialized slice of candidate tuples to
// iter.Source, letting badgerRunner hand every generated candidate list
// to exec.ImmediateExecutor through the same SortedTupleIterator wrapper
// a range-scan-backed source would use. Candidates are generated in a
// fixed, arbitrary order rather than sorted on any particular column, so
// newSource and newWeightedSource pass nil sortColumns; only
// collapseSingleColumn sorts its slice first and names its sort column.
type sliceSource struct {
	tuples []tuple.Tuple
	mults  []uint64
	pos    int
}

var _ iter.Source = (*sliceSource)(nil)

func (s *sliceSource) Next(ctx context.Context) (tuple.Tuple, bool, error) {
	if s.pos >= len(s.tuples) {
		return nil, false, nil
	}
	t := s.tuples[s.pos]
	s.pos++
	return t, true, nil
}

var _ iter.WeightedSource = (*sliceSource)(nil)

// CurrentMultiplicity reports the multiplicity of the tuple most
// recently returned by Next, or 1 if this source was built without
// per-tuple weights.
func (s *sliceSource) CurrentMultiplicity() uint64 {
	if s.mults == nil || s.pos == 0 || s.pos > len(s.mults) {
		return 1
	}
	return s.mults[s.pos-1]
}

// newSource wraps a candidate tuple slice in the lookahead-buffered
// iterator exec.Source requires.
func newSource(tuples []tuple.Tuple) *iter.SortedTupleIterator {
	return iter.NewSortedTupleIterator(&sliceSource{tuples: tuples}, nil)
}

// newWeightedSource wraps tuples alongside a parallel per-tuple
// multiplicity, for candidate sets badgerRunner has already folded
// counted-distinct duplicates out of.
func newWeightedSource(tuples []tuple.Tuple, mults []uint64) *iter.SortedTupleIterator {
	return iter.NewSortedTupleIterator(&sliceSource{tuples: tuples, mults: mults}, nil)
}
