package pipeline

import (
	"context"

	"github.com/typedb/typedb-sub004/ir"
	"github.com/typedb/typedb-sub004/schema"
)

// badgerStatistics implements plan.Statistics directly against a
// snapshot's instance counts, in place of the teacher's precomputed
// Statistics{AttributeCardinality, EntityCount} fields: this module's
// compact key scheme keeps no separate cardinality table, so fanout is
// estimated on demand from InstancesOfType counts and cached per type for
// the lifetime of one compiled query.
type badgerStatistics struct {
	snap   schema.Snapshot
	things schema.ThingManager

	instanceCounts map[ir.Type]int
}

func newStatistics(snap schema.Snapshot, things schema.ThingManager) *badgerStatistics {
	return &badgerStatistics{snap: snap, things: things, instanceCounts: map[ir.Type]int{}}
}

func (s *badgerStatistics) instanceCount(t ir.Type) int {
	if n, ok := s.instanceCounts[t]; ok {
		return n
	}
	ids, err := s.things.InstancesOfType(context.Background(), s.snap, t)
	n := 0
	if err == nil {
		n = len(ids)
	}
	s.instanceCounts[t] = n
	return n
}

// EdgeFanout estimates how many right-hand matches one left-hand binding
// produces. Isa fans out to however many instances exist of the bound
// type (capped below 1 to keep a type with zero instances from looking
// free); every other edge kind defaults to a flat guess, since this
// module does not keep a precomputed per-attribute or per-role
// cardinality table the way the teacher's Statistics struct did.
func (s *badgerStatistics) EdgeFanout(kind ir.ConstraintKind, left, right ir.Type) float64 {
	switch kind {
	case ir.ConstraintIsa:
		n := s.instanceCount(right)
		if n < 1 {
			n = 1
		}
		return float64(n)
	case ir.ConstraintHas:
		return 4.0
	case ir.ConstraintLinks:
		return 6.0
	case ir.ConstraintSub:
		return 1.0
	case ir.ConstraintOwns, ir.ConstraintPlays, ir.ConstraintRelates:
		return 2.0
	default:
		return 1.0
	}
}
