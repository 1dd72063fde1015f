package reduce

import (
	"context"
	"fmt"

	"github.com/typedb/typedb-sub004/schema"
	"github.com/typedb/typedb-sub004/tuple"
)

// GroupedReducer drives grouped reduction: rows are partitioned by the
// value of GroupBy columns, and each group accumulates one executor per
// reduce assignment. Groups are emitted in the order their key is first
// seen; an empty group-by with no input rows still yields exactly one
// row of finalised reducers over an empty group, matching the Rust
// `reduce_executor.rs` degenerate-case handling.
type GroupedReducer struct {
	GroupBy      []tuple.VariablePosition
	Instructions []Instruction
	Outputs      []tuple.VariablePosition // output column per Instruction, in order

	extractor *ValueExtractor

	order []string
	byKey map[string]*group
}

type group struct {
	keyRow    *tuple.Row
	executors []executor
}

// NewGroupedReducer constructs a reducer over the given snapshot/thing
// manager, used to resolve attribute values referenced by reduced
// columns.
func NewGroupedReducer(snap schema.Snapshot, things schema.ThingManager, groupBy []tuple.VariablePosition, instrs []Instruction, outputs []tuple.VariablePosition) *GroupedReducer {
	return &GroupedReducer{
		GroupBy:      groupBy,
		Instructions: instrs,
		Outputs:      outputs,
		extractor:    &ValueExtractor{Snapshot: snap, Things: things},
		byKey:        make(map[string]*group),
	}
}

func groupKey(row *tuple.Row, cols []tuple.VariablePosition) string {
	key := make([]byte, 0, 16*len(cols))
	for _, c := range cols {
		v := row.Get(c)
		key = append(key, byte(v.Kind))
		switch v.Kind {
		case tuple.ValueType:
			key = append(key, v.Type.String()...)
		case tuple.ValueThing:
			key = append(key, v.Thing...)
		case tuple.ValueValue:
			key = append(key, byte(v.Value.Type))
			key = fmt.Appendf(key, "%v", v.Value)
		}
		key = append(key, 0)
	}
	return string(key)
}

// Accept folds row into its group's accumulators, instantiating a fresh
// set of executors (one per Instruction) the first time a group key is
// seen.
func (g *GroupedReducer) Accept(ctx context.Context, row *tuple.Row) error {
	k := groupKey(row, g.GroupBy)
	grp, ok := g.byKey[k]
	if !ok {
		grp = &group{keyRow: row, executors: make([]executor, len(g.Instructions))}
		for i, instr := range g.Instructions {
			grp.executors[i] = build(instr)
		}
		g.byKey[k] = grp
		g.order = append(g.order, k)
	}
	for _, ex := range grp.executors {
		if err := ex.accept(ctx, g.extractor, row); err != nil {
			return err
		}
	}
	return nil
}

// Finalise returns one output row per distinct group key, in
// first-seen order, with GroupBy columns copied from the group's
// representative row and Outputs columns set from each executor's
// finalised value. If no rows were ever accepted and GroupBy is empty,
// a single row built from zero-valued executors is returned, matching
// the ungrouped degenerate case.
func (g *GroupedReducer) Finalise(width int) []*tuple.Row {
	if len(g.order) == 0 && len(g.GroupBy) == 0 {
		row := tuple.NewRow(width)
		for i, instr := range g.Instructions {
			row.Set(g.Outputs[i], build(instr).finalise())
		}
		return []*tuple.Row{row}
	}
	rows := make([]*tuple.Row, 0, len(g.order))
	for _, k := range g.order {
		grp := g.byKey[k]
		row := tuple.NewRow(width)
		for _, c := range g.GroupBy {
			row.Set(c, grp.keyRow.Get(c))
		}
		for i, ex := range grp.executors {
			row.Set(g.Outputs[i], ex.finalise())
		}
		rows = append(rows, row)
	}
	return rows
}
