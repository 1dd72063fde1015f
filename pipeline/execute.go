package pipeline

import (
	"context"

	"github.com/typedb/typedb-sub004/batch"
	"github.com/typedb/typedb-sub004/ir"
	"github.com/typedb/typedb-sub004/schema"
	"github.com/typedb/typedb-sub004/storage"
	"github.com/typedb/typedb-sub004/tabled"
	"github.com/typedb/typedb-sub004/trace"
	"github.com/typedb/typedb-sub004/tuple"
)

// Result is the materialized output of one executed pipeline: the row
// set read back, named by Columns, and any rows a terminal mutation
// pass actually wrote (reported for Insert; Delete reports the rows it
// removed).
type Result struct {
	Columns []ir.Variable
	Rows    []*tuple.Row
}

// Execute drives compiled's combined PatternExecutor to exhaustion,
// collecting every row it yields, then -- if compiled carries a terminal
// Insert/Delete stage -- applies it against db in a single write
// transaction. db/tm/things are only consulted by the mutation pass;
// Compile already closed over the schema.Snapshot/TypeManager/ThingManager
// the read side needs.
func Execute(ctx context.Context, compiled *CompiledPipeline, db *storage.Database, tm schema.TypeManager, things schema.ThingManager, tc trace.Context) (*Result, error) {
	if tc == nil {
		tc = trace.NewContext(nil)
	}

	var rows []*tuple.Row
	rowCount, err := tc.ExecuteStage("pipeline.read", func() (int, error) {
		seed := batch.NewFixedBatch(compiled.Width)
		seed.Append(tuple.NewRow(compiled.Width))
		compiled.Pattern.Prepare(seed)

		interrupt := batch.NewExecutionInterrupt(ctx)
		var suspends []tabled.SuspendPoint
		for {
			out, err := compiled.Pattern.BatchContinue(ctx, interrupt, compiled.Functions, &suspends)
			if err != nil {
				return len(rows), err
			}
			if out == nil {
				break
			}
			it := out.Iterator()
			for {
				row, ok := it.Next()
				if !ok {
					break
				}
				rows = append(rows, row)
			}
		}
		if compiled.ReduceErr != nil && *compiled.ReduceErr != nil {
			return len(rows), *compiled.ReduceErr
		}
		return len(rows), nil
	})
	if err != nil {
		tc.QueryComplete(rowCount, err)
		return nil, err
	}

	if compiled.Mutation != nil {
		_, err := tc.ExecuteStage("pipeline."+mutationStageName(compiled.Mutation.Kind), func() (int, error) {
			if err := runMutation(ctx, db, tm, things, compiled.Params, rows, compiled.Mutation); err != nil {
				return 0, err
			}
			return len(rows), nil
		})
		if err != nil {
			tc.QueryComplete(rowCount, err)
			return nil, err
		}
	}

	tc.QueryComplete(rowCount, nil)
	return &Result{Columns: compiled.Columns, Rows: rows}, nil
}

func mutationStageName(k ir.StageKind) string {
	if k == ir.StageInsert {
		return "insert"
	}
	return "delete"
}
