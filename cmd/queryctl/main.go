// Command queryctl loads a query written in the irtext S-expression
// format against a BadgerDB-backed store and runs it through the
// annotate/plan/exec/reduce pipeline, printing the resulting rows as a
// markdown table. Pass -explain to also print timed stage/instruction
// events as the query runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/typedb/typedb-sub004/irtext"
	"github.com/typedb/typedb-sub004/pipeline"
	"github.com/typedb/typedb-sub004/storage"
	"github.com/typedb/typedb-sub004/trace"
)

func main() {
	dbPath := flag.String("db", "", "path to a BadgerDB store")
	queryPath := flag.String("query", "", "path to an irtext query file")
	explain := flag.Bool("explain", false, "print timed stage/instruction events")
	flag.Parse()

	if err := run(*dbPath, *queryPath, *explain); err != nil {
		fmt.Fprintln(os.Stderr, "queryctl:", err)
		os.Exit(1)
	}
}

func run(dbPath, queryPath string, explain bool) error {
	if dbPath == "" || queryPath == "" {
		return fmt.Errorf("usage: queryctl -db <path> -query <file.irt> [-explain]")
	}

	source, err := os.ReadFile(queryPath)
	if err != nil {
		return err
	}
	query, err := irtext.Parse(string(source))
	if err != nil {
		return err
	}

	db, err := storage.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	tm := storage.NewTypeManager()
	things := storage.NewThingManager()

	var tc trace.Context
	if explain {
		tc = trace.NewContext(trace.NewOutputFormatter(os.Stderr).Handle)
	} else {
		tc = trace.NewContext(nil)
	}

	ctx := context.Background()
	tc.QueryBegin(string(source))

	// Compile closes over this same snapshot for every instruction the
	// read pipeline opens, so it must stay open for the whole of Execute,
	// not just for Compile itself.
	snap := db.NewSnapshot()
	defer snap.Close()
	compiled, err := pipeline.Compile(ctx, snap, tm, things, query)
	if err != nil {
		tc.QueryComplete(0, err)
		return err
	}

	result, err := pipeline.Execute(ctx, compiled, db, tm, things, tc)
	if err != nil {
		return err
	}

	columns := make([]string, len(result.Columns))
	for i, v := range result.Columns {
		columns[i] = "$" + strconv.FormatUint(uint64(v), 10)
	}
	fmt.Println(trace.NewTableFormatter().FormatRows(columns, result.Rows))
	return nil
}
