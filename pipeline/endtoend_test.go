package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/typedb/typedb-sub004/ir"
	"github.com/typedb/typedb-sub004/irtext"
	"github.com/typedb/typedb-sub004/pipeline"
	"github.com/typedb/typedb-sub004/storage"
)

var (
	personType = ir.Type{Kind: ir.KindEntity, Label: ir.Label{Name: "person"}}
	ageType    = ir.Type{Kind: ir.KindAttribute, Label: ir.Label{Name: "age"}}
)

func openSchemaDB(t *testing.T) *storage.Database {
	t.Helper()
	db, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	txn := db.BeginTransaction()
	loader := storage.NewLoader(txn)
	require.NoError(t, loader.DefineType(personType))
	require.NoError(t, loader.DefineType(ageType))
	require.NoError(t, loader.DefineValueType(ageType, ir.ValueTypeLong))
	require.NoError(t, loader.DefineOwns(personType, ageType))
	require.NoError(t, txn.Commit())
	return db
}

func putPerson(t *testing.T, db *storage.Database, age int64) {
	t.Helper()
	txn := db.BeginTransaction()
	loader := storage.NewLoader(txn)
	p := storage.NewThingID()
	a := storage.NewThingID()
	require.NoError(t, loader.PutThing(p, personType))
	require.NoError(t, loader.PutThing(a, ageType))
	require.NoError(t, loader.PutAttributeValue(a, ir.Value{Type: ir.ValueTypeLong, Long: age}))
	require.NoError(t, loader.PutHas(p, a))
	require.NoError(t, txn.Commit())
}

func run(t *testing.T, db *storage.Database, query string) *pipeline.Result {
	t.Helper()
	ctx := context.Background()
	tm := storage.NewTypeManager()
	things := storage.NewThingManager()

	pl, err := irtext.Parse(query)
	require.NoError(t, err)

	snap := db.NewSnapshot()
	defer snap.Close()

	compiled, err := pipeline.Compile(ctx, snap, tm, things, pl)
	require.NoError(t, err)

	result, err := pipeline.Execute(ctx, compiled, db, tm, things, nil)
	require.NoError(t, err)
	return result
}

const matchSortLimitQuery = `
(pipeline
  (stages
    (match
      (isa $p (label entity "person"))
      (isa $a (label attribute "age"))
      (has $p $a)
      (expr (assign $v) $a))
    (select $p $v)
    (sort (asc $v))
    (limit 2)))
`

func TestEndToEndMatchSortLimit(t *testing.T) {
	db := openSchemaDB(t)
	putPerson(t, db, 20)
	putPerson(t, db, 30)
	putPerson(t, db, 40)
	putPerson(t, db, 50)

	result := run(t, db, matchSortLimitQuery)
	require.Len(t, result.Rows, 2)
	require.Len(t, result.Columns, 2) // select $p $v, in that order

	require.Equal(t, int64(20), result.Rows[0].Get(1).Value.Long)
	require.Equal(t, int64(30), result.Rows[1].Get(1).Value.Long)
}

const insertQuery = `
(pipeline
  (parameters (long 99))
  (stages
    (insert
      (isa $p (label entity "person"))
      (isa $a (label attribute "age"))
      (cmp eq $a (param 0))
      (has $p $a))))
`

const countAllQuery = `
(pipeline
  (stages
    (match
      (isa $p (label entity "person"))
      (isa $a (label attribute "age"))
      (has $p $a))
    (reduce (group) (assign $cnt count))))
`

func TestEndToEndInsertThenCount(t *testing.T) {
	db := openSchemaDB(t)
	putPerson(t, db, 10)

	before := run(t, db, countAllQuery)
	require.Len(t, before.Rows, 1)
	require.Equal(t, int64(1), before.Rows[0].Get(0).Value.Long)

	run(t, db, insertQuery)

	after := run(t, db, countAllQuery)
	require.Len(t, after.Rows, 1)
	require.Equal(t, int64(2), after.Rows[0].Get(0).Value.Long)
}

// Delete's own block only ever removes edges/instances for variables a
// preceding match stage already bound -- its own isa/has forms are not
// re-matched the way a match stage's are, so one fact found by the
// leading match is removed by name here.
const deleteOneQuery = `
(pipeline
  (stages
    (match
      (isa $p (label entity "person"))
      (isa $a (label attribute "age"))
      (has $p $a))
    (limit 1)
    (delete (vars $p $a)
      (has $p $a))))
`

func TestEndToEndDelete(t *testing.T) {
	db := openSchemaDB(t)
	putPerson(t, db, 5)
	putPerson(t, db, 60)

	run(t, db, deleteOneQuery)

	left := run(t, db, countAllQuery)
	require.Len(t, left.Rows, 1)
	require.Equal(t, int64(1), left.Rows[0].Get(0).Value.Long)
}

const exprFilterQuery = `
(pipeline
  (parameters (long 25))
  (stages
    (match
      (isa $p (label entity "person"))
      (isa $a (label attribute "age"))
      (has $p $a)
      (expr (assign $v) $a)
      (cmp gte $v (param 0)))
    (select $p $v)
    (sort (asc $v))))
`

// Filtering on an attribute's value has to go through an expression
// binding ((expr (assign $v) $a)) rather than a bare cmp on $a directly:
// $a holds the attribute instance, not its scalar value, until something
// dereferences it. $v is what a raw cmp can actually compare.
func TestEndToEndExpressionFilter(t *testing.T) {
	db := openSchemaDB(t)
	putPerson(t, db, 10)
	putPerson(t, db, 25)
	putPerson(t, db, 40)

	result := run(t, db, exprFilterQuery)
	require.Len(t, result.Rows, 2)
	require.Equal(t, int64(25), result.Rows[0].Get(1).Value.Long)
	require.Equal(t, int64(40), result.Rows[1].Get(1).Value.Long)
}

const sumQuery = `
(pipeline
  (stages
    (match
      (isa $p (label entity "person"))
      (isa $a (label attribute "age"))
      (has $p $a))
    (reduce (group) (assign $total sum $a))))
`

func TestEndToEndReduceSum(t *testing.T) {
	db := openSchemaDB(t)
	putPerson(t, db, 10)
	putPerson(t, db, 20)
	putPerson(t, db, 30)

	result := run(t, db, sumQuery)
	require.Len(t, result.Rows, 1)
	require.Equal(t, int64(60), result.Rows[0].Get(0).Value.Long)
}
