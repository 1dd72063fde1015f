package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/typedb/typedb-sub004/ir"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var (
	personType   = ir.Type{Kind: ir.KindEntity, Label: ir.Label{Name: "person"}}
	nameType     = ir.Type{Kind: ir.KindAttribute, Label: ir.Label{Name: "name"}}
	friendship   = ir.Type{Kind: ir.KindRelation, Label: ir.Label{Name: "friendship"}}
	friendRole   = ir.Type{Kind: ir.KindRole, Label: ir.Label{Scope: "friendship", Name: "friend"}}
)

func defineSchema(t *testing.T, loader *Loader) {
	t.Helper()
	require.NoError(t, loader.DefineType(personType))
	require.NoError(t, loader.DefineType(nameType))
	require.NoError(t, loader.DefineType(friendship))
	require.NoError(t, loader.DefineType(friendRole))
	require.NoError(t, loader.DefineValueType(nameType, ir.ValueTypeString))
	require.NoError(t, loader.DefineOwns(personType, nameType))
	require.NoError(t, loader.DefineRelates(friendship, friendRole))
	require.NoError(t, loader.DefinePlays(personType, friendRole))
}

func TestTypeManagerResolveAndSchemaEdges(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	txn := db.BeginTransaction()
	defineSchema(t, NewLoader(txn))
	require.NoError(t, txn.Commit())

	snap := db.NewSnapshot()
	defer snap.Close()
	tm := NewTypeManager()

	got, ok, err := tm.Resolve(ctx, snap, personType.Label)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, personType, got)

	owns, err := tm.GetOwnsDeclared(ctx, snap, personType)
	require.NoError(t, err)
	require.True(t, owns.Contains(nameType))

	vt, ok, err := tm.GetValueType(ctx, snap, nameType)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ir.ValueTypeString, vt)

	plays, err := tm.GetPlaysDeclared(ctx, snap, personType)
	require.NoError(t, err)
	require.True(t, plays.Contains(friendRole))
}

func TestThingManagerRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	txn := db.BeginTransaction()
	loader := NewLoader(txn)
	defineSchema(t, loader)

	alice := NewThingID()
	bob := NewThingID()
	aliceName := NewThingID()
	bond := NewThingID()

	require.NoError(t, loader.PutThing(alice, personType))
	require.NoError(t, loader.PutThing(bob, personType))
	require.NoError(t, loader.PutThing(aliceName, nameType))
	require.NoError(t, loader.PutAttributeValue(aliceName, ir.Value{Type: ir.ValueTypeString, Str: "Alice"}))
	require.NoError(t, loader.PutHas(alice, aliceName))
	require.NoError(t, loader.PutThing(bond, friendship))
	require.NoError(t, loader.PutRolePlayer(bond, friendRole, alice))
	require.NoError(t, loader.PutRolePlayer(bond, friendRole, bob))
	require.NoError(t, txn.Commit())

	snap := db.NewSnapshot()
	things := NewThingManager()

	typ, err := things.TypeOf(ctx, snap, alice)
	require.NoError(t, err)
	require.Equal(t, personType, typ)

	attrs, err := things.Attributes(ctx, snap, alice)
	require.NoError(t, err)
	require.ElementsMatch(t, []interface{}{aliceName}, toAny(attrs))

	owners, err := things.Owners(ctx, snap, aliceName)
	require.NoError(t, err)
	require.ElementsMatch(t, []interface{}{alice}, toAny(owners))

	val, err := things.AttributeValue(ctx, snap, aliceName)
	require.NoError(t, err)
	require.Equal(t, "Alice", val.Str)

	players, err := things.RolePlayers(ctx, snap, bond)
	require.NoError(t, err)
	require.Len(t, players, 2)

	played, err := things.RelationsPlayed(ctx, snap, alice)
	require.NoError(t, err)
	require.Len(t, played, 1)
	require.Equal(t, bond, played[0].Player)

	instances, err := things.InstancesOfType(ctx, snap, personType)
	require.NoError(t, err)
	require.ElementsMatch(t, []interface{}{alice, bob}, toAny(instances))
	snap.Close()

	// Delete removes the edges and then the instance itself.
	txn = db.BeginTransaction()
	loader = NewLoader(txn)
	require.NoError(t, loader.RemoveRolePlayer(bond, friendRole, bob))
	require.NoError(t, loader.RemoveHas(alice, aliceName))
	require.NoError(t, loader.RemoveThing(aliceName, nameType))
	require.NoError(t, txn.Commit())

	snap = db.NewSnapshot()
	defer snap.Close()

	attrs, err = things.Attributes(ctx, snap, alice)
	require.NoError(t, err)
	require.Empty(t, attrs)

	players, err = things.RolePlayers(ctx, snap, bond)
	require.NoError(t, err)
	require.Len(t, players, 1)
	require.Equal(t, alice, players[0].Player)
}

func toAny[T any](xs []T) []interface{} {
	out := make([]interface{}, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}
