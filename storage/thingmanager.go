package storage

import (
	"context"
	"fmt"

	"github.com/typedb/typedb-sub004/ir"
	"github.com/typedb/typedb-sub004/schema"
)

// BadgerThingManager implements schema.ThingManager over the data keys
// in keys.go: each thing instance's concrete type lives under
// tagThingType, attribute values under tagAttrValue, and relation
// role-players under tagRolePlayer keyed by relation id.
type BadgerThingManager struct{}

// NewThingManager returns a BadgerThingManager.
func NewThingManager() *BadgerThingManager { return &BadgerThingManager{} }

var _ schema.ThingManager = (*BadgerThingManager)(nil)

// AttributeValue implements schema.ThingManager.
func (m *BadgerThingManager) AttributeValue(ctx context.Context, snap schema.Snapshot, attr schema.ThingID) (ir.Value, error) {
	val, ok, err := snap.Get(ctx, attrValueKey(attr))
	if err != nil {
		return ir.Value{}, err
	}
	if !ok {
		return ir.Value{}, fmt.Errorf("storage: no attribute value for thing %x", attr)
	}
	return decodeValue(val)
}

// RolePlayers implements schema.ThingManager.
func (m *BadgerThingManager) RolePlayers(ctx context.Context, snap schema.Snapshot, relation schema.ThingID) ([]schema.RolePlayer, error) {
	prefix := rolePlayerPrefix(relation)
	cur, err := snap.IterateRange(ctx, schema.PrefixRange(schema.Key(prefix)))
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var out []schema.RolePlayer
	for cur.Next() {
		role, player, err := rolePlayerFromKey(cur.Key(), prefix)
		if err != nil {
			return nil, err
		}
		out = append(out, schema.RolePlayer{Role: role, Player: player})
	}
	return out, cur.Err()
}

// TypeOf implements schema.ThingManager.
func (m *BadgerThingManager) TypeOf(ctx context.Context, snap schema.Snapshot, thing schema.ThingID) (ir.Type, error) {
	val, ok, err := snap.Get(ctx, thingTypeKey(thing))
	if err != nil {
		return ir.Type{}, err
	}
	if !ok {
		return ir.Type{}, fmt.Errorf("storage: no type recorded for thing %x", thing)
	}
	return decodeTypeValue(val)
}

// RelationsPlayed implements schema.ThingManager, scanning the reverse
// of RolePlayers' index.
func (m *BadgerThingManager) RelationsPlayed(ctx context.Context, snap schema.Snapshot, thing schema.ThingID) ([]schema.RolePlayer, error) {
	prefix := playerRolePrefix(thing)
	cur, err := snap.IterateRange(ctx, schema.PrefixRange(schema.Key(prefix)))
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var out []schema.RolePlayer
	for cur.Next() {
		role, relation, err := playerRoleFromKey(cur.Key(), prefix)
		if err != nil {
			return nil, err
		}
		out = append(out, schema.RolePlayer{Role: role, Player: relation})
	}
	return out, cur.Err()
}

// Attributes implements schema.ThingManager.
func (m *BadgerThingManager) Attributes(ctx context.Context, snap schema.Snapshot, owner schema.ThingID) ([]schema.ThingID, error) {
	prefix := hasPrefix(owner)
	cur, err := snap.IterateRange(ctx, schema.PrefixRange(schema.Key(prefix)))
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var out []schema.ThingID
	for cur.Next() {
		out = append(out, thingIDFromKey(cur.Key(), prefix))
	}
	return out, cur.Err()
}

// Owners implements schema.ThingManager.
func (m *BadgerThingManager) Owners(ctx context.Context, snap schema.Snapshot, attr schema.ThingID) ([]schema.ThingID, error) {
	prefix := hasRevPrefix(attr)
	cur, err := snap.IterateRange(ctx, schema.PrefixRange(schema.Key(prefix)))
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var out []schema.ThingID
	for cur.Next() {
		out = append(out, thingIDFromKey(cur.Key(), prefix))
	}
	return out, cur.Err()
}

// InstancesOfType implements schema.ThingManager, scanning the reverse
// of TypeOf's index.
func (m *BadgerThingManager) InstancesOfType(ctx context.Context, snap schema.Snapshot, t ir.Type) ([]schema.ThingID, error) {
	prefix := typeInstancePrefix(t)
	cur, err := snap.IterateRange(ctx, schema.PrefixRange(schema.Key(prefix)))
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var out []schema.ThingID
	for cur.Next() {
		out = append(out, thingIDFromKey(cur.Key(), prefix))
	}
	return out, cur.Err()
}
