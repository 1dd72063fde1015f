package storage

import (
	"github.com/typedb/typedb-sub004/ir"
	"github.com/typedb/typedb-sub004/schema"
)

// Loader writes schema and data records through a Transaction using the
// key scheme in keys.go, keeping that encoding private to this package.
// Package pipeline's write stages and tests are the callers.
type Loader struct {
	txn *Transaction
}

// NewLoader wraps txn for schema/data loading.
func NewLoader(txn *Transaction) *Loader { return &Loader{txn: txn} }

// DefineType records t under its label lookup key, so Resolve can find
// it, plus the reverse lookup payload decodeTypeValue expects.
func (l *Loader) DefineType(t ir.Type) error {
	return l.txn.Put(labelLookupKey(t.Kind, t.Label), typeKey(t))
}

// DefineSub records sub as a direct subtype of super, both directions.
func (l *Loader) DefineSub(super, sub ir.Type) error {
	if err := l.txn.Put(superKey(sub), typeKey(super)); err != nil {
		return err
	}
	return l.txn.Put(subEdgeKey(super, sub), nil)
}

// DefineOwns records that owner owns attr, both directions.
func (l *Loader) DefineOwns(owner, attr ir.Type) error {
	if err := l.txn.Put(ownsKey(owner, attr), nil); err != nil {
		return err
	}
	return l.txn.Put(ownsRevKey(attr, owner), nil)
}

// DefinePlays records that player plays role, both directions.
func (l *Loader) DefinePlays(player, role ir.Type) error {
	if err := l.txn.Put(playsKey(player, role), nil); err != nil {
		return err
	}
	return l.txn.Put(playsRevKey(role, player), nil)
}

// DefineRelates records that relation relates role, both directions.
func (l *Loader) DefineRelates(relation, role ir.Type) error {
	if err := l.txn.Put(relatesKey(relation, role), nil); err != nil {
		return err
	}
	return l.txn.Put(relatesRevKey(role, relation), nil)
}

// DefineValueType records attr's value type.
func (l *Loader) DefineValueType(attr ir.Type, vt ir.ValueType) error {
	return l.txn.Put(valueTypeKey(attr), []byte{byte(vt)})
}

// DefineAnnotation records one schema.Annotation on t.
func (l *Loader) DefineAnnotation(t ir.Type, name, value string) error {
	return l.txn.Put(annotationKey(t, name), []byte(value))
}

// DefineOrdering records role's player-list ordering.
func (l *Loader) DefineOrdering(role ir.Type, ordering schema.Ordering) error {
	return l.txn.Put(orderingKey(role), []byte{byte(ordering)})
}

// PutThing records a new entity/relation/attribute instance's concrete
// type, including the reverse type->instances index Isa scans read.
func (l *Loader) PutThing(id schema.ThingID, t ir.Type) error {
	if err := l.txn.Put(thingTypeKey(id), typeKey(t)); err != nil {
		return err
	}
	return l.txn.Put(typeInstanceKey(t, id), nil)
}

// PutAttributeValue records an attribute instance's materialized value.
func (l *Loader) PutAttributeValue(id schema.ThingID, v ir.Value) error {
	return l.txn.Put(attrValueKey(id), encodeValue(v))
}

// PutRolePlayer records one role-player edge of a relation instance,
// both directions: relation->player for RolePlayers and player->relation
// for RelationsPlayed.
func (l *Loader) PutRolePlayer(relation schema.ThingID, role ir.Type, player schema.ThingID) error {
	if err := l.txn.Put(rolePlayerKey(relation, role, player), nil); err != nil {
		return err
	}
	return l.txn.Put(playerRoleKey(player, role, relation), nil)
}

// PutHas records an ownership edge between an owner thing and an
// attribute instance, both directions.
func (l *Loader) PutHas(owner, attr schema.ThingID) error {
	if err := l.txn.Put(hasKey(owner, attr), nil); err != nil {
		return err
	}
	return l.txn.Put(hasRevKey(attr, owner), nil)
}

// RemoveThing deletes an instance's concrete-type record and the
// reverse type->instances index entry Isa scans read, undoing PutThing.
// It does not cascade into the instance's has/links edges; callers that
// delete an instance entirely are expected to remove those edges first.
func (l *Loader) RemoveThing(id schema.ThingID, t ir.Type) error {
	if err := l.txn.Delete(thingTypeKey(id)); err != nil {
		return err
	}
	return l.txn.Delete(typeInstanceKey(t, id))
}

// RemoveHas deletes an ownership edge, both directions, undoing PutHas.
func (l *Loader) RemoveHas(owner, attr schema.ThingID) error {
	if err := l.txn.Delete(hasKey(owner, attr)); err != nil {
		return err
	}
	return l.txn.Delete(hasRevKey(attr, owner))
}

// RemoveRolePlayer deletes one role-player edge, both directions, undoing
// PutRolePlayer.
func (l *Loader) RemoveRolePlayer(relation schema.ThingID, role ir.Type, player schema.ThingID) error {
	if err := l.txn.Delete(rolePlayerKey(relation, role, player)); err != nil {
		return err
	}
	return l.txn.Delete(playerRoleKey(player, role, relation))
}
