package schema

import (
	"context"

	"github.com/typedb/typedb-sub004/ir"
)

// ThingID is an opaque reference to a concrete vertex (entity, relation
// or attribute instance) in the data graph.
type ThingID []byte

// RolePlayer is one player edge of a relation instance.
type RolePlayer struct {
	Role   ir.Type
	Player ThingID
}

// ThingManager materializes attribute values and iterates relation
// role-players. Used by the reducer to read a Value out of
// a Thing(Attribute) VariableValue, and by Links instructions to expand
// a relation's role-players.
type ThingManager interface {
	// AttributeValue returns the materialized Value of an attribute
	// instance.
	AttributeValue(ctx context.Context, snap Snapshot, attr ThingID) (ir.Value, error)

	// RolePlayers returns every role-player edge of a relation instance.
	RolePlayers(ctx context.Context, snap Snapshot, relation ThingID) ([]RolePlayer, error)

	// RelationsPlayed returns every relation instance in which thing
	// plays some role, paired with that role. The reverse of
	// RolePlayers, needed to generate candidates for a Links constraint
	// whose relation endpoint is unbound but whose player is bound.
	RelationsPlayed(ctx context.Context, snap Snapshot, thing ThingID) ([]RolePlayer, error)

	// TypeOf returns the concrete type of a thing instance.
	TypeOf(ctx context.Context, snap Snapshot, thing ThingID) (ir.Type, error)

	// Attributes returns every attribute instance owner owns.
	Attributes(ctx context.Context, snap Snapshot, owner ThingID) ([]ThingID, error)

	// Owners returns every thing instance that owns attr.
	Owners(ctx context.Context, snap Snapshot, attr ThingID) ([]ThingID, error)

	// InstancesOfType returns every instance of exactly t (not its
	// subtypes), driving Isa-forward generation.
	InstancesOfType(ctx context.Context, snap Snapshot, t ir.Type) ([]ThingID, error)
}
