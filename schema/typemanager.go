package schema

import (
	"context"

	"github.com/typedb/typedb-sub004/ir"
)

// Annotation is a declared or inferred constraint on a type, e.g.
// cardinality or key/unique. Opaque to the core; only its presence is
// queried by the annotator's narrowing rules.
type Annotation struct {
	Name  string
	Value string
}

// Ordering describes whether a role type's played edge is ordered
// (list-valued) or not.
type Ordering uint8

const (
	Unordered Ordering = iota
	Ordered
)

// TypeManager resolves Label -> Type and answers per-type schema queries
// against a Snapshot. All methods are read-only and take the
// snapshot explicitly so a TypeManager instance can be shared across
// concurrently-executing queries on distinct snapshots.
type TypeManager interface {
	Resolve(ctx context.Context, snap Snapshot, label ir.Label) (ir.Type, bool, error)

	GetSupertype(ctx context.Context, snap Snapshot, t ir.Type) (ir.Type, bool, error)
	GetSupertypesTransitive(ctx context.Context, snap Snapshot, t ir.Type) (*ir.TypeSet, error)
	GetSubtypes(ctx context.Context, snap Snapshot, t ir.Type) (*ir.TypeSet, error)
	GetSubtypesTransitive(ctx context.Context, snap Snapshot, t ir.Type) (*ir.TypeSet, error)

	// GetOwns returns the attribute types an entity/relation type may own.
	GetOwns(ctx context.Context, snap Snapshot, owner ir.Type) (*ir.TypeSet, error)
	GetOwnsDeclared(ctx context.Context, snap Snapshot, owner ir.Type) (*ir.TypeSet, error)

	// GetPlays returns the role types an entity/relation type may play.
	GetPlays(ctx context.Context, snap Snapshot, player ir.Type) (*ir.TypeSet, error)
	GetPlaysDeclared(ctx context.Context, snap Snapshot, player ir.Type) (*ir.TypeSet, error)

	// GetRelates returns the role types a relation type relates.
	GetRelates(ctx context.Context, snap Snapshot, relation ir.Type) (*ir.TypeSet, error)
	GetRelatesDeclared(ctx context.Context, snap Snapshot, relation ir.Type) (*ir.TypeSet, error)

	GetValueType(ctx context.Context, snap Snapshot, attr ir.Type) (ir.ValueType, bool, error)

	GetAnnotations(ctx context.Context, snap Snapshot, t ir.Type) ([]Annotation, error)
	GetAnnotationsDeclared(ctx context.Context, snap Snapshot, t ir.Type) ([]Annotation, error)

	GetRoleTypeOrdering(ctx context.Context, snap Snapshot, role ir.Type) (Ordering, error)

	// PlayersOfRole returns the owner/player types a role may be played
	// by, and RelationsOfRole returns the relation types a role belongs to
	// -- used to build the Left/Right edge-annotation tables for Links.
	PlayersOfRole(ctx context.Context, snap Snapshot, role ir.Type) (*ir.TypeSet, error)
	RelationsOfRole(ctx context.Context, snap Snapshot, role ir.Type) (*ir.TypeSet, error)

	// OwnersOfAttribute returns the types that may own attr; with GetOwns
	// it backs the Has edge tables.
	OwnersOfAttribute(ctx context.Context, snap Snapshot, attr ir.Type) (*ir.TypeSet, error)
}
