package storage

import (
	"context"

	"github.com/typedb/typedb-sub004/ir"
	"github.com/typedb/typedb-sub004/schema"
)

// BadgerTypeManager implements schema.TypeManager over the key scheme in
// keys.go: every edge (Sub, Owns, Plays, Relates) is stored as a direct
// declared edge plus its reverse, and the transitive variants (GetOwns,
// GetSubtypesTransitive, ...) walk the Sub lattice at query time.
type BadgerTypeManager struct{}

// NewTypeManager returns a BadgerTypeManager.
func NewTypeManager() *BadgerTypeManager { return &BadgerTypeManager{} }

var _ schema.TypeManager = (*BadgerTypeManager)(nil)

func (m *BadgerTypeManager) Resolve(ctx context.Context, snap schema.Snapshot, label ir.Label) (ir.Type, bool, error) {
	for _, kind := range []ir.TypeKind{ir.KindEntity, ir.KindRelation, ir.KindAttribute, ir.KindRole} {
		val, ok, err := snap.Get(ctx, labelLookupKey(kind, label))
		if err != nil {
			return ir.Type{}, false, err
		}
		if ok {
			return decodeTypeValue(val)
		}
	}
	return ir.Type{}, false, nil
}

func (m *BadgerTypeManager) GetSupertype(ctx context.Context, snap schema.Snapshot, t ir.Type) (ir.Type, bool, error) {
	val, ok, err := snap.Get(ctx, superKey(t))
	if err != nil || !ok {
		return ir.Type{}, false, err
	}
	decoded, err := decodeTypeValue(val)
	return decoded, err == nil, err
}

func (m *BadgerTypeManager) GetSupertypesTransitive(ctx context.Context, snap schema.Snapshot, t ir.Type) (*ir.TypeSet, error) {
	out := ir.NewTypeSet()
	cur := t
	for {
		sup, ok, err := m.GetSupertype(ctx, snap, cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out.Add(sup)
		cur = sup
	}
}

func (m *BadgerTypeManager) GetSubtypes(ctx context.Context, snap schema.Snapshot, t ir.Type) (*ir.TypeSet, error) {
	out := ir.NewTypeSet()
	cur, err := snap.IterateRange(ctx, schema.PrefixRange(schema.Key(subEdgePrefix(t))))
	if err != nil {
		return nil, err
	}
	defer cur.Close()
	prefix := subEdgePrefix(t)
	for cur.Next() {
		sub, err := trailingTypeFromKey(cur.Key(), prefix)
		if err != nil {
			return nil, err
		}
		out.Add(sub)
	}
	return out, cur.Err()
}

func (m *BadgerTypeManager) GetSubtypesTransitive(ctx context.Context, snap schema.Snapshot, t ir.Type) (*ir.TypeSet, error) {
	out := ir.NewTypeSet()
	var walk func(ir.Type) error
	walk = func(cur ir.Type) error {
		direct, err := m.GetSubtypes(ctx, snap, cur)
		if err != nil {
			return err
		}
		for _, s := range direct.Items() {
			if !out.Contains(s) {
				out.Add(s)
				if err := walk(s); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(t); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *BadgerTypeManager) GetOwnsDeclared(ctx context.Context, snap schema.Snapshot, owner ir.Type) (*ir.TypeSet, error) {
	return m.scanEdgeSet(ctx, snap, ownsPrefix(owner))
}

func (m *BadgerTypeManager) GetOwns(ctx context.Context, snap schema.Snapshot, owner ir.Type) (*ir.TypeSet, error) {
	return m.transitiveEdgeSet(ctx, snap, owner, m.GetOwnsDeclared)
}

func (m *BadgerTypeManager) GetPlaysDeclared(ctx context.Context, snap schema.Snapshot, player ir.Type) (*ir.TypeSet, error) {
	return m.scanEdgeSet(ctx, snap, playsPrefix(player))
}

func (m *BadgerTypeManager) GetPlays(ctx context.Context, snap schema.Snapshot, player ir.Type) (*ir.TypeSet, error) {
	return m.transitiveEdgeSet(ctx, snap, player, m.GetPlaysDeclared)
}

func (m *BadgerTypeManager) GetRelatesDeclared(ctx context.Context, snap schema.Snapshot, relation ir.Type) (*ir.TypeSet, error) {
	return m.scanEdgeSet(ctx, snap, relatesPrefix(relation))
}

func (m *BadgerTypeManager) GetRelates(ctx context.Context, snap schema.Snapshot, relation ir.Type) (*ir.TypeSet, error) {
	return m.transitiveEdgeSet(ctx, snap, relation, m.GetRelatesDeclared)
}

// transitiveEdgeSet unions declared(t) with declared(s) for every
// supertype s of t, matching inheritance of owns/plays/relates down the
// Sub lattice.
func (m *BadgerTypeManager) transitiveEdgeSet(ctx context.Context, snap schema.Snapshot, t ir.Type, declared func(context.Context, schema.Snapshot, ir.Type) (*ir.TypeSet, error)) (*ir.TypeSet, error) {
	out, err := declared(ctx, snap, t)
	if err != nil {
		return nil, err
	}
	supers, err := m.GetSupertypesTransitive(ctx, snap, t)
	if err != nil {
		return nil, err
	}
	for _, s := range supers.Items() {
		d, err := declared(ctx, snap, s)
		if err != nil {
			return nil, err
		}
		out = out.Union(d)
	}
	return out, nil
}

func (m *BadgerTypeManager) GetValueType(ctx context.Context, snap schema.Snapshot, attr ir.Type) (ir.ValueType, bool, error) {
	val, ok, err := snap.Get(ctx, valueTypeKey(attr))
	if err != nil || !ok || len(val) == 0 {
		return 0, false, err
	}
	return ir.ValueType(val[0]), true, nil
}

func (m *BadgerTypeManager) GetAnnotationsDeclared(ctx context.Context, snap schema.Snapshot, t ir.Type) ([]schema.Annotation, error) {
	var out []schema.Annotation
	cur, err := snap.IterateRange(ctx, schema.PrefixRange(schema.Key(annotationPrefix(t))))
	if err != nil {
		return nil, err
	}
	defer cur.Close()
	prefix := annotationPrefix(t)
	for cur.Next() {
		name, err := annotationNameFromKey(cur.Key(), prefix)
		if err != nil {
			return nil, err
		}
		out = append(out, schema.Annotation{Name: name, Value: string(cur.Value())})
	}
	return out, cur.Err()
}

func (m *BadgerTypeManager) GetAnnotations(ctx context.Context, snap schema.Snapshot, t ir.Type) ([]schema.Annotation, error) {
	out, err := m.GetAnnotationsDeclared(ctx, snap, t)
	if err != nil {
		return nil, err
	}
	supers, err := m.GetSupertypesTransitive(ctx, snap, t)
	if err != nil {
		return nil, err
	}
	for _, s := range supers.Items() {
		d, err := m.GetAnnotationsDeclared(ctx, snap, s)
		if err != nil {
			return nil, err
		}
		out = append(out, d...)
	}
	return out, nil
}

func (m *BadgerTypeManager) GetRoleTypeOrdering(ctx context.Context, snap schema.Snapshot, role ir.Type) (schema.Ordering, error) {
	val, ok, err := snap.Get(ctx, orderingKey(role))
	if err != nil || !ok || len(val) == 0 {
		return schema.Unordered, err
	}
	return schema.Ordering(val[0]), nil
}

func (m *BadgerTypeManager) PlayersOfRole(ctx context.Context, snap schema.Snapshot, role ir.Type) (*ir.TypeSet, error) {
	return m.scanEdgeSet(ctx, snap, playsRevPrefix(role))
}

func (m *BadgerTypeManager) RelationsOfRole(ctx context.Context, snap schema.Snapshot, role ir.Type) (*ir.TypeSet, error) {
	return m.scanEdgeSet(ctx, snap, relatesRevPrefix(role))
}

func (m *BadgerTypeManager) OwnersOfAttribute(ctx context.Context, snap schema.Snapshot, attr ir.Type) (*ir.TypeSet, error) {
	return m.scanEdgeSet(ctx, snap, ownsRevPrefix(attr))
}

// scanEdgeSet scans every key under prefix and decodes its trailing
// component (the typeKey segment right after the prefix) as an
// ir.Type, collecting the results into a TypeSet.
func (m *BadgerTypeManager) scanEdgeSet(ctx context.Context, snap schema.Snapshot, prefix []byte) (*ir.TypeSet, error) {
	out := ir.NewTypeSet()
	cur, err := snap.IterateRange(ctx, schema.PrefixRange(schema.Key(prefix)))
	if err != nil {
		return nil, err
	}
	defer cur.Close()
	for cur.Next() {
		t, err := trailingTypeFromKey(cur.Key(), prefix)
		if err != nil {
			return nil, err
		}
		out.Add(t)
	}
	return out, cur.Err()
}
