package pipeline

import (
	"context"
	"fmt"

	"github.com/typedb/typedb-sub004/ir"
	"github.com/typedb/typedb-sub004/schema"
	"github.com/typedb/typedb-sub004/storage"
	"github.com/typedb/typedb-sub004/tuple"
)

// mutationContext bundles everything applyInsert/applyDelete need beyond
// one row: the schema/thing managers to resolve labels and thing types,
// the parameter pool an Insert block's literal attribute values come
// from, and spec itself for its Block/Positions/DeletedVariables.
type mutationContext struct {
	tm     schema.TypeManager
	things schema.ThingManager
	snap   schema.Snapshot
	params map[ir.Parameter]ir.Value
	spec   *MutationSpec
}

// runMutation applies spec's Insert or Delete block once per row of the
// read pipeline's final result set, inside a single write transaction.
// Variables an Insert block introduces (new entity/relation/attribute
// instances) get a fresh schema.ThingID minted per row; rows share no
// state, so a variable bound by an earlier Match stage is read straight
// out of the row at its recorded position.
func runMutation(ctx context.Context, db *storage.Database, tm schema.TypeManager, things schema.ThingManager, params map[ir.Parameter]ir.Value, rows []*tuple.Row, spec *MutationSpec) error {
	txn := db.BeginTransaction()
	loader := storage.NewLoader(txn)
	snap := db.NewSnapshot()
	defer snap.Close()

	mc := &mutationContext{tm: tm, things: things, snap: snap, params: params, spec: spec}

	for _, row := range rows {
		var err error
		switch spec.Kind {
		case ir.StageInsert:
			err = applyInsert(ctx, loader, mc, row)
		case ir.StageDelete:
			err = applyDelete(ctx, loader, mc, row)
		default:
			err = fmt.Errorf("pipeline: mutation stage kind %d is not insert or delete", spec.Kind)
		}
		if err != nil {
			txn.Discard()
			return err
		}
	}
	return txn.Commit()
}

// resolveVertex reads one constraint vertex's VariableValue: a Variable
// comes straight out of row at its recorded position, a Label resolves
// against the schema, and a bare Parameter is rejected since no edge
// endpoint (owner/attribute/relation/player/role) is ever a raw constant.
func resolveVertex(ctx context.Context, mc *mutationContext, row *tuple.Row, v ir.Vertex) (tuple.VariableValue, error) {
	switch v.Kind {
	case ir.VertexVariable:
		pos, ok := mc.spec.Positions[v.Variable]
		if !ok {
			return tuple.VariableValue{}, fmt.Errorf("pipeline: mutation references unbound variable %d", v.Variable)
		}
		return row.Get(pos), nil
	case ir.VertexLabel:
		t, ok, err := mc.tm.Resolve(ctx, mc.snap, v.Label)
		if err != nil {
			return tuple.VariableValue{}, err
		}
		if !ok {
			return tuple.VariableValue{}, fmt.Errorf("pipeline: unresolved label %s", v.Label.String())
		}
		return tuple.VariableValue{Kind: tuple.ValueType, Type: t}, nil
	default:
		return tuple.VariableValue{}, fmt.Errorf("pipeline: vertex kind %d cannot stand in for an edge endpoint", v.Kind)
	}
}

// applyInsert walks block.Constraints in two passes: first minting a
// fresh ThingID (and, for an attribute, its value from a paired
// Comparison against a Parameter) for every Isa constraint whose left
// variable is not already bound by an earlier Match stage, writing the
// result back into row so later constraints in the same block (Has,
// Links) see it; then recording every Has/Links edge.
func applyInsert(ctx context.Context, loader *storage.Loader, mc *mutationContext, row *tuple.Row) error {
	block := mc.spec.Block
	for i := range block.Constraints {
		c := &block.Constraints[i]
		if c.Kind != ir.ConstraintIsa {
			continue
		}
		pos, ok := mc.spec.Positions[c.Edge.Left.Variable]
		if !ok {
			return fmt.Errorf("pipeline: insert isa references unbound variable %d", c.Edge.Left.Variable)
		}
		if row.Get(pos).Kind != tuple.ValueEmpty {
			continue // already bound by an earlier Match stage; nothing to insert
		}
		typeVal, err := resolveVertex(ctx, mc, row, c.Edge.Right)
		if err != nil {
			return err
		}
		id := storage.NewThingID()
		if err := loader.PutThing(id, typeVal.Type); err != nil {
			return err
		}
		if typeVal.Type.Kind == ir.KindAttribute {
			val, err := insertedAttributeValue(block, mc.params, c.Edge.Left.Variable)
			if err != nil {
				return err
			}
			if err := loader.PutAttributeValue(id, val); err != nil {
				return err
			}
		}
		row.Set(pos, tuple.VariableValue{Kind: tuple.ValueThing, Thing: id})
	}

	for i := range block.Constraints {
		c := &block.Constraints[i]
		switch c.Kind {
		case ir.ConstraintHas:
			owner, err := resolveVertex(ctx, mc, row, c.Edge.Left)
			if err != nil {
				return err
			}
			attr, err := resolveVertex(ctx, mc, row, c.Edge.Right)
			if err != nil {
				return err
			}
			if err := loader.PutHas(owner.Thing, attr.Thing); err != nil {
				return err
			}
		case ir.ConstraintLinks:
			relation, err := resolveVertex(ctx, mc, row, c.Edge.Left)
			if err != nil {
				return err
			}
			player, err := resolveVertex(ctx, mc, row, c.Edge.Right)
			if err != nil {
				return err
			}
			role, err := resolveVertex(ctx, mc, row, c.Edge.RoleType)
			if err != nil {
				return err
			}
			if err := loader.PutRolePlayer(relation.Thing, role.Type, player.Thing); err != nil {
				return err
			}
		}
	}
	return nil
}

// insertedAttributeValue finds the Comparison constraint pairing assigned
// (a freshly-inserted attribute variable) against a Parameter vertex,
// which is how an Insert block supplies a literal attribute value: a
// fully general expression-valued insert is out of scope.
func insertedAttributeValue(block *ir.Block, params map[ir.Parameter]ir.Value, assigned ir.Variable) (ir.Value, error) {
	for i := range block.Constraints {
		c := &block.Constraints[i]
		if c.Kind != ir.ConstraintComparison || c.Comparison.Op != ir.CompareEQ {
			continue
		}
		cmp := c.Comparison
		if cmp.Left.IsVariable() && cmp.Left.Variable == assigned && cmp.Right.Kind == ir.VertexParameter {
			val, ok := params[cmp.Right.Parameter]
			if !ok {
				return ir.Value{}, fmt.Errorf("pipeline: unbound parameter #%d for inserted attribute %d", cmp.Right.Parameter, assigned)
			}
			return val, nil
		}
	}
	return ir.Value{}, fmt.Errorf("pipeline: insert attribute %d has no paired value comparison", assigned)
}

// applyDelete removes the edges a Delete block's Has/Links constraints
// name, then removes the instance record itself for every variable in
// DeletedVariables.
func applyDelete(ctx context.Context, loader *storage.Loader, mc *mutationContext, row *tuple.Row) error {
	block := mc.spec.Block
	for i := range block.Constraints {
		c := &block.Constraints[i]
		switch c.Kind {
		case ir.ConstraintHas:
			owner, err := resolveVertex(ctx, mc, row, c.Edge.Left)
			if err != nil {
				return err
			}
			attr, err := resolveVertex(ctx, mc, row, c.Edge.Right)
			if err != nil {
				return err
			}
			if err := loader.RemoveHas(owner.Thing, attr.Thing); err != nil {
				return err
			}
		case ir.ConstraintLinks:
			relation, err := resolveVertex(ctx, mc, row, c.Edge.Left)
			if err != nil {
				return err
			}
			player, err := resolveVertex(ctx, mc, row, c.Edge.Right)
			if err != nil {
				return err
			}
			role, err := resolveVertex(ctx, mc, row, c.Edge.RoleType)
			if err != nil {
				return err
			}
			if err := loader.RemoveRolePlayer(relation.Thing, role.Type, player.Thing); err != nil {
				return err
			}
		}
	}

	for _, v := range mc.spec.DeletedVariables {
		pos, ok := mc.spec.Positions[v]
		if !ok {
			continue
		}
		val := row.Get(pos)
		if val.Kind != tuple.ValueThing {
			continue
		}
		t, err := mc.things.TypeOf(ctx, mc.snap, val.Thing)
		if err != nil {
			return err
		}
		if err := loader.RemoveThing(val.Thing, t); err != nil {
			return err
		}
	}
	return nil
}
