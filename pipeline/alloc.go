package pipeline

import (
	"github.com/typedb/typedb-sub004/ir"
	"github.com/typedb/typedb-sub004/tuple"
)

// posAllocator assigns each ir.Variable a stable tuple.VariablePosition
// within one row shape, growing lazily as new variables are first seen.
// tuple.Row.Get/Set index their backing slice directly with no bounds
// growth, so every row built against this allocator's positions must be
// sized to at least width -- the reason compilation always finishes
// assigning positions for a scope before any row is allocated against it.
type posAllocator struct {
	pos   map[ir.Variable]tuple.VariablePosition
	width int
}

func newPosAllocator() *posAllocator {
	return &posAllocator{pos: map[ir.Variable]tuple.VariablePosition{}}
}

// get returns v's position, assigning the next free one on first sight.
func (a *posAllocator) get(v ir.Variable) tuple.VariablePosition {
	if p, ok := a.pos[v]; ok {
		return p
	}
	p := tuple.VariablePosition(a.width)
	a.pos[v] = p
	a.width++
	return p
}

// positions returns a snapshot of the current variable->position map.
// Safe to call after compilation of the scope this allocator belongs to
// has finished, since width and every position are then frozen.
func (a *posAllocator) positions() map[ir.Variable]tuple.VariablePosition {
	out := make(map[ir.Variable]tuple.VariablePosition, len(a.pos))
	for v, p := range a.pos {
		out[v] = p
	}
	return out
}

// registerConstraint calls get on every variable vertex c references, so a
// block's full variable set is known (and its positions stable) before
// any instruction referencing it is compiled.
func (a *posAllocator) registerConstraint(c ir.Constraint) {
	for _, v := range c.Vertices() {
		if v.IsVariable() {
			a.get(v.Variable)
		}
	}
}

// registerBlock walks block and every nested sub-block that shares this
// allocator's row space (everything except an InlinedFunction's Inner,
// which has its own local allocator), registering every variable.
func (a *posAllocator) registerBlock(block *ir.Block) {
	for _, c := range block.Constraints {
		a.registerConstraint(c)
	}
	for _, np := range block.Nested {
		for _, b := range np.Branches {
			a.registerBlock(b)
		}
		if np.Kind != ir.NestedInlinedFunction && np.Inner != nil {
			a.registerBlock(np.Inner)
		}
		if np.Kind == ir.NestedInlinedFunction {
			// ArgMapping keys and ReturnMapping values are outer-block
			// variables; ArgMapping values and ReturnMapping keys belong
			// to the callee's own local allocator instead.
			for outer := range np.ArgMapping {
				a.get(outer)
			}
			for _, outer := range np.ReturnMapping {
				a.get(outer)
			}
		}
	}
}
