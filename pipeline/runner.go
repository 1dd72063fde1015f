// Package pipeline compiles an annotated ir.Pipeline into executable
// steps and drives them to produce rows: it supplies the InstructionRunner
// seam package exec defines, the tabled.TabledFunctions build function,
// and the expression-binding evaluator exprcompile leaves unimplemented.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/typedb/typedb-sub004/exec"
	"github.com/typedb/typedb-sub004/exprcompile"
	"github.com/typedb/typedb-sub004/ir"
	"github.com/typedb/typedb-sub004/iter"
	"github.com/typedb/typedb-sub004/plan"
	"github.com/typedb/typedb-sub004/schema"
	"github.com/typedb/typedb-sub004/tuple"
)

// ErrUnsupportedInstruction marks an InstructionKind the runner
// deliberately does not execute: As/AsReverse (role-subtyping has no
// storage representation in this module) and every ComparisonGenerator
// direction except equality (only equality has a finite, directly
// computable candidate; <, >, etc. would require a value index this
// module's compact schema does not keep).
var ErrUnsupportedInstruction = fmt.Errorf("pipeline: unsupported instruction kind")

// badgerRunner implements exec.InstructionRunner over a schema.Snapshot,
// resolving each planned ConstraintInstruction by inspecting which of its
// vertices already carry a value in the input row (rather than trusting
// the plan's forward/reverse Kind split at runtime): a Label or Parameter
// vertex is always treated as bound, a Variable vertex is bound exactly
// when the row's value at its position is not tuple.ValueEmpty. This
// collapses every forward/reverse instruction pair into one direction-
// agnostic generate-or-check function.
type badgerRunner struct {
	snap   schema.Snapshot
	tm     schema.TypeManager
	things schema.ThingManager
	pos    map[ir.Variable]tuple.VariablePosition
	params map[ir.Parameter]ir.Value

	labelCache  map[ir.Label]ir.Type
	expressions map[*ir.ExpressionBinding]*exprcompile.CompiledExpression
}

func newBadgerRunner(snap schema.Snapshot, tm schema.TypeManager, things schema.ThingManager, pos map[ir.Variable]tuple.VariablePosition, params map[ir.Parameter]ir.Value, expressions map[*ir.ExpressionBinding]*exprcompile.CompiledExpression) *badgerRunner {
	return &badgerRunner{
		snap:        snap,
		tm:          tm,
		things:      things,
		pos:         pos,
		params:      params,
		labelCache:  map[ir.Label]ir.Type{},
		expressions: expressions,
	}
}

func (r *badgerRunner) resolveLabel(ctx context.Context, l ir.Label) (ir.Type, error) {
	if t, ok := r.labelCache[l]; ok {
		return t, nil
	}
	t, ok, err := r.tm.Resolve(ctx, r.snap, l)
	if err != nil {
		return ir.Type{}, err
	}
	if !ok {
		return ir.Type{}, fmt.Errorf("pipeline: unresolved label %s", l.String())
	}
	r.labelCache[l] = t
	return t, nil
}

// vertexState reports whether v already carries a value and, if so, what
// it is: a Label resolves to its schema Type, a Parameter resolves
// through params, a Variable is read out of row at its planned position.
func (r *badgerRunner) vertexState(ctx context.Context, row *tuple.Row, v ir.Vertex) (bool, tuple.VariableValue, error) {
	switch v.Kind {
	case ir.VertexLabel:
		t, err := r.resolveLabel(ctx, v.Label)
		if err != nil {
			return false, tuple.VariableValue{}, err
		}
		return true, tuple.VariableValue{Kind: tuple.ValueType, Type: t}, nil
	case ir.VertexParameter:
		val, ok := r.params[v.Parameter]
		if !ok {
			return false, tuple.VariableValue{}, fmt.Errorf("pipeline: unbound parameter #%d", v.Parameter)
		}
		return true, tuple.VariableValue{Kind: tuple.ValueValue, Value: val}, nil
	default:
		pos, ok := r.pos[v.Variable]
		if !ok {
			return false, tuple.VariableValue{}, fmt.Errorf("pipeline: variable $%d has no assigned position", v.Variable)
		}
		val := row.Get(pos)
		return val.Kind != tuple.ValueEmpty, val, nil
	}
}

// candidate is one generated (left, right[, role]) row before checks.
type candidate struct {
	left, right, role tuple.VariableValue
	hasRole           bool
}

func (r *badgerRunner) subtypeClosure(ctx context.Context, t ir.Type) ([]ir.Type, error) {
	subs, err := r.tm.GetSubtypesTransitive(ctx, r.snap, t)
	if err != nil {
		return nil, err
	}
	out := append([]ir.Type{t}, subs.Items()...)
	return out, nil
}

// Open implements exec.InstructionRunner.
func (r *badgerRunner) Open(ctx context.Context, instr *plan.ConstraintInstruction, input *tuple.Row) (exec.Source, tuple.TuplePositions, error) {
	switch instr.Kind {
	case plan.InstrIsa, plan.InstrIsaReverse:
		return r.openIsa(ctx, instr, input)
	case plan.InstrHas, plan.InstrHasReverse:
		return r.openHas(ctx, instr, input)
	case plan.InstrLinks, plan.InstrLinksReverse:
		return r.openLinks(ctx, instr, input)
	case plan.InstrSub, plan.InstrSubReverse:
		return r.openSub(ctx, instr, input)
	case plan.InstrOwns, plan.InstrOwnsReverse:
		return r.openTypeEdge(ctx, instr, input, r.tm.GetOwns, r.tm.OwnersOfAttribute)
	case plan.InstrPlays, plan.InstrPlaysReverse:
		return r.openTypeEdge(ctx, instr, input, r.tm.GetPlays, r.tm.PlayersOfRole)
	case plan.InstrRelates, plan.InstrRelatesReverse:
		return r.openTypeEdge(ctx, instr, input, r.tm.GetRelates, r.tm.RelationsOfRole)
	case plan.InstrTypeList:
		return r.openTypeList(ctx, instr, input)
	case plan.InstrComparisonCheck:
		return r.openComparisonCheck(ctx, instr, input)
	case plan.InstrComparisonGenerator, plan.InstrComparisonGeneratorReverse:
		return r.openComparisonGenerator(ctx, instr, input)
	case plan.InstrExpressionBinding:
		return r.openExpressionBinding(ctx, instr, input)
	case plan.InstrAs, plan.InstrAsReverse:
		return nil, nil, fmt.Errorf("%w: As", ErrUnsupportedInstruction)
	case plan.InstrFunctionCallBinding:
		return nil, nil, fmt.Errorf("pipeline: function call bindings are driven by tabled.TabledFunctions, not InstructionRunner.Open")
	default:
		return nil, nil, fmt.Errorf("%w: kind %d", ErrUnsupportedInstruction, instr.Kind)
	}
}

func edgePositions(pos map[ir.Variable]tuple.VariablePosition, e *plan.EdgeInstruction) tuple.TuplePositions {
	width := 2
	if e.HasRole {
		width = 3
	}
	out := make(tuple.TuplePositions, width)
	set := func(i int, v ir.Vertex) {
		if !v.IsVariable() {
			return
		}
		if p, ok := pos[v.Variable]; ok {
			pp := p
			out[i] = &pp
		}
	}
	set(0, e.Left)
	set(1, e.Right)
	if e.HasRole {
		set(2, e.RoleType)
	}
	return out
}

func candidateTuple(c candidate) tuple.Tuple {
	if c.hasRole {
		return tuple.Tuple{c.left, c.right, c.role}
	}
	return tuple.Tuple{c.left, c.right}
}

// buildSource filters cands against instr's folded Checks and wraps the
// survivors in an exec.Source. The planner can fold a constraint into a
// step's Checks as soon as that constraint's variables are all bound,
// which includes variables this very step produces, so each candidate's
// own (left, right[, role]) values are written into a scratch row at
// their planned positions before a Check is evaluated.
func (r *badgerRunner) buildSource(ctx context.Context, instr *plan.ConstraintInstruction, input *tuple.Row, cands []candidate) (exec.Source, tuple.TuplePositions, error) {
	positions := edgePositions(r.pos, instr.Edge)
	tuples := make([]tuple.Tuple, 0, len(cands))
	for _, c := range cands {
		t := candidateTuple(c)
		ok, err := r.passesChecks(ctx, input, instr.Checks, positions, t)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			tuples = append(tuples, t)
		}
	}
	src, err := collapseCounted(ctx, tuples, positions)
	if err != nil {
		return nil, nil, err
	}
	return src, positions, nil
}

// collapseCounted folds candidate tuples that agree on every projected
// (non-nil-position) column into one row apiece, recording the number
// collapsed as that row's Multiplicity. An edge instruction's endpoint
// goes unprojected when nothing downstream reads it -- a Links
// instruction's role-type column when the query never names the role,
// say -- and without this fold, every such endpoint's distinct storage
// values would surface as that many indistinguishable duplicate rows
// instead of one row answering "yes, N ways".
func collapseCounted(ctx context.Context, tuples []tuple.Tuple, positions tuple.TuplePositions) (exec.Source, error) {
	var projected []int
	for i, p := range positions {
		if p != nil {
			projected = append(projected, i)
		}
	}
	if len(projected) == len(positions) || len(tuples) == 0 {
		return newSource(tuples), nil
	}
	if len(projected) == 1 {
		return collapseSingleColumn(ctx, tuples, projected[0])
	}
	return collapseColumns(tuples, projected), nil
}

// collapseSingleColumn groups tuples by one projected column's value
// using the tuple iterator's counted advance-past primitive directly:
// sort on that column, then repeatedly peek the leading value and
// advance past every tuple sharing it.
func collapseSingleColumn(ctx context.Context, tuples []tuple.Tuple, col int) (exec.Source, error) {
	sorted := append([]tuple.Tuple(nil), tuples...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return tuple.Compare(sorted[i][col], sorted[j][col]) < 0
	})
	it := iter.NewSortedTupleIterator(&sliceSource{tuples: sorted}, []int{col})
	var out []tuple.Tuple
	var mults []uint64
	for {
		t, ok, err := it.Peek(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		n, err := it.AdvancePast(ctx, t[col], col)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
		mults = append(mults, uint64(n))
	}
	return newWeightedSource(out, mults), nil
}

// collapseColumns handles the rarer case of more than one unprojected
// endpoint, where a single sort column can't express the group key:
// sort and scan lexicographically over every projected column instead.
func collapseColumns(tuples []tuple.Tuple, cols []int) exec.Source {
	sorted := append([]tuple.Tuple(nil), tuples...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return compareColumns(sorted[i], sorted[j], cols) < 0
	})
	var out []tuple.Tuple
	var mults []uint64
	for i := 0; i < len(sorted); {
		j := i + 1
		for j < len(sorted) && compareColumns(sorted[i], sorted[j], cols) == 0 {
			j++
		}
		out = append(out, sorted[i])
		mults = append(mults, uint64(j-i))
		i = j
	}
	return newWeightedSource(out, mults)
}

func compareColumns(a, b tuple.Tuple, cols []int) int {
	for _, c := range cols {
		if cmp := tuple.Compare(a[c], b[c]); cmp != 0 {
			return cmp
		}
	}
	return 0
}

// passesChecks evaluates checks against a clone of input with t's columns
// overlaid at positions, leaving input itself untouched.
func (r *badgerRunner) passesChecks(ctx context.Context, input *tuple.Row, checks []plan.CheckInstruction, positions tuple.TuplePositions, t tuple.Tuple) (bool, error) {
	if len(checks) == 0 {
		return true, nil
	}
	merged := input.Clone()
	for i, pos := range positions {
		if pos != nil && i < len(t) {
			merged.Set(*pos, t[i])
		}
	}
	for _, chk := range checks {
		ok, err := r.evalCheck(ctx, merged, chk)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (r *badgerRunner) evalCheck(ctx context.Context, row *tuple.Row, chk plan.CheckInstruction) (bool, error) {
	switch chk.Kind {
	case plan.CheckComparison:
		lp, lok := r.pos[chk.Lhs]
		rp, rok := r.pos[chk.Rhs]
		if !lok || !rok {
			return false, fmt.Errorf("pipeline: check comparison references unpositioned variable")
		}
		return compareComparator(chk.Comparator, row.Get(lp), row.Get(rp)), nil
	case plan.CheckHas:
		op, ook := r.pos[chk.Owner]
		ap, aok := r.pos[chk.Attr]
		if !ook || !aok {
			return false, fmt.Errorf("pipeline: check has references unpositioned variable")
		}
		owner := row.Get(op)
		attr := row.Get(ap)
		attrs, err := r.things.Attributes(ctx, r.snap, owner.Thing)
		if err != nil {
			return false, err
		}
		for _, a := range attrs {
			if bytes.Equal(a, attr.Thing) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("pipeline: unknown check kind %d", chk.Kind)
	}
}

// filterTuples applies instr's folded Checks to a set of already-produced
// tuples, reusing passesChecks so the same newly-produced-variable
// handling applies uniformly across every instruction kind.
func (r *badgerRunner) filterTuples(ctx context.Context, input *tuple.Row, checks []plan.CheckInstruction, positions tuple.TuplePositions, tuples []tuple.Tuple) ([]tuple.Tuple, error) {
	if len(checks) == 0 {
		return tuples, nil
	}
	out := make([]tuple.Tuple, 0, len(tuples))
	for _, t := range tuples {
		ok, err := r.passesChecks(ctx, input, checks, positions, t)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func compareComparator(op ir.Comparator, l, rr tuple.VariableValue) bool {
	c := tuple.Compare(l, rr)
	switch op {
	case ir.CompareEQ:
		return c == 0
	case ir.CompareNE:
		return c != 0
	case ir.CompareLT:
		return c < 0
	case ir.CompareLTE:
		return c <= 0
	case ir.CompareGT:
		return c > 0
	case ir.CompareGTE:
		return c >= 0
	default:
		return false
	}
}

func (r *badgerRunner) openIsa(ctx context.Context, instr *plan.ConstraintInstruction, input *tuple.Row) (exec.Source, tuple.TuplePositions, error) {
	e := instr.Edge
	leftBound, leftVal, err := r.vertexState(ctx, input, e.Left)
	if err != nil {
		return nil, nil, err
	}
	rightBound, rightVal, err := r.vertexState(ctx, input, e.Right)
	if err != nil {
		return nil, nil, err
	}

	var cands []candidate
	switch {
	case leftBound:
		t, err := r.things.TypeOf(ctx, r.snap, leftVal.Thing)
		if err != nil {
			return nil, nil, err
		}
		if rightBound && t != rightVal.Type {
			break
		}
		cands = append(cands, candidate{left: leftVal, right: tuple.VariableValue{Kind: tuple.ValueType, Type: t}})
	case rightBound:
		types, err := r.subtypeClosure(ctx, rightVal.Type)
		if err != nil {
			return nil, nil, err
		}
		for _, t := range types {
			ids, err := r.things.InstancesOfType(ctx, r.snap, t)
			if err != nil {
				return nil, nil, err
			}
			for _, id := range ids {
				cands = append(cands, candidate{
					left:  tuple.VariableValue{Kind: tuple.ValueThing, Thing: id},
					right: tuple.VariableValue{Kind: tuple.ValueType, Type: t},
				})
			}
		}
	default:
		return nil, nil, fmt.Errorf("pipeline: isa instruction with neither endpoint bound")
	}
	return r.buildSource(ctx, instr, input, cands)
}

func (r *badgerRunner) openHas(ctx context.Context, instr *plan.ConstraintInstruction, input *tuple.Row) (exec.Source, tuple.TuplePositions, error) {
	e := instr.Edge
	leftBound, leftVal, err := r.vertexState(ctx, input, e.Left)
	if err != nil {
		return nil, nil, err
	}
	rightBound, rightVal, err := r.vertexState(ctx, input, e.Right)
	if err != nil {
		return nil, nil, err
	}

	var cands []candidate
	switch {
	case leftBound && !rightBound:
		attrs, err := r.things.Attributes(ctx, r.snap, leftVal.Thing)
		if err != nil {
			return nil, nil, err
		}
		for _, a := range attrs {
			cands = append(cands, candidate{left: leftVal, right: tuple.VariableValue{Kind: tuple.ValueThing, Thing: a}})
		}
	case rightBound && !leftBound:
		owners, err := r.things.Owners(ctx, r.snap, rightVal.Thing)
		if err != nil {
			return nil, nil, err
		}
		for _, o := range owners {
			cands = append(cands, candidate{left: tuple.VariableValue{Kind: tuple.ValueThing, Thing: o}, right: rightVal})
		}
	case leftBound && rightBound:
		attrs, err := r.things.Attributes(ctx, r.snap, leftVal.Thing)
		if err != nil {
			return nil, nil, err
		}
		for _, a := range attrs {
			if bytes.Equal(a, rightVal.Thing) {
				cands = append(cands, candidate{left: leftVal, right: rightVal})
				break
			}
		}
	default:
		return nil, nil, fmt.Errorf("pipeline: has instruction with neither endpoint bound")
	}
	return r.buildSource(ctx, instr, input, cands)
}

func (r *badgerRunner) openLinks(ctx context.Context, instr *plan.ConstraintInstruction, input *tuple.Row) (exec.Source, tuple.TuplePositions, error) {
	e := instr.Edge
	leftBound, leftVal, err := r.vertexState(ctx, input, e.Left)
	if err != nil {
		return nil, nil, err
	}
	rightBound, rightVal, err := r.vertexState(ctx, input, e.Right)
	if err != nil {
		return nil, nil, err
	}
	var roleBound bool
	var roleVal tuple.VariableValue
	if e.HasRole {
		roleBound, roleVal, err = r.vertexState(ctx, input, e.RoleType)
		if err != nil {
			return nil, nil, err
		}
	}
	roleMatches := func(role ir.Type) bool {
		return !e.HasRole || !roleBound || role == roleVal.Type
	}
	roleValueOf := func(role ir.Type) tuple.VariableValue { return tuple.VariableValue{Kind: tuple.ValueType, Type: role} }

	var cands []candidate
	switch {
	case leftBound && !rightBound:
		rels, err := r.things.RelationsPlayed(ctx, r.snap, leftVal.Thing)
		if err != nil {
			return nil, nil, err
		}
		for _, rp := range rels {
			if !roleMatches(rp.Role) {
				continue
			}
			cands = append(cands, candidate{
				left: leftVal, right: tuple.VariableValue{Kind: tuple.ValueThing, Thing: rp.Player},
				role: roleValueOf(rp.Role), hasRole: e.HasRole,
			})
		}
	case rightBound && !leftBound:
		rps, err := r.things.RolePlayers(ctx, r.snap, rightVal.Thing)
		if err != nil {
			return nil, nil, err
		}
		for _, rp := range rps {
			if !roleMatches(rp.Role) {
				continue
			}
			cands = append(cands, candidate{
				left: tuple.VariableValue{Kind: tuple.ValueThing, Thing: rp.Player}, right: rightVal,
				role: roleValueOf(rp.Role), hasRole: e.HasRole,
			})
		}
	case leftBound && rightBound:
		rps, err := r.things.RolePlayers(ctx, r.snap, rightVal.Thing)
		if err != nil {
			return nil, nil, err
		}
		for _, rp := range rps {
			if !bytes.Equal(rp.Player, leftVal.Thing) || !roleMatches(rp.Role) {
				continue
			}
			cands = append(cands, candidate{left: leftVal, right: rightVal, role: roleValueOf(rp.Role), hasRole: e.HasRole})
		}
	default:
		return nil, nil, fmt.Errorf("pipeline: links instruction with neither endpoint bound")
	}
	return r.buildSource(ctx, instr, input, cands)
}

func (r *badgerRunner) openSub(ctx context.Context, instr *plan.ConstraintInstruction, input *tuple.Row) (exec.Source, tuple.TuplePositions, error) {
	e := instr.Edge
	leftBound, leftVal, err := r.vertexState(ctx, input, e.Left)
	if err != nil {
		return nil, nil, err
	}
	rightBound, rightVal, err := r.vertexState(ctx, input, e.Right)
	if err != nil {
		return nil, nil, err
	}

	var cands []candidate
	switch {
	case leftBound && !rightBound:
		sup, ok, err := r.tm.GetSupertype(ctx, r.snap, leftVal.Type)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			cands = append(cands, candidate{left: leftVal, right: tuple.VariableValue{Kind: tuple.ValueType, Type: sup}})
		}
	case rightBound && !leftBound:
		subs, err := r.tm.GetSubtypes(ctx, r.snap, rightVal.Type)
		if err != nil {
			return nil, nil, err
		}
		for _, s := range subs.Items() {
			cands = append(cands, candidate{left: tuple.VariableValue{Kind: tuple.ValueType, Type: s}, right: rightVal})
		}
	case leftBound && rightBound:
		sup, ok, err := r.tm.GetSupertype(ctx, r.snap, leftVal.Type)
		if err != nil {
			return nil, nil, err
		}
		if ok && sup == rightVal.Type {
			cands = append(cands, candidate{left: leftVal, right: rightVal})
		}
	default:
		return nil, nil, fmt.Errorf("pipeline: sub instruction with neither endpoint bound")
	}
	return r.buildSource(ctx, instr, input, cands)
}

type typeSetFunc func(ctx context.Context, snap schema.Snapshot, t ir.Type) (*ir.TypeSet, error)

func (r *badgerRunner) openTypeEdge(ctx context.Context, instr *plan.ConstraintInstruction, input *tuple.Row, forward, reverse typeSetFunc) (exec.Source, tuple.TuplePositions, error) {
	e := instr.Edge
	leftBound, leftVal, err := r.vertexState(ctx, input, e.Left)
	if err != nil {
		return nil, nil, err
	}
	rightBound, rightVal, err := r.vertexState(ctx, input, e.Right)
	if err != nil {
		return nil, nil, err
	}

	var cands []candidate
	switch {
	case leftBound && !rightBound:
		s, err := forward(ctx, r.snap, leftVal.Type)
		if err != nil {
			return nil, nil, err
		}
		for _, t := range s.Items() {
			cands = append(cands, candidate{left: leftVal, right: tuple.VariableValue{Kind: tuple.ValueType, Type: t}})
		}
	case rightBound && !leftBound:
		s, err := reverse(ctx, r.snap, rightVal.Type)
		if err != nil {
			return nil, nil, err
		}
		for _, t := range s.Items() {
			cands = append(cands, candidate{left: tuple.VariableValue{Kind: tuple.ValueType, Type: t}, right: rightVal})
		}
	case leftBound && rightBound:
		s, err := forward(ctx, r.snap, leftVal.Type)
		if err != nil {
			return nil, nil, err
		}
		if s.Contains(rightVal.Type) {
			cands = append(cands, candidate{left: leftVal, right: rightVal})
		}
	default:
		return nil, nil, fmt.Errorf("pipeline: type-edge instruction with neither endpoint bound")
	}
	return r.buildSource(ctx, instr, input, cands)
}

// openTypeList enumerates a fixed candidate type set directly from
// annotation, with no storage lookup: the planner never emits this kind
// today (every type-bound edge instruction resolves candidates through
// the corresponding TypeManager/ThingManager call instead), but the
// dispatch is kept for a future constraint needing a bare type
// enumeration with nothing to traverse.
func (r *badgerRunner) openTypeList(ctx context.Context, instr *plan.ConstraintInstruction, input *tuple.Row) (exec.Source, tuple.TuplePositions, error) {
	e := instr.Edge
	var cands []candidate
	if e.Types != nil {
		for _, t := range e.Types.Items() {
			cands = append(cands, candidate{right: tuple.VariableValue{Kind: tuple.ValueType, Type: t}})
		}
	}
	return r.buildSource(ctx, instr, input, cands)
}

func (r *badgerRunner) openComparisonCheck(ctx context.Context, instr *plan.ConstraintInstruction, input *tuple.Row) (exec.Source, tuple.TuplePositions, error) {
	_, leftVal, err := r.vertexState(ctx, input, instr.Left)
	if err != nil {
		return nil, nil, err
	}
	_, rightVal, err := r.vertexState(ctx, input, instr.Right)
	if err != nil {
		return nil, nil, err
	}
	var tuples []tuple.Tuple
	if compareComparator(instr.Comparator, leftVal, rightVal) {
		tuples = append(tuples, tuple.Tuple{})
	}
	tuples, err = r.filterTuples(ctx, input, instr.Checks, tuple.TuplePositions{}, tuples)
	if err != nil {
		return nil, nil, err
	}
	return newSource(tuples), tuple.TuplePositions{}, nil
}

func (r *badgerRunner) openComparisonGenerator(ctx context.Context, instr *plan.ConstraintInstruction, input *tuple.Row) (exec.Source, tuple.TuplePositions, error) {
	if instr.Comparator != ir.CompareEQ {
		return nil, nil, fmt.Errorf("%w: comparison generator for non-equality comparator", ErrUnsupportedInstruction)
	}
	var known ir.Vertex
	var produce ir.Vertex
	if instr.Kind == plan.InstrComparisonGenerator {
		known, produce = instr.Left, instr.Right
	} else {
		known, produce = instr.Right, instr.Left
	}
	_, knownVal, err := r.vertexState(ctx, input, known)
	if err != nil {
		return nil, nil, err
	}
	if !produce.IsVariable() {
		return nil, nil, fmt.Errorf("pipeline: comparison generator's produced side is not a variable")
	}
	pos, ok := r.pos[produce.Variable]
	if !ok {
		return nil, nil, fmt.Errorf("pipeline: comparison generator produces unpositioned variable")
	}
	positions := tuple.TuplePositions{&pos}
	tuples, err := r.filterTuples(ctx, input, instr.Checks, positions, []tuple.Tuple{{knownVal}})
	if err != nil {
		return nil, nil, err
	}
	return newSource(tuples), positions, nil
}

func (r *badgerRunner) openExpressionBinding(ctx context.Context, instr *plan.ConstraintInstruction, input *tuple.Row) (exec.Source, tuple.TuplePositions, error) {
	compiled, ok := r.expressions[instr.Expression]
	if !ok {
		return nil, nil, fmt.Errorf("pipeline: no compiled expression registered for this binding")
	}
	if compiled.ReturnType.IsList {
		return nil, nil, fmt.Errorf("pipeline: list-valued expression results have no tuple.VariableValue representation")
	}
	lookup := func(v ir.Variable) (exprcompile.Value, error) {
		pos, ok := r.pos[v]
		if !ok {
			return exprcompile.Value{}, fmt.Errorf("pipeline: expression references unpositioned variable $%d", v)
		}
		val := input.Get(pos)
		switch val.Kind {
		case tuple.ValueValue:
			return exprcompile.ScalarValue(val.Value), nil
		case tuple.ValueThing:
			rv, err := r.things.AttributeValue(ctx, r.snap, val.Thing)
			if err != nil {
				return exprcompile.Value{}, err
			}
			return exprcompile.ScalarValue(rv), nil
		default:
			return exprcompile.Value{}, fmt.Errorf("pipeline: variable $%d has no scalar value to evaluate", v)
		}
	}
	result, err := exprcompile.Eval(compiled, lookup)
	if err != nil {
		return nil, nil, err
	}
	if len(instr.Expression.Assigned) != 1 {
		return nil, nil, fmt.Errorf("pipeline: expression binding with %d assigned variables, expected 1", len(instr.Expression.Assigned))
	}
	pos, ok := r.pos[instr.Expression.Assigned[0]]
	if !ok {
		return nil, nil, fmt.Errorf("pipeline: expression binding assigns unpositioned variable")
	}
	positions := tuple.TuplePositions{&pos}
	tuples, err := r.filterTuples(ctx, input, instr.Checks, positions, []tuple.Tuple{{{Kind: tuple.ValueValue, Value: result.Scalar}}})
	if err != nil {
		return nil, nil, err
	}
	return newSource(tuples), positions, nil
}
