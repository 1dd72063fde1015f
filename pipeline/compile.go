package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/typedb/typedb-sub004/annotate"
	"github.com/typedb/typedb-sub004/batch"
	"github.com/typedb/typedb-sub004/exec"
	"github.com/typedb/typedb-sub004/exprcompile"
	"github.com/typedb/typedb-sub004/ir"
	"github.com/typedb/typedb-sub004/plan"
	"github.com/typedb/typedb-sub004/reduce"
	"github.com/typedb/typedb-sub004/schema"
	"github.com/typedb/typedb-sub004/tabled"
	"github.com/typedb/typedb-sub004/tuple"
)

// stepBlueprint builds one exec.StepExecutor. Compilation collects these
// for a scope (top-level query or one function body) before any of them
// runs, since a blueprint for an inlined function or a tabled call may
// need another scope's compilation to have finished first; materialize
// turns the whole list into the []exec.StepExecutor a PatternExecutor
// expects, once every blueprint in it is ready to be called.
type stepBlueprint func() exec.StepExecutor

func materialize(blueprints []stepBlueprint) []exec.StepExecutor {
	out := make([]exec.StepExecutor, len(blueprints))
	for i, b := range blueprints {
		out[i] = b()
	}
	return out
}

// MutationSpec captures a terminal Insert/Delete stage for the separate
// mutation pass Execute runs after the read pipeline finishes: Loader and
// Transaction, the only way to actually write to storage, live outside
// the schema.Snapshot/TypeManager/ThingManager interfaces the read
// pipeline depends on, so Insert/Delete are not part of the
// control-stack/batch architecture at all. Only a terminal mutation
// stage is supported; further Match stages after an Insert/Delete are
// out of scope.
type MutationSpec struct {
	Kind             ir.StageKind // ir.StageInsert or ir.StageDelete
	Block            *ir.Block
	Positions        map[ir.Variable]tuple.VariablePosition
	DeletedVariables []ir.Variable // ir.StageDelete only
}

// CompiledPipeline is a pipeline ready to run: one combined PatternExecutor
// over every Match/Select/Sort/Offset/Limit/Require/Reduce stage, the
// tabled-function registry backing any recursive/tabled calls it makes,
// and an optional terminal mutation pass.
type CompiledPipeline struct {
	Width    int
	Pattern  *exec.PatternExecutor
	Columns  []ir.Variable // output columns, in order, after the last Select/Reduce
	Mutation *MutationSpec

	Functions *tabled.TabledFunctions
	Params    map[ir.Parameter]ir.Value

	// ReduceErr is set if a Reduce stage failed mid-execution; Execute
	// checks it once the top-level pattern finishes draining.
	ReduceErr *error
}

type compiledFunction struct {
	alloc           *posAllocator
	argPositions    []tuple.VariablePosition
	returnPositions []tuple.VariablePosition
	blueprints      []stepBlueprint
}

type compiler struct {
	snap   schema.Snapshot
	tm     schema.TypeManager
	things schema.ThingManager
	stats  *badgerStatistics

	params       map[ir.Parameter]ir.Value
	preambleByID map[string]*annotate.AnnotatedFunction
	fnCache      map[string]*compiledFunction

	// reduceErr receives any error a Reduce stage's apply closure hits
	// while resolving attribute values, since CollectingStageExecutor's
	// apply signature carries no error return of its own.
	reduceErr *error
}

// Compile annotates, plans and compiles pipeline into a CompiledPipeline.
func Compile(ctx context.Context, snap schema.Snapshot, tm schema.TypeManager, things schema.ThingManager, pipeline *ir.Pipeline) (*CompiledPipeline, error) {
	ann, err := annotate.Annotate(ctx, snap, tm, pipeline)
	if err != nil {
		return nil, err
	}

	c := &compiler{
		snap:         snap,
		tm:           tm,
		things:       things,
		stats:        newStatistics(snap, things),
		params:       pipeline.Parameters,
		preambleByID: map[string]*annotate.AnnotatedFunction{},
		fnCache:      map[string]*compiledFunction{},
		reduceErr:    new(error),
	}
	for _, af := range ann.Preamble {
		c.preambleByID[af.ID] = af
	}

	alloc := newPosAllocator()
	chain, _, columns, mutation, err := c.compileStages(ctx, ann.Stages, alloc, map[ir.Variable]bool{}, true)
	if err != nil {
		return nil, err
	}

	pattern := exec.NewPatternExecutor(materialize(chain))
	functions := tabled.NewTabledFunctions(c.tabledBuild(ctx))

	return &CompiledPipeline{
		Width:     alloc.width,
		Pattern:   pattern,
		Columns:   columns,
		Mutation:  mutation,
		Functions: functions,
		Params:    pipeline.Parameters,
		ReduceErr: c.reduceErr,
	}, nil
}

// compileStages compiles one stage list (the top-level pipeline, or one
// preamble function's body) against a single allocator, threading bound
// variables and collecting-stage boundaries through in order. Insert and
// Delete are only accepted when allowMutation is set (the top-level
// pipeline); function bodies are read-only.
func (c *compiler) compileStages(ctx context.Context, stages []annotate.AnnotatedStage, alloc *posAllocator, bound map[ir.Variable]bool, allowMutation bool) (chain []stepBlueprint, finalBound map[ir.Variable]bool, columns []ir.Variable, mutation *MutationSpec, err error) {
	var boundary []stepBlueprint

	for i := range stages {
		as := &stages[i]
		switch as.Kind {
		case ir.StageMatch:
			var steps []stepBlueprint
			steps, bound, err = c.compileBlock(ctx, as.Block, as.Annotations, as.Expressions, bound, alloc)
			if err != nil {
				return nil, nil, nil, nil, err
			}
			columns = sortedBoundVariables(bound)
			boundary = append(boundary, steps...)

		case ir.StageSelect:
			columns = append([]ir.Variable(nil), as.SelectVariables...)
			positions := make(tuple.TuplePositions, len(as.SelectVariables))
			for i, v := range as.SelectVariables {
				p := alloc.get(v)
				positions[i] = &p
			}
			boundary = append(boundary, func() exec.StepExecutor {
				return exec.StepExecutor{Kind: exec.KindReshapeForReturn, ReshapeForReturn: positions}
			})

		case ir.StageSort:
			cols := make([]tuple.VariablePosition, len(as.SortSpecs))
			dirs := make([]ir.OrderDirection, len(as.SortSpecs))
			for i, s := range as.SortSpecs {
				cols[i] = alloc.get(s.Variable)
				dirs[i] = s.Direction
			}
			chain = closeCollectingBoundary(chain, boundary, sortApply(cols, dirs))
			boundary = nil

		case ir.StageOffset, ir.StageLimit:
			chain = closeCollectingBoundary(chain, boundary, offsetLimitApply(as.OffsetOrLimit, as.Kind == ir.StageLimit))
			boundary = nil

		case ir.StageRequire:
			cols := make([]tuple.VariablePosition, len(as.RequireVars))
			for i, v := range as.RequireVars {
				cols[i] = alloc.get(v)
			}
			chain = closeCollectingBoundary(chain, boundary, requireApply(cols))
			boundary = nil

		case ir.StageReduce:
			groupBy := make([]tuple.VariablePosition, len(as.Reduce.GroupBy))
			for i, v := range as.Reduce.GroupBy {
				groupBy[i] = alloc.get(v)
			}
			instrs := make([]reduce.Instruction, len(as.Reduce.Assignments))
			outputs := make([]tuple.VariablePosition, len(as.Reduce.Assignments))
			var produced []ir.Variable
			for i, a := range as.Reduce.Assignments {
				var target tuple.VariablePosition
				if a.Kind != reduce.Count {
					target = alloc.get(a.Input)
				}
				instrs[i] = reduce.Instruction{Kind: a.Kind, Target: target}
				outputs[i] = alloc.get(a.Assigned)
				produced = append(produced, a.Assigned)
				bound[a.Assigned] = true
			}
			columns = append(append([]ir.Variable(nil), as.Reduce.GroupBy...), produced...)
			chain = closeCollectingBoundary(chain, boundary, c.reduceApply(ctx, groupBy, instrs, outputs, &alloc.width, c.reduceErr))
			boundary = nil

		case ir.StageInsert, ir.StageDelete:
			if !allowMutation {
				return nil, nil, nil, nil, fmt.Errorf("pipeline: insert/delete is not supported inside a function body")
			}
			if i != len(stages)-1 {
				return nil, nil, nil, nil, fmt.Errorf("pipeline: insert/delete must be the terminal stage")
			}
			alloc.registerBlock(as.Block)
			mutation = &MutationSpec{Kind: as.Kind, Block: as.Block, Positions: alloc.positions(), DeletedVariables: as.DeletedVariables}

		default:
			return nil, nil, nil, nil, fmt.Errorf("pipeline: unknown stage kind %d", as.Kind)
		}
	}

	chain = append(chain, boundary...)
	if columns == nil {
		columns = sortedBoundVariables(bound)
	}
	return chain, bound, columns, mutation, nil
}

// closeCollectingBoundary wraps everything accumulated since the last
// collecting stage into one inner PatternExecutor, and appends a
// KindCollectingStage blueprint driving it through apply.
func closeCollectingBoundary(chain, boundary []stepBlueprint, apply func([]*batch.FixedBatch) []*batch.FixedBatch) []stepBlueprint {
	inner := append([]stepBlueprint(nil), boundary...)
	bp := func() exec.StepExecutor {
		innerExec := exec.NewPatternExecutor(materialize(inner))
		return exec.StepExecutor{Kind: exec.KindCollectingStage, CollectingStage: exec.NewCollectingStageExecutor(innerExec, apply)}
	}
	return append(chain, bp)
}

// sortedBoundVariables returns every bound variable ordered by its
// numeric ID, giving a deterministic default column order for a query
// with no terminal Select/Reduce stage.
func sortedBoundVariables(bound map[ir.Variable]bool) []ir.Variable {
	out := make([]ir.Variable, 0, len(bound))
	for v, ok := range bound {
		if ok {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// checkVariableModes asserts the block's variables proceed
// Input* -> Output* in planning order: every variable already bound
// coming in, followed by every variable the plan newly produces. The
// planner folds any constraint whose variables are all already bound
// into a Checks list rather than planning it as a generator, so this
// should never fail; it exists to catch a planner regression that
// reorders Available ahead of a pre-bound variable rather than to
// reject real queries.
func checkVariableModes(bound map[ir.Variable]bool, available []ir.Variable) error {
	modes := make([]tuple.Mode, 0, len(bound)+len(available))
	for _, ok := range bound {
		if ok {
			modes = append(modes, tuple.Input)
		}
	}
	for _, v := range available {
		if bound[v] {
			modes = append(modes, tuple.Input)
		} else {
			modes = append(modes, tuple.Output)
		}
	}
	if !tuple.ValidOrdering(modes) {
		return fmt.Errorf("pipeline: planner produced an invalid variable mode ordering")
	}
	return nil
}

// compileBlock plans block's constraints against alloc/bound and turns
// each planned step into a blueprint, then appends one KindNested
// blueprint per nested sub-pattern (the planner never itself walks
// block.Nested). Returns the full bound-variable set after the block.
func (c *compiler) compileBlock(ctx context.Context, block *ir.Block, ann *annotate.TypeAnnotations, expressions map[*ir.ExpressionBinding]*exprcompile.CompiledExpression, bound map[ir.Variable]bool, alloc *posAllocator) ([]stepBlueprint, map[ir.Variable]bool, error) {
	alloc.registerBlock(block)

	planner := plan.NewPlanner(ann, c.stats)
	bp := planner.Plan(block, bound)

	if err := checkVariableModes(bound, bp.Available); err != nil {
		return nil, nil, err
	}

	newBound := map[ir.Variable]bool{}
	for v, ok := range bound {
		if ok {
			newBound[v] = true
		}
	}
	for _, v := range bp.Available {
		newBound[v] = true
	}

	runner := newBadgerRunner(c.snap, c.tm, c.things, alloc.positions(), c.params, expressions)

	var blueprints []stepBlueprint
	for i := range bp.Steps {
		instr := bp.Steps[i].Instruction
		if instr.Kind == plan.InstrFunctionCallBinding {
			tc, err := c.compileTabledCall(ctx, instr, alloc)
			if err != nil {
				return nil, nil, err
			}
			blueprints = append(blueprints, tc)
			continue
		}
		ii := instr
		blueprints = append(blueprints, func() exec.StepExecutor {
			return exec.StepExecutor{Kind: exec.KindImmediate, Immediate: exec.NewImmediateExecutor(runner, ii, alloc.width)}
		})
	}

	for i := range block.Nested {
		np := &block.Nested[i]
		nb, produced, err := c.compileNested(ctx, np, alloc, newBound, ann, expressions)
		if err != nil {
			return nil, nil, err
		}
		blueprints = append(blueprints, nb)
		for _, v := range produced {
			newBound[v] = true
		}
	}

	return blueprints, newBound, nil
}

// compileNested compiles one nested sub-pattern into a single KindNested
// blueprint. Disjunction/Negation/Optional/Offset/Limit branches share
// the enclosing block's row shape (the default ResultMapper.MapInput is
// a full clone), so they reuse alloc directly; an InlinedFunction body
// gets its own local allocator via compiledFunctionFor, since its row
// width must stay independent of the outer pipeline's.
func (c *compiler) compileNested(ctx context.Context, np *ir.NestedPattern, alloc *posAllocator, bound map[ir.Variable]bool, ann *annotate.TypeAnnotations, expressions map[*ir.ExpressionBinding]*exprcompile.CompiledExpression) (stepBlueprint, []ir.Variable, error) {
	switch np.Kind {
	case ir.NestedDisjunction:
		var branchSteps [][]stepBlueprint
		for _, b := range np.Branches {
			steps, _, err := c.compileBlock(ctx, b, ann, expressions, bound, alloc)
			if err != nil {
				return nil, nil, err
			}
			branchSteps = append(branchSteps, steps)
		}
		bp := func() exec.StepExecutor {
			branches := make([]*exec.PatternExecutor, len(branchSteps))
			for i, s := range branchSteps {
				branches[i] = exec.NewPatternExecutor(materialize(s))
			}
			return exec.StepExecutor{Kind: exec.KindNested, Nested: &exec.NestedPatternExecutor{Kind: exec.NestedDisjunction, Branches: branches, OutputWidth: alloc.width}}
		}
		return bp, nil, nil

	case ir.NestedNegation, ir.NestedOptional:
		steps, _, err := c.compileBlock(ctx, np.Inner, ann, expressions, bound, alloc)
		if err != nil {
			return nil, nil, err
		}
		kind := exec.NestedNegation
		if np.Kind == ir.NestedOptional {
			kind = exec.NestedOptional
		}
		bp := func() exec.StepExecutor {
			inner := exec.NewPatternExecutor(materialize(steps))
			return exec.StepExecutor{Kind: exec.KindNested, Nested: &exec.NestedPatternExecutor{Kind: kind, Inner: inner, OutputWidth: alloc.width}}
		}
		return bp, nil, nil

	case ir.NestedOffset, ir.NestedLimit:
		steps, _, err := c.compileBlock(ctx, np.Inner, ann, expressions, bound, alloc)
		if err != nil {
			return nil, nil, err
		}
		kind := exec.NestedOffset
		if np.Kind == ir.NestedLimit {
			kind = exec.NestedLimit
		}
		n := np.OffsetOrLimit
		bp := func() exec.StepExecutor {
			inner := exec.NewPatternExecutor(materialize(steps))
			return exec.StepExecutor{Kind: exec.KindNested, Nested: &exec.NestedPatternExecutor{Kind: kind, Inner: inner, OutputWidth: alloc.width, OffsetOrLimit: n}}
		}
		return bp, nil, nil

	case ir.NestedInlinedFunction:
		cf, err := c.compiledFunctionFor(ctx, np.FunctionID)
		if err != nil {
			return nil, nil, err
		}
		argMapping := map[tuple.VariablePosition]tuple.VariablePosition{}
		for outer, inner := range np.ArgMapping {
			argMapping[alloc.get(outer)] = cf.alloc.get(inner)
		}
		returnMapping := map[tuple.VariablePosition]tuple.VariablePosition{}
		var produced []ir.Variable
		for inner, outer := range np.ReturnMapping {
			returnMapping[cf.alloc.get(inner)] = alloc.get(outer)
			produced = append(produced, outer)
		}
		bp := func() exec.StepExecutor {
			inner := exec.NewPatternExecutor(materialize(cf.blueprints))
			return exec.StepExecutor{Kind: exec.KindNested, Nested: &exec.NestedPatternExecutor{
				Kind: exec.NestedInlinedFunction, Inner: inner,
				ArgMapping: argMapping, ReturnMapping: returnMapping,
				OutputWidth: alloc.width, InnerWidth: cf.alloc.width,
			}}
		}
		return bp, produced, nil

	default:
		return nil, nil, fmt.Errorf("pipeline: unknown nested pattern kind %d", np.Kind)
	}
}

// compiledFunctionFor compiles (and caches) one preamble function's body
// on first reference. The cache entry is registered with its arg/return
// positions before the body is compiled, so a self- or mutually-recursive
// call encountered while compiling that very body can already read them.
func (c *compiler) compiledFunctionFor(ctx context.Context, id string) (*compiledFunction, error) {
	if cf, ok := c.fnCache[id]; ok {
		return cf, nil
	}
	af, ok := c.preambleByID[id]
	if !ok {
		return nil, fmt.Errorf("pipeline: unknown function %q", id)
	}

	alloc := newPosAllocator()
	cf := &compiledFunction{alloc: alloc}
	cf.argPositions = make([]tuple.VariablePosition, len(af.Arguments))
	bound := map[ir.Variable]bool{}
	for i, a := range af.Arguments {
		cf.argPositions[i] = alloc.get(a)
		bound[a] = true
	}
	cf.returnPositions = make([]tuple.VariablePosition, len(af.ReturnVars))
	for i, v := range af.ReturnVars {
		cf.returnPositions[i] = alloc.get(v)
	}
	c.fnCache[id] = cf

	blueprints, _, _, _, err := c.compileStages(ctx, af.Body, alloc, bound, false)
	if err != nil {
		return nil, err
	}
	cf.blueprints = blueprints
	return cf, nil
}

// compileTabledCall builds the KindTabledCall blueprint for one
// FunctionCallBinding step: argument extraction and the scratch seed row
// TabledFunctions.build prepares its callee with both run against the
// callee's own compiledFunction metadata, resolved eagerly here so a
// recursive call to the function currently being compiled still works.
func (c *compiler) compileTabledCall(ctx context.Context, instr *plan.ConstraintInstruction, alloc *posAllocator) (stepBlueprint, error) {
	call := instr.Call
	cf, err := c.compiledFunctionFor(ctx, call.FunctionID)
	if err != nil {
		return nil, err
	}
	extractArg, err := c.buildArgsExtractor(ctx, call.Arguments, alloc)
	if err != nil {
		return nil, err
	}
	returnMap := buildReturnMap(cf.returnPositions, call.Assigned, alloc)

	return func() exec.StepExecutor {
		return exec.StepExecutor{Kind: exec.KindTabledCall, TabledCall: exec.NewTabledCallExecutor(call.FunctionID, extractArg, returnMap, alloc.width)}
	}, nil
}

// buildArgsExtractor resolves a call's argument vertices once at compile
// time (a Label resolves to its schema Type eagerly; a Parameter reads
// the pipeline's constant pool directly) so the ArgsExtractor closure
// tabled.ArgsExtractor requires -- which carries no context or error
// return -- only ever touches the caller's row for Variable vertices.
func (c *compiler) buildArgsExtractor(ctx context.Context, args []ir.Vertex, alloc *posAllocator) (tabled.ArgsExtractor, error) {
	resolved := make([]func(row *tuple.Row) tuple.VariableValue, len(args))
	for i, v := range args {
		switch v.Kind {
		case ir.VertexVariable:
			pos := alloc.get(v.Variable)
			resolved[i] = func(row *tuple.Row) tuple.VariableValue { return row.Get(pos) }
		case ir.VertexLabel:
			t, err := c.resolveLabel(ctx, v.Label)
			if err != nil {
				return nil, err
			}
			resolved[i] = func(row *tuple.Row) tuple.VariableValue { return tuple.VariableValue{Kind: tuple.ValueType, Type: t} }
		case ir.VertexParameter:
			val, ok := c.params[v.Parameter]
			if !ok {
				return nil, fmt.Errorf("pipeline: unbound parameter #%d in function call argument", v.Parameter)
			}
			resolved[i] = func(row *tuple.Row) tuple.VariableValue { return tuple.VariableValue{Kind: tuple.ValueValue, Value: val} }
		}
	}
	return func(row *tuple.Row) tuple.Tuple {
		t := make(tuple.Tuple, len(resolved))
		for i, f := range resolved {
			t[i] = f(row)
		}
		return t
	}, nil
}

func (c *compiler) resolveLabel(ctx context.Context, l ir.Label) (ir.Type, error) {
	t, ok, err := c.tm.Resolve(ctx, c.snap, l)
	if err != nil {
		return ir.Type{}, err
	}
	if !ok {
		return ir.Type{}, fmt.Errorf("pipeline: unresolved label %s", l.String())
	}
	return t, nil
}

// buildReturnMap closes over the callee's return-column positions and the
// caller's assigned-variable positions, producing the answer->call row
// merge tabled.NewTabledCallExecutor needs.
func buildReturnMap(returnPositions []tuple.VariablePosition, assigned []ir.Variable, callerAlloc *posAllocator) func(*tuple.Row, *tuple.Row) *tuple.Row {
	assignedPos := make([]tuple.VariablePosition, len(assigned))
	for i, v := range assigned {
		assignedPos[i] = callerAlloc.get(v)
	}
	return func(answer, call *tuple.Row) *tuple.Row {
		out := call.Clone()
		for i, rp := range returnPositions {
			if i < len(assignedPos) {
				out.Set(assignedPos[i], answer.Get(rp))
			}
		}
		return out
	}
}

// tabledBuild returns the function tabled.TabledFunctions uses to
// construct a fresh callee PatternExecutor for a given call key, already
// Prepared with a singleton seed row built from the key's arguments.
func (c *compiler) tabledBuild(ctx context.Context) func(tabled.CallKey) (tabled.PatternRunner, error) {
	return func(key tabled.CallKey) (tabled.PatternRunner, error) {
		cf, err := c.compiledFunctionFor(ctx, key.FunctionID)
		if err != nil {
			return nil, err
		}
		pe := exec.NewPatternExecutor(materialize(cf.blueprints))
		seed := tuple.NewRow(cf.alloc.width)
		for i, pos := range cf.argPositions {
			if i < len(key.Arguments) {
				seed.Set(pos, key.Arguments[i])
			}
		}
		b := batch.NewFixedBatch(cf.alloc.width)
		b.Append(seed)
		pe.Prepare(b)
		return pe, nil
	}
}
