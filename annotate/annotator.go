package annotate

import (
	"context"
	"fmt"

	"github.com/typedb/typedb-sub004/exprcompile"
	"github.com/typedb/typedb-sub004/ir"
	"github.com/typedb/typedb-sub004/reduce"
	"github.com/typedb/typedb-sub004/schema"
)

// AnnotatedStage is one pipeline stage after type inference and
// expression/reducer compilation: a Match/Insert/Delete block carries
// its TypeAnnotations and any compiled expressions it contains; the
// pass-through modifier stages carry their own resolved bookkeeping
//.
type AnnotatedStage struct {
	Kind ir.StageKind

	Block       *ir.Block
	Annotations *TypeAnnotations
	// Expressions maps each ExpressionBinding constraint appearing in
	// Block (including nested blocks) to its compiled form.
	Expressions map[*ir.ExpressionBinding]*exprcompile.CompiledExpression

	DeletedVariables []ir.Variable
	SelectVariables  []ir.Variable
	SortSpecs        []ir.SortSpec
	OffsetOrLimit    uint64
	RequireVars      []ir.Variable

	Reduce *AnnotatedReduce
}

// ReducerBinding is one Reduce assignment after its input's value type
// has been resolved to a concrete reduce.Kind.
type ReducerBinding struct {
	Assigned ir.Variable
	Kind     reduce.Kind
	Input    ir.Variable // unused for reduce.Count
}

// AnnotatedReduce is a Reduce stage after reducer resolution.
type AnnotatedReduce struct {
	GroupBy     []ir.Variable
	Assignments []ReducerBinding
}

// AnnotatedFunction is a preamble Function after its body has been
// annotated.
type AnnotatedFunction struct {
	ID         string
	Arguments  []ir.Variable
	ReturnVars []ir.Variable
	Body       []AnnotatedStage
}

// AnnotatedPipeline is the complete output of the Annotator, consumed by
// the planner.
type AnnotatedPipeline struct {
	Preamble []*AnnotatedFunction
	Stages   []AnnotatedStage
	Fetch    *ir.FetchSpec
}

// valueTypes tracks, across stages, the resolved concrete value type of
// every Value/AttributeOrValue-category variable seen so far: populated
// from Has constraints (via the attribute's schema value type) and from
// ExpressionBinding/FunctionCallBinding results. It is separate from
// TypeAnnotations, which only tracks schema Type candidates.
type valueTypes map[ir.Variable]ir.ValueType

// Annotate runs the full Annotator over pipeline: two passes over the
// preamble, recording each function's return categories in a signature
// table (every return variable is recorded as CategoryValue), then a
// single forward pass over the top-level stages threading bound
// variables, schema type annotations and resolved value types along.
// annotateFunction does not read the signature table, so the second
// preamble pass produces the same result as the first: call sites are
// not refined by earlier-pass return categories.
func Annotate(ctx context.Context, snap schema.Snapshot, tm schema.TypeManager, pipeline *ir.Pipeline) (*AnnotatedPipeline, error) {
	sigs := map[string][]ir.Category{}
	var annotatedPreamble []*AnnotatedFunction
	for pass := 0; pass < 2; pass++ {
		annotatedPreamble = nil
		for _, fn := range pipeline.Preamble {
			af, retCats, err := annotateFunction(ctx, snap, tm, fn, sigs)
			if err != nil {
				return nil, err
			}
			annotatedPreamble = append(annotatedPreamble, af)
			sigs[fn.ID] = retCats
		}
	}

	out := &AnnotatedPipeline{Preamble: annotatedPreamble, Fetch: pipeline.Fetch}
	bound := map[ir.Variable]bool{}
	types := map[ir.Variable]*ir.TypeSet{}
	vts := valueTypes{}

	for _, stage := range pipeline.Stages {
		as, err := annotateStage(ctx, snap, tm, stage, bound, types, vts)
		if err != nil {
			return nil, err
		}
		out.Stages = append(out.Stages, as)
	}
	return out, nil
}

func annotateFunction(ctx context.Context, snap schema.Snapshot, tm schema.TypeManager, fn *ir.Function, sigs map[string][]ir.Category) (*AnnotatedFunction, []ir.Category, error) {
	af := &AnnotatedFunction{ID: fn.ID, Arguments: fn.Arguments, ReturnVars: fn.ReturnVars}
	bound := map[ir.Variable]bool{}
	for _, a := range fn.Arguments {
		bound[a] = true
	}
	types := map[ir.Variable]*ir.TypeSet{}
	vts := valueTypes{}
	for _, stage := range fn.Body {
		as, err := annotateStage(ctx, snap, tm, stage, bound, types, vts)
		if err != nil {
			return nil, nil, err
		}
		af.Body = append(af.Body, as)
	}
	retCats := make([]ir.Category, len(fn.ReturnVars))
	for i := range retCats {
		retCats[i] = ir.CategoryValue
	}
	return af, retCats, nil
}

func annotateStage(ctx context.Context, snap schema.Snapshot, tm schema.TypeManager, stage ir.Stage, bound map[ir.Variable]bool, types map[ir.Variable]*ir.TypeSet, vts valueTypes) (AnnotatedStage, error) {
	switch stage.Kind {
	case ir.StageMatch:
		return annotateMatch(ctx, snap, tm, stage, bound, types, vts)
	case ir.StageInsert:
		return annotateInsert(stage, bound, types)
	case ir.StageDelete:
		return annotateDelete(ctx, snap, tm, stage, bound, types, vts)
	case ir.StageSelect:
		return AnnotatedStage{Kind: stage.Kind, SelectVariables: stage.SelectVariables}, nil
	case ir.StageSort:
		if err := checkSortable(stage.SortSpecs, vts); err != nil {
			return AnnotatedStage{}, err
		}
		return AnnotatedStage{Kind: stage.Kind, SortSpecs: stage.SortSpecs}, nil
	case ir.StageOffset, ir.StageLimit:
		return AnnotatedStage{Kind: stage.Kind, OffsetOrLimit: stage.OffsetOrLimit}, nil
	case ir.StageRequire:
		return AnnotatedStage{Kind: stage.Kind, RequireVars: stage.RequireVars}, nil
	case ir.StageReduce:
		return annotateReduce(stage, vts)
	default:
		return AnnotatedStage{}, fmt.Errorf("annotate: unknown stage kind %d", stage.Kind)
	}
}

func annotateMatch(ctx context.Context, snap schema.Snapshot, tm schema.TypeManager, stage ir.Stage, bound map[ir.Variable]bool, types map[ir.Variable]*ir.TypeSet, vts valueTypes) (AnnotatedStage, error) {
	seed := map[ir.Variable]*ir.TypeSet{}
	for v, s := range types {
		seed[v] = s.Clone()
	}
	ann, err := InferTypes(ctx, snap, tm, stage.Block, seed)
	if err != nil {
		return AnnotatedStage{}, err
	}
	for v, s := range ann.VertexAnnotations {
		types[v] = s
		bound[v] = true
	}

	if err := resolveHasValueTypes(ctx, snap, tm, stage.Block, ann, vts); err != nil {
		return AnnotatedStage{}, err
	}

	exprs, err := compileExpressions(stage.Block, vts)
	if err != nil {
		return AnnotatedStage{}, err
	}

	return AnnotatedStage{Kind: stage.Kind, Block: stage.Block, Annotations: ann, Expressions: exprs}, nil
}

// resolveHasValueTypes walks Has constraints in block (and nested
// blocks) recording each attribute variable's concrete value type. Only
// attribute variables whose annotated type set is a single attribute
// type with a value type are recorded; any other Has attribute variable
// is skipped without an error and gets no recorded value type.
func resolveHasValueTypes(ctx context.Context, snap schema.Snapshot, tm schema.TypeManager, block *ir.Block, ann *TypeAnnotations, vts valueTypes) error {
	for i := range block.Constraints {
		c := &block.Constraints[i]
		if c.Kind != ir.ConstraintHas {
			continue
		}
		attrVar := c.Edge.Right
		if !attrVar.IsVariable() {
			continue
		}
		types := ann.VertexTypes(attrVar.Variable)
		if types.Len() != 1 {
			continue
		}
		vt, ok, err := tm.GetValueType(ctx, snap, types.Items()[0])
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		vts[attrVar.Variable] = vt
	}
	for _, np := range block.Nested {
		if np.Inner != nil {
			if err := resolveHasValueTypes(ctx, snap, tm, np.Inner, ann, vts); err != nil {
				return err
			}
		}
		for _, b := range np.Branches {
			if err := resolveHasValueTypes(ctx, snap, tm, b, ann, vts); err != nil {
				return err
			}
		}
	}
	return nil
}

func compileExpressions(block *ir.Block, vts valueTypes) (map[*ir.ExpressionBinding]*exprcompile.CompiledExpression, error) {
	out := map[*ir.ExpressionBinding]*exprcompile.CompiledExpression{}
	if err := compileExpressionsRec(block, vts, out); err != nil {
		return nil, err
	}
	return out, nil
}

func compileExpressionsRec(block *ir.Block, vts valueTypes, out map[*ir.ExpressionBinding]*exprcompile.CompiledExpression) error {
	for i := range block.Constraints {
		c := &block.Constraints[i]
		if c.Kind != ir.ConstraintExpressionBinding {
			continue
		}
		evts := map[ir.Variable]exprcompile.ExpressionValueType{}
		for _, v := range c.Expression.Tree.Variables() {
			if vt, ok := vts[v]; ok {
				evts[v] = exprcompile.Single(vt)
			}
		}
		compiled, err := exprcompile.Compile(c.Expression.Tree, evts)
		if err != nil {
			return err
		}
		out[c.Expression] = compiled
		if len(c.Expression.Assigned) == 1 && !compiled.ReturnType.IsList {
			vts[c.Expression.Assigned[0]] = compiled.ReturnType.Category
		}
	}
	for _, np := range block.Nested {
		if np.Inner != nil {
			if err := compileExpressionsRec(np.Inner, vts, out); err != nil {
				return err
			}
		}
		for _, b := range np.Branches {
			if err := compileExpressionsRec(b, vts, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func annotateInsert(stage ir.Stage, bound map[ir.Variable]bool, types map[ir.Variable]*ir.TypeSet) (AnnotatedStage, error) {
	// Insert only ever introduces variables bound by isa/role-name
	// constraints already present in the block; it never runs type
	// inference itself (the types being inserted are exactly those
	// named in the pattern), matching the reference design's insert
	// checker rather than the match-stage fixpoint inferrer.
	for i := range stage.Block.Constraints {
		c := &stage.Block.Constraints[i]
		if c.Kind == ir.ConstraintLinks && c.Edge.HasRole && c.Edge.RoleType.IsVariable() {
			bound[c.Edge.RoleType.Variable] = true
			continue
		}
		if c.Kind != ir.ConstraintIsa {
			continue
		}
		if c.Edge.Left.IsVariable() {
			bound[c.Edge.Left.Variable] = true
		}
	}
	return AnnotatedStage{Kind: stage.Kind, Block: stage.Block}, nil
}

func annotateDelete(ctx context.Context, snap schema.Snapshot, tm schema.TypeManager, stage ir.Stage, bound map[ir.Variable]bool, types map[ir.Variable]*ir.TypeSet, vts valueTypes) (AnnotatedStage, error) {
	// Delete's block re-references already-bound variables rather than
	// declaring new ones. No type inference runs over the Delete block and
	// its constraints are not checked against the annotations earlier
	// stages established: the stage only removes the deleted variables
	// from the running maps, so deleting on a constraint that could never
	// have matched is not a compile error.
	for _, v := range stage.DeletedVariables {
		delete(bound, v)
		delete(types, v)
	}
	return AnnotatedStage{Kind: stage.Kind, Block: stage.Block, DeletedVariables: stage.DeletedVariables}, nil
}

func checkSortable(specs []ir.SortSpec, vts valueTypes) error {
	for _, s := range specs {
		vt, ok := vts[s.Variable]
		if !ok {
			return CouldNotDetermineValueTypeForReducerInput(s.Variable)
		}
		if !ir.Comparable(vt, vt) {
			return UncomparableValueTypesForSortVariable(s.Variable)
		}
	}
	return nil
}

func annotateReduce(stage ir.Stage, vts valueTypes) (AnnotatedStage, error) {
	out := &AnnotatedReduce{GroupBy: stage.Reduce.GroupBy}
	for _, a := range stage.Reduce.Assignments {
		binding, err := resolveReducer(a, vts)
		if err != nil {
			return AnnotatedStage{}, err
		}
		out.Assignments = append(out.Assignments, binding)
	}
	return AnnotatedStage{Kind: stage.Kind, Reduce: out}, nil
}

func resolveReducer(a ir.ReduceAssignment, vts valueTypes) (ReducerBinding, error) {
	if a.Reducer == ir.ReducerCount {
		return ReducerBinding{Assigned: a.Assigned, Kind: reduce.Count}, nil
	}

	vt, ok := vts[a.Input]
	if a.Reducer == ir.ReducerCountVar {
		if !ok {
			return ReducerBinding{}, CouldNotDetermineValueTypeForReducerInput(a.Input)
		}
		return ReducerBinding{Assigned: a.Assigned, Kind: reduce.CountVar, Input: a.Input}, nil
	}
	if !ok {
		return ReducerBinding{}, CouldNotDetermineValueTypeForReducerInput(a.Input)
	}

	var kind reduce.Kind
	switch {
	case a.Reducer == ir.ReducerSum && vt == ir.ValueTypeLong:
		kind = reduce.SumLong
	case a.Reducer == ir.ReducerSum && vt == ir.ValueTypeDouble:
		kind = reduce.SumDouble
	case a.Reducer == ir.ReducerMax && vt == ir.ValueTypeLong:
		kind = reduce.MaxLong
	case a.Reducer == ir.ReducerMax && vt == ir.ValueTypeDouble:
		kind = reduce.MaxDouble
	case a.Reducer == ir.ReducerMin && vt == ir.ValueTypeLong:
		kind = reduce.MinLong
	case a.Reducer == ir.ReducerMin && vt == ir.ValueTypeDouble:
		kind = reduce.MinDouble
	case a.Reducer == ir.ReducerMean && vt == ir.ValueTypeLong:
		kind = reduce.MeanLong
	case a.Reducer == ir.ReducerMean && vt == ir.ValueTypeDouble:
		kind = reduce.MeanDouble
	case a.Reducer == ir.ReducerMedian && vt == ir.ValueTypeLong:
		kind = reduce.MedianLong
	case a.Reducer == ir.ReducerMedian && vt == ir.ValueTypeDouble:
		kind = reduce.MedianDouble
	case a.Reducer == ir.ReducerStd && vt == ir.ValueTypeLong:
		kind = reduce.StdLong
	case a.Reducer == ir.ReducerStd && vt == ir.ValueTypeDouble:
		kind = reduce.StdDouble
	default:
		return ReducerBinding{}, UnsupportedValueTypeForReducer(a.Reducer, vt)
	}
	return ReducerBinding{Assigned: a.Assigned, Kind: kind, Input: a.Input}, nil
}
