package irtext

import (
	"fmt"
	"strconv"

	"github.com/typedb/typedb-sub004/ir"
)

// Parse reads source and returns the ir.Pipeline its single top-level
// (pipeline ...) form describes.
func Parse(source string) (*ir.Pipeline, error) {
	tokens, err := NewLexer(source).Lex()
	if err != nil {
		return nil, err
	}
	forms, err := newReader(tokens).readAll()
	if err != nil {
		return nil, err
	}
	if len(forms) != 1 || forms[0].head() != "pipeline" {
		return nil, fmt.Errorf("irtext: source must contain exactly one top-level (pipeline ...) form")
	}
	b := &builder{vars: map[string]ir.Variable{}}
	return b.buildPipeline(forms[0])
}

// builder tracks the single flat variable namespace a query's text uses:
// "$x" always denotes the same ir.Variable everywhere it appears, inside
// or outside a preamble function body, mirroring how one query's surface
// syntax reuses variable names across its own scopes.
type builder struct {
	vars     map[string]ir.Variable
	nextVar  ir.Variable
	nextScope ir.ScopeID
}

func (b *builder) variable(name string) ir.Variable {
	if v, ok := b.vars[name]; ok {
		return v
	}
	v := b.nextVar
	b.nextVar++
	b.vars[name] = v
	return v
}

func (b *builder) scope() ir.ScopeID {
	s := b.nextScope
	b.nextScope++
	return s
}

func (b *builder) buildPipeline(form sexpr) (*ir.Pipeline, error) {
	p := &ir.Pipeline{Parameters: map[ir.Parameter]ir.Value{}}
	var paramIdx uint32
	for _, arg := range form.args() {
		switch arg.head() {
		case "parameters":
			for _, pf := range arg.args() {
				val, err := parseValue(pf)
				if err != nil {
					return nil, err
				}
				p.Parameters[ir.Parameter(paramIdx)] = val
				paramIdx++
			}
		case "preamble":
			for _, ff := range arg.args() {
				fn, err := b.buildFunction(ff)
				if err != nil {
					return nil, err
				}
				p.Preamble = append(p.Preamble, fn)
			}
		case "stages":
			stages, err := b.buildStages(arg.args())
			if err != nil {
				return nil, err
			}
			p.Stages = stages
		case "fetch":
			if len(arg.args()) > 0 {
				p.Fetch = &ir.FetchSpec{Name: arg.args()[0].text}
			}
		default:
			return nil, fmt.Errorf("irtext: unknown pipeline section %q at line %d", arg.head(), arg.line)
		}
	}
	return p, nil
}

func (b *builder) buildFunction(form sexpr) (*ir.Function, error) {
	args := form.args()
	if len(args) == 0 || args[0].kind != sString {
		return nil, fmt.Errorf("irtext: function form must start with a name string, line %d", form.line)
	}
	fn := &ir.Function{ID: args[0].text}
	for _, part := range args[1:] {
		switch part.head() {
		case "arguments":
			for _, v := range part.args() {
				fn.Arguments = append(fn.Arguments, b.variable(v.text))
			}
		case "return":
			for _, v := range part.args() {
				fn.ReturnVars = append(fn.ReturnVars, b.variable(v.text))
			}
		case "body":
			stages, err := b.buildStages(part.args())
			if err != nil {
				return nil, err
			}
			fn.Body = stages
		default:
			return nil, fmt.Errorf("irtext: unknown function section %q at line %d", part.head(), part.line)
		}
	}
	return fn, nil
}

func (b *builder) buildStages(forms []sexpr) ([]ir.Stage, error) {
	var out []ir.Stage
	for _, f := range forms {
		st, err := b.buildStage(f)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (b *builder) buildStage(form sexpr) (ir.Stage, error) {
	switch form.head() {
	case "match":
		block, err := b.buildBlock(form.args())
		if err != nil {
			return ir.Stage{}, err
		}
		return ir.Stage{Kind: ir.StageMatch, Block: block}, nil

	case "insert":
		block, err := b.buildBlock(form.args())
		if err != nil {
			return ir.Stage{}, err
		}
		return ir.Stage{Kind: ir.StageInsert, Block: block}, nil

	case "delete":
		args := form.args()
		if len(args) == 0 || args[0].head() != "vars" {
			return ir.Stage{}, fmt.Errorf("irtext: delete stage must start with (vars ...), line %d", form.line)
		}
		var deleted []ir.Variable
		for _, v := range args[0].args() {
			deleted = append(deleted, b.variable(v.text))
		}
		block, err := b.buildBlock(args[1:])
		if err != nil {
			return ir.Stage{}, err
		}
		return ir.Stage{Kind: ir.StageDelete, Block: block, DeletedVariables: deleted}, nil

	case "select":
		var vars []ir.Variable
		for _, v := range form.args() {
			vars = append(vars, b.variable(v.text))
		}
		return ir.Stage{Kind: ir.StageSelect, SelectVariables: vars}, nil

	case "sort":
		var specs []ir.SortSpec
		for _, part := range form.args() {
			dir := ir.Ascending
			if part.head() == "desc" {
				dir = ir.Descending
			}
			vs := part.args()
			if len(vs) != 1 {
				return ir.Stage{}, fmt.Errorf("irtext: sort entry must name exactly one variable, line %d", part.line)
			}
			specs = append(specs, ir.SortSpec{Variable: b.variable(vs[0].text), Direction: dir})
		}
		return ir.Stage{Kind: ir.StageSort, SortSpecs: specs}, nil

	case "offset", "limit":
		args := form.args()
		if len(args) != 1 || args[0].kind != sNumber {
			return ir.Stage{}, fmt.Errorf("irtext: %s stage takes one number, line %d", form.head(), form.line)
		}
		n, err := strconv.ParseUint(args[0].text, 10, 64)
		if err != nil {
			return ir.Stage{}, err
		}
		kind := ir.StageOffset
		if form.head() == "limit" {
			kind = ir.StageLimit
		}
		return ir.Stage{Kind: kind, OffsetOrLimit: n}, nil

	case "require":
		var vars []ir.Variable
		for _, v := range form.args() {
			vars = append(vars, b.variable(v.text))
		}
		return ir.Stage{Kind: ir.StageRequire, RequireVars: vars}, nil

	case "reduce":
		red, err := b.buildReduce(form.args())
		if err != nil {
			return ir.Stage{}, err
		}
		return ir.Stage{Kind: ir.StageReduce, Reduce: red}, nil

	default:
		return ir.Stage{}, fmt.Errorf("irtext: unknown stage %q at line %d", form.head(), form.line)
	}
}

func (b *builder) buildReduce(forms []sexpr) (*ir.Reduce, error) {
	red := &ir.Reduce{}
	for _, f := range forms {
		switch f.head() {
		case "group":
			for _, v := range f.args() {
				red.GroupBy = append(red.GroupBy, b.variable(v.text))
			}
		case "assign":
			args := f.args()
			if len(args) < 2 || args[0].kind != sVariable || args[1].kind != sSymbol {
				return nil, fmt.Errorf("irtext: assign form is ($out reducer [$in]), line %d", f.line)
			}
			reducer, err := parseReducer(args[1].text)
			if err != nil {
				return nil, err
			}
			assignment := ir.ReduceAssignment{Assigned: b.variable(args[0].text), Reducer: reducer}
			if len(args) > 2 {
				assignment.Input = b.variable(args[2].text)
			}
			red.Assignments = append(red.Assignments, assignment)
		default:
			return nil, fmt.Errorf("irtext: unknown reduce section %q at line %d", f.head(), f.line)
		}
	}
	return red, nil
}

func parseReducer(s string) (ir.Reducer, error) {
	switch s {
	case "count":
		return ir.ReducerCount, nil
	case "count-var":
		return ir.ReducerCountVar, nil
	case "sum":
		return ir.ReducerSum, nil
	case "max":
		return ir.ReducerMax, nil
	case "min":
		return ir.ReducerMin, nil
	case "mean":
		return ir.ReducerMean, nil
	case "median":
		return ir.ReducerMedian, nil
	case "std":
		return ir.ReducerStd, nil
	default:
		return 0, fmt.Errorf("irtext: unknown reducer %q", s)
	}
}
