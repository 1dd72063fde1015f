package irtext

import (
	"fmt"
	"strconv"

	"github.com/typedb/typedb-sub004/ir"
)

// buildNested parses one nested sub-pattern form.
func (b *builder) buildNested(f sexpr) (*ir.NestedPattern, error) {
	switch f.head() {
	case "or":
		var branches []*ir.Block
		for _, part := range f.args() {
			if part.head() != "branch" {
				return nil, fmt.Errorf("irtext: (or ...) takes only (branch ...) entries, line %d", part.line)
			}
			block, err := b.buildBlock(part.args())
			if err != nil {
				return nil, err
			}
			branches = append(branches, block)
		}
		return &ir.NestedPattern{Kind: ir.NestedDisjunction, Branches: branches}, nil

	case "not":
		inner, err := b.buildBlock(f.args())
		if err != nil {
			return nil, err
		}
		return &ir.NestedPattern{Kind: ir.NestedNegation, Inner: inner}, nil

	case "try":
		inner, err := b.buildBlock(f.args())
		if err != nil {
			return nil, err
		}
		return &ir.NestedPattern{Kind: ir.NestedOptional, Inner: inner}, nil

	case "inner-offset", "inner-limit":
		args := f.args()
		if len(args) == 0 || args[0].kind != sNumber {
			return nil, fmt.Errorf("irtext: %s must start with a count, line %d", f.head(), f.line)
		}
		n, err := strconv.ParseUint(args[0].text, 10, 64)
		if err != nil {
			return nil, err
		}
		inner, err := b.buildBlock(args[1:])
		if err != nil {
			return nil, err
		}
		kind := ir.NestedOffset
		if f.head() == "inner-limit" {
			kind = ir.NestedLimit
		}
		return &ir.NestedPattern{Kind: kind, Inner: inner, OffsetOrLimit: n}, nil

	case "call-inline":
		return b.buildInlineCall(f)

	default:
		return nil, fmt.Errorf("irtext: unknown nested pattern %q at line %d", f.head(), f.line)
	}
}

// buildInlineCall parses (call-inline "fn" (args ($outer $inner)...)
// (returns ($inner $outer)...)): argMapping keys are outer-block
// variables, values are the callee's own; returnMapping keys are the
// callee's own, values are outer-block variables, matching the
// convention compile.go's allocator registration already assumes.
func (b *builder) buildInlineCall(f sexpr) (*ir.NestedPattern, error) {
	args := f.args()
	if len(args) == 0 || args[0].kind != sString {
		return nil, fmt.Errorf("irtext: call-inline must start with a function name string, line %d", f.line)
	}
	np := &ir.NestedPattern{Kind: ir.NestedInlinedFunction, FunctionID: args[0].text, ArgMapping: map[ir.Variable]ir.Variable{}, ReturnMapping: map[ir.Variable]ir.Variable{}}
	for _, part := range args[1:] {
		switch part.head() {
		case "args":
			for _, pair := range part.args() {
				outer, inner, err := b.pair(pair)
				if err != nil {
					return nil, err
				}
				np.ArgMapping[outer] = inner
			}
		case "returns":
			for _, pair := range part.args() {
				inner, outer, err := b.pair(pair)
				if err != nil {
					return nil, err
				}
				np.ReturnMapping[inner] = outer
			}
		default:
			return nil, fmt.Errorf("irtext: unknown call-inline section %q, line %d", part.head(), part.line)
		}
	}
	return np, nil
}

func (b *builder) pair(f sexpr) (ir.Variable, ir.Variable, error) {
	args := f.args()
	if f.kind != sList || len(args) != 2 || args[0].kind != sVariable || args[1].kind != sVariable {
		return 0, 0, fmt.Errorf("irtext: expected a ($a $b) variable pair at line %d", f.line)
	}
	return b.variable(args[0].text), b.variable(args[1].text), nil
}
