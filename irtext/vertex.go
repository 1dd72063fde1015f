package irtext

import (
	"fmt"
	"strconv"

	"github.com/typedb/typedb-sub004/ir"
)

// vertex parses one vertex form: "$x", (label kind "name" ["scope"]), or
// (param N).
func (b *builder) vertex(form sexpr) (ir.Vertex, error) {
	switch form.kind {
	case sVariable:
		return ir.VarVertex(b.variable(form.text)), nil
	case sList:
		switch form.head() {
		case "label":
			return b.labelVertex(form.args())
		case "param":
			args := form.args()
			if len(args) != 1 || args[0].kind != sNumber {
				return ir.Vertex{}, fmt.Errorf("irtext: (param N) takes one number, line %d", form.line)
			}
			n, err := strconv.ParseUint(args[0].text, 10, 32)
			if err != nil {
				return ir.Vertex{}, err
			}
			return ir.ParamVertex(ir.Parameter(n)), nil
		}
	}
	return ir.Vertex{}, fmt.Errorf("irtext: expected a vertex ($var, (label ...), or (param N)) at line %d", form.line)
}

// labelVertex parses (label kind "name" ["scope"]). kind is accepted but
// not stored: ir.Label carries no TypeKind of its own, only a name and
// optional role scope -- the kind is resolved later against the schema.
func (b *builder) labelVertex(args []sexpr) (ir.Vertex, error) {
	if len(args) < 2 || args[0].kind != sSymbol || args[1].kind != sString {
		return ir.Vertex{}, fmt.Errorf("irtext: (label kind \"name\" [\"scope\"]) malformed")
	}
	name := args[1].text
	scope := ""
	if len(args) > 2 && args[2].kind == sString {
		scope = args[2].text
	}
	return ir.LabelVertex(ir.Label{Scope: scope, Name: name}), nil
}

func parseValue(form sexpr) (ir.Value, error) {
	if form.kind != sList || len(form.head()) == 0 {
		return ir.Value{}, fmt.Errorf("irtext: expected a tagged value form at line %d", form.line)
	}
	args := form.args()
	switch form.head() {
	case "long":
		if len(args) != 1 {
			return ir.Value{}, fmt.Errorf("irtext: (long N) takes one number, line %d", form.line)
		}
		n, err := strconv.ParseInt(args[0].text, 10, 64)
		if err != nil {
			return ir.Value{}, err
		}
		return ir.Value{Type: ir.ValueTypeLong, Long: n}, nil
	case "double":
		if len(args) != 1 {
			return ir.Value{}, fmt.Errorf("irtext: (double N) takes one number, line %d", form.line)
		}
		f, err := strconv.ParseFloat(args[0].text, 64)
		if err != nil {
			return ir.Value{}, err
		}
		return ir.Value{Type: ir.ValueTypeDouble, Double: f}, nil
	case "string":
		if len(args) != 1 || args[0].kind != sString {
			return ir.Value{}, fmt.Errorf("irtext: (string \"s\") malformed, line %d", form.line)
		}
		return ir.Value{Type: ir.ValueTypeString, Str: args[0].text}, nil
	case "bool":
		if len(args) != 1 {
			return ir.Value{}, fmt.Errorf("irtext: (bool true|false) malformed, line %d", form.line)
		}
		return ir.Value{Type: ir.ValueTypeBoolean, Bool: args[0].text == "true"}, nil
	default:
		return ir.Value{}, fmt.Errorf("irtext: unknown value tag %q at line %d", form.head(), form.line)
	}
}
