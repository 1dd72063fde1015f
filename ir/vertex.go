package ir

// Parameter is a constant value id substituted into the pattern at
// execution time (bound at compile time, resolved from a parameter
// registry).
type Parameter uint32

// VertexKind tags which alternative a Vertex holds.
type VertexKind uint8

const (
	VertexVariable VertexKind = iota
	VertexLabel
	VertexParameter
)

// Vertex is a position in the pattern graph: a Variable, a compile-time
// Label resolved to a concrete schema type, or a Parameter id referencing
// a constant value. Equality and ordering are structural.
type Vertex struct {
	Kind      VertexKind
	Variable  Variable
	Label     Label
	Parameter Parameter
}

// VarVertex wraps a Variable as a Vertex.
func VarVertex(v Variable) Vertex { return Vertex{Kind: VertexVariable, Variable: v} }

// LabelVertex wraps a Label as a Vertex.
func LabelVertex(l Label) Vertex { return Vertex{Kind: VertexLabel, Label: l} }

// ParamVertex wraps a Parameter as a Vertex.
func ParamVertex(p Parameter) Vertex { return Vertex{Kind: VertexParameter, Parameter: p} }

// IsVariable reports whether the vertex is a Variable.
func (v Vertex) IsVariable() bool { return v.Kind == VertexVariable }

func (v Vertex) String() string {
	switch v.Kind {
	case VertexVariable:
		return "$" + itoa(uint32(v.Variable))
	case VertexLabel:
		return v.Label.String()
	default:
		return "param#" + itoa(uint32(v.Parameter))
	}
}

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
