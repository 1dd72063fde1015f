// Package tuple defines the runtime row/tuple data model shared by the
// planner, tuple-iterator engine, pattern executor, tabled functions and
// reducer: VariableValue, Tuple, Row, VariablePosition and Mode.
package tuple

import (
	"sort"

	"github.com/typedb/typedb-sub004/ir"
	"github.com/typedb/typedb-sub004/schema"
)

// VariablePosition is a post-planning column offset into a Row.
type VariablePosition uint32

// ValueKind tags the alternative held by a VariableValue.
type ValueKind uint8

const (
	ValueEmpty ValueKind = iota
	ValueType
	ValueThing
	ValueValue
)

// VariableValue is one column's runtime content: Type/Thing/Value/Empty.
type VariableValue struct {
	Kind  ValueKind
	Type  ir.Type
	Thing schema.ThingID
	Value ir.Value
}

// Empty is the zero VariableValue.
var Empty = VariableValue{Kind: ValueEmpty}

// Compare gives a total order over VariableValue matching the tuple
// iterator's lexicographic ordering requirement.
func Compare(a, b VariableValue) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	switch a.Kind {
	case ValueEmpty:
		return 0
	case ValueType:
		if a.Type.Less(b.Type) {
			return -1
		}
		if b.Type.Less(a.Type) {
			return 1
		}
		return 0
	case ValueThing:
		return compareBytes(a.Thing, b.Thing)
	default:
		return compareValue(a.Value, b.Value)
	}
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func compareValue(a, b ir.Value) int {
	if a.Type != b.Type {
		if a.Type < b.Type {
			return -1
		}
		return 1
	}
	switch a.Type {
	case ir.ValueTypeLong:
		return compareInt64(a.Long, b.Long)
	case ir.ValueTypeDouble:
		return compareFloat64(a.Double, b.Double)
	case ir.ValueTypeBoolean:
		return compareBool(a.Bool, b.Bool)
	default:
		if a.Str < b.Str {
			return -1
		}
		if a.Str > b.Str {
			return 1
		}
		return 0
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

// Tuple is a fixed-width vector of VariableValue, totally ordered
// lexicographically by Compare over its columns.
type Tuple []VariableValue

// LessThan reports whether t sorts strictly before o lexicographically.
func (t Tuple) LessThan(o Tuple) bool {
	n := len(t)
	if len(o) < n {
		n = len(o)
	}
	for i := 0; i < n; i++ {
		c := Compare(t[i], o[i])
		if c != 0 {
			return c < 0
		}
	}
	return len(t) < len(o)
}

// Equal reports whether t and o hold identical values column-wise.
func (t Tuple) Equal(o Tuple) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if Compare(t[i], o[i]) != 0 {
			return false
		}
	}
	return true
}

// TuplePositions names a tuple's columns by an optional VariablePosition
// per column (nil for a column with no bound output position, e.g. a
// Check column).
type TuplePositions []*VariablePosition

// Row is a writable slice of VariableValue indexed by VariablePosition,
// carrying a multiplicity used by counted-distinct and reducer
// semantics.
type Row struct {
	Values       []VariableValue
	Multiplicity uint64
}

// NewRow allocates a Row of width columns with multiplicity 1.
func NewRow(width int) *Row {
	return &Row{Values: make([]VariableValue, width), Multiplicity: 1}
}

// Get returns the value at pos.
func (r *Row) Get(pos VariablePosition) VariableValue { return r.Values[pos] }

// Set writes value at pos.
func (r *Row) Set(pos VariablePosition, value VariableValue) { r.Values[pos] = value }

// Clone returns an independent copy of the row.
func (r *Row) Clone() *Row {
	out := &Row{Values: make([]VariableValue, len(r.Values)), Multiplicity: r.Multiplicity}
	copy(out.Values, r.Values)
	return out
}

// SortRows sorts rows in place by the given column order (primary first).
func SortRows(rows []*Row, cols []VariablePosition) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, c := range cols {
			cmp := Compare(rows[i].Get(c), rows[j].Get(c))
			if cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})
}
