package ir

// TypeKind tags a schema-level Type reference.
type TypeKind uint8

const (
	KindEntity TypeKind = iota
	KindRelation
	KindAttribute
	KindRole
)

func (k TypeKind) String() string {
	switch k {
	case KindEntity:
		return "entity"
	case KindRelation:
		return "relation"
	case KindAttribute:
		return "attribute"
	case KindRole:
		return "role"
	default:
		return "unknown"
	}
}

// Label is a compile-time resolved schema type name, e.g. "person".
type Label struct {
	Scope string // optional, e.g. "friendship" for a relation's role "friendship:friend"
	Name  string
}

func (l Label) String() string {
	if l.Scope == "" {
		return l.Name
	}
	return l.Scope + ":" + l.Name
}

// Type is a tagged reference to a schema kind. Types form a lattice under
// `sub`; equality and ordering are structural (Kind, Label).
type Type struct {
	Kind  TypeKind
	Label Label
}

func (t Type) String() string {
	return t.Kind.String() + " " + t.Label.String()
}

// Less gives a total order over Type values, used to keep TypeSet
// sorted deterministically.
func (t Type) Less(o Type) bool {
	if t.Kind != o.Kind {
		return t.Kind < o.Kind
	}
	if t.Label.Scope != o.Label.Scope {
		return t.Label.Scope < o.Label.Scope
	}
	return t.Label.Name < o.Label.Name
}

// ValueType is one of the fixed set of attribute/value encodings.
type ValueType uint8

const (
	ValueTypeBoolean ValueType = iota
	ValueTypeLong
	ValueTypeDouble
	ValueTypeDecimal
	ValueTypeDate
	ValueTypeDateTime
	ValueTypeDateTimeTZ
	ValueTypeDuration
	ValueTypeString
	ValueTypeStruct
)

func (v ValueType) String() string {
	switch v {
	case ValueTypeBoolean:
		return "boolean"
	case ValueTypeLong:
		return "long"
	case ValueTypeDouble:
		return "double"
	case ValueTypeDecimal:
		return "decimal"
	case ValueTypeDate:
		return "date"
	case ValueTypeDateTime:
		return "datetime"
	case ValueTypeDateTimeTZ:
		return "datetime-tz"
	case ValueTypeDuration:
		return "duration"
	case ValueTypeString:
		return "string"
	case ValueTypeStruct:
		return "struct"
	default:
		return "unknown-value-type"
	}
}

// ValueCategory groups value types for comparison purposes. Numeric value
// types compare with each other; temporal types only compare exactly;
// String compares only with String; Struct never compares.
type ValueCategory uint8

const (
	ValueCategoryNumeric ValueCategory = iota
	ValueCategoryDate
	ValueCategoryDateTime
	ValueCategoryDateTimeTZ
	ValueCategoryDuration
	ValueCategoryString
	ValueCategoryBoolean
	ValueCategoryStruct
)

// CategoryOf derives the comparability category of a value type.
func CategoryOf(vt ValueType) ValueCategory {
	switch vt {
	case ValueTypeLong, ValueTypeDouble, ValueTypeDecimal:
		return ValueCategoryNumeric
	case ValueTypeDate:
		return ValueCategoryDate
	case ValueTypeDateTime:
		return ValueCategoryDateTime
	case ValueTypeDateTimeTZ:
		return ValueCategoryDateTimeTZ
	case ValueTypeDuration:
		return ValueCategoryDuration
	case ValueTypeString:
		return ValueCategoryString
	case ValueTypeBoolean:
		return ValueCategoryBoolean
	default:
		return ValueCategoryStruct
	}
}

// Comparable reports whether two value types may be compared (used by
// sort-variable validation and by comparison constraints). Struct is
// never comparable, even with itself.
func Comparable(a, b ValueType) bool {
	if a == ValueTypeStruct || b == ValueTypeStruct {
		return false
	}
	return CategoryOf(a) == CategoryOf(b)
}

// TypeSet is a sorted set of Type, mirroring Rust's BTreeSet<Type>.
type TypeSet struct {
	items []Type
}

// NewTypeSet builds a TypeSet from the given types, deduplicating and sorting.
func NewTypeSet(types ...Type) *TypeSet {
	s := &TypeSet{}
	for _, t := range types {
		s.Add(t)
	}
	return s
}

// Add inserts t if not already present, keeping items sorted.
func (s *TypeSet) Add(t Type) {
	i := s.search(t)
	if i < len(s.items) && s.items[i] == t {
		return
	}
	s.items = append(s.items, Type{})
	copy(s.items[i+1:], s.items[i:])
	s.items[i] = t
}

func (s *TypeSet) search(t Type) int {
	lo, hi := 0, len(s.items)
	for lo < hi {
		mid := (lo + hi) / 2
		if s.items[mid].Less(t) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Contains reports whether t is a member.
func (s *TypeSet) Contains(t Type) bool {
	i := s.search(t)
	return i < len(s.items) && s.items[i] == t
}

// Items returns the sorted backing slice (read-only convention: callers
// must not mutate it).
func (s *TypeSet) Items() []Type { return s.items }

// Len returns the number of members.
func (s *TypeSet) Len() int { return len(s.items) }

// IsEmpty reports whether the set has no members.
func (s *TypeSet) IsEmpty() bool { return len(s.items) == 0 }

// Intersect returns a new TypeSet containing only types present in both sets.
func (s *TypeSet) Intersect(o *TypeSet) *TypeSet {
	out := &TypeSet{}
	for _, t := range s.items {
		if o.Contains(t) {
			out.items = append(out.items, t)
		}
	}
	return out
}

// Union returns a new TypeSet containing the members of both sets.
func (s *TypeSet) Union(o *TypeSet) *TypeSet {
	out := NewTypeSet(s.items...)
	for _, t := range o.items {
		out.Add(t)
	}
	return out
}

// Clone returns an independent copy.
func (s *TypeSet) Clone() *TypeSet {
	out := &TypeSet{items: make([]Type, len(s.items))}
	copy(out.items, s.items)
	return out
}
