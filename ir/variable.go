// Package ir defines the IR-level data model consumed by the query engine
// core: variables, vertices, types, expression trees and constraints. It
// corresponds to the "translated IR" that the Annotator (package annotate)
// takes as input.
package ir

import "fmt"

// Variable is an opaque integer id for a query-level name.
type Variable uint32

// Category narrows monotonically during annotation. Incompatible
// narrowings (e.g. ThingType -> Attribute) are annotation errors.
type Category uint8

const (
	CategoryType Category = iota
	CategoryThingType
	CategoryRoleType
	CategoryThing
	CategoryObject
	CategoryAttribute
	CategoryValue
	CategoryAttributeOrValue
	CategoryTypeList
	CategoryThingTypeList
	CategoryRoleTypeList
	CategoryThingList
	CategoryObjectList
	CategoryAttributeList
	CategoryValueList
)

func (c Category) String() string {
	switch c {
	case CategoryType:
		return "Type"
	case CategoryThingType:
		return "ThingType"
	case CategoryRoleType:
		return "RoleType"
	case CategoryThing:
		return "Thing"
	case CategoryObject:
		return "Object"
	case CategoryAttribute:
		return "Attribute"
	case CategoryValue:
		return "Value"
	case CategoryAttributeOrValue:
		return "AttributeOrValue"
	case CategoryTypeList:
		return "TypeList"
	case CategoryThingTypeList:
		return "ThingTypeList"
	case CategoryRoleTypeList:
		return "RoleTypeList"
	case CategoryThingList:
		return "ThingList"
	case CategoryObjectList:
		return "ObjectList"
	case CategoryAttributeList:
		return "AttributeList"
	case CategoryValueList:
		return "ValueList"
	default:
		return fmt.Sprintf("Category(%d)", c)
	}
}

// IsList reports whether the category represents a list-typed variable.
func (c Category) IsList() bool {
	return c >= CategoryTypeList
}

// VariableInfo is the registry entry for a single Variable.
type VariableInfo struct {
	Name     string // optional source name, e.g. "x" for "$x"
	Scope    ScopeID
	Category Category
}

// ScopeID identifies the declaring block of a variable.
type ScopeID uint32

// VariableRegistry maps Variable ids to their declared source names,
// scopes and categories. Categories narrow monotonically; Narrow reports
// an error on an incompatible narrowing.
type VariableRegistry struct {
	infos []VariableInfo
}

// NewVariableRegistry creates an empty registry.
func NewVariableRegistry() *VariableRegistry {
	return &VariableRegistry{}
}

// Declare registers a fresh variable and returns its id.
func (r *VariableRegistry) Declare(name string, scope ScopeID, category Category) Variable {
	r.infos = append(r.infos, VariableInfo{Name: name, Scope: scope, Category: category})
	return Variable(len(r.infos) - 1)
}

// Info returns the registry entry for v.
func (r *VariableRegistry) Info(v Variable) VariableInfo {
	return r.infos[v]
}

// Len returns the number of declared variables.
func (r *VariableRegistry) Len() int {
	return len(r.infos)
}

// categoryRank gives the narrowing partial order: a variable's category
// may only move to a strictly more specific rank.
var categoryRank = map[Category]int{
	CategoryType:             0,
	CategoryThingType:        1,
	CategoryRoleType:         1,
	CategoryObject:           1,
	CategoryThing:            2,
	CategoryAttributeOrValue: 1,
	CategoryAttribute:        2,
	CategoryValue:            2,
}

// Narrow attempts to narrow v's category to next, failing if next is not
// a valid refinement of the variable's current category.
func (r *VariableRegistry) Narrow(v Variable, next Category) error {
	cur := r.infos[v].Category
	if cur == next {
		return nil
	}
	curRank, curOK := categoryRank[cur]
	nextRank, nextOK := categoryRank[next]
	if !curOK || !nextOK || nextRank < curRank {
		return fmt.Errorf("%w: variable %d cannot narrow from %s to %s", ErrIncompatibleCategory, v, cur, next)
	}
	info := r.infos[v]
	info.Category = next
	r.infos[v] = info
	return nil
}
