// Package schema declares the external collaborators the query engine
// core consumes: a read-only snapshot of a keyspace, a TypeManager
// resolving schema types, and a ThingManager materializing attribute
// values. Their concrete implementations (durability, encoding, the
// schema-management CLI) are out of scope for this module;
// package storage provides a reference Snapshot/TypeManager pair over
// BadgerDB sufficient to drive the engine end-to-end.
package schema

import "context"

// Key is an opaque, totally-ordered byte key into a keyspace.
type Key []byte

// Endpoint tags how a KeyRange bound should be interpreted.
type Endpoint uint8

const (
	Unbounded Endpoint = iota
	Inclusive
	Exclusive
	WithinStartAsPrefix
	EndPrefixInclusive
	EndPrefixExclusive
)

// KeyRange names a semantic range of keys within one keyspace.
type KeyRange struct {
	Start     Key
	StartKind Endpoint
	End       Key
	EndKind   Endpoint
}

// PrefixRange returns the KeyRange of every key having prefix as a
// prefix, used by index scans over a fixed leading column.
func PrefixRange(prefix Key) KeyRange {
	return KeyRange{Start: prefix, StartKind: WithinStartAsPrefix, End: prefix, EndKind: EndPrefixInclusive}
}

// Cursor iterates a KeyRange in key order.
type Cursor interface {
	Next() bool
	Key() Key
	Value() []byte
	Close() error
	Err() error
}

// Snapshot is a read-only keyspace-range cursor with total ordering on
// keys.
type Snapshot interface {
	// Get fetches the value at key, returning (nil, false) if absent.
	Get(ctx context.Context, key Key) ([]byte, bool, error)

	// IterateRange opens a Cursor over the given range.
	IterateRange(ctx context.Context, r KeyRange) (Cursor, error)

	// Close releases snapshot resources.
	Close() error
}
