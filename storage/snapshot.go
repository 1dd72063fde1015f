package storage

import (
	"bytes"
	"context"

	"github.com/dgraph-io/badger/v4"

	"github.com/typedb/typedb-sub004/schema"
)

// BadgerSnapshot is a read-only view over one BadgerDB transaction.
type BadgerSnapshot struct {
	txn *badger.Txn
}

var _ schema.Snapshot = (*BadgerSnapshot)(nil)

// Get implements schema.Snapshot.
func (s *BadgerSnapshot) Get(ctx context.Context, key schema.Key) ([]byte, bool, error) {
	item, err := s.txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// IterateRange implements schema.Snapshot, translating a KeyRange's
// Endpoint semantics into a seek position and an end-of-range test.
func (s *BadgerSnapshot) IterateRange(ctx context.Context, r schema.KeyRange) (schema.Cursor, error) {
	opts := badger.DefaultIteratorOptions
	it := s.txn.NewIterator(opts)

	seek := []byte(r.Start)
	if r.StartKind == schema.Exclusive {
		seek = append(append([]byte{}, seek...), 0x00)
	}

	return &badgerCursor{it: it, seek: seek, r: r}, nil
}

// Close discards the underlying transaction.
func (s *BadgerSnapshot) Close() error {
	s.txn.Discard()
	return nil
}

type badgerCursor struct {
	it      *badger.Iterator
	seek    []byte
	r       schema.KeyRange
	started bool
	err     error
}

func (c *badgerCursor) Next() bool {
	if c.err != nil {
		return false
	}
	if !c.started {
		c.it.Seek(c.seek)
		c.started = true
	} else {
		c.it.Next()
	}
	if !c.it.Valid() {
		return false
	}
	return c.withinEnd(c.it.Item().KeyCopy(nil))
}

func (c *badgerCursor) withinEnd(key []byte) bool {
	if len(c.r.End) == 0 {
		return true
	}
	switch c.r.EndKind {
	case schema.Unbounded:
		return true
	case schema.Inclusive:
		return bytes.Compare(key, c.r.End) <= 0
	case schema.Exclusive:
		return bytes.Compare(key, c.r.End) < 0
	case schema.EndPrefixInclusive:
		return bytes.HasPrefix(key, c.r.End) || bytes.Compare(key, c.r.End) <= 0
	case schema.EndPrefixExclusive:
		return !bytes.HasPrefix(key, c.r.End) && bytes.Compare(key, c.r.End) < 0
	default:
		return true
	}
}

func (c *badgerCursor) Key() schema.Key {
	return schema.Key(c.it.Item().KeyCopy(nil))
}

func (c *badgerCursor) Value() []byte {
	val, err := c.it.Item().ValueCopy(nil)
	if err != nil {
		c.err = err
		return nil
	}
	return val
}

func (c *badgerCursor) Close() error {
	c.it.Close()
	return nil
}

func (c *badgerCursor) Err() error { return c.err }
