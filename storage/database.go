// Package storage provides a BadgerDB-backed reference implementation of
// schema.Snapshot, schema.TypeManager and schema.ThingManager: enough of
// a schema/data store to drive the query engine core end to end, without
// being the schema-management system itself.
package storage

import (
	"github.com/dgraph-io/badger/v4"
)

// Database owns a BadgerDB instance and hands out read-only Snapshots
// and a write-side Transaction for schema/data loading.
type Database struct {
	db *badger.DB
}

// Open opens (creating if absent) a BadgerDB-backed Database at path.
func Open(path string) (*Database, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Database{db: db}, nil
}

// Close releases the underlying BadgerDB handle.
func (d *Database) Close() error {
	return d.db.Close()
}

// NewSnapshot opens a BadgerSnapshot over the database's current state.
func (d *Database) NewSnapshot() *BadgerSnapshot {
	return &BadgerSnapshot{txn: d.db.NewTransaction(false)}
}

// Transaction is a write-side handle used to load schema and data;
// it is not part of schema.Snapshot and is only consumed through Loader
// (package pipeline's write stages) and by tests.
type Transaction struct {
	txn *badger.Txn
}

// BeginTransaction starts a writable BadgerDB transaction.
func (d *Database) BeginTransaction() *Transaction {
	return &Transaction{txn: d.db.NewTransaction(true)}
}

// Put writes key -> value within the transaction.
func (t *Transaction) Put(key, value []byte) error {
	return t.txn.Set(key, value)
}

// Delete removes key within the transaction.
func (t *Transaction) Delete(key []byte) error {
	return t.txn.Delete(key)
}

// Commit commits the transaction.
func (t *Transaction) Commit() error {
	return t.txn.Commit()
}

// Discard abandons the transaction without committing.
func (t *Transaction) Discard() {
	t.txn.Discard()
}
