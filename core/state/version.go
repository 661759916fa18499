package state

import (
	"errors"
	"fmt"

	"devquestvault/native/vault"
	"devquestvault/storage"
)

// SchemaVersion is bumped whenever the stored vault record changes shape.
const SchemaVersion uint32 = 1

var schemaKey = []byte("vault/meta/schema")

// ErrSchemaMismatch is returned when a ledger was written by an incompatible
// build.
var ErrSchemaMismatch = errors.New("state: ledger schema mismatch")

// Schema stamps a ledger with the record layout it was written with. The
// payee and schedule capacities are part of the layout because the custody
// reserve of every existing vault was priced from them.
type Schema struct {
	Version      uint32
	StateSpace   uint32
	MaxPayees    uint32
	MaxSchedules uint32
}

// CurrentSchema describes the layout compiled into this binary.
func CurrentSchema() Schema {
	return Schema{
		Version:      SchemaVersion,
		StateSpace:   vault.StateSpace,
		MaxPayees:    vault.MaxPayees,
		MaxSchedules: vault.MaxSchedules,
	}
}

// PutSchema stages the schema stamp.
func (m *Manager) PutSchema(s Schema) error {
	return m.KVPut(schemaKey, &s)
}

// GetSchema returns the stamped schema, if any.
func (m *Manager) GetSchema() (Schema, bool, error) {
	var s Schema
	ok, err := m.KVGet(schemaKey, &s)
	if err != nil {
		return Schema{}, false, fmt.Errorf("state: load schema: %w", err)
	}
	return s, ok, nil
}

// EnsureSchema stamps an empty ledger and checks an existing one against
// CurrentSchema. allowMigrate accepts a mismatch so an operator can run a
// manual migration.
func EnsureSchema(db storage.Database, allowMigrate bool) (Schema, error) {
	if db == nil {
		return Schema{}, fmt.Errorf("state: database must not be nil")
	}
	want := CurrentSchema()
	manager := NewManager(db, DefaultRentParams())
	have, ok, err := manager.GetSchema()
	if err != nil {
		return Schema{}, err
	}
	if !ok {
		if err := manager.PutSchema(want); err != nil {
			return Schema{}, err
		}
		return want, manager.Commit()
	}
	if have == want || allowMigrate {
		return have, nil
	}
	return have, fmt.Errorf("%w: on-disk %+v, binary %+v", ErrSchemaMismatch, have, want)
}
