package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"devquestvault/storage"
)

// Manager is a transactional view over the backing database. Reads fall
// through to the database, writes are staged in memory until Commit applies
// them as a single batch. Discard drops every staged write.
//
// A Manager is not safe for concurrent use; callers serialize access per
// vault and create one manager per request.
type Manager struct {
	db      storage.Database
	rent    RentParams
	pending map[string][]byte
	deleted map[string]struct{}
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database, rent RentParams) *Manager {
	return &Manager{
		db:      db,
		rent:    rent,
		pending: make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) get(hashed []byte) ([]byte, error) {
	if m == nil || m.db == nil {
		return nil, fmt.Errorf("state: manager unavailable")
	}
	k := string(hashed)
	if _, gone := m.deleted[k]; gone {
		return nil, nil
	}
	if value, ok := m.pending[k]; ok {
		return value, nil
	}
	data, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (m *Manager) put(hashed []byte, value []byte) {
	k := string(hashed)
	delete(m.deleted, k)
	m.pending[k] = append([]byte(nil), value...)
}

func (m *Manager) del(hashed []byte) {
	k := string(hashed)
	delete(m.pending, k)
	m.deleted[k] = struct{}{}
}

// Dirty reports how many keys are staged.
func (m *Manager) Dirty() int {
	if m == nil {
		return 0
	}
	return len(m.pending) + len(m.deleted)
}

// Commit writes every staged change to the database atomically and resets the
// overlay.
func (m *Manager) Commit() error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: manager unavailable")
	}
	if m.Dirty() == 0 {
		return nil
	}
	batch := m.db.NewBatch()
	for k, v := range m.pending {
		batch.Put([]byte(k), v)
	}
	for k := range m.deleted {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.Discard()
	return nil
}

// Discard drops every staged change.
func (m *Manager) Discard() {
	if m == nil {
		return
	}
	m.pending = make(map[string][]byte)
	m.deleted = make(map[string]struct{})
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the database.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.put(kvKey(key), encoded)
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.del(kvKey(key))
	return nil
}
