package state

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"nftmarket/storage"
)

// ErrConflict is returned by Commit when state read by a speculative copy was
// modified after the copy observed it.
var ErrConflict = errors.New("state: concurrent modification")

var errAlreadyCommitted = errors.New("state: copy already committed")

type observation struct {
	value []byte
	found bool
}

type pendingWrite struct {
	value   []byte
	deleted bool
}

// Manager stores RLP-encoded records under keccak-hashed keys. The root
// manager writes straight to the database; managers returned by Copy buffer
// their writes and record every value they read so Commit can apply the
// buffer atomically once it is known nothing they depended on changed.
type Manager struct {
	db       storage.Database
	root     *Manager
	commitMu *sync.Mutex

	mu        sync.Mutex
	reads     map[string]observation
	writes    map[string]pendingWrite
	committed bool
}

// NewManager creates a root state manager over db.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, commitMu: new(sync.Mutex)}
}

// Copy returns a speculative view branching from the committed state.
func (m *Manager) Copy() *Manager {
	root := m
	if m.root != nil {
		root = m.root
	}
	return &Manager{
		db:       root.db,
		root:     root,
		commitMu: root.commitMu,
		reads:    make(map[string]observation),
		writes:   make(map[string]pendingWrite),
	}
}

func (m *Manager) speculative() bool { return m.root != nil }

func hashKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) readDB(key []byte) ([]byte, bool, error) {
	value, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (m *Manager) get(key []byte) ([]byte, bool, error) {
	if !m.speculative() {
		return m.readDB(key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := string(key)
	if w, ok := m.writes[k]; ok {
		if w.deleted {
			return nil, false, nil
		}
		return append([]byte(nil), w.value...), true, nil
	}
	if obs, ok := m.reads[k]; ok {
		return append([]byte(nil), obs.value...), obs.found, nil
	}
	value, found, err := m.readDB(key)
	if err != nil {
		return nil, false, err
	}
	m.reads[k] = observation{value: append([]byte(nil), value...), found: found}
	return value, found, nil
}

func (m *Manager) put(key, value []byte) error {
	if !m.speculative() {
		m.commitMu.Lock()
		defer m.commitMu.Unlock()
		return m.db.Put(key, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.committed {
		return errAlreadyCommitted
	}
	m.writes[string(key)] = pendingWrite{value: append([]byte(nil), value...)}
	return nil
}

func (m *Manager) del(key []byte) error {
	if !m.speculative() {
		m.commitMu.Lock()
		defer m.commitMu.Unlock()
		return m.db.Delete(key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.committed {
		return errAlreadyCommitted
	}
	m.writes[string(key)] = pendingWrite{deleted: true}
	return nil
}

// Commit validates the read set of a speculative copy against the database
// and applies its writes in a single batch. It returns ErrConflict, leaving
// the database untouched, when any observed value changed in the meantime.
// Commit on a root manager is a no-op.
func (m *Manager) Commit() error {
	if !m.speculative() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.committed {
		return errAlreadyCommitted
	}
	m.commitMu.Lock()
	defer m.commitMu.Unlock()
	for k, obs := range m.reads {
		current, found, err := m.readDB([]byte(k))
		if err != nil {
			return err
		}
		if found != obs.found || !bytes.Equal(current, obs.value) {
			return ErrConflict
		}
	}
	batch := storage.NewBatch()
	for k, w := range m.writes {
		if w.deleted {
			batch.Delete([]byte(k))
			continue
		}
		batch.Put([]byte(k), w.value)
	}
	if err := m.db.Write(batch); err != nil {
		return err
	}
	m.committed = true
	return nil
}

// Pending reports how many keys a speculative copy would write.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
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
	return m.put(hashKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, found, err := m.get(hashKey(key))
	if err != nil {
		return false, err
	}
	if !found {
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

// KVDelete removes the value stored under the supplied key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.del(hashKey(key))
}
