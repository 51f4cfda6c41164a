package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltStore persists typed values in a single bucket of a bbolt file.
// It fills the role flash-backed NVS plays on a microcontroller: small
// typed entries under a namespace, durable across power cycles.
type BoltStore struct {
	db     *bolt.DB
	bucket []byte
}

// OpenBolt opens (creating if needed) the database file and uses the
// given namespace as the bucket name.
func OpenBolt(path, namespace string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	return &BoltStore{db: db, bucket: []byte(namespace)}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// OpenReadOnly opens a read-only session.
func (s *BoltStore) OpenReadOnly() (Handle, error) {
	return &boltHandle{store: s, readOnly: true}, nil
}

// OpenReadWrite opens a session that stages writes until Commit.
func (s *BoltStore) OpenReadWrite() (Handle, error) {
	return &boltHandle{store: s, staged: make(map[string][]byte)}, nil
}

type boltHandle struct {
	store    *BoltStore
	readOnly bool
	staged   map[string][]byte
	closed   bool
}

func (h *boltHandle) get(key string, wantLen int) ([]byte, error) {
	if h.closed {
		return nil, errors.New("store: handle closed")
	}

	var out []byte
	err := h.store.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(h.store.bucket)
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		if len(v) != wantLen {
			return fmt.Errorf("store: key %q holds %d bytes, want %d", key, len(v), wantLen)
		}
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

func (h *boltHandle) GetU8(key string) (uint8, error) {
	v, err := h.get(key, 1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

func (h *boltHandle) GetU32(key string) (uint32, error) {
	v, err := h.get(key, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(v), nil
}

func (h *boltHandle) set(key string, value []byte) error {
	if h.closed {
		return errors.New("store: handle closed")
	}
	if h.readOnly {
		return errors.New("store: handle is read-only")
	}
	h.staged[key] = value
	return nil
}

func (h *boltHandle) SetU8(key string, value uint8) error {
	return h.set(key, []byte{value})
}

func (h *boltHandle) SetU32(key string, value uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, value)
	return h.set(key, buf)
}

// Commit writes all staged entries in one transaction.
func (h *boltHandle) Commit() error {
	if h.closed {
		return errors.New("store: handle closed")
	}
	if h.readOnly {
		return errors.New("store: handle is read-only")
	}
	if len(h.staged) == 0 {
		return nil
	}

	err := h.store.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(h.store.bucket)
		if err != nil {
			return err
		}
		for k, v := range h.staged {
			if err := b.Put([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit store: %w", err)
	}

	h.staged = make(map[string][]byte)
	return nil
}

// Close discards any staged uncommitted writes.
func (h *boltHandle) Close() error {
	h.closed = true
	h.staged = nil
	return nil
}
