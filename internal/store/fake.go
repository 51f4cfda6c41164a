package store

import "errors"

// FakeStore is an in-memory Store for tests. It tracks commits and
// supports per-operation error injection.
type FakeStore struct {
	// Values holds the committed state, as the durable storage would.
	Values map[string][]byte

	// CommitCount counts successful commits across all handles.
	CommitCount int

	// OpenError, if set, is returned by both Open methods.
	OpenError error

	// GetError, if set, is returned by GetU8/GetU32 (instead of a
	// value or ErrNotFound).
	GetError error

	// SetError, if set, is returned by SetU8/SetU32.
	SetError error

	// CommitError, if set, is returned by Commit; committed state is
	// left untouched.
	CommitError error
}

// NewFakeStore creates an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{Values: make(map[string][]byte)}
}

// OpenReadOnly opens a read-only fake session.
func (f *FakeStore) OpenReadOnly() (Handle, error) {
	if f.OpenError != nil {
		return nil, f.OpenError
	}
	return &fakeHandle{store: f, readOnly: true}, nil
}

// OpenReadWrite opens a fake session that stages writes until Commit.
func (f *FakeStore) OpenReadWrite() (Handle, error) {
	if f.OpenError != nil {
		return nil, f.OpenError
	}
	return &fakeHandle{store: f, staged: make(map[string][]byte)}, nil
}

// SeedU8 stores a committed u8 value, bypassing the handle machinery.
func (f *FakeStore) SeedU8(key string, value uint8) {
	f.Values[key] = []byte{value}
}

// SeedU32 stores a committed u32 value, bypassing the handle machinery.
func (f *FakeStore) SeedU32(key string, value uint32) {
	f.Values[key] = []byte{
		byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24),
	}
}

type fakeHandle struct {
	store    *FakeStore
	readOnly bool
	staged   map[string][]byte
	closed   bool
}

func (h *fakeHandle) GetU8(key string) (uint8, error) {
	if h.store.GetError != nil {
		return 0, h.store.GetError
	}
	v, ok := h.store.Values[key]
	if !ok {
		return 0, ErrNotFound
	}
	if len(v) != 1 {
		return 0, errors.New("store: wrong value size")
	}
	return v[0], nil
}

func (h *fakeHandle) GetU32(key string) (uint32, error) {
	if h.store.GetError != nil {
		return 0, h.store.GetError
	}
	v, ok := h.store.Values[key]
	if !ok {
		return 0, ErrNotFound
	}
	if len(v) != 4 {
		return 0, errors.New("store: wrong value size")
	}
	return uint32(v[0]) | uint32(v[1])<<8 | uint32(v[2])<<16 | uint32(v[3])<<24, nil
}

func (h *fakeHandle) SetU8(key string, value uint8) error {
	if h.store.SetError != nil {
		return h.store.SetError
	}
	if h.readOnly {
		return errors.New("store: handle is read-only")
	}
	h.staged[key] = []byte{value}
	return nil
}

func (h *fakeHandle) SetU32(key string, value uint32) error {
	if h.store.SetError != nil {
		return h.store.SetError
	}
	if h.readOnly {
		return errors.New("store: handle is read-only")
	}
	h.staged[key] = []byte{
		byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24),
	}
	return nil
}

func (h *fakeHandle) Commit() error {
	if h.store.CommitError != nil {
		return h.store.CommitError
	}
	if h.readOnly {
		return errors.New("store: handle is read-only")
	}
	for k, v := range h.staged {
		h.store.Values[k] = v
	}
	h.staged = make(map[string][]byte)
	h.store.CommitCount++
	return nil
}

func (h *fakeHandle) Close() error {
	h.closed = true
	h.staged = nil
	return nil
}
