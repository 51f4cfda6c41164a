// Package store provides the typed key-value storage that persisted
// mixer state is written to. The real implementation is backed by a
// bbolt database file; the fake implementation allows testing the
// persistence layer without touching disk.
package store

import "errors"

// ErrNotFound is returned by Get* when a key has never been written.
// Callers treat it as "first boot" and substitute defaults.
var ErrNotFound = errors.New("store: key not found")

// Store opens typed read or read/write sessions against the backing
// storage.
type Store interface {
	// OpenReadOnly opens a session that only permits reads.
	OpenReadOnly() (Handle, error)

	// OpenReadWrite opens a session whose writes are staged until
	// Commit.
	OpenReadWrite() (Handle, error)
}

// Handle is one open session. Writes are staged in the handle and only
// become durable on Commit; Close without Commit discards them.
type Handle interface {
	GetU8(key string) (uint8, error)
	GetU32(key string) (uint32, error)
	SetU8(key string, value uint8) error
	SetU32(key string, value uint32) error

	// Commit flushes all staged writes to durable storage.
	Commit() error

	// Close releases the session; staged uncommitted writes are lost.
	Close() error
}
