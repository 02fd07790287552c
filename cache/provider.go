package cache

import (
	"errors"
	"fmt"
	"time"
)

// ErrStoreNotFound is returned when writing to a store that does not exist (anymore).
var ErrStoreNotFound = errors.New("store does not exist")

// Provider is the storage behind the versioned stores.
// A store is a named mapping from request key to stored response bytes.
// Operating on store names is what allows an old version and a new version
// to live side by side until the old one is purged.
//
// Implementations must be thread-safe!
type Provider interface {
	// Open creates the named store if it does not exist yet.
	Open(name string) error
	// Names returns the names of all existing stores, sorted.
	Names() ([]string, error)
	// Delete removes the named store and all its entries.
	// It reports whether the store existed.
	Delete(name string) (bool, error)
	// Get returns the entry stored under key in the named store.
	// The boolean is false if there is no such entry.
	Get(name, key string) (Entry, bool, error)
	// Match returns the entry stored under key in any store.
	// If several stores hold the key, the most recently stored entry is returned.
	Match(key string) (Entry, bool, error)
	// PutAll stores the given entries in the named store, creating it if needed.
	// Either all entries are written or none is.
	PutAll(name string, entries ...Entry) error
	// Put stores one entry in the named store, which must exist.
	// A store deleted concurrently is not recreated: Put fails with ErrStoreNotFound.
	Put(name string, entry Entry) error
	// Keys returns the keys stored in the named store, sorted.
	Keys(name string) ([]string, error)
}

type Entry struct {
	Store    string
	Key      string
	StoredAt time.Time
	Bytes    []byte
}

// StorageError reports a failed storage operation.
type StorageError struct {
	Op    string
	Store string
	Err   error
}

func (e *StorageError) Error() string {
	if e.Store == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Store, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
