package cache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	cachekey "github.com/always-cache/card-cache/pkg/cache-key"
	serializer "github.com/always-cache/card-cache/pkg/response-serializer"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Purpose is the role of a store, independent of its version.
type Purpose string

const (
	// PurposeStatic holds the assets fetched at install.
	PurposeStatic Purpose = "static"
	// PurposeRuntime holds responses stored while serving requests.
	PurposeRuntime Purpose = "runtime"
)

// ErrNotStorable is returned when trying to store the response to a non-GET request.
var ErrNotStorable = errors.New("only GET requests can be stored")

// StoreName returns the name of the store for the purpose and version, e.g. "static-v1.0.0".
func StoreName(purpose Purpose, version string) string {
	return string(purpose) + "-" + version
}

// Handle identifies an opened store.
type Handle struct {
	Name    string
	Purpose Purpose
	Version string
}

// FetchFunc gets a response from the network.
type FetchFunc func(ctx context.Context, r *http.Request) (*serializer.Snapshot, error)

// Manager owns the versioned stores.
type Manager struct {
	provider Provider
	keyer    cachekey.CacheKeyer
	log      zerolog.Logger
	now      func() time.Time
}

func NewManager(provider Provider, keyer cachekey.CacheKeyer, logger zerolog.Logger) *Manager {
	return &Manager{
		provider: provider,
		keyer:    keyer,
		log:      logger,
		now:      time.Now,
	}
}

// OpenCurrent returns the store for the purpose and version, creating it if absent.
func (m *Manager) OpenCurrent(purpose Purpose, version string) (Handle, error) {
	h := Handle{Name: StoreName(purpose, version), Purpose: purpose, Version: version}
	if err := m.provider.Open(h.Name); err != nil {
		return Handle{}, err
	}
	return h, nil
}

// Populate fetches all requests and stores the responses in the store.
// Fetches run concurrently. If any of them fails, or returns a non-2xx response,
// nothing is stored and the first failure is returned.
func (m *Manager) Populate(ctx context.Context, h Handle, requests []*http.Request, fetch FetchFunc) error {
	entries := make([]Entry, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range requests {
		g.Go(func() error {
			if r.Method != http.MethodGet {
				return fmt.Errorf("%s %s: %w", r.Method, r.URL, ErrNotStorable)
			}
			snap, err := fetch(gctx, r)
			if err != nil {
				return err
			}
			if !snap.OK() {
				return fmt.Errorf("%s: unexpected status %d", r.URL, snap.StatusCode)
			}
			entry, err := m.entry(r, snap)
			if err != nil {
				return err
			}
			m.log.Trace().Str("store", h.Name).Str("key", entry.Key).Msg("Fetched for populate")
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return &StorageError{Op: "populate", Store: h.Name, Err: err}
	}
	if err := m.provider.PutAll(h.Name, entries...); err != nil {
		return err
	}
	m.log.Debug().Str("store", h.Name).Int("entries", len(entries)).Msg("Store populated")
	return nil
}

// Lookup searches all stores for a response to the request.
// The boolean is false if no store holds one.
func (m *Manager) Lookup(r *http.Request) (*serializer.Snapshot, bool, error) {
	if r.Method != http.MethodGet {
		return nil, false, nil
	}
	key := m.keyer.GetKey(r)
	entry, ok, err := m.provider.Match(key)
	if err != nil || !ok {
		return nil, false, err
	}
	snap, err := serializer.Parse(entry.Bytes)
	if err != nil {
		return nil, false, &StorageError{Op: "decode", Store: entry.Store, Err: err}
	}
	snap.StoredAt = entry.StoredAt
	m.log.Trace().Str("store", entry.Store).Str("key", key).Msg("Found stored response")
	return snap, true, nil
}

// Put stores the response to the request in the store, replacing any previous entry.
// The store must still exist: a put into a purged store fails with ErrStoreNotFound.
func (m *Manager) Put(h Handle, r *http.Request, snap *serializer.Snapshot) error {
	if r.Method != http.MethodGet {
		return &StorageError{Op: "put", Store: h.Name, Err: ErrNotStorable}
	}
	entry, err := m.entry(r, snap)
	if err != nil {
		return err
	}
	if err := m.provider.Put(h.Name, entry); err != nil {
		return err
	}
	m.log.Trace().Str("store", h.Name).Str("key", entry.Key).Msg("Stored response")
	return nil
}

// PurgeStale deletes every store not named in current and returns the deleted names.
func (m *Manager) PurgeStale(current ...string) ([]string, error) {
	names, err := m.provider.Names()
	if err != nil {
		return nil, err
	}
	keep := make(map[string]struct{}, len(current))
	for _, name := range current {
		keep[name] = struct{}{}
	}
	var (
		deleted []string
		errs    []error
	)
	for _, name := range names {
		if _, ok := keep[name]; ok {
			continue
		}
		if _, err := m.provider.Delete(name); err != nil {
			errs = append(errs, err)
			continue
		}
		m.log.Debug().Str("store", name).Msg("Deleted stale store")
		deleted = append(deleted, name)
	}
	return deleted, errors.Join(errs...)
}

// Has reports whether the store holds a response to the request.
func (m *Manager) Has(h Handle, r *http.Request) (bool, error) {
	_, ok, err := m.provider.Get(h.Name, m.keyer.GetKey(r))
	return ok, err
}

// Names lists all existing stores.
func (m *Manager) Names() ([]string, error) {
	return m.provider.Names()
}

// Keys lists the request keys held by the named store.
func (m *Manager) Keys(name string) ([]string, error) {
	return m.provider.Keys(name)
}

func (m *Manager) entry(r *http.Request, snap *serializer.Snapshot) (Entry, error) {
	bts, err := snap.Bytes()
	if err != nil {
		return Entry{}, fmt.Errorf("serialize %s: %w", r.URL, err)
	}
	return Entry{
		Key:      m.keyer.GetKey(r),
		StoredAt: m.now(),
		Bytes:    bts,
	}, nil
}
