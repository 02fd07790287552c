package cache

import (
	"sort"
	"sync"
)

type memEntry struct {
	Entry
	// insertion order, breaks ties between equal StoredAt values
	seq uint64
}

type MemProvider struct {
	mutex  *sync.RWMutex
	stores map[string]map[string]memEntry
	seq    *uint64
}

func NewMemProvider() MemProvider {
	return MemProvider{
		mutex:  &sync.RWMutex{},
		stores: make(map[string]map[string]memEntry),
		seq:    new(uint64),
	}
}

func (m MemProvider) Open(name string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.stores[name]; !ok {
		m.stores[name] = make(map[string]memEntry)
	}
	return nil
}

func (m MemProvider) Names() ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	names := make([]string, 0, len(m.stores))
	for name := range m.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m MemProvider) Delete(name string) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	_, ok := m.stores[name]
	delete(m.stores, name)
	return ok, nil
}

func (m MemProvider) Get(name, key string) (Entry, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	entry, ok := m.stores[name][key]
	if !ok {
		return Entry{}, false, nil
	}
	return entry.Entry, true, nil
}

func (m MemProvider) Match(key string) (Entry, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	var (
		newest memEntry
		found  bool
	)
	for _, store := range m.stores {
		entry, ok := store[key]
		if !ok {
			continue
		}
		if !found || newer(entry, newest) {
			newest = entry
			found = true
		}
	}
	return newest.Entry, found, nil
}

func newer(a, b memEntry) bool {
	if a.StoredAt.Equal(b.StoredAt) {
		return a.seq > b.seq
	}
	return a.StoredAt.After(b.StoredAt)
}

func (m MemProvider) PutAll(name string, entries ...Entry) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	store, ok := m.stores[name]
	if !ok {
		store = make(map[string]memEntry)
		m.stores[name] = store
	}
	for _, e := range entries {
		*m.seq++
		e.Store = name
		e.Bytes = append([]byte(nil), e.Bytes...)
		store[e.Key] = memEntry{Entry: e, seq: *m.seq}
	}
	return nil
}

func (m MemProvider) Put(name string, e Entry) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	store, ok := m.stores[name]
	if !ok {
		return &StorageError{Op: "put", Store: name, Err: ErrStoreNotFound}
	}
	*m.seq++
	e.Store = name
	e.Bytes = append([]byte(nil), e.Bytes...)
	store[e.Key] = memEntry{Entry: e, seq: *m.seq}
	return nil
}

func (m MemProvider) Keys(name string) ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	keys := make([]string, 0, len(m.stores[name]))
	for key := range m.stores[name] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
