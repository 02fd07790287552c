package cache

import (
	"database/sql"
	"errors"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

type SQLiteProvider struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteProvider opens the given file as the store db.
// If file name is empty, a new in-memory db is opened.
func NewSQLiteProvider(filename string) (SQLiteProvider, error) {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return SQLiteProvider{}, &StorageError{Op: "open", Err: err}
	}
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS stores (
			name TEXT PRIMARY KEY,
			created_at INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			store TEXT NOT NULL,
			key TEXT NOT NULL,
			stored_at INTEGER,
			bytes BLOB,
			PRIMARY KEY (store, key)
		)`,
		"CREATE INDEX IF NOT EXISTS entries_key_idx ON entries (key, stored_at)",
		"PRAGMA journal_mode=WAL",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return SQLiteProvider{}, &StorageError{Op: "open", Err: err}
		}
	}
	return SQLiteProvider{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

func (s SQLiteProvider) Close() error {
	return s.db.Close()
}

func (s SQLiteProvider) Open(name string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("INSERT OR IGNORE INTO stores (name, created_at) VALUES (?, ?)", name, time.Now().UnixNano())
	if err != nil {
		return &StorageError{Op: "open", Store: name, Err: err}
	}
	return nil
}

func (s SQLiteProvider) Names() ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM stores ORDER BY name")
	if err != nil {
		return nil, &StorageError{Op: "names", Err: err}
	}
	defer rows.Close()
	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &StorageError{Op: "names", Err: err}
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "names", Err: err}
	}
	return names, nil
}

func (s SQLiteProvider) Delete(name string) (bool, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return false, &StorageError{Op: "delete", Store: name, Err: err}
	}
	defer tx.Rollback()
	if _, err := tx.Exec("DELETE FROM entries WHERE store = ?", name); err != nil {
		return false, &StorageError{Op: "delete", Store: name, Err: err}
	}
	result, err := tx.Exec("DELETE FROM stores WHERE name = ?", name)
	if err != nil {
		return false, &StorageError{Op: "delete", Store: name, Err: err}
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return false, &StorageError{Op: "delete", Store: name, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return false, &StorageError{Op: "delete", Store: name, Err: err}
	}
	return deleted > 0, nil
}

func (s SQLiteProvider) Get(name, key string) (Entry, bool, error) {
	entry := Entry{Store: name, Key: key}
	var storedAt int64
	err := s.db.QueryRow("SELECT stored_at, bytes FROM entries WHERE store = ? AND key = ?", name, key).
		Scan(&storedAt, &entry.Bytes)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, &StorageError{Op: "get", Store: name, Err: err}
	}
	entry.StoredAt = time.Unix(0, storedAt)
	return entry, true, nil
}

func (s SQLiteProvider) Match(key string) (Entry, bool, error) {
	entry := Entry{Key: key}
	var storedAt int64
	err := s.db.QueryRow(
		"SELECT store, stored_at, bytes FROM entries WHERE key = ? ORDER BY stored_at DESC, rowid DESC LIMIT 1",
		key,
	).Scan(&entry.Store, &storedAt, &entry.Bytes)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, &StorageError{Op: "match", Err: err}
	}
	entry.StoredAt = time.Unix(0, storedAt)
	return entry, true, nil
}

func (s SQLiteProvider) PutAll(name string, entries ...Entry) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return &StorageError{Op: "put", Store: name, Err: err}
	}
	defer tx.Rollback()
	if _, err := tx.Exec("INSERT OR IGNORE INTO stores (name, created_at) VALUES (?, ?)", name, time.Now().UnixNano()); err != nil {
		return &StorageError{Op: "put", Store: name, Err: err}
	}
	for _, e := range entries {
		_, err := tx.Exec(`INSERT OR REPLACE INTO entries
			(store, key, stored_at, bytes) VALUES (?, ?, ?, ?)`,
			name, e.Key, e.StoredAt.UnixNano(), e.Bytes)
		if err != nil {
			return &StorageError{Op: "put", Store: name, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "put", Store: name, Err: err}
	}
	return nil
}

func (s SQLiteProvider) Put(name string, e Entry) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return &StorageError{Op: "put", Store: name, Err: err}
	}
	defer tx.Rollback()
	var exists int
	err = tx.QueryRow("SELECT 1 FROM stores WHERE name = ?", name).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return &StorageError{Op: "put", Store: name, Err: ErrStoreNotFound}
	}
	if err != nil {
		return &StorageError{Op: "put", Store: name, Err: err}
	}
	_, err = tx.Exec(`INSERT OR REPLACE INTO entries
		(store, key, stored_at, bytes) VALUES (?, ?, ?, ?)`,
		name, e.Key, e.StoredAt.UnixNano(), e.Bytes)
	if err != nil {
		return &StorageError{Op: "put", Store: name, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "put", Store: name, Err: err}
	}
	return nil
}

func (s SQLiteProvider) Keys(name string) ([]string, error) {
	rows, err := s.db.Query("SELECT key FROM entries WHERE store = ? ORDER BY key", name)
	if err != nil {
		return nil, &StorageError{Op: "keys", Store: name, Err: err}
	}
	defer rows.Close()
	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, &StorageError{Op: "keys", Store: name, Err: err}
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "keys", Store: name, Err: err}
	}
	return keys, nil
}
