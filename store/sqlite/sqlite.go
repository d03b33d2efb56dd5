/*
Package sqlite provides the SQLite-backed KVStore: a typed key-value
store with UPSERT semantics and prefix-limited listing, layered over a
single-writer/multi-reader contract and driving a kv.TxnLogger with
before/after images on every mutation.

PURPOSE:
  Implements the KVStore component: Put, Get, Exists, Delete, List over
  a single `kv_records` relation keyed by the composite primary key
  (type, key).

KEY TABLE:
  kv_records(type, key, value, updated_at), primary key (type, key),
  plus an index on (type) to accelerate List.

CONCURRENCY:
  Uses sync.RWMutex for the write lane: Put and Delete take the write
  lock (serializing all mutations), Get/Exists/List take the read lock
  (so reads proceed concurrently with each other). The *sql.DB handle
  is guarded by this mutex rather than relying on SQLite's own locking.

WAL MODE:
  Opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

WRITE LANE / LOGGER CONTRACT:
  Put and Delete capture any pre-image under the same write-lock
  critical section they use to mutate the row, and emit TxnLogger
  calls before and after the row change so that paired before/after
  entries share identical ts, updated_at, and txid, and never
  interleave with another mutation's entries.

USAGE:
  store, err := sqlite.New(":memory:", logger, 1<<20)
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - kv/record.go: Record shape and validation
  - kv/logger.go: TxnLogger interface this store drives
  - txnlog: production TxnLogger implementation
*/
package sqlite

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/kvengine/kv"
)

// Store implements the KVStore component using SQLite.
type Store struct {
	db     *sql.DB
	logger kv.TxnLogger
	maxVal int // maximum accepted value size in bytes; 0 = unbounded

	mu sync.RWMutex
}

// New opens (creating if absent) the database at dbPath and migrates
// its schema. Use ":memory:" for an in-memory database. logger
// receives before/after images for every Put/Delete. maxValueBytes
// bounds the accepted value size for Put; 0 means unbounded.
func New(dbPath string, logger kv.TxnLogger, maxValueBytes int) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("kv/sqlite: open database: %w", err)
	}

	s := &Store{db: db, logger: logger, maxVal: maxValueBytes}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("kv/sqlite: migrate database: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive, for health checks.
func (s *Store) Ping() error {
	return s.db.Ping()
}

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS kv_records (
		type       TEXT    NOT NULL,
		key        TEXT    NOT NULL,
		value      BLOB    NOT NULL,
		updated_at REAL    NOT NULL,
		PRIMARY KEY (type, key)
	);

	CREATE INDEX IF NOT EXISTS idx_kv_records_type ON kv_records(type);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Put persists value at (typ, key), replacing any prior value. typ,
// key, and value must be nonempty; value must not exceed the store's
// configured maximum size. If a record already exists, its pre-image
// is logged as update-before and the new value as update-after,
// sharing one txid and one commit timestamp; otherwise a single
// insert-after is logged.
func (s *Store) Put(typ, key string, value []byte) error {
	if err := kv.ValidateTypeOrKey(typ); err != nil {
		return err
	}
	if err := kv.ValidateTypeOrKey(key); err != nil {
		return err
	}
	if len(value) == 0 {
		return kv.ErrInvalidArgument
	}
	if s.maxVal > 0 && len(value) > s.maxVal {
		return kv.ErrValueTooLarge
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowSeconds()
	txid := uuid.NewString()

	existing, existed, err := s.getLocked(typ, key)
	if err != nil {
		return fmt.Errorf("kv/sqlite: read existing value: %w", err)
	}

	if existed {
		s.logger.LogUpdateBefore(typ, key, existing, now, now, txid)
	}

	_, err = s.db.Exec(`
		INSERT INTO kv_records (type, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(type, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, typ, key, value, now)
	if err != nil {
		return fmt.Errorf("kv/sqlite: upsert: %w", err)
	}

	if existed {
		s.logger.LogUpdateAfter(typ, key, value, now, now, txid)
	} else {
		s.logger.LogInsertAfter(typ, key, value, now, now, txid)
	}

	return nil
}

// Get returns the exact bytes previously stored at (typ, key) along
// with the wall-clock time of the commit that wrote them, or
// (nil, 0, false, nil) if absent.
func (s *Store) Get(typ, key string) ([]byte, float64, bool, error) {
	if err := kv.ValidateTypeOrKey(typ); err != nil {
		return nil, 0, false, err
	}
	if err := kv.ValidateTypeOrKey(key); err != nil {
		return nil, 0, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getWithTimeLocked(typ, key)
}

// getLocked returns just the value, for callers (Put, Delete) that
// only need the pre-image and already hold the write lock.
func (s *Store) getLocked(typ, key string) ([]byte, bool, error) {
	value, _, found, err := s.getWithTimeLocked(typ, key)
	return value, found, err
}

func (s *Store) getWithTimeLocked(typ, key string) ([]byte, float64, bool, error) {
	var value []byte
	var updatedAt float64
	err := s.db.QueryRow(`SELECT value, updated_at FROM kv_records WHERE type = ? AND key = ?`, typ, key).Scan(&value, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}
	return value, updatedAt, true, nil
}

// Exists reports whether a value is stored at (typ, key). Equivalent
// to Get returning found=true, but avoids copying the value.
func (s *Store) Exists(typ, key string) (bool, error) {
	if err := kv.ValidateTypeOrKey(typ); err != nil {
		return false, err
	}
	if err := kv.ValidateTypeOrKey(key); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var one int
	err := s.db.QueryRow(`SELECT 1 FROM kv_records WHERE type = ? AND key = ?`, typ, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the value at (typ, key), if any. Idempotent: deleting
// a missing key succeeds and logs delete-before-missing instead of
// failing.
func (s *Store) Delete(typ, key string) error {
	if err := kv.ValidateTypeOrKey(typ); err != nil {
		return err
	}
	if err := kv.ValidateTypeOrKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowSeconds()
	txid := uuid.NewString()

	existing, existed, err := s.getLocked(typ, key)
	if err != nil {
		return fmt.Errorf("kv/sqlite: read existing value: %w", err)
	}

	if !existed {
		s.logger.LogDeleteBeforeMissing(typ, key, now, now, txid)
		return nil
	}

	s.logger.LogDeleteBefore(typ, key, existing, now, now, txid)

	if _, err := s.db.Exec(`DELETE FROM kv_records WHERE type = ? AND key = ?`, typ, key); err != nil {
		return fmt.Errorf("kv/sqlite: delete: %w", err)
	}

	return nil
}

// List returns up to limit keys of the given type in lexicographically
// ascending order, optionally restricted to those starting with
// prefix. limit is clamped to [0, kv.MaxLimit] by the caller (the HTTP
// layer does this before calling; List clamps again for safety).
//
// prefix is matched with a literal SQL LIKE pattern anchored at the
// start ("prefix%"); '%' and '_' in prefix are not escaped, so a
// caller that needs to match those characters literally must escape
// them itself. This is a known, documented limitation, not a bug.
func (s *Store) List(typ, prefix string, limit int) ([]string, error) {
	if err := kv.ValidateTypeOrKey(typ); err != nil {
		return nil, err
	}
	limit = kv.ClampLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows *sql.Rows
	var err error
	if prefix == "" {
		rows, err = s.db.Query(`
			SELECT key FROM kv_records WHERE type = ? ORDER BY key ASC LIMIT ?
		`, typ, limit)
	} else {
		rows, err = s.db.Query(`
			SELECT key FROM kv_records WHERE type = ? AND key LIKE ? || '%' ORDER BY key ASC LIMIT ?
		`, typ, prefix, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("kv/sqlite: list: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0, limit)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("kv/sqlite: scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
