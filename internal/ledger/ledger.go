// Package ledger implements the ordered key-value store that backs every
// component: trades, price snapshots, watermarks, and wallet statistics all
// live in a single flat namespace with structured key prefixes. The engine is
// bbolt, a memory-mapped single-file B+tree with one writer and byte-ordered
// keys, which gives the three guarantees the rest of the system relies on:
// batch writes are all-or-nothing, scans observe a consistent snapshot, and
// iteration order is ascending byte-lexicographic.
package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/smartflow/engine/internal/domain"
)

// ErrStopScan can be returned from a scan callback to end the scan early
// without surfacing an error to the caller.
var ErrStopScan = errors.New("stop scan")

// bucketName is the single bucket holding the flat keyspace.
var bucketName = []byte("ledger")

// KV is one key-value pair in a batch write.
type KV struct {
	Key   string
	Value []byte
}

// Store is the ledger handle. It owns the memory-mapped file region and must
// be closed exactly once on every exit path. A Store is the sole writer to
// its file; concurrent external readers are tolerated by bbolt but not
// exercised here.
type Store struct {
	db *bolt.DB

	mu     sync.Mutex
	closed bool
}

// Open opens (or creates) the ledger file at path and ensures the bucket
// exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying file mapping. Safe to call multiple times;
// only the first call closes.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("ledger: close: %w", err)
	}
	return nil
}

// Put writes a single key.
func (s *Store) Put(key string, value []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("ledger: put %s: %w", key, err)
	}
	return nil
}

// Get reads a single key. Returns domain.ErrNotFound when the key is absent.
func (s *Store) Get(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(key))
		if v == nil {
			return domain.ErrNotFound
		}
		// bbolt values are only valid inside the transaction.
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("ledger: get %s: %w", key, err)
	}
	return out, nil
}

// Delete removes a key. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("ledger: delete %s: %w", key, err)
	}
	return nil
}

// WriteBatch writes all items inside one transaction: either every pair is
// persisted or none is.
func (s *Store) WriteBatch(items []KV) error {
	if len(items) == 0 {
		return nil
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		for _, kv := range items {
			if err := b.Put([]byte(kv.Key), kv.Value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ledger: write batch of %d: %w", len(items), err)
	}
	return nil
}

// ScanPrefix iterates all keys with the given prefix in ascending
// byte-lexicographic order, invoking fn for each pair inside one read
// transaction, so the scan observes a consistent snapshot as of its start.
// limit <= 0 means unbounded. fn may return ErrStopScan to end early without
// error; any other error aborts the scan and is returned.
func (s *Store) ScanPrefix(prefix string, limit int, fn func(key string, value []byte) error) error {
	pref := []byte(prefix)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		n := 0
		for k, v := c.Seek(pref); k != nil && bytes.HasPrefix(k, pref); k, v = c.Next() {
			if err := fn(string(k), v); err != nil {
				return err
			}
			n++
			if limit > 0 && n >= limit {
				return nil
			}
		}
		return nil
	})
	if errors.Is(err, ErrStopScan) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ledger: scan %s: %w", prefix, err)
	}
	return nil
}

// ScanFrom iterates keys in ascending order starting at the first key >=
// start, for as long as keys still carry prefix. Same snapshot, limit, and
// early-stop semantics as ScanPrefix. This turns "first record at or after
// time T" into a single cursor seek instead of a walk of the whole prefix.
func (s *Store) ScanFrom(prefix, start string, limit int, fn func(key string, value []byte) error) error {
	pref := []byte(prefix)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		n := 0
		for k, v := c.Seek([]byte(start)); k != nil && bytes.HasPrefix(k, pref); k, v = c.Next() {
			if err := fn(string(k), v); err != nil {
				return err
			}
			n++
			if limit > 0 && n >= limit {
				return nil
			}
		}
		return nil
	})
	if errors.Is(err, ErrStopScan) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ledger: scan from %s: %w", start, err)
	}
	return nil
}

// LastInPrefix returns the greatest key with the given prefix and its value,
// or domain.ErrNotFound when the prefix is empty. Used for tail lookups such
// as "most recent trade" without walking the whole range.
func (s *Store) LastInPrefix(prefix string) (string, []byte, error) {
	pref := []byte(prefix)
	var (
		key string
		val []byte
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		// Seek to the first key after the prefix range, then step back.
		upper := append(append([]byte(nil), pref...), 0xff)
		k, v := c.Seek(upper)
		if k == nil {
			k, v = c.Last()
		} else {
			k, v = c.Prev()
		}
		if k == nil || !bytes.HasPrefix(k, pref) {
			return domain.ErrNotFound
		}
		key = string(k)
		val = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, domain.ErrNotFound
		}
		return "", nil, fmt.Errorf("ledger: last in %s: %w", prefix, err)
	}
	return key, val, nil
}

// PutJSON serializes v as compact JSON and writes it under key.
func (s *Store) PutJSON(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("ledger: marshal %s: %w", key, err)
	}
	return s.Put(key, b)
}

// GetJSON reads key and unmarshals it into out. Returns domain.ErrNotFound
// when the key is absent; fields missing from older records keep their zero
// values.
func (s *Store) GetJSON(key string, out any) error {
	b, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("ledger: unmarshal %s: %w", key, err)
	}
	return nil
}
