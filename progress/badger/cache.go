// Package badger implements the progress cache on an embedded BadgerDB.
// Entries use badger's native TTL; each named index is a sequence-ordered key
// range.
package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lectern/progress"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	taskPrefix  = "pc:task:"
	indexPrefix = "pc:idx:"
	valuePrefix = "pc:val:"
	sequenceKey = "pc:seq"

	maxConflictRetries = 3
)

// Cache implements progress.Cache on a badger database that it may share
// with other components.
type Cache struct {
	db     *badger.DB
	seq    *badger.Sequence
	ttl    time.Duration
	logger *slog.Logger
}

var _ progress.Cache = (*Cache)(nil)

// Option configures a Cache.
type Option func(*Cache) error

// WithTTL sets the retention window for job entries.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) error {
		if ttl < time.Second {
			return fmt.Errorf("ttl must be at least one second, got %s", ttl)
		}
		c.ttl = ttl
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) error {
		c.logger = logger
		return nil
	}
}

// New creates a cache on db. Closing the cache does not close db.
func New(db *badger.DB, opts ...Option) (*Cache, error) {
	if db == nil {
		return nil, errors.New("badger database is required")
	}
	c := &Cache{db: db, ttl: progress.DefaultTTL, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "badger_cache")

	seq, err := db.GetSequence([]byte(sequenceKey), 100)
	if err != nil {
		return nil, err
	}
	c.seq = seq
	return c, nil
}

func (c *Cache) update(fn func(tx *badger.Txn) error) error {
	if c.db.IsClosed() {
		return progress.ErrCacheClosed
	}
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = c.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	return translateError(err)
}

func (c *Cache) view(fn func(tx *badger.Txn) error) error {
	if c.db.IsClosed() {
		return progress.ErrCacheClosed
	}
	return translateError(c.db.View(fn))
}

func translateError(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return progress.ErrCacheClosed
	}
	return err
}

func readFields(tx *badger.Txn, key []byte) (map[string]string, error) {
	item, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, progress.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var fields map[string]string
	err = item.Value(func(val []byte) error {
		return msgpack.Unmarshal(val, &fields)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", progress.ErrMalformedEntry, err)
	}
	return fields, nil
}

func (c *Cache) SetFields(ctx context.Context, id string, fields map[string]string) error {
	key := []byte(taskPrefix + id)
	return c.update(func(tx *badger.Txn) error {
		merged, err := readFields(tx, key)
		if err != nil {
			if !errors.Is(err, progress.ErrNotFound) && !errors.Is(err, progress.ErrMalformedEntry) {
				return err
			}
			merged = make(map[string]string, len(fields))
		}
		for k, v := range fields {
			merged[k] = v
		}
		value, err := msgpack.Marshal(merged)
		if err != nil {
			return err
		}
		return tx.SetEntry(badger.NewEntry(key, value).WithTTL(c.ttl))
	})
}

func (c *Cache) Fields(ctx context.Context, id string) (map[string]string, error) {
	var fields map[string]string
	err := c.view(func(tx *badger.Txn) error {
		var err error
		fields, err = readFields(tx, []byte(taskPrefix+id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return fields, nil
}

func (c *Cache) Delete(ctx context.Context, id string) error {
	return c.update(func(tx *badger.Txn) error {
		return tx.Delete([]byte(taskPrefix + id))
	})
}

// indexKeyPrefix returns the key prefix of the named index. The name is
// length prefixed so no index's range contains another's.
func indexKeyPrefix(index string) []byte {
	prefix := make([]byte, len(indexPrefix)+2+len(index))
	n := copy(prefix, indexPrefix)
	binary.BigEndian.PutUint16(prefix[n:], uint16(len(index)))
	copy(prefix[n+2:], index)
	return prefix
}

func (c *Cache) AppendIndex(ctx context.Context, index, id string) error {
	if c.db.IsClosed() {
		return progress.ErrCacheClosed
	}
	if len(index) > math.MaxUint16 {
		return fmt.Errorf("index name too long: %d bytes", len(index))
	}
	n, err := c.seq.Next()
	if err != nil {
		return err
	}
	prefix := indexKeyPrefix(index)
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], n)
	return c.update(func(tx *badger.Txn) error {
		return tx.Set(key, []byte(id))
	})
}

// scanIndex calls fn for each entry of the named index in insertion order
// until fn returns false.
func scanIndex(tx *badger.Txn, index string, fn func(key []byte, id string) bool) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = indexKeyPrefix(index)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		item := iter.Item()
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if !fn(item.KeyCopy(nil), string(id)) {
			break
		}
	}
	return nil
}

func (c *Cache) IndexRange(ctx context.Context, index string, offset, limit int) ([]string, error) {
	ids := []string{}
	if offset < 0 || limit <= 0 {
		return ids, nil
	}
	err := c.view(func(tx *badger.Txn) error {
		pos := 0
		return scanIndex(tx, index, func(_ []byte, id string) bool {
			if pos >= offset {
				ids = append(ids, id)
			}
			pos++
			return len(ids) < limit
		})
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *Cache) IndexLen(ctx context.Context, index string) (int, error) {
	count := 0
	err := c.view(func(tx *badger.Txn) error {
		return scanIndex(tx, index, func([]byte, string) bool {
			count++
			return true
		})
	})
	return count, err
}

func (c *Cache) RemoveIndex(ctx context.Context, index, id string) error {
	return c.update(func(tx *badger.Txn) error {
		var keys [][]byte
		err := scanIndex(tx, index, func(key []byte, indexed string) bool {
			if indexed == id {
				keys = append(keys, key)
			}
			return true
		})
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Cache) SetValue(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.update(func(tx *badger.Txn) error {
		entry := badger.NewEntry([]byte(valuePrefix+key), []byte(value))
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return tx.SetEntry(entry)
	})
}

func (c *Cache) Value(ctx context.Context, key string) (string, error) {
	var value string
	err := c.view(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(valuePrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return progress.ErrNotFound
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		value = string(raw)
		return err
	})
	return value, err
}

// Close releases the index sequence. The database stays open.
func (c *Cache) Close() error {
	if c.seq == nil || c.db.IsClosed() {
		return nil
	}
	err := c.seq.Release()
	c.seq = nil
	return err
}
