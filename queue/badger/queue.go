// Package badger implements an embedded queue on BadgerDB with visibility
// leases, receive counts and a dead-letter prefix.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/queue"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	defaultPollInterval = 250 * time.Millisecond
	maxConflictRetries  = 3
)

// errEmpty signals that no message is visible right now.
var errEmpty = errors.New("no visible message")

type record struct {
	ID           string `msgpack:"id"`
	Body         []byte `msgpack:"body"`
	EnqueuedAt   int64  `msgpack:"enq"`
	VisibleAt    int64  `msgpack:"vis"`
	ReceiveCount int    `msgpack:"rc"`
}

// Queue implements queue.Queue. Many Queue values may share one database as
// long as their names differ.
type Queue struct {
	db           *badger.DB
	name         string
	visibility   time.Duration
	maxReceive   int
	pollInterval time.Duration
	now          func() time.Time
	closed       atomic.Bool
	logger       *slog.Logger
}

var _ queue.Queue = (*Queue)(nil)

// Option configures a Queue.
type Option func(*Queue) error

// WithVisibilityTimeout sets how long a received message stays hidden.
func WithVisibilityTimeout(d time.Duration) Option {
	return func(q *Queue) error {
		if d <= 0 {
			return fmt.Errorf("visibility timeout must be positive, got %s", d)
		}
		q.visibility = d
		return nil
	}
}

// WithMaxReceive sets the delivery count after which messages are dead-lettered.
func WithMaxReceive(n int) Option {
	return func(q *Queue) error {
		if n <= 0 {
			return fmt.Errorf("max receive must be positive, got %d", n)
		}
		q.maxReceive = n
		return nil
	}
}

// WithPollInterval sets how often Receive rescans while waiting.
func WithPollInterval(d time.Duration) Option {
	return func(q *Queue) error {
		if d <= 0 {
			return fmt.Errorf("poll interval must be positive, got %s", d)
		}
		q.pollInterval = d
		return nil
	}
}

// WithClock replaces the time source used for visibility decisions.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) error {
		q.now = now
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) error {
		q.logger = logger
		return nil
	}
}

// New creates a queue named name on db. Closing the queue does not close db.
func New(db *badger.DB, name string, opts ...Option) (*Queue, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if name == "" || strings.Contains(name, ":") {
		return nil, fmt.Errorf("invalid queue name %q", name)
	}
	q := &Queue{
		db:           db,
		name:         name,
		visibility:   queue.DefaultVisibilityTimeout,
		maxReceive:   queue.DefaultMaxReceive,
		pollInterval: defaultPollInterval,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(q); err != nil {
			return nil, err
		}
	}
	q.logger = q.logger.With("component", "badger_queue", "queue", name)
	return q, nil
}

func (q *Queue) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("q:%s:msg:%s", q.name, id))
}

func (q *Queue) deadKey(id string) []byte {
	return []byte(fmt.Sprintf("q:%s:dlq:%s", q.name, id))
}

func (q *Queue) indexPrefix() []byte {
	return []byte(fmt.Sprintf("q:%s:idx:", q.name))
}

// indexKey orders messages by the time they become visible.
func (q *Queue) indexKey(visibleAt int64, id string) []byte {
	return []byte(fmt.Sprintf("q:%s:idx:%020d:%s", q.name, visibleAt, id))
}

func (q *Queue) parseIndexKey(key []byte) (int64, string, error) {
	suffix := strings.TrimPrefix(string(key), string(q.indexPrefix()))
	ts, id, ok := strings.Cut(suffix, ":")
	if !ok || len(ts) != 20 {
		return 0, "", fmt.Errorf("invalid index key %q", key)
	}
	n, err := strconv.ParseInt(ts, 10, 64)
	return n, id, err
}

func makeReceipt(id string, receiveCount int) string {
	return id + "#" + strconv.Itoa(receiveCount)
}

func parseReceipt(receipt string) (string, int, error) {
	id, count, ok := strings.Cut(receipt, "#")
	if !ok || id == "" {
		return "", 0, fmt.Errorf("%w: malformed receipt %q", queue.ErrReceiptExpired, receipt)
	}
	n, err := strconv.Atoi(count)
	if err != nil {
		return "", 0, fmt.Errorf("%w: malformed receipt %q", queue.ErrReceiptExpired, receipt)
	}
	return id, n, nil
}

func (q *Queue) update(fn func(tx *badger.Txn) error) error {
	if q.closed.Load() || q.db.IsClosed() {
		return queue.ErrQueueClosed
	}
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = q.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	return err
}

func readRecord(tx *badger.Txn, key []byte) (*record, error) {
	item, err := tx.Get(key)
	if err != nil {
		return nil, err
	}
	var rec record
	err = item.Value(func(val []byte) error {
		return msgpack.Unmarshal(val, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func writeRecord(tx *badger.Txn, key []byte, rec *record) error {
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return err
	}
	return tx.Set(key, data)
}

// Send stores the envelope and makes it visible immediately.
func (q *Queue) Send(ctx context.Context, envelope core.Envelope) error {
	body, err := envelope.Encode()
	if err != nil {
		return err
	}
	now := q.now().UnixNano()
	rec := &record{ID: uuid.NewString(), Body: body, EnqueuedAt: now, VisibleAt: now}
	return q.update(func(tx *badger.Txn) error {
		if err := writeRecord(tx, q.msgKey(rec.ID), rec); err != nil {
			return err
		}
		return tx.Set(q.indexKey(rec.VisibleAt, rec.ID), nil)
	})
}

// Receive polls until a message becomes visible, wait elapses or ctx ends.
func (q *Queue) Receive(ctx context.Context, wait time.Duration) (*queue.Message, error) {
	deadline := time.Now().Add(wait)
	for {
		msg, err := q.receiveOnce()
		if err == nil {
			return msg, nil
		}
		if !errors.Is(err, errEmpty) {
			return nil, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		timer := time.NewTimer(min(remaining, q.pollInterval))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (q *Queue) receiveOnce() (*queue.Message, error) {
	var msg *queue.Message
	err := q.update(func(tx *badger.Txn) error {
		msg = nil
		now := q.now().UnixNano()

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = q.indexPrefix()
		iter := tx.NewIterator(opts)

		var (
			claimKey []byte
			claim    *record
			stale    [][]byte
			dead     []*record
		)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			key := iter.Item().KeyCopy(nil)
			visibleAt, id, err := q.parseIndexKey(key)
			if err != nil {
				continue
			}
			if visibleAt > now {
				break
			}
			rec, err := readRecord(tx, q.msgKey(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				stale = append(stale, key)
				continue
			}
			if err != nil {
				iter.Close()
				return err
			}
			if rec.ReceiveCount >= q.maxReceive {
				stale = append(stale, key)
				dead = append(dead, rec)
				continue
			}
			claimKey, claim = key, rec
			break
		}
		iter.Close()

		for _, key := range stale {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		for _, rec := range dead {
			if err := writeRecord(tx, q.deadKey(rec.ID), rec); err != nil {
				return err
			}
			if err := tx.Delete(q.msgKey(rec.ID)); err != nil {
				return err
			}
			q.logger.Warn("message dead-lettered", "message_id", rec.ID, "receive_count", rec.ReceiveCount)
		}
		if claim == nil {
			// Commit dead-letter moves even when nothing is claimable.
			return nil
		}

		claim.ReceiveCount++
		claim.VisibleAt = now + q.visibility.Nanoseconds()
		if err := writeRecord(tx, q.msgKey(claim.ID), claim); err != nil {
			return err
		}
		if err := tx.Delete(claimKey); err != nil {
			return err
		}
		if err := tx.Set(q.indexKey(claim.VisibleAt, claim.ID), nil); err != nil {
			return err
		}
		msg = &queue.Message{
			ID:           claim.ID,
			Body:         claim.Body,
			Receipt:      makeReceipt(claim.ID, claim.ReceiveCount),
			ReceiveCount: claim.ReceiveCount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errEmpty
	}
	return msg, nil
}

// current loads the record a receipt refers to. Acks for messages that no
// longer exist are reported with a nil record.
func (q *Queue) current(tx *badger.Txn, receipt string) (*record, error) {
	id, count, err := parseReceipt(receipt)
	if err != nil {
		return nil, err
	}
	rec, err := readRecord(tx, q.msgKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.ReceiveCount != count {
		return nil, fmt.Errorf("%w: message %s was redelivered", queue.ErrReceiptExpired, id)
	}
	return rec, nil
}

// Ack deletes the message. Acknowledging an already deleted message succeeds.
func (q *Queue) Ack(ctx context.Context, receipt string) error {
	return q.update(func(tx *badger.Txn) error {
		rec, err := q.current(tx, receipt)
		if err != nil || rec == nil {
			return err
		}
		if err := tx.Delete(q.indexKey(rec.VisibleAt, rec.ID)); err != nil {
			return err
		}
		return tx.Delete(q.msgKey(rec.ID))
	})
}

// ExtendVisibility moves the message's visible-at time to now+d.
func (q *Queue) ExtendVisibility(ctx context.Context, receipt string, d time.Duration) error {
	return q.update(func(tx *badger.Txn) error {
		rec, err := q.current(tx, receipt)
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("%w: message no longer exists", queue.ErrReceiptExpired)
		}
		if err := tx.Delete(q.indexKey(rec.VisibleAt, rec.ID)); err != nil {
			return err
		}
		rec.VisibleAt = q.now().Add(d).UnixNano()
		if err := writeRecord(tx, q.msgKey(rec.ID), rec); err != nil {
			return err
		}
		return tx.Set(q.indexKey(rec.VisibleAt, rec.ID), nil)
	})
}

// Depth counts messages that are visible now.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	if q.closed.Load() || q.db.IsClosed() {
		return 0, queue.ErrQueueClosed
	}
	count := 0
	err := q.db.View(func(tx *badger.Txn) error {
		now := q.now().UnixNano()
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = q.indexPrefix()
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			visibleAt, _, err := q.parseIndexKey(iter.Item().Key())
			if err != nil {
				continue
			}
			if visibleAt > now {
				break
			}
			count++
		}
		return nil
	})
	return count, err
}

// DeadLetters returns the messages that exceeded the receive limit.
func (q *Queue) DeadLetters(ctx context.Context) ([]*queue.Message, error) {
	if q.closed.Load() || q.db.IsClosed() {
		return nil, queue.ErrQueueClosed
	}
	var messages []*queue.Message
	err := q.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(fmt.Sprintf("q:%s:dlq:", q.name))
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var rec record
			err := iter.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			messages = append(messages, &queue.Message{ID: rec.ID, Body: rec.Body, ReceiveCount: rec.ReceiveCount})
		}
		return nil
	})
	return messages, err
}

// Close marks the queue closed. The database stays open.
func (q *Queue) Close() error {
	q.closed.Store(true)
	return nil
}
