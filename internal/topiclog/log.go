package topiclog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	pebblestore "github.com/strandmq/strand/internal/storage/pebble"
	"github.com/strandmq/strand/pkg/id"
	"github.com/strandmq/strand/pkg/names"
)

var (
	// ErrMalformedRecord reports fields rejected before ID assignment.
	ErrMalformedRecord = errors.New("topiclog: malformed record")
	// ErrStorageExhausted reports an append the storage layer could not commit.
	ErrStorageExhausted = errors.New("topiclog: storage exhausted")
)

// Limits bounds the shape of accepted records.
type Limits struct {
	MaxFields     int
	KeyMaxBytes   int
	ValueMaxBytes int
}

// Config is the persisted per-topic retention policy.
type Config struct {
	MaxLen int64 `json:"maxLen,omitempty"`
	AgeMs  int64 `json:"ageMs,omitempty"`
}

// Log provides append-only operations for a single topic. All appends
// serialize on the Log's mutex, making it the owning coordinator for the
// topic's ID assignment.
type Log struct {
	db     *pebblestore.DB
	topic  string
	limits Limits

	mu       sync.Mutex
	gen      *id.Generator
	lastID   id.ID
	notifyCh chan struct{}
}

// Open initializes a Log and restores the last assigned ID from metadata.
// The topic name is validated here so no other entry point can splice an
// unchecked name into the keyspace.
func Open(db *pebblestore.DB, topic string, limits Limits) (*Log, error) {
	if err := names.Check("topic", topic); err != nil {
		return nil, err
	}
	l := &Log{
		db:       db,
		topic:    topic,
		limits:   limits,
		gen:      id.NewGenerator(),
		notifyCh: make(chan struct{}),
	}
	meta, err := db.Get(KeyTopicMeta(topic))
	if err == nil && len(meta) == 16 {
		last, _ := id.FromBytes(meta)
		l.lastID = last
		l.gen.Seed(last)
	}
	return l, nil
}

// Topic returns the topic name this log serves.
func (l *Log) Topic() string { return l.topic }

// LastID returns the highest assigned ID, or the zero ID when empty.
func (l *Log) LastID() id.ID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastID
}

// Append validates the fields, assigns the next ID, and commits the entry and
// topic metadata as one batch. Waiters parked in WaitForAppend are woken.
func (l *Log) Append(ctx context.Context, fields map[string][]byte) (id.ID, error) {
	if err := l.validate(fields); err != nil {
		return id.Zero, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rid := l.gen.Next()
	b := l.db.NewBatch()
	defer b.Close()

	if err := b.Set(KeyEntry(l.topic, rid), EncodeFields(fields), nil); err != nil {
		return id.Zero, fmt.Errorf("%w: %v", ErrStorageExhausted, err)
	}
	if err := b.Set(KeyTopicMeta(l.topic), rid.Bytes(), nil); err != nil {
		return id.Zero, fmt.Errorf("%w: %v", ErrStorageExhausted, err)
	}
	if err := l.db.CommitBatch(ctx, b); err != nil {
		return id.Zero, fmt.Errorf("%w: %v", ErrStorageExhausted, err)
	}
	l.lastID = rid

	// wake blocked readers
	close(l.notifyCh)
	l.notifyCh = make(chan struct{})
	return rid, nil
}

func (l *Log) validate(fields map[string][]byte) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields", ErrMalformedRecord)
	}
	if l.limits.MaxFields > 0 && len(fields) > l.limits.MaxFields {
		return fmt.Errorf("%w: %d fields exceeds limit %d", ErrMalformedRecord, len(fields), l.limits.MaxFields)
	}
	for k, v := range fields {
		if k == "" {
			return fmt.Errorf("%w: empty field key", ErrMalformedRecord)
		}
		if l.limits.KeyMaxBytes > 0 && len(k) > l.limits.KeyMaxBytes {
			return fmt.Errorf("%w: field key exceeds %d bytes", ErrMalformedRecord, l.limits.KeyMaxBytes)
		}
		if l.limits.ValueMaxBytes > 0 && len(v) > l.limits.ValueMaxBytes {
			return fmt.Errorf("%w: field %q exceeds %d bytes", ErrMalformedRecord, k, l.limits.ValueMaxBytes)
		}
	}
	return nil
}

// SetConfig persists the topic's retention policy.
func (l *Log) SetConfig(cfg Config) error {
	b, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return l.db.Set(KeyTopicConfig(l.topic), b)
}

// GetConfig loads the topic's retention policy, if any.
func (l *Log) GetConfig() (Config, bool) {
	b, err := l.db.Get(KeyTopicConfig(l.topic))
	if err != nil || len(b) == 0 {
		return Config{}, false
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, false
	}
	return cfg, true
}
