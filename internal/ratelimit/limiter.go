package ratelimit

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	"github.com/strandmq/strand/internal/keymu"
	pebblestore "github.com/strandmq/strand/internal/storage/pebble"
	"github.com/strandmq/strand/pkg/log"
	"github.com/strandmq/strand/pkg/names"
)

// Limiter is a durable fixed-window rate limiter. Window state per key is a
// 16 byte value at rl/{key}: big-endian window start ms followed by the count.
// The count increment and any window rollover commit as one batch, so a
// decision is never based on a partially updated window.
type Limiter struct {
	db     *pebblestore.DB
	logger log.Logger
	nowMs  func() int64

	keys *keymu.Mutex
}

// NewLimiter creates a Limiter over the shared store.
func NewLimiter(db *pebblestore.DB, logger log.Logger) *Limiter {
	if logger == nil {
		logger = log.NewLogger(log.WithLevel(log.InfoLevel))
	}
	return &Limiter{
		db:     db,
		logger: logger.With(log.Component("ratelimit")),
		nowMs:  func() int64 { return time.Now().UnixMilli() },
		keys:   keymu.New(),
	}
}

// Key returns the storage key for a limiter bucket.
func Key(key string) []byte {
	return []byte("rl/" + key)
}

// Allow reports whether one more event fits under limit events per window for
// the key. The first event of an elapsed window starts a fresh count at 1.
// A denied call leaves the stored window untouched.
func (lm *Limiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	if err := names.Check("rate key", key); err != nil {
		return false, err
	}
	if limit <= 0 {
		return false, nil
	}

	lm.keys.Lock(key)
	defer lm.keys.Unlock(key)

	now := lm.nowMs()
	windowStart := now
	count := int64(0)

	raw, err := lm.db.Get(Key(key))
	switch {
	case err == nil && len(raw) == 16:
		start := int64(binary.BigEndian.Uint64(raw[:8]))
		if now-start < window.Milliseconds() {
			windowStart = start
			count = int64(binary.BigEndian.Uint64(raw[8:]))
		}
	case err != nil && !errors.Is(err, pebblestore.ErrNotFound):
		return false, err
	}

	if count >= limit {
		return false, nil
	}

	var val [16]byte
	binary.BigEndian.PutUint64(val[:8], uint64(windowStart))
	binary.BigEndian.PutUint64(val[8:], uint64(count+1))

	b := lm.db.NewBatch()
	defer b.Close()
	if err := b.Set(Key(key), val[:], nil); err != nil {
		return false, err
	}
	if err := lm.db.CommitBatch(ctx, b); err != nil {
		return false, err
	}
	return true, nil
}

// Remaining reports how many events the key's current window still admits.
func (lm *Limiter) Remaining(key string, limit int64, window time.Duration) (int64, error) {
	if err := names.Check("rate key", key); err != nil {
		return 0, err
	}
	lm.keys.Lock(key)
	defer lm.keys.Unlock(key)

	raw, err := lm.db.Get(Key(key))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return limit, nil
		}
		return 0, err
	}
	if len(raw) != 16 {
		return limit, nil
	}
	start := int64(binary.BigEndian.Uint64(raw[:8]))
	if lm.nowMs()-start >= window.Milliseconds() {
		return limit, nil
	}
	left := limit - int64(binary.BigEndian.Uint64(raw[8:]))
	if left < 0 {
		left = 0
	}
	return left, nil
}
