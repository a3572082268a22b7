package lock

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/strandmq/strand/internal/keymu"
	pebblestore "github.com/strandmq/strand/internal/storage/pebble"
	"github.com/strandmq/strand/pkg/log"
	"github.com/strandmq/strand/pkg/names"
)

// ErrAlreadyLocked reports an Acquire on a key whose lock has not expired.
var ErrAlreadyLocked = errors.New("lock: already held")

// record is the JSON stored per held lock at lk/{key}.
type record struct {
	Token       string `json:"token"`
	ExpiresAtMs int64  `json:"expiresAtMs"`
}

// Manager implements advisory locks with TTLs over the shared store. Each
// acquisition mints a fresh UUID fencing token; release and extend only act
// when the caller presents the token of the current holder. An expired lock
// is indistinguishable from an absent one.
type Manager struct {
	db     *pebblestore.DB
	logger log.Logger
	nowMs  func() int64

	keys *keymu.Mutex
}

// NewManager creates a Manager over the shared store.
func NewManager(db *pebblestore.DB, logger log.Logger) *Manager {
	if logger == nil {
		logger = log.NewLogger(log.WithLevel(log.InfoLevel))
	}
	return &Manager{
		db:     db,
		logger: logger.With(log.Component("lock")),
		nowMs:  func() int64 { return time.Now().UnixMilli() },
		keys:   keymu.New(),
	}
}

// Key returns the storage key for a lock.
func Key(key string) []byte {
	return []byte("lk/" + key)
}

// load returns the current holder, treating expired records as absent.
func (m *Manager) load(key string) (record, bool, error) {
	raw, err := m.db.Get(Key(key))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return record{}, false, nil
		}
		return record{}, false, err
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return record{}, false, nil
	}
	if rec.ExpiresAtMs <= m.nowMs() {
		return record{}, false, nil
	}
	return rec, true, nil
}

func (m *Manager) store(ctx context.Context, key string, rec record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	b := m.db.NewBatch()
	defer b.Close()
	if err := b.Set(Key(key), raw, nil); err != nil {
		return err
	}
	return m.db.CommitBatch(ctx, b)
}

// Acquire takes the lock for ttl and returns its fencing token. When the key
// is held and unexpired it returns ErrAlreadyLocked.
func (m *Manager) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := names.Check("lock key", key); err != nil {
		return "", err
	}
	m.keys.Lock(key)
	defer m.keys.Unlock(key)

	if _, held, err := m.load(key); err != nil {
		return "", err
	} else if held {
		return "", ErrAlreadyLocked
	}

	token := uuid.NewString()
	rec := record{Token: token, ExpiresAtMs: m.nowMs() + ttl.Milliseconds()}
	if err := m.store(ctx, key, rec); err != nil {
		return "", err
	}
	m.logger.Debug("lock acquired", log.Str("key", key), log.Str("token", token))
	return token, nil
}

// Release drops the lock if token matches the current holder. It returns
// false, without error, for a mismatched token or a lock that already
// expired or was never held.
func (m *Manager) Release(ctx context.Context, key, token string) (bool, error) {
	if err := names.Check("lock key", key); err != nil {
		return false, err
	}
	m.keys.Lock(key)
	defer m.keys.Unlock(key)

	rec, held, err := m.load(key)
	if err != nil {
		return false, err
	}
	if !held || rec.Token != token {
		return false, nil
	}

	b := m.db.NewBatch()
	defer b.Close()
	if err := b.Delete(Key(key), nil); err != nil {
		return false, err
	}
	if err := m.db.CommitBatch(ctx, b); err != nil {
		return false, err
	}
	m.logger.Debug("lock released", log.Str("key", key))
	return true, nil
}

// Extend pushes the expiry to now+ttl if token matches the current holder.
func (m *Manager) Extend(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if err := names.Check("lock key", key); err != nil {
		return false, err
	}
	m.keys.Lock(key)
	defer m.keys.Unlock(key)

	rec, held, err := m.load(key)
	if err != nil {
		return false, err
	}
	if !held || rec.Token != token {
		return false, nil
	}

	rec.ExpiresAtMs = m.nowMs() + ttl.Milliseconds()
	if err := m.store(ctx, key, rec); err != nil {
		return false, err
	}
	return true, nil
}
