package runtime

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	cfgpkg "github.com/strandmq/strand/internal/config"
	"github.com/strandmq/strand/internal/dispatch"
	"github.com/strandmq/strand/internal/group"
	"github.com/strandmq/strand/internal/lock"
	"github.com/strandmq/strand/internal/ratelimit"
	pebblestore "github.com/strandmq/strand/internal/storage/pebble"
	"github.com/strandmq/strand/internal/topiclog"
	"github.com/strandmq/strand/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	Logger        log.Logger
}

// Runtime wires storage, config, and component facades for a single-node
// instance. It is the single owner of each topic's log: OpenLog hands out one
// shared instance per topic so all appends serialize on that instance.
type Runtime struct {
	db     *pebblestore.DB
	config cfgpkg.Config
	logger log.Logger

	mu   sync.Mutex
	logs map[string]*topiclog.Log

	registry   *group.Registry
	dispatcher *dispatch.Dispatcher
	limiter    *ratelimit.Limiter
	locks      *lock.Manager
}

// Open initializes the underlying storage and component facades.
func Open(opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger(log.WithLevel(log.InfoLevel))
	}
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.DataDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
	})
	if err != nil {
		return nil, err
	}
	rt := &Runtime{
		db:     db,
		config: opts.Config,
		logger: logger,
		logs:   make(map[string]*topiclog.Log),
	}
	rt.registry = group.NewRegistry(db, rt, opts.Config.ClaimTimeout(), logger)
	rt.dispatcher = dispatch.NewDispatcher(rt, logger)
	rt.limiter = ratelimit.NewLimiter(db, logger)
	rt.locks = lock.NewManager(db, logger)
	return rt, nil
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth verifies the store answers reads.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// OpenLog returns the shared log instance for a topic, opening it on first
// use. Implements the LogSource contract of group and dispatch.
func (r *Runtime) OpenLog(topic string) (*topiclog.Log, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.logs[topic]; ok {
		return l, nil
	}
	lim := r.config.RecordLimits
	l, err := topiclog.Open(r.db, topic, topiclog.Limits{
		MaxFields:     lim.MaxFields,
		KeyMaxBytes:   lim.KeyMaxBytes,
		ValueMaxBytes: lim.ValueMaxBytes,
	})
	if err != nil {
		return nil, err
	}
	r.logs[topic] = l
	return l, nil
}

// CreateTopic opens the topic and persists its retention policy.
func (r *Runtime) CreateTopic(topic string, cfg topiclog.Config) error {
	l, err := r.OpenLog(topic)
	if err != nil {
		return err
	}
	if cfg == (topiclog.Config{}) {
		return nil
	}
	return l.SetConfig(cfg)
}

// ListTopics scans the keyspace for distinct topic names, sorted.
func (r *Runtime) ListTopics() ([]string, error) {
	prefix := []byte("t/")
	hi := append(append([]byte{}, prefix...), 0xFF)
	it, err := r.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	set := map[string]struct{}{}
	for ok := it.First(); ok; ok = it.Next() {
		rest := it.Key()[len(prefix):]
		idx := bytes.IndexByte(rest, '/')
		if idx <= 0 {
			continue
		}
		set[string(rest[:idx])] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for topic := range set {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out, nil
}

// TrimTopic applies the topic's retention policy, falling back to the
// instance defaults, and honors the groups' unacknowledged floor.
func (r *Runtime) TrimTopic(ctx context.Context, topic string) (topiclog.TrimResult, error) {
	l, err := r.OpenLog(topic)
	if err != nil {
		return topiclog.TrimResult{}, err
	}
	cfg, ok := l.GetConfig()
	if !ok {
		cfg = topiclog.Config{MaxLen: r.config.Retention.MaxLen, AgeMs: r.config.Retention.AgeMs}
	}

	var total topiclog.TrimResult
	if cfg.AgeMs > 0 {
		cutoff := time.Now().UnixMilli() - cfg.AgeMs
		res, err := l.TrimOlderThan(ctx, cutoff, r.registry)
		if err != nil {
			return total, err
		}
		total.Deleted += res.Deleted
		total.HeldByPending = total.HeldByPending || res.HeldByPending
	}
	if cfg.MaxLen > 0 {
		res, err := l.TrimToMaxLen(ctx, cfg.MaxLen, r.registry)
		if err != nil {
			return total, err
		}
		total.Deleted += res.Deleted
		total.HeldByPending = total.HeldByPending || res.HeldByPending
	}
	if total.HeldByPending {
		r.logger.Warn("trim stopped at unacknowledged records", log.Str("topic", topic))
	}
	return total, nil
}

// Registry returns the consumer group registry.
func (r *Runtime) Registry() *group.Registry { return r.registry }

// Dispatcher returns the publish/subscribe dispatcher.
func (r *Runtime) Dispatcher() *dispatch.Dispatcher { return r.dispatcher }

// Limiter returns the durable rate limiter.
func (r *Runtime) Limiter() *ratelimit.Limiter { return r.limiter }

// Locks returns the lock manager.
func (r *Runtime) Locks() *lock.Manager { return r.locks }

// DB exposes the underlying store for internal operations.
func (r *Runtime) DB() *pebblestore.DB { return r.db }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
