package dispatch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/strandmq/strand/internal/topiclog"
	"github.com/strandmq/strand/pkg/id"
	"github.com/strandmq/strand/pkg/log"
	"github.com/strandmq/strand/pkg/names"
)

const defaultBuffer = 64

// LogSource resolves the open log coordinating a topic.
type LogSource interface {
	OpenLog(topic string) (*topiclog.Log, error)
}

// SubscribeOptions configures a plain subscription.
type SubscribeOptions struct {
	// Buffer is the delivery channel capacity. Zero uses the default.
	Buffer int
	// Filter is an optional CEL expression over topic, id, ts_ms, seq,
	// fields, and now_ms. Records that do not match are skipped.
	Filter string
}

// Subscription is an ephemeral, fire-and-forget registration on a topic.
// Records appended before Subscribe returned are never delivered; records
// arriving while the buffer is full are dropped.
type Subscription struct {
	topic  string
	key    uint64
	ch     chan topiclog.Record
	filter celFilter

	dropped atomic.Int64
	once    sync.Once
	d       *Dispatcher
}

// Records is the delivery channel. It is closed by Cancel.
func (s *Subscription) Records() <-chan topiclog.Record { return s.ch }

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string { return s.topic }

// Dropped reports how many matching records were discarded because the
// buffer was full.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Cancel deregisters the subscription and closes its channel. Safe to call
// more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.d.remove(s)
		close(s.ch)
	})
}

// Dispatcher appends records through the topic logs and fans them out to
// live subscriptions.
type Dispatcher struct {
	logs   LogSource
	logger log.Logger

	mu      sync.RWMutex
	nextKey uint64
	subs    map[string]map[uint64]*Subscription
}

// NewDispatcher creates a Dispatcher over the given log source.
func NewDispatcher(logs LogSource, logger log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.NewLogger(log.WithLevel(log.InfoLevel))
	}
	return &Dispatcher{
		logs:   logs,
		logger: logger.With(log.Component("dispatch")),
		subs:   make(map[string]map[uint64]*Subscription),
	}
}

// Publish appends the record and synchronously offers it to every live
// subscription on the topic. Delivery is best effort: a full or slow
// subscriber misses the record without affecting the producer or the other
// subscribers. The durable append itself never depends on delivery.
func (d *Dispatcher) Publish(ctx context.Context, topic string, fields map[string][]byte) (id.ID, error) {
	l, err := d.logs.OpenLog(topic)
	if err != nil {
		return id.Zero, err
	}
	rid, err := l.Append(ctx, fields)
	if err != nil {
		return id.Zero, err
	}

	rec := topiclog.Record{ID: rid, Fields: fields}
	d.mu.RLock()
	for _, sub := range d.subs[topic] {
		if !sub.filter.Eval(topic, rec) {
			continue
		}
		select {
		case sub.ch <- rec:
		default:
			sub.dropped.Add(1)
			d.logger.Debug("subscriber buffer full, record dropped",
				log.Str("topic", topic), log.Str("id", rid.String()))
		}
	}
	d.mu.RUnlock()
	return rid, nil
}

// Subscribe registers a live subscription on the topic. The returned
// subscription only sees records published after registration.
func (d *Dispatcher) Subscribe(topic string, opts SubscribeOptions) (*Subscription, error) {
	if err := names.Check("topic", topic); err != nil {
		return nil, err
	}
	filter, err := newCELFilter(opts.Filter)
	if err != nil {
		return nil, err
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextKey++
	sub := &Subscription{
		topic:  topic,
		key:    d.nextKey,
		ch:     make(chan topiclog.Record, buffer),
		filter: filter,
		d:      d,
	}
	if d.subs[topic] == nil {
		d.subs[topic] = make(map[uint64]*Subscription)
	}
	d.subs[topic][sub.key] = sub
	return sub, nil
}

// SubscriberCount reports the live subscriptions on a topic.
func (d *Dispatcher) SubscriberCount(topic string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs[topic])
}

func (d *Dispatcher) remove(sub *Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()
	topicSubs := d.subs[sub.topic]
	delete(topicSubs, sub.key)
	if len(topicSubs) == 0 {
		delete(d.subs, sub.topic)
	}
}
