package group

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/strandmq/strand/internal/keymu"
	pebblestore "github.com/strandmq/strand/internal/storage/pebble"
	"github.com/strandmq/strand/internal/topiclog"
	"github.com/strandmq/strand/pkg/id"
	"github.com/strandmq/strand/pkg/log"
	"github.com/strandmq/strand/pkg/names"
)

var (
	// ErrGroupExists reports a Create on a name already registered for the topic.
	ErrGroupExists = errors.New("group: already exists")
	// ErrGroupNotFound reports an operation on an unregistered group.
	ErrGroupNotFound = errors.New("group: not found")
)

// LogSource resolves the open log coordinating a topic. Claim uses it to read
// records and to park on the topic's append notification.
type LogSource interface {
	OpenLog(topic string) (*topiclog.Log, error)
}

// Meta is the persisted group metadata.
type Meta struct {
	CreatedAtMs int64  `json:"createdAtMs"`
	StartID     string `json:"startId"`
}

// PendingEntry describes one claimed, unacknowledged record.
type PendingEntry struct {
	Consumer      string
	ID            id.ID
	ClaimedAtMs   int64
	DeliveryCount int
}

// pendingValue is the JSON stored per pending entry.
type pendingValue struct {
	ClaimedAtMs   int64 `json:"claimedAtMs"`
	DeliveryCount int   `json:"deliveryCount"`
	DeadlineMs    int64 `json:"deadlineMs"`
}

// Registry manages durable consumer groups over the shared Pebble keyspace.
// Create, Claim, and Ack for one (topic, group) serialize on a per-group
// mutex; different groups proceed independently.
type Registry struct {
	db      *pebblestore.DB
	logs    LogSource
	timeout time.Duration
	logger  log.Logger
	nowMs   func() int64

	groups *keymu.Mutex
}

// NewRegistry creates a Registry. claimTimeout bounds how long a claimed
// record may stay unacknowledged before another consumer can reclaim it.
func NewRegistry(db *pebblestore.DB, logs LogSource, claimTimeout time.Duration, logger log.Logger) *Registry {
	if claimTimeout <= 0 {
		claimTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.NewLogger(log.WithLevel(log.InfoLevel))
	}
	return &Registry{
		db:      db,
		logs:    logs,
		timeout: claimTimeout,
		logger:  logger.With(log.Component("group")),
		nowMs:   func() int64 { return time.Now().UnixMilli() },
		groups:  keymu.New(),
	}
}

func groupKey(topic, group string) string {
	return topic + "/" + group
}

// Create registers a group whose delivery starts after startID. Use id.Zero
// to start from the beginning of the topic, or the topic's current last ID to
// start at the tail.
func (r *Registry) Create(ctx context.Context, topic, group string, startID id.ID) error {
	if err := names.Check("topic", topic); err != nil {
		return err
	}
	if err := names.Check("group", group); err != nil {
		return err
	}
	key := groupKey(topic, group)
	r.groups.Lock(key)
	defer r.groups.Unlock(key)

	metaKey := KeyGroupMeta(topic, group)
	if _, err := r.db.Get(metaKey); err == nil {
		return ErrGroupExists
	} else if !errors.Is(err, pebblestore.ErrNotFound) {
		return err
	}

	meta, err := json.Marshal(Meta{CreatedAtMs: r.nowMs(), StartID: startID.String()})
	if err != nil {
		return err
	}
	b := r.db.NewBatch()
	defer b.Close()
	if err := b.Set(metaKey, meta, nil); err != nil {
		return err
	}
	if err := b.Set(KeyGroupCursor(topic, group), startID.Bytes(), nil); err != nil {
		return err
	}
	if err := r.db.CommitBatch(ctx, b); err != nil {
		return err
	}
	r.logger.Info("group created",
		log.Str("topic", topic), log.Str("group", group), log.Str("start", startID.String()))
	return nil
}

// CreateIfAbsent is Create that treats an existing group as success.
func (r *Registry) CreateIfAbsent(ctx context.Context, topic, group string, startID id.ID) error {
	err := r.Create(ctx, topic, group, startID)
	if errors.Is(err, ErrGroupExists) {
		return nil
	}
	return err
}

func (r *Registry) exists(topic, group string) (bool, error) {
	_, err := r.db.Get(KeyGroupMeta(topic, group))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, pebblestore.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Claim delivers up to count records to consumer. Expired claims of other
// consumers are reassigned first, oldest deadline first, with their delivery
// count incremented; remaining capacity is filled from past the group cursor.
// With block > 0 an empty claim parks on the topic's append notification and
// retries until the block window elapses.
func (r *Registry) Claim(ctx context.Context, topic, group, consumer string, count int, block time.Duration) ([]topiclog.Record, error) {
	if count <= 0 {
		count = 1
	}
	if err := names.Check("consumer", consumer); err != nil {
		return nil, err
	}
	ok, err := r.exists(topic, group)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrGroupNotFound
	}
	l, err := r.logs.OpenLog(topic)
	if err != nil {
		return nil, err
	}

	key := groupKey(topic, group)
	deadline := time.Now().Add(block)
	for {
		// capture the append signal before the claim pass; an append landing
		// between the pass and the wait closes this channel
		notify := l.Notify()
		r.groups.Lock(key)
		recs, err := r.claimLocked(ctx, l, topic, group, consumer, count)
		r.groups.Unlock(key)
		if err != nil || len(recs) > 0 || block <= 0 {
			return recs, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		if !topiclog.WaitNotify(ctx, notify, remaining) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, nil
		}
	}
}

// claimLocked performs one claim pass under the group mutex. Every mutation
// of the pass, reclaims, new pending entries, and the cursor advance, commits
// as a single batch.
func (r *Registry) claimLocked(ctx context.Context, l *topiclog.Log, topic, group, consumer string, count int) ([]topiclog.Record, error) {
	now := r.nowMs()
	newDeadline := now + r.timeout.Milliseconds()

	b := r.db.NewBatch()
	defer b.Close()

	var out []topiclog.Record

	reclaimed, err := r.reclaimExpired(b, l, topic, group, consumer, now, newDeadline, count)
	if err != nil {
		return nil, err
	}
	out = append(out, reclaimed...)

	if len(out) < count {
		fresh, err := r.deliverFresh(b, l, topic, group, consumer, now, newDeadline, count-len(out))
		if err != nil {
			return nil, err
		}
		out = append(out, fresh...)
	}

	if b.Count() == 0 {
		return nil, nil
	}
	if err := r.db.CommitBatch(ctx, b); err != nil {
		return nil, err
	}
	return out, nil
}

// reclaimExpired scans the reclaim index for deadlines at or before now and
// reassigns those entries to consumer.
func (r *Registry) reclaimExpired(b *pebble.Batch, l *topiclog.Log, topic, group, consumer string, now, newDeadline int64, limit int) ([]topiclog.Record, error) {
	prefix := KeyReclaimPrefix(topic, group)
	upper := KeyReclaim(topic, group, now+1, id.Zero)
	iter, err := r.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []topiclog.Record
	for ok := iter.First(); ok && len(out) < limit; ok = iter.Next() {
		_, rid, okParse := reclaimKeyParts(topic, group, iter.Key())
		if !okParse {
			continue
		}
		holder := string(iter.Value())

		oldPending := KeyPending(topic, group, holder, rid)
		var prev pendingValue
		if raw, err := r.db.Get(oldPending); err == nil {
			_ = json.Unmarshal(raw, &prev)
		}

		if err := b.Delete(iter.Key(), nil); err != nil {
			return nil, err
		}
		if err := b.Delete(oldPending, nil); err != nil {
			return nil, err
		}

		rec, found := l.Get(rid)
		if !found {
			// trimmed out from under the claim; drop the entry
			r.logger.Warn("pending record no longer in log",
				log.Str("topic", topic), log.Str("group", group), log.Str("id", rid.String()))
			continue
		}
		if err := r.writePending(b, topic, group, consumer, rid, pendingValue{
			ClaimedAtMs:   now,
			DeliveryCount: prev.DeliveryCount + 1,
			DeadlineMs:    newDeadline,
		}); err != nil {
			return nil, err
		}
		r.logger.Debug("reclaimed expired claim",
			log.Str("topic", topic), log.Str("group", group),
			log.Str("from", holder), log.Str("to", consumer), log.Str("id", rid.String()))
		out = append(out, rec)
	}
	return out, nil
}

// deliverFresh advances the cursor past records not yet delivered to anyone.
func (r *Registry) deliverFresh(b *pebble.Batch, l *topiclog.Log, topic, group, consumer string, now, newDeadline int64, limit int) ([]topiclog.Record, error) {
	cursor := id.Zero
	if raw, err := r.db.Get(KeyGroupCursor(topic, group)); err == nil {
		if c, err := id.FromBytes(raw); err == nil {
			cursor = c
		}
	}

	recs, err := l.Read(topiclog.ReadOptions{From: cursor.Next(), Limit: limit})
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if err := r.writePending(b, topic, group, consumer, rec.ID, pendingValue{
			ClaimedAtMs:   now,
			DeliveryCount: 1,
			DeadlineMs:    newDeadline,
		}); err != nil {
			return nil, err
		}
		cursor = rec.ID
	}
	if len(recs) > 0 {
		if err := b.Set(KeyGroupCursor(topic, group), cursor.Bytes(), nil); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

func (r *Registry) writePending(b *pebble.Batch, topic, group, consumer string, rid id.ID, val pendingValue) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	if err := b.Set(KeyPending(topic, group, consumer, rid), raw, nil); err != nil {
		return err
	}
	return b.Set(KeyReclaim(topic, group, val.DeadlineMs, rid), []byte(consumer), nil)
}

// Ack acknowledges one record, removing it from whichever consumer's pending
// set holds it. Acknowledging a record that is not pending is a no-op.
func (r *Registry) Ack(ctx context.Context, topic, group string, rid id.ID) error {
	ok, err := r.exists(topic, group)
	if err != nil {
		return err
	}
	if !ok {
		return ErrGroupNotFound
	}

	key := groupKey(topic, group)
	r.groups.Lock(key)
	defer r.groups.Unlock(key)

	consumer, val, found, err := r.findPending(topic, group, rid)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	b := r.db.NewBatch()
	defer b.Close()
	if err := b.Delete(KeyPending(topic, group, consumer, rid), nil); err != nil {
		return err
	}
	if err := b.Delete(KeyReclaim(topic, group, val.DeadlineMs, rid), nil); err != nil {
		return err
	}
	return r.db.CommitBatch(ctx, b)
}

// findPending locates the consumer currently holding a record, if any.
func (r *Registry) findPending(topic, group string, rid id.ID) (string, pendingValue, bool, error) {
	prefix := KeyPendingPrefix(topic, group)
	upper := append(append([]byte{}, prefix...), 0xFF)
	iter, err := r.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return "", pendingValue{}, false, err
	}
	defer iter.Close()

	for ok := iter.First(); ok; ok = iter.Next() {
		consumer, got, okParse := pendingKeyParts(topic, group, iter.Key())
		if !okParse || got != rid {
			continue
		}
		var val pendingValue
		if err := json.Unmarshal(iter.Value(), &val); err != nil {
			return "", pendingValue{}, false, fmt.Errorf("group: decode pending entry: %w", err)
		}
		return consumer, val, true, nil
	}
	return "", pendingValue{}, false, nil
}

// Pending reports the group's unacknowledged entries in ID order per consumer.
func (r *Registry) Pending(ctx context.Context, topic, group string) ([]PendingEntry, error) {
	ok, err := r.exists(topic, group)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrGroupNotFound
	}

	prefix := KeyPendingPrefix(topic, group)
	upper := append(append([]byte{}, prefix...), 0xFF)
	iter, err := r.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []PendingEntry
	for ok := iter.First(); ok; ok = iter.Next() {
		consumer, rid, okParse := pendingKeyParts(topic, group, iter.Key())
		if !okParse {
			continue
		}
		var val pendingValue
		if err := json.Unmarshal(iter.Value(), &val); err != nil {
			continue
		}
		out = append(out, PendingEntry{
			Consumer:      consumer,
			ID:            rid,
			ClaimedAtMs:   val.ClaimedAtMs,
			DeliveryCount: val.DeliveryCount,
		})
	}
	return out, nil
}

// Cursor returns the group's last delivered ID.
func (r *Registry) Cursor(topic, group string) (id.ID, error) {
	ok, err := r.exists(topic, group)
	if err != nil {
		return id.Zero, err
	}
	if !ok {
		return id.Zero, ErrGroupNotFound
	}
	raw, err := r.db.Get(KeyGroupCursor(topic, group))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return id.Zero, nil
		}
		return id.Zero, err
	}
	return id.FromBytes(raw)
}

// MinPending implements topiclog.RetainHook: the lowest ID any group of the
// topic has not acknowledged, counting undelivered records past each cursor.
func (r *Registry) MinPending(topic string) (id.ID, bool) {
	names, err := r.groupNames(topic)
	if err != nil || len(names) == 0 {
		return id.Zero, false
	}

	floor := id.Max
	for _, group := range names {
		candidate, ok := r.groupFloor(topic, group)
		if !ok {
			continue
		}
		if candidate.Compare(floor) < 0 {
			floor = candidate
		}
	}
	if floor == id.Max {
		return id.Zero, false
	}
	return floor, true
}

// groupFloor is the lowest unacknowledged ID of one group: its oldest pending
// entry, or the first undelivered ID when nothing is pending.
func (r *Registry) groupFloor(topic, group string) (id.ID, bool) {
	prefix := KeyPendingPrefix(topic, group)
	upper := append(append([]byte{}, prefix...), 0xFF)
	iter, err := r.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return id.Zero, false
	}
	lowest := id.Max
	for ok := iter.First(); ok; ok = iter.Next() {
		_, rid, okParse := pendingKeyParts(topic, group, iter.Key())
		if okParse && rid.Compare(lowest) < 0 {
			lowest = rid
		}
	}
	iter.Close()
	if lowest != id.Max {
		return lowest, true
	}

	raw, err := r.db.Get(KeyGroupCursor(topic, group))
	if err != nil {
		return id.Zero, false
	}
	cursor, err := id.FromBytes(raw)
	if err != nil {
		return id.Zero, false
	}
	return cursor.Next(), true
}

// groupNames lists the groups registered for a topic.
func (r *Registry) groupNames(topic string) ([]string, error) {
	prefix := KeyTopicGroupsPrefix(topic)
	upper := append(append([]byte{}, prefix...), 0xFF)
	iter, err := r.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var names []string
	var last string
	for ok := iter.First(); ok; ok = iter.Next() {
		name, okParse := groupNameFromKey(topic, iter.Key())
		if !okParse || name == last {
			continue
		}
		names = append(names, name)
		last = name
	}
	return names, nil
}
