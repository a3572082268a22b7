package group

import (
	"context"
	"errors"
	"testing"
	"time"

	pebblestore "github.com/strandmq/strand/internal/storage/pebble"
	"github.com/strandmq/strand/internal/topiclog"
	"github.com/strandmq/strand/pkg/id"
	"github.com/strandmq/strand/pkg/names"
)

type testLogs struct {
	db   *pebblestore.DB
	logs map[string]*topiclog.Log
}

func (s *testLogs) OpenLog(topic string) (*topiclog.Log, error) {
	if l, ok := s.logs[topic]; ok {
		return l, nil
	}
	l, err := topiclog.Open(s.db, topic, topiclog.Limits{})
	if err != nil {
		return nil, err
	}
	s.logs[topic] = l
	return l, nil
}

func newTestRegistry(t *testing.T, timeout time.Duration) (*Registry, *testLogs) {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	logs := &testLogs{db: db, logs: make(map[string]*topiclog.Log)}
	return NewRegistry(db, logs, timeout, nil), logs
}

func mustAppend(t *testing.T, logs *testLogs, topic string, n int) []id.ID {
	t.Helper()
	l, err := logs.OpenLog(topic)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	out := make([]id.ID, 0, n)
	for i := 0; i < n; i++ {
		rid, err := l.Append(context.Background(), map[string][]byte{"n": []byte{byte(i)}})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		out = append(out, rid)
	}
	return out
}

func TestCreateAndExists(t *testing.T) {
	r, _ := newTestRegistry(t, time.Minute)
	ctx := context.Background()

	if err := r.Create(ctx, "orders", "billing", id.Zero); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := r.Create(ctx, "orders", "billing", id.Zero); !errors.Is(err, ErrGroupExists) {
		t.Fatalf("want ErrGroupExists, got %v", err)
	}
	if err := r.CreateIfAbsent(ctx, "orders", "billing", id.Zero); err != nil {
		t.Fatalf("create if absent on existing: %v", err)
	}
	if err := r.CreateIfAbsent(ctx, "orders", "audit", id.Zero); err != nil {
		t.Fatalf("create if absent on new: %v", err)
	}
}

func TestClaimUnknownGroup(t *testing.T) {
	r, _ := newTestRegistry(t, time.Minute)
	if _, err := r.Claim(context.Background(), "orders", "nope", "c1", 1, 0); !errors.Is(err, ErrGroupNotFound) {
		t.Fatalf("want ErrGroupNotFound, got %v", err)
	}
	if err := r.Ack(context.Background(), "orders", "nope", id.Zero.Next()); !errors.Is(err, ErrGroupNotFound) {
		t.Fatalf("ack: want ErrGroupNotFound, got %v", err)
	}
}

func TestClaimDeliversInOrder(t *testing.T) {
	r, logs := newTestRegistry(t, time.Minute)
	ctx := context.Background()
	ids := mustAppend(t, logs, "orders", 5)

	if err := r.Create(ctx, "orders", "billing", id.Zero); err != nil {
		t.Fatalf("create: %v", err)
	}
	recs, err := r.Claim(ctx, "orders", "billing", "c1", 3, 0)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("want 3 records, got %d", len(recs))
	}
	for i, rec := range recs {
		if rec.ID != ids[i] {
			t.Fatalf("record %d: want %s got %s", i, ids[i], rec.ID)
		}
	}

	rest, err := r.Claim(ctx, "orders", "billing", "c1", 10, 0)
	if err != nil {
		t.Fatalf("claim rest: %v", err)
	}
	if len(rest) != 2 || rest[0].ID != ids[3] {
		t.Fatalf("cursor did not advance: %d records", len(rest))
	}

	empty, err := r.Claim(ctx, "orders", "billing", "c1", 1, 0)
	if err != nil {
		t.Fatalf("claim empty: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("nothing left to deliver, got %d", len(empty))
	}
}

func TestClaimStartAtTail(t *testing.T) {
	r, logs := newTestRegistry(t, time.Minute)
	ctx := context.Background()
	old := mustAppend(t, logs, "orders", 3)

	if err := r.Create(ctx, "orders", "billing", old[len(old)-1]); err != nil {
		t.Fatalf("create: %v", err)
	}
	recs, err := r.Claim(ctx, "orders", "billing", "c1", 10, 0)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("tail group must not see history, got %d", len(recs))
	}

	fresh := mustAppend(t, logs, "orders", 1)
	recs, err = r.Claim(ctx, "orders", "billing", "c1", 10, 0)
	if err != nil {
		t.Fatalf("claim fresh: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != fresh[0] {
		t.Fatalf("want only the fresh record, got %v", recs)
	}
}

func TestRecordDeliveredToExactlyOneConsumer(t *testing.T) {
	r, logs := newTestRegistry(t, time.Minute)
	ctx := context.Background()
	ids := mustAppend(t, logs, "orders", 6)

	if err := r.Create(ctx, "orders", "billing", id.Zero); err != nil {
		t.Fatalf("create: %v", err)
	}
	a, err := r.Claim(ctx, "orders", "billing", "c1", 3, 0)
	if err != nil {
		t.Fatalf("claim a: %v", err)
	}
	b, err := r.Claim(ctx, "orders", "billing", "c2", 10, 0)
	if err != nil {
		t.Fatalf("claim b: %v", err)
	}
	if len(a)+len(b) != len(ids) {
		t.Fatalf("split lost records: %d + %d != %d", len(a), len(b), len(ids))
	}
	seen := make(map[id.ID]string)
	for _, rec := range a {
		seen[rec.ID] = "c1"
	}
	for _, rec := range b {
		if who, dup := seen[rec.ID]; dup {
			t.Fatalf("record %s delivered to both %s and c2", rec.ID, who)
		}
	}
}

func TestAckRemovesPending(t *testing.T) {
	r, logs := newTestRegistry(t, time.Minute)
	ctx := context.Background()
	ids := mustAppend(t, logs, "orders", 2)

	if err := r.Create(ctx, "orders", "billing", id.Zero); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := r.Claim(ctx, "orders", "billing", "c1", 10, 0); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := r.Ack(ctx, "orders", "billing", ids[0]); err != nil {
		t.Fatalf("ack: %v", err)
	}
	// acking again, or acking something never claimed, is a no-op
	if err := r.Ack(ctx, "orders", "billing", ids[0]); err != nil {
		t.Fatalf("repeat ack: %v", err)
	}
	if err := r.Ack(ctx, "orders", "billing", ids[1].Next()); err != nil {
		t.Fatalf("unknown ack: %v", err)
	}

	pending, err := r.Pending(ctx, "orders", "billing")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != ids[1] {
		t.Fatalf("want only %s pending, got %v", ids[1], pending)
	}
	if pending[0].Consumer != "c1" || pending[0].DeliveryCount != 1 {
		t.Fatalf("pending entry fields: %+v", pending[0])
	}
}

func TestReclaimAfterTimeout(t *testing.T) {
	r, logs := newTestRegistry(t, time.Minute)
	ctx := context.Background()
	ids := mustAppend(t, logs, "orders", 1)

	if err := r.Create(ctx, "orders", "billing", id.Zero); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := r.Claim(ctx, "orders", "billing", "c1", 1, 0); err != nil {
		t.Fatalf("claim c1: %v", err)
	}

	// before the deadline: another consumer gets nothing
	early, err := r.Claim(ctx, "orders", "billing", "c2", 1, 0)
	if err != nil {
		t.Fatalf("claim c2 early: %v", err)
	}
	if len(early) != 0 {
		t.Fatalf("claim must not steal an active entry")
	}

	// push the clock past the claim deadline
	base := r.nowMs()
	r.nowMs = func() int64 { return base + 2*time.Minute.Milliseconds() }

	recs, err := r.Claim(ctx, "orders", "billing", "c2", 1, 0)
	if err != nil {
		t.Fatalf("claim c2: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != ids[0] {
		t.Fatalf("expected reclaim of %s, got %v", ids[0], recs)
	}

	pending, err := r.Pending(ctx, "orders", "billing")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Consumer != "c2" || pending[0].DeliveryCount != 2 {
		t.Fatalf("entry must move to c2 with deliveryCount 2: %+v", pending)
	}
}

func TestClaimBlocksUntilAppend(t *testing.T) {
	r, logs := newTestRegistry(t, time.Minute)
	ctx := context.Background()
	if err := r.Create(ctx, "orders", "billing", id.Zero); err != nil {
		t.Fatalf("create: %v", err)
	}

	done := make(chan []topiclog.Record, 1)
	go func() {
		recs, err := r.Claim(ctx, "orders", "billing", "c1", 1, 5*time.Second)
		if err != nil {
			t.Errorf("blocking claim: %v", err)
		}
		done <- recs
	}()

	time.Sleep(20 * time.Millisecond)
	ids := mustAppend(t, logs, "orders", 1)

	select {
	case recs := <-done:
		if len(recs) != 1 || recs[0].ID != ids[0] {
			t.Fatalf("blocking claim result: %v", recs)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("blocking claim never returned")
	}
}

func TestClaimBlockTimesOut(t *testing.T) {
	r, _ := newTestRegistry(t, time.Minute)
	ctx := context.Background()
	if err := r.Create(ctx, "empty", "billing", id.Zero); err != nil {
		t.Fatalf("create: %v", err)
	}
	recs, err := r.Claim(ctx, "empty", "billing", "c1", 1, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("want empty claim on timeout, got %v", recs)
	}
}

func TestMinPendingFloor(t *testing.T) {
	r, logs := newTestRegistry(t, time.Minute)
	ctx := context.Background()
	ids := mustAppend(t, logs, "orders", 4)

	if _, ok := r.MinPending("orders"); ok {
		t.Fatalf("no groups: no floor")
	}

	if err := r.Create(ctx, "orders", "billing", id.Zero); err != nil {
		t.Fatalf("create: %v", err)
	}
	// nothing delivered yet: floor is the first undelivered record
	floor, ok := r.MinPending("orders")
	if !ok || floor.Compare(ids[0]) > 0 {
		t.Fatalf("floor must cover undelivered records: %s ok=%v", floor, ok)
	}

	if _, err := r.Claim(ctx, "orders", "billing", "c1", 4, 0); err != nil {
		t.Fatalf("claim: %v", err)
	}
	floor, ok = r.MinPending("orders")
	if !ok || floor != ids[0] {
		t.Fatalf("floor must be the oldest pending: want %s got %s", ids[0], floor)
	}

	for _, rid := range ids[:2] {
		if err := r.Ack(ctx, "orders", "billing", rid); err != nil {
			t.Fatalf("ack: %v", err)
		}
	}
	floor, ok = r.MinPending("orders")
	if !ok || floor != ids[2] {
		t.Fatalf("floor after acks: want %s got %s", ids[2], floor)
	}
}

func TestCursorSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	logs := &testLogs{db: db, logs: make(map[string]*topiclog.Log)}
	r := NewRegistry(db, logs, time.Minute, nil)

	ids := mustAppend(t, logs, "orders", 3)
	if err := r.Create(ctx, "orders", "billing", id.Zero); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := r.Claim(ctx, "orders", "billing", "c1", 2, 0); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db2, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = db2.Close() })
	logs2 := &testLogs{db: db2, logs: make(map[string]*topiclog.Log)}
	r2 := NewRegistry(db2, logs2, time.Minute, nil)

	recs, err := r2.Claim(ctx, "orders", "billing", "c1", 10, 0)
	if err != nil {
		t.Fatalf("claim after restart: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != ids[2] {
		t.Fatalf("cursor lost across restart: %v", recs)
	}
	pending, err := r2.Pending(ctx, "orders", "billing")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("pending entries lost across restart: %d", len(pending))
	}
}

func TestCreateRejectsInvalidNames(t *testing.T) {
	r, _ := newTestRegistry(t, time.Minute)
	ctx := context.Background()

	if err := r.Create(ctx, "orders", "bad/group", id.Zero); !errors.Is(err, names.ErrInvalid) {
		t.Fatalf("create with slash group = %v, want names.ErrInvalid", err)
	}
	if err := r.Create(ctx, "bad/topic", "billing", id.Zero); !errors.Is(err, names.ErrInvalid) {
		t.Fatalf("create with slash topic = %v, want names.ErrInvalid", err)
	}
	if err := r.Create(ctx, "orders", "", id.Zero); !errors.Is(err, names.ErrInvalid) {
		t.Fatalf("create with empty group = %v, want names.ErrInvalid", err)
	}
}

func TestClaimRejectsInvalidConsumer(t *testing.T) {
	r, logs := newTestRegistry(t, time.Minute)
	ctx := context.Background()
	mustAppend(t, logs, "orders", 1)
	if err := r.Create(ctx, "orders", "billing", id.Zero); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := r.Claim(ctx, "orders", "billing", "c/1", 1, 0); !errors.Is(err, names.ErrInvalid) {
		t.Fatalf("claim with slash consumer = %v, want names.ErrInvalid", err)
	}
}
