package topiclog

import (
	"context"

	"github.com/cockroachdb/pebble"

	"github.com/strandmq/strand/pkg/id"
)

// RetainHook reports the lowest record ID still pending acknowledgment in
// any consumer group of a topic. Trims never delete at or past this floor.
type RetainHook interface {
	MinPending(topic string) (id.ID, bool)
}

// NoopRetain is used when no consumer-group registry is attached.
type NoopRetain struct{}

// MinPending implements RetainHook.
func (NoopRetain) MinPending(string) (id.ID, bool) { return id.Zero, false }

const trimBatchLimit = 1024

// TrimResult summarizes one trim pass.
type TrimResult struct {
	Deleted int
	// HeldByPending is true when the pass stopped early to protect
	// unacknowledged entries. Callers should surface this as a warning.
	HeldByPending bool
}

// TrimOlderThan deletes entries whose ID timestamp is below cutoffMs,
// stopping at the retain hook's pending floor.
func (l *Log) TrimOlderThan(ctx context.Context, cutoffMs int64, retain RetainHook) (TrimResult, error) {
	return l.trim(ctx, retain, func(rid id.ID, _ int64) bool {
		return rid.Ms() < cutoffMs
	})
}

// TrimToMaxLen deletes the oldest entries until at most maxLen remain,
// stopping at the retain hook's pending floor.
func (l *Log) TrimToMaxLen(ctx context.Context, maxLen int64, retain RetainHook) (TrimResult, error) {
	if maxLen < 0 {
		return TrimResult{}, nil
	}
	total, err := l.Len()
	if err != nil {
		return TrimResult{}, err
	}
	excess := total - maxLen
	if excess <= 0 {
		return TrimResult{}, nil
	}
	deleted := int64(0)
	return l.trim(ctx, retain, func(_ id.ID, _ int64) bool {
		if deleted >= excess {
			return false
		}
		deleted++
		return true
	})
}

// trim walks entries in order and deletes while drop returns true, batching
// commits and respecting the pending floor.
func (l *Log) trim(ctx context.Context, retain RetainHook, drop func(rid id.ID, n int64) bool) (TrimResult, error) {
	if retain == nil {
		retain = NoopRetain{}
	}
	floor, hasFloor := retain.MinPending(l.topic)

	prefix := KeyEntryPrefix(l.topic)
	hi := append(append([]byte{}, prefix...), 0xFF)
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: hi})
	if err != nil {
		return TrimResult{}, err
	}
	defer iter.Close()

	var res TrimResult
	var seen int64
	for ok := iter.First(); ok; {
		b := l.db.NewBatch()
		n := 0
		for ok && n < trimBatchLimit {
			rid := entryID(iter.Key())
			if hasFloor && rid.Compare(floor) >= 0 {
				res.HeldByPending = true
				ok = false
				break
			}
			if !drop(rid, seen) {
				ok = false
				break
			}
			if err := b.Delete(iter.Key(), nil); err != nil {
				b.Close()
				return res, err
			}
			res.Deleted++
			seen++
			n++
			ok = iter.Next()
		}
		if n > 0 {
			if err := l.db.CommitBatch(ctx, b); err != nil {
				b.Close()
				return res, err
			}
		}
		b.Close()
		if n == 0 {
			break
		}
	}
	if res.Deleted >= trimBatchLimit*4 {
		_ = l.db.CompactRange(prefix, hi)
	}
	return res, nil
}
