// Package topiclog implements strand's append-only topic log.
//
// # Overview
//
// Each topic is an ordered sequence of records persisted in Pebble. Keys are
// lexicographically ordered for efficient range scans:
//   - t/{topic}/m            (topic metadata: last assigned ID)
//   - t/{topic}/cfg          (retention policy, JSON)
//   - t/{topic}/e/{id_be16}  (entries)
//
// Record IDs are (timestamp_ms, sequence) pairs assigned under the topic
// mutex, strictly increasing even across clock regressions; see pkg/id.
// Entry values carry the field map with a crc32c trailer.
//
// API surface (internal)
//
//	l, _ := topiclog.Open(db, "orders", limits)
//	rid, _ := l.Append(ctx, map[string][]byte{"sku": []byte("a-1")})
//
//	// Inclusive range reads; zero IDs are the beginning/end sentinels
//	recs, _ := l.Read(topiclog.ReadOptions{From: id.Zero, To: id.Max, Limit: 100})
//
//	// Blocking wait/notify for dispatchers and blocked claims
//	woke := l.WaitForAppend(ctx, 200*time.Millisecond)
//	_ = woke
//
//	// Retention trims stop at the consumer groups' pending floor
//	res, _ := l.TrimToMaxLen(ctx, 10_000, registry)
//	_ = res.HeldByPending
package topiclog
