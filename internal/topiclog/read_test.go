package topiclog

import (
	"context"
	"testing"

	"github.com/strandmq/strand/pkg/id"
)

func appendN(t *testing.T, l *Log, n int) []id.ID {
	t.Helper()
	ids := make([]id.ID, 0, n)
	for i := 0; i < n; i++ {
		rid, err := l.Append(context.Background(), fields("n", "x"))
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		ids = append(ids, rid)
	}
	return ids
}

func TestReadFullRange(t *testing.T) {
	l := newTestLog(t)
	ids := appendN(t, l, 5)

	recs, err := l.Read(ReadOptions{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(recs) != 5 {
		t.Fatalf("want 5 records, got %d", len(recs))
	}
	for i, r := range recs {
		if r.ID != ids[i] {
			t.Fatalf("record %d: want %s got %s", i, ids[i], r.ID)
		}
	}
}

func TestReadInclusiveBounds(t *testing.T) {
	l := newTestLog(t)
	ids := appendN(t, l, 5)

	recs, err := l.Read(ReadOptions{From: ids[1], To: ids[3]})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("want 3 records in [ids[1], ids[3]], got %d", len(recs))
	}
	if recs[0].ID != ids[1] || recs[2].ID != ids[3] {
		t.Fatalf("bounds not inclusive: got %s..%s", recs[0].ID, recs[2].ID)
	}
}

func TestReadLimitAndResume(t *testing.T) {
	l := newTestLog(t)
	ids := appendN(t, l, 6)

	first, err := l.Read(ReadOptions{Limit: 4})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(first) != 4 {
		t.Fatalf("want 4, got %d", len(first))
	}
	rest, err := l.Read(ReadOptions{From: first[3].ID.Next()})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(rest) != 2 || rest[0].ID != ids[4] || rest[1].ID != ids[5] {
		t.Fatalf("resume misaligned: %v", rest)
	}
}

func TestReadEmptyRange(t *testing.T) {
	l := newTestLog(t)
	ids := appendN(t, l, 2)

	recs, err := l.Read(ReadOptions{From: ids[1].Next()})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("want empty result past tail, got %d", len(recs))
	}
}

func TestGet(t *testing.T) {
	l := newTestLog(t)
	ids := appendN(t, l, 3)

	rec, ok := l.Get(ids[1])
	if !ok {
		t.Fatalf("missing record %s", ids[1])
	}
	if string(rec.Fields["n"]) != "x" {
		t.Fatalf("fields lost: %v", rec.Fields)
	}
	if _, ok := l.Get(ids[2].Next()); ok {
		t.Fatalf("get past tail should miss")
	}
}

func TestLen(t *testing.T) {
	l := newTestLog(t)
	appendN(t, l, 4)
	n, err := l.Len()
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 4 {
		t.Fatalf("want 4, got %d", n)
	}
}
