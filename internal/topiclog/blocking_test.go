package topiclog

import (
	"context"
	"testing"
	"time"
)

func TestWaitForAppendWakes(t *testing.T) {
	l := newTestLog(t)

	woke := make(chan bool, 1)
	go func() {
		woke <- l.WaitForAppend(context.Background(), 5*time.Second)
	}()

	// give the waiter time to park
	time.Sleep(20 * time.Millisecond)
	if _, err := l.Append(context.Background(), fields("k", "v")); err != nil {
		t.Fatalf("append: %v", err)
	}

	select {
	case ok := <-woke:
		if !ok {
			t.Fatalf("waiter reported timeout after an append")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("waiter never woke")
	}
}

func TestWaitForAppendTimesOut(t *testing.T) {
	l := newTestLog(t)
	start := time.Now()
	if l.WaitForAppend(context.Background(), 30*time.Millisecond) {
		t.Fatalf("expected timeout")
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Fatalf("returned before the deadline")
	}
}

func TestWaitForAppendContextCancel(t *testing.T) {
	l := newTestLog(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if l.WaitForAppend(ctx, 5*time.Second) {
		t.Fatalf("expected cancellation to report false")
	}
}

func TestWaitForAppendWakesAllWaiters(t *testing.T) {
	l := newTestLog(t)

	const waiters = 4
	woke := make(chan bool, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			woke <- l.WaitForAppend(context.Background(), 5*time.Second)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := l.Append(context.Background(), fields("k", "v")); err != nil {
		t.Fatalf("append: %v", err)
	}
	for i := 0; i < waiters; i++ {
		select {
		case ok := <-woke:
			if !ok {
				t.Fatalf("waiter %d timed out", i)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("waiter %d never woke", i)
		}
	}
}

func TestNotifyCapturedBeforeAppendWakes(t *testing.T) {
	l := newTestLog(t)
	ch := l.Notify()
	if _, err := l.Append(context.Background(), fields("k", "v")); err != nil {
		t.Fatalf("append: %v", err)
	}
	// the append already closed the captured channel; the wait must return
	// immediately instead of sleeping out the timeout
	start := time.Now()
	if !WaitNotify(context.Background(), ch, 5*time.Second) {
		t.Fatalf("append between capture and wait was missed")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("wait slept despite a closed notify channel")
	}
}
