package topiclog

import (
	"context"
	"time"
)

// Notify returns the channel the next Append closes. Callers that check for
// records and then block must capture the channel before the check; an append
// landing in between closes this instance, so the wait returns immediately
// instead of sleeping through the record.
func (l *Log) Notify() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.notifyCh
}

// WaitNotify blocks on a channel from Notify until an append closes it, the
// timeout elapses, or ctx is cancelled. It returns true only when woken by an
// append. No lock is held while parked; cancellation simply abandons the
// channel, so no interest registration can leak.
func WaitNotify(ctx context.Context, ch <-chan struct{}, timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case <-ch:
			return true
		case <-ctx.Done():
			return false
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// WaitForAppend blocks until a new append occurs, the timeout elapses, or ctx
// is cancelled.
func (l *Log) WaitForAppend(ctx context.Context, timeout time.Duration) bool {
	return WaitNotify(ctx, l.Notify(), timeout)
}
