package keymu

import (
	"sync"
	"testing"
	"time"
)

func TestMutualExclusionPerKey(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	n := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock("k")
			n++
			m.Unlock("k")
		}()
	}
	wg.Wait()
	if n != 50 {
		t.Fatalf("n = %d, want 50", n)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	m := New()
	m.Lock("a")
	done := make(chan struct{})
	go func() {
		m.Lock("b")
		m.Unlock("b")
		close(done)
	}()
	<-done
	m.Unlock("a")
}

func TestEntriesEvictedWhenIdle(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		key := string(rune('a' + i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				m.Lock(key)
				m.Unlock(key)
			}
		}()
	}
	wg.Wait()
	if got := m.Len(); got != 0 {
		t.Fatalf("Len() = %d after all unlocks, want 0", got)
	}
}

func TestWaiterKeepsEntryAlive(t *testing.T) {
	m := New()
	m.Lock("k")
	acquired := make(chan struct{})
	go func() {
		m.Lock("k")
		close(acquired)
		m.Unlock("k")
	}()
	time.Sleep(20 * time.Millisecond)
	m.Unlock("k")
	<-acquired
	if got := m.Len(); got != 0 {
		t.Fatalf("Len() = %d, want 0", got)
	}
}
