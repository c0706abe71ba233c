package ledger

import (
	"sync"
	"testing"
	"time"
)

func TestAccountLocksSerializeSameAccount(t *testing.T) {
	locks := NewAccountLocks()
	unlock := locks.Lock("a")

	acquired := make(chan struct{})
	go func() {
		release := locks.Lock("a")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatalf("second lock on the same account acquired while held")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("lock was never released")
	}
}

func TestAccountLocksIndependentAccounts(t *testing.T) {
	locks := NewAccountLocks()
	unlock := locks.Lock("a")
	defer unlock()

	done := make(chan struct{})
	go func() {
		locks.Lock("b")()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("unrelated account blocked")
	}
}

func TestAccountLocksOppositeOrderDoesNotDeadlock(t *testing.T) {
	locks := NewAccountLocks()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); locks.Lock("a", "b")() }()
		go func() { defer wg.Done(); locks.Lock("b", "a")() }()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("deadlock acquiring locks in opposite order")
	}
}

func TestAccountLocksDuplicateIDs(t *testing.T) {
	locks := NewAccountLocks()
	done := make(chan struct{})
	go func() {
		locks.Lock("a", "a")()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("duplicate ids self-deadlocked")
	}
}

func TestAccountLocksDropReleasedEntries(t *testing.T) {
	locks := NewAccountLocks()
	entries := func() int {
		locks.mu.Lock()
		defer locks.mu.Unlock()
		return len(locks.locks)
	}

	unlock := locks.Lock("b", "a", "a")
	if got := entries(); got != 2 {
		t.Fatalf("entries while held = %d, want 2", got)
	}

	waiting := make(chan struct{})
	done := make(chan struct{})
	go func() {
		close(waiting)
		release := locks.Lock("a")
		release()
		close(done)
	}()
	<-waiting
	unlock()
	<-done

	if got := entries(); got != 0 {
		t.Errorf("entries after release = %d, want 0", got)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			release := locks.Lock("shared", string(rune('a'+i%5)))
			release()
		}(i)
	}
	wg.Wait()
	if got := entries(); got != 0 {
		t.Errorf("entries after concurrent use = %d, want 0", got)
	}
}
