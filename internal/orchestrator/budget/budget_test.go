package budget

import (
	"context"
	"testing"
	"time"
)

func TestMonitorIsolation(t *testing.T) {
	b := New(1)
	if err := b.Acquire("m1", context.Background()); err != nil {
		t.Fatal(err)
	}

	// m2 must not be blocked by m1 holding its only slot.
	done := make(chan struct{})
	go func() {
		if err := b.Acquire("m2", context.Background()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("m2 acquire should not be blocked by m1")
	}
}

func TestAcquireBlocksWithinSameMonitor(t *testing.T) {
	b := New(1)
	b.Acquire("m1", context.Background())

	blocked := make(chan struct{})
	go func() {
		b.Acquire("m1", context.Background())
		close(blocked)
	}()

	select {
	case <-blocked:
		t.Fatal("second acquire on same monitor should block")
	case <-time.After(20 * time.Millisecond):
	}

	b.Release("m1")
	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("acquire did not unblock after release")
	}
}

func TestRecordActionIncrementsObservedCounter(t *testing.T) {
	b := New(4)
	b.RecordAction("m1")
	b.RecordAction("m1")
	if b.Observed("m1") != 2 {
		t.Fatalf("expected observed=2, got %d", b.Observed("m1"))
	}
}

func TestClearWaitingFailsWaiters(t *testing.T) {
	b := New(1)
	b.Acquire("m1", context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- b.Acquire("m1", context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	sentinel := context.Canceled
	b.ClearWaiting(sentinel)
	if err := <-errCh; err != sentinel {
		t.Fatalf("expected sentinel, got %v", err)
	}
}
