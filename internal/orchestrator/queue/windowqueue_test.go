package queue

import (
	"testing"

	"github.com/deskmux/deskmux/pkg/models"
)

func TestWindowQueueSequentialPerWindow(t *testing.T) {
	q := NewWindowQueue()
	pos1 := q.Enqueue("w1", models.Task{ID: "t1"})
	pos2 := q.Enqueue("w1", models.Task{ID: "t2"})
	pos3 := q.Enqueue("w1", models.Task{ID: "t3"})

	if pos1 != 1 || pos2 != 2 || pos3 != 3 {
		t.Fatalf("expected positions 1,2,3 got %d,%d,%d", pos1, pos2, pos3)
	}

	t1, ok := q.Next("w1")
	if !ok || t1.ID != "t1" {
		t.Fatalf("expected t1 first, got %+v", t1)
	}
	if !q.IsInFlight("w1") {
		t.Fatal("expected w1 marked in-flight after Next")
	}
	if _, ok := q.Next("w1"); ok {
		t.Fatal("expected Next to refuse a second concurrent task for the same window")
	}

	q.MarkDone("w1")
	t2, ok := q.Next("w1")
	if !ok || t2.ID != "t2" {
		t.Fatalf("expected t2 next, got %+v", t2)
	}
}

func TestWindowQueueClearDropsPendingAndResetsInFlight(t *testing.T) {
	q := NewWindowQueue()
	q.Enqueue("w1", models.Task{ID: "t1"})
	q.Next("w1")
	q.Enqueue("w1", models.Task{ID: "t2"})

	dropped := q.Clear("w1")
	if len(dropped) != 1 || dropped[0].ID != "t2" {
		t.Fatalf("expected t2 dropped, got %+v", dropped)
	}
	if q.IsInFlight("w1") {
		t.Fatal("expected window state removed after Clear")
	}
}

func TestWindowQueueIndependentAcrossWindows(t *testing.T) {
	q := NewWindowQueue()
	q.Enqueue("w1", models.Task{ID: "a"})
	q.Next("w1")

	// w2 must be unaffected by w1's in-flight task.
	w2t, ok := q.Next("w2")
	_ = w2t
	if ok {
		t.Fatal("expected no pending task for w2")
	}
	q.Enqueue("w2", models.Task{ID: "b"})
	b, ok := q.Next("w2")
	if !ok || b.ID != "b" {
		t.Fatalf("expected w2's own task to be available immediately, got %+v ok=%v", b, ok)
	}
}
