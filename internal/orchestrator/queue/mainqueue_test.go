package queue

import (
	"testing"

	"github.com/deskmux/deskmux/pkg/models"
)

func TestMainQueueFIFOOrder(t *testing.T) {
	q := NewMainQueue(10)
	q.Enqueue(models.Task{ID: "1"})
	q.Enqueue(models.Task{ID: "2"})
	q.Enqueue(models.Task{ID: "3"})

	for _, want := range []string{"1", "2", "3"} {
		got, ok := q.Dequeue()
		if !ok || got.ID != want {
			t.Fatalf("expected %s, got %+v ok=%v", want, got, ok)
		}
	}
}

func TestMainQueueOverflowRejects(t *testing.T) {
	q := NewMainQueue(2)
	if q.Enqueue(models.Task{ID: "1"}) != Queued {
		t.Fatal("expected first enqueue to succeed")
	}
	if q.Enqueue(models.Task{ID: "2"}) != Queued {
		t.Fatal("expected second enqueue to succeed")
	}
	if q.Enqueue(models.Task{ID: "3"}) != RejectedFull {
		t.Fatal("expected third enqueue to be rejected")
	}
}

func TestMainQueueClearDiscardsPending(t *testing.T) {
	q := NewMainQueue(5)
	q.Enqueue(models.Task{ID: "1"})
	q.Enqueue(models.Task{ID: "2"})
	q.Clear()
	if q.Len() != 0 {
		t.Fatalf("expected empty queue after Clear, got %d", q.Len())
	}
}

func TestMainQueueCloseDrainsThenStops(t *testing.T) {
	q := NewMainQueue(5)
	q.Enqueue(models.Task{ID: "1"})
	q.Close()

	got, ok := q.Dequeue()
	if !ok || got.ID != "1" {
		t.Fatalf("expected to drain remaining task, got %+v ok=%v", got, ok)
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("expected Dequeue to report drained after Close")
	}
}
