package provider

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
)

type fakeProvider struct {
	id       int
	disposed atomic.Bool
}

func (f *fakeProvider) Name() string { return fmt.Sprintf("fake-%d", f.id) }
func (f *fakeProvider) Type() string { return "fake" }
func (f *fakeProvider) Query(ctx context.Context, prompt string) (<-chan Chunk, error) {
	ch := make(chan Chunk, 1)
	ch <- Chunk{Kind: ChunkAssistant, Text: "ok"}
	close(ch)
	return ch, nil
}
func (f *fakeProvider) Interrupt()      {}
func (f *fakeProvider) Dispose() error  { f.disposed.Store(true); return nil }

func TestWarmPoolLeaseReturnsReadyHandle(t *testing.T) {
	var n int
	dial := func(ctx context.Context) (Provider, error) {
		n++
		return &fakeProvider{id: n}, nil
	}
	pool := NewWarmPool(dial, 2)
	if err := pool.Fill(context.Background()); err != nil {
		t.Fatal(err)
	}

	h, err := pool.Lease(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if h == nil {
		t.Fatal("expected a leased handle")
	}
}

func TestWarmPoolReleaseDiscardsUnhealthy(t *testing.T) {
	dial := func(ctx context.Context) (Provider, error) { return &fakeProvider{}, nil }
	pool := NewWarmPool(dial, 1)
	pool.Fill(context.Background())

	h, _ := pool.Lease(context.Background())
	fp := h.(*fakeProvider)
	pool.Release(context.Background(), h, false)

	if !fp.disposed.Load() {
		t.Fatal("expected unhealthy handle to be disposed")
	}
}

func TestWarmPoolReleaseReturnsHealthyHandle(t *testing.T) {
	dial := func(ctx context.Context) (Provider, error) { return &fakeProvider{}, nil }
	pool := NewWarmPool(dial, 1)
	pool.Fill(context.Background())

	h, _ := pool.Lease(context.Background())
	pool.Release(context.Background(), h, true)

	h2, err := pool.Lease(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if h2 != h {
		t.Fatal("expected the released handle to be reused")
	}
}
