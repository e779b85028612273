package dispatcher

import (
	"context"
	"testing"

	"github.com/deskmux/deskmux/internal/orchestrator/agentpool"
	"github.com/deskmux/deskmux/internal/orchestrator/limiter"
	"github.com/deskmux/deskmux/internal/provider"
)

type fakeProvider struct{ text string }

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) Type() string { return "fake" }
func (f *fakeProvider) Query(ctx context.Context, prompt string) (<-chan provider.Chunk, error) {
	out := make(chan provider.Chunk, 1)
	out <- provider.Chunk{Kind: provider.ChunkAssistant, Text: f.text}
	close(out)
	return out, nil
}
func (f *fakeProvider) Interrupt()     {}
func (f *fakeProvider) Dispose() error { return nil }

func TestDispatchReturnsAssistantText(t *testing.T) {
	l := limiter.New(2)
	pool := agentpool.New(l, func(ctx context.Context) (provider.Provider, error) {
		return &fakeProvider{text: "done"}, nil
	}, nil, nil)
	d := New(pool, func() string { return "<previous_conversation></previous_conversation>" }, nil, nil)

	res, err := d.Dispatch(context.Background(), Request{Objective: "summarize", MonitorID: "m1"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Dispatched || res.Result != "done" {
		t.Fatalf("unexpected result %+v", res)
	}
	if l.InFlight() != 0 {
		t.Fatalf("expected task agent disposed and slot released, got %d in flight", l.InFlight())
	}
}

func TestDispatchReportsLimitWhenLimiterSaturated(t *testing.T) {
	l := limiter.New(1)
	pool := agentpool.New(l, func(ctx context.Context) (provider.Provider, error) {
		return &fakeProvider{text: "x"}, nil
	}, nil, nil)
	if _, err := pool.CreateMainAgent(context.Background(), "m1", nil, nil, nil); err != nil {
		t.Fatal(err)
	}
	d := New(pool, nil, nil, nil)

	res, err := d.Dispatch(context.Background(), Request{Objective: "summarize"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Dispatched || res.Reason != "limit" {
		t.Fatalf("expected limit rejection, got %+v", res)
	}
}
