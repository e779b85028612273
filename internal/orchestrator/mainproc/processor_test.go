package mainproc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/deskmux/deskmux/internal/orchestrator/agentpool"
	"github.com/deskmux/deskmux/internal/orchestrator/budget"
	"github.com/deskmux/deskmux/internal/orchestrator/contexttape"
	"github.com/deskmux/deskmux/internal/orchestrator/limiter"
	"github.com/deskmux/deskmux/internal/orchestrator/queue"
	"github.com/deskmux/deskmux/internal/orchestrator/timeline"
	"github.com/deskmux/deskmux/internal/provider"
	"github.com/deskmux/deskmux/pkg/models"
)

type countingProvider struct {
	mu    sync.Mutex
	calls int
}

func (c *countingProvider) Name() string { return "counting" }
func (c *countingProvider) Type() string { return "counting" }
func (c *countingProvider) Query(ctx context.Context, prompt string) (<-chan provider.Chunk, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	out := make(chan provider.Chunk, 1)
	out <- provider.Chunk{Kind: provider.ChunkAssistant, Text: "ok"}
	close(out)
	return out, nil
}
func (c *countingProvider) Interrupt()     {}
func (c *countingProvider) Dispose() error { return nil }

func TestProcessorDrainsTasksInOrder(t *testing.T) {
	prov := &countingProvider{}
	l := limiter.New(4)
	pool := agentpool.New(l, func(ctx context.Context) (provider.Provider, error) { return prov, nil }, nil, nil)
	tape := contexttape.New(200)

	p := New(Config{
		Pool: pool, Limiter: LimiterWaitTimeout(200 * time.Millisecond),
		Budget: budget.New(2), Tape: tape, Timeline: timeline.New(64),
		QueueCap: 10,
	})

	if res := p.EnqueueTask("m1", models.Task{ID: "t1", Kind: models.TaskMain, MonitorID: "m1", Content: "first"}); res != queue.Queued {
		t.Fatalf("expected queued, got %s", res)
	}
	if res := p.EnqueueTask("m1", models.Task{ID: "t2", Kind: models.TaskMain, MonitorID: "m1", Content: "second"}); res != queue.Queued {
		t.Fatalf("expected queued, got %s", res)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		prov.mu.Lock()
		calls := prov.calls
		prov.mu.Unlock()
		if calls >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	prov.mu.Lock()
	defer prov.mu.Unlock()
	if prov.calls < 2 {
		t.Fatalf("expected both tasks processed, got %d calls", prov.calls)
	}
}
