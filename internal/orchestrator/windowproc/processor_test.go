package windowproc

import (
	"context"
	"testing"
	"time"

	"github.com/deskmux/deskmux/internal/actions"
	"github.com/deskmux/deskmux/internal/broadcast"
	"github.com/deskmux/deskmux/internal/orchestrator/agentpool"
	"github.com/deskmux/deskmux/internal/orchestrator/contexttape"
	"github.com/deskmux/deskmux/internal/orchestrator/limiter"
	"github.com/deskmux/deskmux/internal/orchestrator/queue"
	"github.com/deskmux/deskmux/internal/orchestrator/windowstate"
	"github.com/deskmux/deskmux/internal/provider"
	"github.com/deskmux/deskmux/pkg/models"
)

type fakeProvider struct{}

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) Type() string { return "fake" }
func (f *fakeProvider) Query(ctx context.Context, prompt string) (<-chan provider.Chunk, error) {
	out := make(chan provider.Chunk, 1)
	out <- provider.Chunk{Kind: provider.ChunkAssistant, Text: "ok"}
	close(out)
	return out, nil
}
func (f *fakeProvider) Interrupt()     {}
func (f *fakeProvider) Dispose() error { return nil }

func newProcessor(t *testing.T) (*Processor, *windowstate.Registry, *agentpool.Pool) {
	t.Helper()
	reg := windowstate.New()
	bc := broadcast.New(nil, nil, nil)
	emitter := actions.New(reg, bc, nil, nil, nil)
	l := limiter.New(4)
	pool := agentpool.New(l, func(ctx context.Context) (provider.Provider, error) { return &fakeProvider{}, nil }, bc, nil)
	_ = reg.Apply(models.Action{Type: models.ActionWindowCreate, WindowID: "w1", Title: "Notes"})

	p := New(Config{
		Pool: pool, Queue: queue.NewWindowQueue(), Tape: contexttape.New(200),
		Actions: emitter, Broadcast: bc,
	})
	return p, reg, pool
}

func TestHandleTaskCreatesWindowAgentAndEnqueues(t *testing.T) {
	p, _, pool := newProcessor(t)

	if err := p.HandleTask(context.Background(), "m1", "w1", models.Task{ID: "t1", Kind: models.TaskWindow, WindowID: "w1", Content: "hi"}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := pool.GetByRole("window-w1"); ok {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, ok := pool.GetByRole("window-w1"); !ok {
		t.Fatal("expected window agent to be created")
	}
}

func TestHandleWindowCloseDisposesAgentAndClearsQueue(t *testing.T) {
	p, reg, pool := newProcessor(t)

	if err := p.HandleTask(context.Background(), "m1", "w1", models.Task{ID: "t1", Kind: models.TaskWindow, WindowID: "w1", Content: "hi"}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)

	p.HandleWindowClose("w1")
	time.Sleep(20 * time.Millisecond)

	if _, ok := pool.GetByRole("window-w1"); ok {
		t.Fatal("expected window agent disposed after close")
	}
	if w, ok := reg.GetWindow("w1"); ok && w.Locked {
		t.Fatal("expected window unlocked after close")
	}
}
