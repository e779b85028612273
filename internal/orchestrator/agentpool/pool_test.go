package agentpool

import (
	"context"
	"testing"

	"github.com/deskmux/deskmux/internal/orchestrator/limiter"
	"github.com/deskmux/deskmux/internal/provider"
)

func dialFake(ctx context.Context) (provider.Provider, error) {
	return &fakeProvider{}, nil
}

func TestCreateMainAgentAcquiresLimiterSlot(t *testing.T) {
	l := limiter.New(1)
	p := New(l, dialFake, nil, nil)

	s, err := p.CreateMainAgent(context.Background(), "m1", nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if l.InFlight() != 1 {
		t.Fatalf("expected 1 in flight, got %d", l.InFlight())
	}
	if s.Role() != "main-m1" {
		t.Fatalf("unexpected role %s", s.Role())
	}
}

func TestCreateFailsWithoutMutatingStateWhenLimiterSaturated(t *testing.T) {
	l := limiter.New(1)
	p := New(l, dialFake, nil, nil)

	if _, err := p.CreateMainAgent(context.Background(), "m1", nil, nil, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := p.CreateMainAgent(context.Background(), "m2", nil, nil, nil); err == nil {
		t.Fatal("expected second create to fail under capacity 1")
	}
	if _, ok := p.GetByRole("main-m2"); ok {
		t.Fatal("expected failed create to leave no trace")
	}
}

func TestDisposeReleasesLimiterSlotForReuse(t *testing.T) {
	l := limiter.New(1)
	p := New(l, dialFake, nil, nil)

	s, err := p.CreateMainAgent(context.Background(), "m1", nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Dispose(); err != nil {
		t.Fatal(err)
	}
	if l.InFlight() != 0 {
		t.Fatalf("expected slot released, in flight = %d", l.InFlight())
	}
	if _, err := p.CreateMainAgent(context.Background(), "m2", nil, nil, nil); err != nil {
		t.Fatalf("expected slot reusable after dispose: %v", err)
	}
}

func TestHasRolePrefixMatchesWindowAgents(t *testing.T) {
	l := limiter.New(4)
	p := New(l, dialFake, nil, nil)
	if _, err := p.CreateWindowAgent(context.Background(), "m1", "w1", "main-m1", nil, nil, nil); err != nil {
		t.Fatal(err)
	}
	if !p.HasRolePrefix("window-") {
		t.Fatal("expected window- prefix to match")
	}
	if p.HasRolePrefix("task-") {
		t.Fatal("expected task- prefix not to match")
	}
}
