package agentpool

import (
	"context"
	"testing"
	"time"

	"github.com/deskmux/deskmux/internal/provider"
	"github.com/deskmux/deskmux/pkg/models"
)

type fakeProvider struct {
	chunks []provider.Chunk
}

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) Type() string { return "fake" }
func (f *fakeProvider) Query(ctx context.Context, prompt string) (<-chan provider.Chunk, error) {
	out := make(chan provider.Chunk, len(f.chunks))
	for _, c := range f.chunks {
		out <- c
	}
	close(out)
	return out, nil
}
func (f *fakeProvider) Interrupt()     {}
func (f *fakeProvider) Dispose() error { return nil }

type blockingProvider struct {
	unblock chan struct{}
}

func (b *blockingProvider) Name() string { return "blocking" }
func (b *blockingProvider) Type() string { return "blocking" }
func (b *blockingProvider) Query(ctx context.Context, prompt string) (<-chan provider.Chunk, error) {
	out := make(chan provider.Chunk)
	go func() {
		defer close(out)
		select {
		case <-b.unblock:
		case <-ctx.Done():
		}
	}()
	return out, nil
}
func (b *blockingProvider) Interrupt()     {}
func (b *blockingProvider) Dispose() error { return nil }

func TestHandleAppendsAssistantTextOnCompletion(t *testing.T) {
	var appended []string
	cfg := Config{
		Role:     "main-1",
		Provider: &fakeProvider{chunks: []provider.Chunk{{Kind: provider.ChunkAssistant, Text: "hello "}, {Kind: provider.ChunkAssistant, Text: "world"}}},
		Append: func(role models.MessageRole, content string, source models.ContextSource) {
			appended = append(appended, content)
		},
	}
	s := New(cfg, nil)

	stream, err := s.Handle(context.Background(), "hi")
	if err != nil {
		t.Fatal(err)
	}
	for range stream {
	}

	if len(appended) != 1 || appended[0] != "hello world" {
		t.Fatalf("expected one appended turn, got %+v", appended)
	}
	if s.State() != models.SessionIdle {
		t.Fatalf("expected idle after completion, got %s", s.State())
	}
}

func TestReentrantHandleIsRejected(t *testing.T) {
	b := &blockingProvider{unblock: make(chan struct{})}
	defer close(b.unblock)
	s := New(Config{Role: "main-1", Provider: b}, nil)

	stream, err := s.Handle(context.Background(), "first")
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.Handle(context.Background(), "second")
	if err == nil {
		t.Fatal("expected reentrant Handle to be rejected")
	}

	b.unblock <- struct{}{}
	for range stream {
	}
}

func TestInterruptCancelsRunningHandle(t *testing.T) {
	b := &blockingProvider{unblock: make(chan struct{})}
	s := New(Config{Role: "main-1", Provider: b}, nil)

	stream, err := s.Handle(context.Background(), "go")
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(10 * time.Millisecond)
	s.Interrupt()

	for range stream {
	}
	if s.State() != models.SessionIdle {
		t.Fatalf("expected idle after interrupt drains, got %s", s.State())
	}
}

func TestDisposeInvokesOnDispose(t *testing.T) {
	var disposedRole models.AgentRole
	s := New(Config{Role: "main-1", Provider: &fakeProvider{}}, func(r models.AgentRole) { disposedRole = r })

	if err := s.Dispose(); err != nil {
		t.Fatal(err)
	}
	if disposedRole != "main-1" {
		t.Fatalf("expected onDispose called with main-1, got %s", disposedRole)
	}
	if err := s.Dispose(); err == nil {
		t.Fatal("expected second Dispose to fail")
	}
}
