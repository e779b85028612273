package broadcast

import (
	"sync"
	"testing"

	"github.com/deskmux/deskmux/pkg/models"
)

type fakeSink struct {
	mu       sync.Mutex
	received [][]byte
	result   models.SendResult
}

func (f *fakeSink) Send(payload []byte) models.SendResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.result == models.SendOK {
		f.received = append(f.received, payload)
	}
	return f.result
}

func TestPublishToConnectionOrdersPerSink(t *testing.T) {
	c := New(nil, nil, nil)
	sink := &fakeSink{result: models.SendOK}
	c.Subscribe("conn1", sink)

	for i := 0; i < 5; i++ {
		if ok := c.PublishToConnection(map[string]int{"seq": i}, "conn1"); !ok {
			t.Fatalf("publish %d failed", i)
		}
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.received) != 5 {
		t.Fatalf("expected 5 delivered events, got %d", len(sink.received))
	}
}

func TestPublishToAgentRoutesByRole(t *testing.T) {
	c := New(nil, nil, nil)
	sink := &fakeSink{result: models.SendOK}
	c.Subscribe("conn1", sink)
	c.RegisterAgent("main-1", "conn1")

	if !c.PublishToAgent(map[string]string{"type": "AGENT_RESPONSE"}, "main-1") {
		t.Fatal("expected publish to succeed")
	}
	if c.PublishToAgent(map[string]string{"type": "x"}, "main-2") {
		t.Fatal("expected publish to unknown role to fail")
	}
}

func TestClosedSinkUnregistersAgents(t *testing.T) {
	c := New(nil, nil, nil)
	sink := &fakeSink{result: models.SendClosed}
	c.Subscribe("conn1", sink)
	c.RegisterAgent("main-1", "conn1")

	if c.PublishToConnection(map[string]int{}, "conn1") {
		t.Fatal("expected publish to closed sink to report false")
	}
	if c.PublishToAgent(map[string]int{}, "main-1") {
		t.Fatal("expected agent to be unregistered after sink closed")
	}
}

func TestBroadcastDeliversToAllConnectedSinks(t *testing.T) {
	c := New(nil, nil, nil)
	a := &fakeSink{result: models.SendOK}
	b := &fakeSink{result: models.SendDropped}
	c.Subscribe("a", a)
	c.Subscribe("b", b)

	delivered := c.Broadcast(map[string]string{"type": "TICK"})
	if delivered != 1 {
		t.Fatalf("expected 1 delivered, got %d", delivered)
	}
}

func TestUnsubscribeRemovesAgentMapping(t *testing.T) {
	c := New(nil, nil, nil)
	sink := &fakeSink{result: models.SendOK}
	c.Subscribe("conn1", sink)
	c.RegisterAgent("window-w1", "conn1")

	c.Unsubscribe("conn1")

	if c.PublishToAgent(map[string]int{}, "window-w1") {
		t.Fatal("expected agent mapping to be gone after unsubscribe")
	}
}
