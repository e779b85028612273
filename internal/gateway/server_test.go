package gateway

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/deskmux/deskmux/internal/broadcast"
	"github.com/deskmux/deskmux/internal/config"
	"github.com/deskmux/deskmux/internal/orchestrator/dispatcher"
	"github.com/deskmux/deskmux/pkg/models"
)

type fakeRouter struct {
	tasks chan models.Task
}

func (f *fakeRouter) HandleTask(ctx context.Context, task models.Task) error {
	f.tasks <- task
	return nil
}
func (f *fakeRouter) PushUserInteractions(interactions []models.UserInteraction) {}
func (f *fakeRouter) DispatchTask(ctx context.Context, req dispatcher.Request) (dispatcher.Result, error) {
	return dispatcher.Result{Dispatched: true, Result: "ok"}, nil
}
func (f *fakeRouter) HandleWindowClose(windowID string)          {}
func (f *fakeRouter) InterruptAgent(role models.AgentRole)       {}

func TestServerRoutesTaskEventToRouter(t *testing.T) {
	bc := broadcast.New(nil, nil, nil)
	router := &fakeRouter{tasks: make(chan models.Task, 1)}
	srv := NewServer(config.GatewayConfig{ReadBufferSize: 4096, WriteBufferSize: 4096, SendBufferSize: 8, PingIntervalSeconds: 30}, config.AuthConfig{Required: false}, nil, bc, router, nil)

	ts := httptest.NewServer(srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	msg := `{"type":"TASK","task":{"taskId":"t1","kind":"main","monitorId":"m1","content":"hi"}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatal(err)
	}

	select {
	case task := <-router.tasks:
		if task.ID != "t1" || task.MonitorID != "m1" {
			t.Fatalf("unexpected task %+v", task)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for routed task")
	}
}
