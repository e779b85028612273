// Package gateway implements the WebSocket transport layer: connection
// authentication, the client<->server event envelope, and routing decoded
// client events into ContextPool.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/deskmux/deskmux/internal/config"
	"github.com/deskmux/deskmux/internal/orchestrator/dispatcher"
	"github.com/deskmux/deskmux/pkg/models"
)

// Subscriber is the subset of BroadcastCenter the gateway needs to register
// and tear down connections.
type Subscriber interface {
	Subscribe(connectionID string, sink models.Sink)
	Unsubscribe(connectionID string)
}

// Router is the subset of ContextPool the gateway dispatches decoded client
// events to.
type Router interface {
	HandleTask(ctx context.Context, task models.Task) error
	PushUserInteractions(interactions []models.UserInteraction)
	DispatchTask(ctx context.Context, req dispatcher.Request) (dispatcher.Result, error)
	HandleWindowClose(windowID string)
	InterruptAgent(role models.AgentRole)
}

// ClientEvent is the client->server envelope (§6.1): exactly one of its
// payload fields is set per Type.
type ClientEvent struct {
	Type         string                   `json:"type"`
	Task         *models.Task             `json:"task,omitempty"`
	Interactions []models.UserInteraction `json:"interactions,omitempty"`
	Dispatch     *dispatcher.Request      `json:"dispatch,omitempty"`
	WindowID     string                   `json:"windowId,omitempty"`
	Role         string                   `json:"role,omitempty"`
}

const (
	eventTask          = "TASK"
	eventInteractions  = "INTERACTIONS"
	eventDispatch      = "DISPATCH"
	eventWindowClose   = "WINDOW_CLOSE"
	eventInterrupt     = "INTERRUPT"
)

// Server upgrades HTTP connections to WebSocket, authenticates them, and
// drives each connection's read loop.
type Server struct {
	gw     config.GatewayConfig
	auth   config.AuthConfig
	secret []byte

	subscriber Subscriber
	router     Router
	log        *slog.Logger

	upgrader websocket.Upgrader
}

// NewServer builds a Server. secret is the HMAC key used to verify the
// connection handshake's JWT; it may be empty when auth.Required is false.
func NewServer(gw config.GatewayConfig, auth config.AuthConfig, secret []byte, subscriber Subscriber, router Router, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		gw: gw, auth: auth, secret: secret, subscriber: subscriber, router: router, log: log,
		upgrader: websocket.Upgrader{ReadBufferSize: gw.ReadBufferSize, WriteBufferSize: gw.WriteBufferSize},
	}
}

// ServeHTTP upgrades the request, authenticates it, and runs the
// connection's read/write loops until it disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.auth.Required {
		if _, err := s.authenticate(r); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("gateway: upgrade failed", "error", err)
		return
	}

	connID := uuid.NewString()
	c := NewConnection(connID, conn, s.gw.SendBufferSize)
	s.subscriber.Subscribe(connID, c)
	defer s.subscriber.Unsubscribe(connID)
	defer c.Close()

	go c.WriteLoop(time.Duration(s.gw.PingIntervalSeconds) * time.Second)
	s.readLoop(connID, c)
}

// authenticate verifies the handshake JWT carried as a bearer token in the
// Authorization header or in the ?token= query parameter.
func (s *Server) authenticate(r *http.Request) (*jwt.Token, error) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		raw = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if raw == "" {
		return nil, fmt.Errorf("gateway: missing token")
	}
	return jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("gateway: unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
}

// readLoop decodes client events off the wire and routes them until the
// connection closes.
func (s *Server) readLoop(connID string, c *Connection) {
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var ev ClientEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			s.log.Warn("gateway: malformed client event", "connection", connID, "error", err)
			continue
		}
		s.handleEvent(connID, ev)
	}
}

func (s *Server) handleEvent(connID string, ev ClientEvent) {
	ctx := context.Background()
	switch ev.Type {
	case eventTask:
		if ev.Task == nil {
			return
		}
		if err := s.router.HandleTask(ctx, *ev.Task); err != nil {
			s.log.Warn("gateway: task rejected", "connection", connID, "error", err)
		}
	case eventInteractions:
		s.router.PushUserInteractions(ev.Interactions)
	case eventDispatch:
		if ev.Dispatch == nil {
			return
		}
		req := *ev.Dispatch
		req.ConnectionID = connID
		if _, err := s.router.DispatchTask(ctx, req); err != nil {
			s.log.Warn("gateway: dispatch failed", "connection", connID, "error", err)
		}
	case eventWindowClose:
		s.router.HandleWindowClose(ev.WindowID)
	case eventInterrupt:
		s.router.InterruptAgent(models.AgentRole(ev.Role))
	default:
		s.log.Warn("gateway: unknown event type", "connection", connID, "type", ev.Type)
	}
}
