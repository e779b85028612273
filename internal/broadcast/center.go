// Package broadcast maps connections and agent roles to sinks and fans
// server events out to them.
package broadcast

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/deskmux/deskmux/pkg/models"
)

// Center maps connection-id -> sink and agent-role -> connection-id, and
// fans events out. It holds only weak references (by id) back to
// connections; there are no cyclic ownership edges.
type Center struct {
	mu          sync.RWMutex
	connections map[string]*connState
	agents      map[models.AgentRole]string // role -> connectionId

	delivered func()
	dropped   func()

	logger *slog.Logger
}

type connState struct {
	sink   models.Sink
	agents map[models.AgentRole]struct{}
}

// New builds an empty Center. onDelivered/onDropped may be nil; when set
// they are called once per PublishTo*/Broadcast outcome for metrics.
func New(logger *slog.Logger, onDelivered, onDropped func()) *Center {
	if logger == nil {
		logger = slog.Default()
	}
	if onDelivered == nil {
		onDelivered = func() {}
	}
	if onDropped == nil {
		onDropped = func() {}
	}
	return &Center{
		connections: make(map[string]*connState),
		agents:      make(map[models.AgentRole]string),
		delivered:   onDelivered,
		dropped:     onDropped,
		logger:      logger,
	}
}

// Subscribe registers a sink for connectionId, replacing any prior sink.
func (c *Center) Subscribe(connectionID string, sink models.Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connections[connectionID] = &connState{sink: sink, agents: make(map[models.AgentRole]struct{})}
}

// Unsubscribe drops the sink and unregisters every agent mapped to it.
func (c *Center) Unsubscribe(connectionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribeLocked(connectionID)
}

func (c *Center) unsubscribeLocked(connectionID string) {
	cs, ok := c.connections[connectionID]
	if !ok {
		return
	}
	for role := range cs.agents {
		delete(c.agents, role)
	}
	delete(c.connections, connectionID)
}

// RegisterAgent maps role to connectionID.
func (c *Center) RegisterAgent(role models.AgentRole, connectionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cs, ok := c.connections[connectionID]
	if !ok {
		return
	}
	c.agents[role] = connectionID
	cs.agents[role] = struct{}{}
}

// UnregisterAgent drops the role -> connection mapping.
func (c *Center) UnregisterAgent(role models.AgentRole) {
	c.mu.Lock()
	defer c.mu.Unlock()
	connID, ok := c.agents[role]
	if !ok {
		return
	}
	delete(c.agents, role)
	if cs, ok := c.connections[connID]; ok {
		delete(cs.agents, role)
	}
}

// PublishToAgent delivers event to the connection role is mapped to.
func (c *Center) PublishToAgent(event any, role models.AgentRole) bool {
	c.mu.RLock()
	connID, ok := c.agents[role]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	return c.PublishToConnection(event, connID)
}

// PublishToConnection delivers event to one connection's sink.
//
// Publication is fire-and-forget and reports any failure as a false return.
// A closed sink is also removed synchronously and any agents mapped to it
// are unregistered; a sink whose buffer is full drops the event and stays
// subscribed. No retries.
func (c *Center) PublishToConnection(event any, connectionID string) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		c.logger.Error("broadcast: marshal event failed", "error", err)
		return false
	}

	c.mu.RLock()
	cs, ok := c.connections[connectionID]
	c.mu.RUnlock()
	if !ok {
		return false
	}

	switch cs.sink.Send(payload) {
	case models.SendOK:
		c.delivered()
		return true
	case models.SendDropped:
		c.dropped()
		return false
	default: // models.SendClosed
		c.dropped()
		c.mu.Lock()
		c.unsubscribeLocked(connectionID)
		c.mu.Unlock()
		return false
	}
}

// Broadcast delivers event to every connected sink and returns the count
// delivered. Per-sink ordering is preserved; there is no ordering guarantee
// across sinks.
func (c *Center) Broadcast(event any) int {
	payload, err := json.Marshal(event)
	if err != nil {
		c.logger.Error("broadcast: marshal event failed", "error", err)
		return 0
	}

	c.mu.RLock()
	targets := make([]string, 0, len(c.connections))
	for id := range c.connections {
		targets = append(targets, id)
	}
	c.mu.RUnlock()

	delivered := 0
	for _, id := range targets {
		c.mu.RLock()
		cs, ok := c.connections[id]
		c.mu.RUnlock()
		if !ok {
			continue
		}
		switch cs.sink.Send(payload) {
		case models.SendOK:
			c.delivered()
			delivered++
		case models.SendDropped:
			c.dropped()
		default:
			c.dropped()
			c.mu.Lock()
			c.unsubscribeLocked(id)
			c.mu.Unlock()
		}
	}
	return delivered
}
