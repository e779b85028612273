package agentpool

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/deskmux/deskmux/internal/orchestrator/errs"
	"github.com/deskmux/deskmux/internal/orchestrator/limiter"
	"github.com/deskmux/deskmux/internal/provider"
	"github.com/deskmux/deskmux/pkg/models"
)

// Dialer produces a Provider for a newly created session.
type Dialer func(ctx context.Context) (provider.Provider, error)

// Unregisterer detaches a role from BroadcastCenter's routing tables, if any.
type Unregisterer interface {
	UnregisterAgent(role models.AgentRole)
}

// Pool is the role-indexed registry of every AgentSession. Every creation
// acquires a Limiter slot first; on failure the pool is left untouched.
type Pool struct {
	limiter *limiter.Limiter
	dial    Dialer
	unreg   Unregisterer
	log     *slog.Logger

	mu       sync.Mutex
	sessions map[models.AgentRole]*Session
}

// New builds an empty Pool backed by the given Limiter and Dialer.
func New(l *limiter.Limiter, dial Dialer, unreg Unregisterer, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	return &Pool{limiter: l, dial: dial, unreg: unreg, log: log, sessions: make(map[models.AgentRole]*Session)}
}

// create acquires a Limiter slot, dials a provider, and registers the
// resulting Session under role. Returns an error without mutating pool
// state if the Limiter is saturated, resetting, or the dial fails. When wait
// is true it blocks in the Limiter's FIFO wait queue instead of failing fast.
func (p *Pool) create(ctx context.Context, role models.AgentRole, monitorID, windowID, parentAgentID, connectionID string, tools ToolExecutor, actionSink ActionSink, append AppendFunc, wait bool) (*Session, error) {
	if wait {
		if err := p.limiter.Acquire(ctx); err != nil {
			return nil, errs.New(errs.KindCapacity, err)
		}
	} else if !p.limiter.TryAcquire() {
		return nil, errs.New(errs.KindCapacity, errs.ErrLimitReached)
	}

	prov, err := p.dial(ctx)
	if err != nil {
		p.limiter.Release()
		return nil, errs.New(errs.KindProvider, fmt.Errorf("dial provider for %s: %w", role, err))
	}

	cfg := Config{
		Role: role, Provider: prov, MonitorID: monitorID, WindowID: windowID,
		ParentAgentID: parentAgentID, ConnectionID: connectionID,
		Tools: tools, Actions: actionSink, Append: append, Logger: p.log,
	}
	sess := New(cfg, p.onSessionDisposed)

	p.mu.Lock()
	if _, exists := p.sessions[role]; exists {
		p.mu.Unlock()
		prov.Dispose()
		p.limiter.Release()
		return nil, errs.New(errs.KindContractViolation, fmt.Errorf("role %s already active", role))
	}
	p.sessions[role] = sess
	p.mu.Unlock()
	return sess, nil
}

// CreateMainAgent creates the long-lived main-<monitorID> session.
func (p *Pool) CreateMainAgent(ctx context.Context, monitorID string, tools ToolExecutor, actionSink ActionSink, append AppendFunc) (*Session, error) {
	role := models.AgentRole("main-" + monitorID)
	return p.create(ctx, role, monitorID, "", "", "", tools, actionSink, append, false)
}

// CreateWindowAgent creates the long-lived window-<windowID> session,
// parented under its owning main agent.
func (p *Pool) CreateWindowAgent(ctx context.Context, monitorID, windowID, parentAgentID string, tools ToolExecutor, actionSink ActionSink, append AppendFunc) (*Session, error) {
	role := models.AgentRole("window-" + windowID)
	return p.create(ctx, role, monitorID, windowID, parentAgentID, "", tools, actionSink, append, false)
}

// CreateEphemeral creates a short-lived ephemeral-N session used to drain a
// monitor's main queue when no idle main agent is available. Fails fast if
// the Limiter is saturated.
func (p *Pool) CreateEphemeral(ctx context.Context, monitorID, n, parentAgentID string, tools ToolExecutor, actionSink ActionSink, append AppendFunc) (*Session, error) {
	role := models.AgentRole("ephemeral-" + n)
	return p.create(ctx, role, monitorID, "", parentAgentID, "", tools, actionSink, append, false)
}

// CreateEphemeralWaiting is CreateEphemeral but blocks in the Limiter's FIFO
// wait queue instead of failing fast, for callers already holding a budget
// slot that would rather wait than give it back.
func (p *Pool) CreateEphemeralWaiting(ctx context.Context, monitorID, n, parentAgentID string, tools ToolExecutor, actionSink ActionSink, append AppendFunc) (*Session, error) {
	role := models.AgentRole("ephemeral-" + n)
	return p.create(ctx, role, monitorID, "", parentAgentID, "", tools, actionSink, append, true)
}

// CreateTask creates a short-lived task-N session for TaskDispatcher.
func (p *Pool) CreateTask(ctx context.Context, n, parentAgentID, connectionID string, tools ToolExecutor, actionSink ActionSink, append AppendFunc) (*Session, error) {
	role := models.AgentRole("task-" + n)
	return p.create(ctx, role, "", "", parentAgentID, connectionID, tools, actionSink, append, false)
}

// GetByRole returns the session registered under role, if any.
func (p *Pool) GetByRole(role models.AgentRole) (*Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[role]
	return s, ok
}

// HasRolePrefix reports whether any session's role starts with prefix.
func (p *Pool) HasRolePrefix(prefix string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for role := range p.sessions {
		if strings.HasPrefix(string(role), prefix) {
			return true
		}
	}
	return false
}

// InterruptAll interrupts every session currently registered.
func (p *Pool) InterruptAll() {
	p.mu.Lock()
	snapshot := make([]*Session, 0, len(p.sessions))
	for _, s := range p.sessions {
		snapshot = append(snapshot, s)
	}
	p.mu.Unlock()
	for _, s := range snapshot {
		s.Interrupt()
	}
}

// InterruptByRole interrupts one session by exact role match, if present.
func (p *Pool) InterruptByRole(role models.AgentRole) {
	if s, ok := p.GetByRole(role); ok {
		s.Interrupt()
	}
}

// Dispose disposes one session by role, releasing its Limiter slot and
// broadcast registration.
func (p *Pool) Dispose(role models.AgentRole) error {
	p.mu.Lock()
	s, ok := p.sessions[role]
	p.mu.Unlock()
	if !ok {
		return errs.New(errs.KindContractViolation, errs.ErrNotFound)
	}
	return s.Dispose()
}

// onSessionDisposed is Session's onDispose hook: removes the role from the
// registry, unregisters from BroadcastCenter, and releases the Limiter slot.
func (p *Pool) onSessionDisposed(role models.AgentRole) {
	p.mu.Lock()
	delete(p.sessions, role)
	p.mu.Unlock()
	if p.unreg != nil {
		p.unreg.UnregisterAgent(role)
	}
	p.limiter.Release()
}

// Cleanup disposes every registered session; used by ContextPool.Reset.
func (p *Pool) Cleanup() {
	p.mu.Lock()
	snapshot := make([]*Session, 0, len(p.sessions))
	for _, s := range p.sessions {
		snapshot = append(snapshot, s)
	}
	p.mu.Unlock()
	for _, s := range snapshot {
		s.Dispose()
	}
}

// Stats summarizes the pool's current occupancy.
type Stats struct {
	Total int
	Idle  int
	Busy  int
}

// Stats returns idle/busy counts across every registered session.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := Stats{Total: len(p.sessions)}
	for _, s := range p.sessions {
		switch s.State() {
		case models.SessionIdle:
			st.Idle++
		case models.SessionRunning, models.SessionInterrupting:
			st.Busy++
		}
	}
	return st
}
