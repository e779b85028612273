// Package agentpool implements AgentSession's lifecycle state machine and
// AgentPool, the role-indexed registry that owns every session.
package agentpool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/deskmux/deskmux/internal/orchestrator/errs"
	"github.com/deskmux/deskmux/internal/provider"
	"github.com/deskmux/deskmux/pkg/models"
)

// ToolExecutor is the external MCP tool surface boundary: given a tool
// invocation it returns the actions it produced plus the result text fed
// back to the provider.
type ToolExecutor interface {
	Execute(ctx context.Context, use provider.ToolUse) ([]models.Action, provider.ToolResult, error)
}

// ActionSink receives a batch of actions produced by one tool invocation.
type ActionSink interface {
	Emit(agentID, parentAgentID, connectionID string, batch []models.Action) error
}

// AppendFunc records a completed turn into the ContextTape.
type AppendFunc func(role models.MessageRole, content string, source models.ContextSource)

// Config wires one AgentSession's collaborators.
type Config struct {
	Role          models.AgentRole
	Provider      provider.Provider
	MonitorID     string
	WindowID      string
	ParentAgentID string
	ConnectionID  string
	Tools         ToolExecutor
	Actions       ActionSink
	Append        AppendFunc
	Logger        *slog.Logger
}

// Session is one AgentSession: owns a provider handle, role, and logger.
// Lifecycle: created -> idle -> running -> idle, with interrupting and
// disposed side states. At most one in-flight Handle call; reentrance is a
// contract violation.
type Session struct {
	cfg Config

	mu        sync.Mutex
	state     models.SessionState
	createdAt time.Time
	cancel    context.CancelFunc

	onDispose func(role models.AgentRole)
}

// New builds a Session in the created state and immediately transitions it
// to idle (Start).
func New(cfg Config, onDispose func(models.AgentRole)) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Session{cfg: cfg, state: models.SessionIdle, createdAt: time.Now(), onDispose: onDispose}
}

// Role returns the session's stable identity.
func (s *Session) Role() models.AgentRole { return s.cfg.Role }

// State returns the current lifecycle state.
func (s *Session) State() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HandleEventKind tags one item yielded by Handle's stream.
type HandleEventKind string

const (
	HandleText    HandleEventKind = "text"
	HandleActions HandleEventKind = "actions"
	HandleError   HandleEventKind = "error"
	HandleDone    HandleEventKind = "done"
)

// HandleEvent is one item in the stream Handle returns.
type HandleEvent struct {
	Kind    HandleEventKind
	Text    string
	Actions []models.Action
	Err     error
}

// Handle assembles the prompt (already formatted by the caller), calls the
// provider, and iterates assistant chunks and tool invocations. Calling
// Handle reentrantly on the same session is a contract violation.
func (s *Session) Handle(ctx context.Context, prompt string) (<-chan HandleEvent, error) {
	s.mu.Lock()
	if s.state == models.SessionDisposed {
		s.mu.Unlock()
		return nil, errs.New(errs.KindContractViolation, errs.ErrAlreadyDisposed)
	}
	if s.state != models.SessionIdle {
		s.mu.Unlock()
		return nil, errs.New(errs.KindContractViolation, errs.ErrReentrantHandle)
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.state = models.SessionRunning
	s.cancel = cancel
	s.mu.Unlock()

	chunks, err := s.cfg.Provider.Query(runCtx, prompt)
	if err != nil {
		s.mu.Lock()
		s.state = models.SessionIdle
		s.cancel = nil
		s.mu.Unlock()
		return nil, errs.New(errs.KindProvider, err)
	}

	out := make(chan HandleEvent)
	go s.drive(runCtx, chunks, out)
	return out, nil
}

func (s *Session) drive(ctx context.Context, chunks <-chan provider.Chunk, out chan<- HandleEvent) {
	defer close(out)
	var assistantText string
	interrupted := false

	for chunk := range chunks {
		select {
		case <-ctx.Done():
			interrupted = true
		default:
		}
		if interrupted {
			continue
		}

		switch chunk.Kind {
		case provider.ChunkAssistant:
			assistantText += chunk.Text
			out <- HandleEvent{Kind: HandleText, Text: chunk.Text}
		case provider.ChunkToolUse:
			if chunk.ToolUse == nil || s.cfg.Tools == nil {
				continue
			}
			actionsBatch, _, err := s.cfg.Tools.Execute(ctx, *chunk.ToolUse)
			if err != nil {
				out <- HandleEvent{Kind: HandleError, Err: fmt.Errorf("tool %s: %w", chunk.ToolUse.Name, err)}
				continue
			}
			if len(actionsBatch) > 0 && s.cfg.Actions != nil {
				if err := s.cfg.Actions.Emit(string(s.cfg.Role), s.cfg.ParentAgentID, s.cfg.ConnectionID, actionsBatch); err != nil {
					out <- HandleEvent{Kind: HandleError, Err: err}
					continue
				}
				out <- HandleEvent{Kind: HandleActions, Actions: actionsBatch}
			}
		case provider.ChunkToolResult:
			// Tool results routed to the provider transport itself; nothing
			// further to do on the orchestrator side.
		}
		if chunk.Err != nil {
			out <- HandleEvent{Kind: HandleError, Err: chunk.Err}
		}
	}

	// Interrupt(): no partial append for incomplete turns.
	if !interrupted && assistantText != "" && s.cfg.Append != nil {
		source := models.ContextSource{Main: s.cfg.WindowID == ""}
		if s.cfg.WindowID != "" {
			source.WindowID = s.cfg.WindowID
		}
		s.cfg.Append(models.RoleAssistant, assistantText, source)
	}

	s.mu.Lock()
	if s.state == models.SessionRunning || s.state == models.SessionInterrupting {
		s.state = models.SessionIdle
	}
	s.cancel = nil
	s.mu.Unlock()

	out <- HandleEvent{Kind: HandleDone}
}

// Interrupt cancels the in-flight provider stream. A no-op when idle;
// returns immediately if already interrupting.
func (s *Session) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case models.SessionIdle, models.SessionDisposed, models.SessionInterrupting:
		return
	case models.SessionRunning:
		s.state = models.SessionInterrupting
		if s.cancel != nil {
			s.cancel()
		}
	}
}

// Dispose moves the session to disposed, closes the provider handle, and
// invokes onDispose so the owning pool can release its Limiter slot and
// unregister from BroadcastCenter.
func (s *Session) Dispose() error {
	s.mu.Lock()
	if s.state == models.SessionDisposed {
		s.mu.Unlock()
		return errs.New(errs.KindContractViolation, errs.ErrAlreadyDisposed)
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.state = models.SessionDisposed
	s.mu.Unlock()

	err := s.cfg.Provider.Dispose()
	if s.onDispose != nil {
		s.onDispose(s.cfg.Role)
	}
	return err
}
