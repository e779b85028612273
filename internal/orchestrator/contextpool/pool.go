// Package contextpool implements ContextPool, the facade wiring AgentPool,
// the limiter/budget pair, ContextTape/InteractionTimeline, the
// WindowStateRegistry, the main/window queues, ReloadCache, and
// BroadcastCenter into one coherent orchestration core.
package contextpool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/deskmux/deskmux/internal/observability"
	"github.com/deskmux/deskmux/internal/orchestrator/agentpool"
	"github.com/deskmux/deskmux/internal/orchestrator/budget"
	"github.com/deskmux/deskmux/internal/orchestrator/contexttape"
	"github.com/deskmux/deskmux/internal/orchestrator/dispatcher"
	"github.com/deskmux/deskmux/internal/orchestrator/errs"
	"github.com/deskmux/deskmux/internal/orchestrator/limiter"
	"github.com/deskmux/deskmux/internal/orchestrator/mainproc"
	"github.com/deskmux/deskmux/internal/orchestrator/timeline"
	"github.com/deskmux/deskmux/internal/orchestrator/windowproc"
	"github.com/deskmux/deskmux/internal/orchestrator/windowstate"
	"github.com/deskmux/deskmux/pkg/models"
)

// Broadcaster is the subset of BroadcastCenter ContextPool calls directly.
type Broadcaster interface {
	Broadcast(event any) int
}

// Config wires every collaborator ContextPool coordinates.
type Config struct {
	Limiter    *limiter.Limiter
	Budget     *budget.Budget
	Tape       *contexttape.Tape
	Timeline   *timeline.Timeline
	Registry   *windowstate.Registry
	Pool       *agentpool.Pool
	MainProc   *mainproc.Processor
	WindowProc *windowproc.Processor
	Dispatcher *dispatcher.Dispatcher
	Broadcast  Broadcaster
	Log        *slog.Logger

	// ResetWaitTimeout bounds how long Reset waits for in-flight Handle
	// calls to drain before forcing disposal (spec default 30s).
	ResetWaitTimeout time.Duration
}

// Stats summarizes the pool's current occupancy for diagnostics.
type Stats struct {
	Agents  agentpool.Stats
	Waiting int
}

// ContextPool is the orchestration core's single entry point.
type ContextPool struct {
	cfg Config

	mu             sync.Mutex
	activeMonitors map[string]bool
	resetting      bool
}

// New builds a ContextPool from its wired collaborators.
func New(cfg Config) *ContextPool {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.ResetWaitTimeout <= 0 {
		cfg.ResetWaitTimeout = 30 * time.Second
	}
	return &ContextPool{cfg: cfg, activeMonitors: make(map[string]bool)}
}

// Initialize creates a main agent for every monitor id already known at
// startup (e.g. restored from a prior session).
func (cp *ContextPool) Initialize(ctx context.Context, monitorIDs []string) error {
	for _, id := range monitorIDs {
		if err := cp.CreateMonitorAgent(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// CreateMonitorAgent spawns monitorID's main agent under the shared Limiter.
func (cp *ContextPool) CreateMonitorAgent(ctx context.Context, monitorID string) error {
	cp.mu.Lock()
	if cp.resetting {
		cp.mu.Unlock()
		return errs.New(errs.KindTeardown, errs.ErrResetting)
	}
	cp.mu.Unlock()

	appendFn := func(role models.MessageRole, content string, source models.ContextSource) {
		cp.cfg.Tape.Append(role, content, source)
	}
	if _, err := cp.cfg.Pool.CreateMainAgent(ctx, monitorID, nil, nil, appendFn); err != nil {
		return fmt.Errorf("contextpool: create main agent for %s: %w", monitorID, err)
	}
	cp.mu.Lock()
	cp.activeMonitors[monitorID] = true
	cp.mu.Unlock()
	return nil
}

// RemoveMonitorAgent disposes monitorID's main agent.
func (cp *ContextPool) RemoveMonitorAgent(monitorID string) error {
	cp.mu.Lock()
	delete(cp.activeMonitors, monitorID)
	cp.mu.Unlock()
	return cp.cfg.Pool.Dispose(models.AgentRole("main-" + monitorID))
}

// HandleTask routes task to the main or window processor per its Kind.
func (cp *ContextPool) HandleTask(ctx context.Context, task models.Task) error {
	ctx, span := observability.StartSpan(ctx, "ContextPool.HandleTask")
	defer span.End()
	if err := task.Validate(); err != nil {
		return errs.New(errs.KindContractViolation, err)
	}
	cp.mu.Lock()
	resetting := cp.resetting
	cp.mu.Unlock()
	if resetting {
		return errs.New(errs.KindTeardown, errs.ErrResetting)
	}

	switch task.Kind {
	case models.TaskMain:
		if res := cp.cfg.MainProc.EnqueueTask(task.MonitorID, task); res != "queued" {
			return errs.New(errs.KindCapacity, errs.ErrQueueFull)
		}
		return nil
	case models.TaskWindow, models.TaskComponentAction:
		return cp.cfg.WindowProc.HandleTask(ctx, cp.monitorForWindow(task.WindowID), task.WindowID, task)
	default:
		return errs.New(errs.KindContractViolation, fmt.Errorf("unknown task kind %q", task.Kind))
	}
}

// monitorForWindow always returns "": there is no window->monitor index, so
// every window task is attributed to the default monitor, whatever MonitorID
// the task carries.
func (cp *ContextPool) monitorForWindow(windowID string) string {
	return ""
}

// DispatchTask runs a one-shot task agent via TaskDispatcher.
func (cp *ContextPool) DispatchTask(ctx context.Context, req dispatcher.Request) (dispatcher.Result, error) {
	return cp.cfg.Dispatcher.Dispatch(ctx, req)
}

// PushUserInteractions records interactions into the InteractionTimeline for
// inclusion in the next main-agent turn.
func (cp *ContextPool) PushUserInteractions(interactions []models.UserInteraction) {
	for _, i := range interactions {
		cp.cfg.Timeline.PushUser(i)
	}
}

// HandleWindowClose runs the window close cascade.
func (cp *ContextPool) HandleWindowClose(windowID string) {
	cp.cfg.WindowProc.HandleWindowClose(windowID)
}

// InterruptAll interrupts every live session.
func (cp *ContextPool) InterruptAll() {
	cp.cfg.Pool.InterruptAll()
}

// InterruptAgent interrupts one session by role.
func (cp *ContextPool) InterruptAgent(role models.AgentRole) {
	cp.cfg.Pool.InterruptByRole(role)
}

// GetStats reports current occupancy.
func (cp *ContextPool) GetStats() Stats {
	return Stats{Agents: cp.cfg.Pool.Stats(), Waiting: cp.cfg.Limiter.Waiting()}
}

// Reset tears the pool down to empty and recreates a fresh main agent per
// previously-active monitor. While resetting, new tasks are rejected and
// limiter/budget waiters are failed.
func (cp *ContextPool) Reset(ctx context.Context) error {
	cp.mu.Lock()
	cp.resetting = true
	monitors := make([]string, 0, len(cp.activeMonitors))
	for id := range cp.activeMonitors {
		monitors = append(monitors, id)
	}
	cp.mu.Unlock()

	cp.cfg.Limiter.ClearWaiting(errs.New(errs.KindTeardown, errs.ErrResetting))
	cp.cfg.Budget.ClearWaiting(errs.New(errs.KindTeardown, errs.ErrResetting))
	cp.cfg.Pool.InterruptAll()

	deadline := time.Now().Add(cp.cfg.ResetWaitTimeout)
	for time.Now().Before(deadline) {
		if cp.cfg.Pool.Stats().Busy == 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	for _, w := range cp.cfg.Registry.ListWindows() {
		cp.cfg.WindowProc.HandleWindowClose(w.ID)
	}
	cp.cfg.Pool.Cleanup()

	cp.cfg.Tape.Clear()
	cp.cfg.Timeline.Clear()
	cp.cfg.Registry.Clear()
	cp.cfg.Limiter.Reopen()
	cp.cfg.Budget.Reopen()

	cp.mu.Lock()
	cp.resetting = false
	cp.activeMonitors = make(map[string]bool)
	cp.mu.Unlock()

	for _, id := range monitors {
		if err := cp.CreateMonitorAgent(ctx, id); err != nil {
			return fmt.Errorf("contextpool: reset recreate %s: %w", id, err)
		}
	}
	return nil
}

// Cleanup disposes every agent and clears all collaborator state, used on
// final shutdown (no monitor agents are recreated, unlike Reset).
func (cp *ContextPool) Cleanup() {
	cp.cfg.Pool.Cleanup()
	cp.cfg.Tape.Clear()
	cp.cfg.Timeline.Clear()
	cp.cfg.Registry.Clear()
}
