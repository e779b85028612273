// Package mainproc implements MainTaskProcessor: one FIFO queue and drain
// loop per monitor, reusing the monitor's main agent or spawning an
// ephemeral one when it's busy, with reload-cache replay on exact hits.
package mainproc

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deskmux/deskmux/internal/orchestrator/agentpool"
	"github.com/deskmux/deskmux/internal/orchestrator/budget"
	"github.com/deskmux/deskmux/internal/orchestrator/contexttape"
	"github.com/deskmux/deskmux/internal/orchestrator/queue"
	"github.com/deskmux/deskmux/internal/orchestrator/timeline"
	"github.com/deskmux/deskmux/internal/reloadcache"
	"github.com/deskmux/deskmux/pkg/models"
)

// ToolResolver resolves the tool surface available to main/ephemeral agents.
type ToolResolver func(monitorID string) agentpool.ToolExecutor

// HasWindow answers whether a window id is still alive, for reload-cache
// replay validation.
type HasWindow func(windowID string) bool

// Config wires a Processor's collaborators.
type Config struct {
	Pool         *agentpool.Pool
	Limiter      LimiterWaitTimeout
	Budget       *budget.Budget
	Tape         *contexttape.Tape
	Timeline     *timeline.Timeline
	Cache        *reloadcache.Cache
	Actions      agentpool.ActionSink
	Tools        ToolResolver
	HasWindow    HasWindow
	QueueCap     int
	Log          *slog.Logger
}

// LimiterWaitTimeout bounds how long a task waits for a Limiter slot before
// the monitor gives up on spawning an ephemeral agent for this task.
type LimiterWaitTimeout time.Duration

// Processor owns one MainQueue per monitor and that monitor's drain loop.
type Processor struct {
	cfg Config

	mu       sync.Mutex
	queues   map[string]*queue.MainQueue
	started  map[string]bool
	ephCount atomic.Int64
}

// New builds a Processor.
func New(cfg Config) *Processor {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.QueueCap <= 0 {
		cfg.QueueCap = 10
	}
	return &Processor{cfg: cfg, queues: make(map[string]*queue.MainQueue), started: make(map[string]bool)}
}

// EnqueueTask appends task to monitorID's queue, starting its drain loop the
// first time a task for that monitor is seen.
func (p *Processor) EnqueueTask(monitorID string, task models.Task) queue.EnqueueResult {
	q := p.queueFor(monitorID)
	return q.Enqueue(task)
}

func (p *Processor) queueFor(monitorID string) *queue.MainQueue {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.queues[monitorID]
	if !ok {
		q = queue.NewMainQueue(p.cfg.QueueCap)
		p.queues[monitorID] = q
	}
	if !p.started[monitorID] {
		p.started[monitorID] = true
		go p.drain(monitorID, q)
	}
	return q
}

func (p *Processor) drain(monitorID string, q *queue.MainQueue) {
	for {
		task, ok := q.Dequeue()
		if !ok {
			return
		}
		p.processTask(monitorID, task)
	}
}

func (p *Processor) processTask(monitorID string, task models.Task) {
	ctx := context.Background()
	if err := p.cfg.Budget.Acquire(monitorID, ctx); err != nil {
		p.cfg.Log.Warn("mainproc: budget acquire failed", "monitor", monitorID, "error", err)
		return
	}
	defer p.cfg.Budget.Release(monitorID)
	p.cfg.Budget.RecordAction(monitorID)

	var tools agentpool.ToolExecutor
	if p.cfg.Tools != nil {
		tools = p.cfg.Tools(monitorID)
	}
	appendFn := func(role models.MessageRole, content string, source models.ContextSource) {
		p.cfg.Tape.Append(role, content, source)
	}

	role := models.AgentRole("main-" + monitorID)
	sess, ok := p.cfg.Pool.GetByRole(role)
	if !ok || sess.State() != models.SessionIdle {
		n := strconv.FormatInt(p.ephCount.Add(1), 10)
		waitCtx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.Limiter))
		defer cancel()
		var err error
		sess, err = p.cfg.Pool.CreateEphemeralWaiting(waitCtx, monitorID, n, string(role), tools, p.cfg.Actions, appendFn)
		if err != nil {
			p.cfg.Log.Warn("mainproc: could not spawn ephemeral agent", "monitor", monitorID, "error", err)
			return
		}
		defer sess.Dispose()
	}

	prompt := p.buildPrompt(monitorID, task)
	if p.cfg.Cache != nil {
		if entry, replayed := p.tryReplay(ctx, task); replayed {
			if p.cfg.Actions != nil {
				if err := p.cfg.Actions.Emit(string(role), "", "", entry.Actions); err != nil {
					p.cfg.Log.Warn("mainproc: replay emit failed", "monitor", monitorID, "error", err)
				}
			}
			p.cfg.Timeline.PushAgentAction(fmt.Sprintf("replayed cached actions for task %s", task.ID))
			return
		}
	}

	stream, err := sess.Handle(ctx, prompt)
	if err != nil {
		p.cfg.Log.Error("mainproc: handle failed", "monitor", monitorID, "error", err)
		return
	}
	for ev := range stream {
		if ev.Kind == agentpool.HandleError {
			p.cfg.Log.Error("mainproc: stream error", "monitor", monitorID, "error", ev.Err)
		}
	}
}

func (p *Processor) buildPrompt(monitorID string, task models.Task) string {
	convo := p.cfg.Tape.FormatForPrompt(contexttape.FormatOptions{})
	interactions := ""
	if p.cfg.Timeline != nil {
		interactions = p.cfg.Timeline.DrainForMainPrompt()
	}
	return fmt.Sprintf("%s\n%s\n<task>%s</task>", convo, interactions, task.Content)
}

// tryReplay looks up an exact cache match for task.Content and, if every
// required window is still alive, reports it as replayable without running
// an agent turn.
func (p *Processor) tryReplay(ctx context.Context, task models.Task) (models.CacheEntry, bool) {
	fp := reloadcache.Compute(task.Content, "task", "", nil)
	lookup := p.cfg.Cache.Lookup(fp)
	if lookup.Exact == nil {
		return models.CacheEntry{}, false
	}
	if p.cfg.HasWindow != nil {
		if err := p.cfg.Cache.ValidateReplay(ctx, *lookup.Exact, p.cfg.HasWindow); err != nil {
			return models.CacheEntry{}, false
		}
	}
	_ = p.cfg.Cache.MarkUsed(ctx, lookup.Exact.ID)
	return *lookup.Exact, true
}
