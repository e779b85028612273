// Package windowproc implements WindowTaskProcessor: one agent and one FIFO
// per window, with a close cascade that interrupts, unlocks, and disposes.
package windowproc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/deskmux/deskmux/internal/orchestrator/agentpool"
	"github.com/deskmux/deskmux/internal/orchestrator/contexttape"
	"github.com/deskmux/deskmux/internal/orchestrator/queue"
	"github.com/deskmux/deskmux/pkg/models"
)

// ToolResolver resolves the tool surface available to a window agent.
type ToolResolver func(windowID string) agentpool.ToolExecutor

// StatusBroadcaster emits a WINDOW_AGENT_STATUS event to clients.
type StatusBroadcaster interface {
	Broadcast(event any) int
}

// WindowAgentStatus is the WINDOW_AGENT_STATUS broadcast payload.
type WindowAgentStatus struct {
	Type     string `json:"type"`
	WindowID string `json:"windowId"`
	Status   string `json:"status"`
	Position int    `json:"position,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Config wires a Processor's collaborators.
type Config struct {
	Pool      *agentpool.Pool
	Queue     *queue.WindowQueue
	Tape      *contexttape.Tape
	Actions   agentpool.ActionSink
	Broadcast StatusBroadcaster
	Tools     ToolResolver
	Log       *slog.Logger
}

// Processor owns one WindowQueue drain loop per window.
type Processor struct {
	cfg Config

	mu      sync.Mutex
	started map[string]bool
}

// New builds a Processor.
func New(cfg Config) *Processor {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Processor{cfg: cfg, started: make(map[string]bool)}
}

// HandleTask resolves or creates windowID's agent and enqueues task,
// broadcasting WINDOW_AGENT_STATUS with the task's queue position.
func (p *Processor) HandleTask(ctx context.Context, monitorID, windowID string, task models.Task) error {
	role := models.AgentRole("window-" + windowID)
	if _, ok := p.cfg.Pool.GetByRole(role); !ok {
		if err := p.cfg.Actions.Emit(string(role), "", "", []models.Action{{Type: models.ActionWindowLock, WindowID: windowID, AgentID: string(role)}}); err != nil {
			p.cfg.Log.Warn("windowproc: window.lock emit failed", "window", windowID, "error", err)
		}

		var tools agentpool.ToolExecutor
		if p.cfg.Tools != nil {
			tools = p.cfg.Tools(windowID)
		}
		appendFn := func(r models.MessageRole, content string, source models.ContextSource) {
			p.cfg.Tape.Append(r, content, source)
		}
		if _, err := p.cfg.Pool.CreateWindowAgent(ctx, monitorID, windowID, "main-"+monitorID, tools, p.cfg.Actions, appendFn); err != nil {
			p.broadcastStatus(windowID, "failed", 0, err.Error())
			return fmt.Errorf("windowproc: create window agent for %s: %w", windowID, err)
		}
	}

	position := p.cfg.Queue.Enqueue(windowID, task)
	p.broadcastStatus(windowID, "queued", position, "")
	p.ensureDrainLoop(windowID)
	return nil
}

func (p *Processor) broadcastStatus(windowID, status string, position int, reason string) {
	if p.cfg.Broadcast == nil {
		return
	}
	p.cfg.Broadcast.Broadcast(WindowAgentStatus{Type: "WINDOW_AGENT_STATUS", WindowID: windowID, Status: status, Position: position, Reason: reason})
}

func (p *Processor) ensureDrainLoop(windowID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started[windowID] {
		return
	}
	p.started[windowID] = true
	go p.drain(windowID)
}

func (p *Processor) drain(windowID string) {
	for {
		task, ok := p.cfg.Queue.Next(windowID)
		if !ok {
			p.mu.Lock()
			delete(p.started, windowID)
			p.mu.Unlock()
			return
		}
		p.handleOne(windowID, task)
		p.cfg.Queue.MarkDone(windowID)
	}
}

func (p *Processor) handleOne(windowID string, task models.Task) {
	role := models.AgentRole("window-" + windowID)
	sess, ok := p.cfg.Pool.GetByRole(role)
	if !ok {
		p.cfg.Log.Warn("windowproc: no agent for window", "window", windowID)
		return
	}

	prompt := fmt.Sprintf("%s\n<task>%s</task>", p.cfg.Tape.FormatForPrompt(contexttape.FormatOptions{ForWindow: windowID}), task.Content)
	stream, err := sess.Handle(context.Background(), prompt)
	if err != nil {
		p.cfg.Log.Error("windowproc: handle failed", "window", windowID, "error", err)
		return
	}
	for ev := range stream {
		if ev.Kind == agentpool.HandleError {
			p.cfg.Log.Error("windowproc: stream error", "window", windowID, "error", ev.Err)
		}
	}
}

// HandleWindowClose runs the full close cascade for windowID: drops queued
// tasks, interrupts an in-flight task, unlocks, disposes the window agent,
// and prunes the ContextTape's window branch.
func (p *Processor) HandleWindowClose(windowID string) {
	dropped := p.cfg.Queue.Clear(windowID)
	for range dropped {
		p.broadcastStatus(windowID, "cancelled", 0, "window closed")
	}

	role := models.AgentRole("window-" + windowID)
	if sess, ok := p.cfg.Pool.GetByRole(role); ok {
		sess.Interrupt()
		if err := p.cfg.Actions.Emit(string(role), "", "", []models.Action{{Type: models.ActionWindowUnlock, WindowID: windowID, AgentID: string(role)}}); err != nil {
			p.cfg.Log.Warn("windowproc: window.unlock emit failed", "window", windowID, "error", err)
		}
		if err := sess.Dispose(); err != nil {
			p.cfg.Log.Warn("windowproc: dispose window agent failed", "window", windowID, "error", err)
		}
	}

	p.mu.Lock()
	delete(p.started, windowID)
	p.mu.Unlock()

	p.cfg.Tape.PruneWindow(windowID)
}
