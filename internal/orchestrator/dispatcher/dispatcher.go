// Package dispatcher implements TaskDispatcher: one-shot task agents spawned
// outside the main/window queues for synchronous request/response work.
package dispatcher

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/deskmux/deskmux/internal/orchestrator/agentpool"
	"github.com/deskmux/deskmux/internal/orchestrator/errs"
)

// Request is one dispatch call's input.
type Request struct {
	Objective    string
	Profile      string
	Hint         string
	MonitorID    string
	ConnectionID string
}

// Result is what Dispatch returns to its caller.
type Result struct {
	Dispatched bool
	Result     string
	Reason     string
}

// PromptFormatter builds the main-only prompt prefix a task agent sees
// before its objective/hint block.
type PromptFormatter func() string

// ToolResolver resolves the tool surface scoped to a dispatch profile.
type ToolResolver func(profile string) agentpool.ToolExecutor

// Dispatcher spawns task-N AgentSessions under the shared Limiter.
type Dispatcher struct {
	pool      *agentpool.Pool
	prompt    PromptFormatter
	tools     ToolResolver
	actions   agentpool.ActionSink
	counter   atomic.Int64
}

// New builds a Dispatcher.
func New(pool *agentpool.Pool, prompt PromptFormatter, tools ToolResolver, actions agentpool.ActionSink) *Dispatcher {
	return &Dispatcher{pool: pool, prompt: prompt, tools: tools, actions: actions}
}

// Dispatch spawns a task agent under the shared Limiter, runs it to
// completion on req.Objective/Hint, disposes it, and returns its final
// assistant text. Returns Dispatched=false with Reason="limit" if the
// Limiter is saturated.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	n := strconv.FormatInt(d.counter.Add(1), 10)

	var tools agentpool.ToolExecutor
	if d.tools != nil {
		tools = d.tools(req.Profile)
	}

	sess, err := d.pool.CreateTask(ctx, n, "", req.ConnectionID, tools, d.actions, nil)
	if err != nil {
		if errs.IsKind(err, errs.KindCapacity) {
			return Result{Dispatched: false, Reason: "limit"}, nil
		}
		return Result{}, fmt.Errorf("dispatcher: create task-%s: %w", n, err)
	}
	defer sess.Dispose()

	prefix := ""
	if d.prompt != nil {
		prefix = d.prompt()
	}
	prompt := fmt.Sprintf("%s\n<objective>%s</objective>\n<hint>%s</hint>", prefix, req.Objective, req.Hint)

	stream, err := sess.Handle(ctx, prompt)
	if err != nil {
		return Result{}, fmt.Errorf("dispatcher: handle task-%s: %w", n, err)
	}

	var final string
	for ev := range stream {
		switch ev.Kind {
		case agentpool.HandleText:
			final += ev.Text
		case agentpool.HandleError:
			return Result{}, fmt.Errorf("dispatcher: task-%s: %w", n, ev.Err)
		}
	}

	return Result{Dispatched: true, Result: final}, nil
}
