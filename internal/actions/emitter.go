// Package actions implements the desktop action grammar's write path: every
// action an agent's tools produce flows through an ActionEmitter, which is
// the one write path to WindowStateRegistry — tools never touch it
// directly.
package actions

import (
	"fmt"
	"log/slog"

	"github.com/deskmux/deskmux/internal/orchestrator/errs"
	"github.com/deskmux/deskmux/pkg/models"
)

// Registry is the subset of windowstate.Registry the emitter needs.
type Registry interface {
	Apply(models.Action) error
}

// Broadcaster is the subset of broadcast.Center the emitter needs.
type Broadcaster interface {
	Broadcast(event any) int
	PublishToConnection(event any, connectionID string) bool
}

// Logger is the subset of sessionlog.Logger the emitter needs, kept as an
// interface to avoid an import cycle between actions and sessionlog.
type Logger interface {
	LogAction(agentID, parentAgentID string, action models.Action) error
}

// Validator checks an action against the desktop action grammar's JSON
// Schema before it is applied.
type Validator interface {
	Validate(models.Action) error
}

// Emitter is the ActionEmitter: it validates, applies, logs, and
// broadcasts every outgoing action.
type Emitter struct {
	registry  Registry
	broadcast Broadcaster
	logger    Logger
	validator Validator
	log       *slog.Logger
}

// New builds an Emitter. validator may be nil to skip schema validation.
func New(registry Registry, broadcast Broadcaster, logger Logger, validator Validator, log *slog.Logger) *Emitter {
	if log == nil {
		log = slog.Default()
	}
	return &Emitter{registry: registry, broadcast: broadcast, logger: logger, validator: validator, log: log}
}

// ActionsEvent is the server->client ACTIONS frame payload.
type ActionsEvent struct {
	Type    string          `json:"type"`
	Actions []models.Action `json:"actions"`
}

// Emit validates, applies, logs, and broadcasts one batch of actions
// atomically in order, as produced by one tool invocation.
func (e *Emitter) Emit(agentID, parentAgentID, connectionID string, batch []models.Action) error {
	accepted := make([]models.Action, 0, len(batch))
	for _, a := range batch {
		if e.validator != nil {
			if err := e.validator.Validate(a); err != nil {
				// A schema-invalid action is a contract violation: logged,
				// never surfaced to the client as a normal error.
				e.log.Error("actions: schema-invalid action dropped", "type", a.Type, "error", err)
				continue
			}
		}
		if err := e.registry.Apply(a); err != nil {
			if errs.IsKind(err, errs.KindContractViolation) {
				e.log.Error("actions: contract violation applying action", "type", a.Type, "error", err)
				continue
			}
			return fmt.Errorf("actions: apply %s: %w", a.Type, err)
		}
		if e.logger != nil {
			if err := e.logger.LogAction(agentID, parentAgentID, a); err != nil {
				e.log.Error("actions: session log append failed", "error", err)
			}
		}
		accepted = append(accepted, a)
	}

	event := ActionsEvent{Type: "ACTIONS", Actions: accepted}
	if connectionID != "" {
		e.broadcast.PublishToConnection(event, connectionID)
	} else {
		e.broadcast.Broadcast(event)
	}
	return nil
}
