// Package models holds the data types shared across the orchestrator
// packages: tasks, agent sessions, the context tape, window state, and the
// reload cache.
package models

import "time"

// TaskKind identifies what a Task is routed as.
type TaskKind string

const (
	TaskMain            TaskKind = "main"
	TaskWindow          TaskKind = "window"
	TaskComponentAction TaskKind = "component_action"
)

// Task is the message envelope consumed exactly once by a processor.
//
// Invariant: a TaskWindow task carries a non-empty WindowID; a TaskMain task
// carries a non-empty MonitorID.
type Task struct {
	ID           string             `json:"taskId"`
	Kind         TaskKind           `json:"kind"`
	MonitorID    string             `json:"monitorId,omitempty"`
	WindowID     string             `json:"windowId,omitempty"`
	Content      string             `json:"content"`
	Interactions []UserInteraction  `json:"interactions,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
}

// Validate enforces the kind/target invariant.
func (t Task) Validate() error {
	switch t.Kind {
	case TaskMain:
		if t.MonitorID == "" {
			return errTaskMissingMonitor
		}
	case TaskWindow, TaskComponentAction:
		if t.WindowID == "" {
			return errTaskMissingWindow
		}
	}
	return nil
}
