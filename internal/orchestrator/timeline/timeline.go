// Package timeline implements InteractionTimeline, a bounded ordered buffer
// of user interactions and agent-action summaries drained into the next
// main-agent turn.
package timeline

import (
	"fmt"
	"strings"
	"sync"

	"github.com/deskmux/deskmux/pkg/models"
)

type entry struct {
	interaction *models.UserInteraction
	agentAction string
}

// Timeline is safe for concurrent use.
type Timeline struct {
	mu       sync.Mutex
	entries  []entry
	capacity int
}

// New builds a Timeline with the given capacity (spec default 64); oldest
// entries are dropped on overflow.
func New(capacity int) *Timeline {
	return &Timeline{capacity: capacity}
}

func (t *Timeline) pushLocked(e entry) {
	t.entries = append(t.entries, e)
	if t.capacity > 0 && len(t.entries) > t.capacity {
		t.entries = t.entries[len(t.entries)-t.capacity:]
	}
}

// PushUser records a user interaction. Drawing interactions are handled by
// a separate client-facing pipeline and must never be pushed here.
func (t *Timeline) PushUser(interaction models.UserInteraction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := interaction
	t.pushLocked(entry{interaction: &i})
}

// PushAgentAction records a brief agent-action summary.
func (t *Timeline) PushAgentAction(summary string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pushLocked(entry{agentAction: summary})
}

// DrainForMainPrompt formats and clears the buffer, returning the formatted
// string for injection into the next main turn.
func (t *Timeline) DrainForMainPrompt() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.entries) == 0 {
		t.entries = nil
		return ""
	}
	var b strings.Builder
	b.WriteString("<previous_interactions>\n")
	for _, e := range t.entries {
		switch {
		case e.interaction != nil:
			fmt.Fprintf(&b, "%s", formatInteraction(*e.interaction))
		default:
			fmt.Fprintf(&b, "agent_action: %s\n", e.agentAction)
		}
	}
	b.WriteString("</previous_interactions>")
	t.entries = nil
	return b.String()
}

func formatInteraction(i models.UserInteraction) string {
	if i.WindowID != "" {
		return fmt.Sprintf("%s windowId=%s x=%.0f y=%.0f payload=%s\n", i.Kind, i.WindowID, i.X, i.Y, i.Payload)
	}
	return fmt.Sprintf("%s x=%.0f y=%.0f payload=%s\n", i.Kind, i.X, i.Y, i.Payload)
}

// Len returns the current number of buffered entries.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Clear discards every buffered entry without formatting them.
func (t *Timeline) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
}
