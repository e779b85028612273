// Package contexttape implements ContextTape, the append-only transcript of
// user/assistant turns tagged by source (main vs. a window branch).
package contexttape

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/deskmux/deskmux/pkg/models"
)

// Tape is safe for concurrent use. Message order is preserved across
// appends, prunes, and restores; timestamps are monotonic non-decreasing.
type Tape struct {
	mu            sync.Mutex
	messages      []models.ContextMessage
	mainSoftCap   int
	lastTimestamp time.Time
}

// New builds an empty Tape. mainSoftCap is the soft cap on main messages
// before pruning keeps the most recent half (spec default 200).
func New(mainSoftCap int) *Tape {
	return &Tape{mainSoftCap: mainSoftCap}
}

// Append adds a message and triggers main-message pruning if the main-only
// subset now exceeds the soft cap.
func (t *Tape) Append(role models.MessageRole, content string, source models.ContextSource) models.ContextMessage {
	t.mu.Lock()
	defer t.mu.Unlock()

	ts := time.Now()
	if !ts.After(t.lastTimestamp) {
		ts = t.lastTimestamp.Add(time.Nanosecond)
	}
	t.lastTimestamp = ts

	msg := models.ContextMessage{Role: role, Content: content, Timestamp: ts, Source: source}
	t.messages = append(t.messages, msg)
	t.pruneMainIfNeededLocked()
	return msg
}

// pruneMainIfNeededLocked keeps the most recent half of main messages when
// the main-only subset exceeds the soft cap, preserving window messages and
// relative order of everything kept.
func (t *Tape) pruneMainIfNeededLocked() {
	if t.mainSoftCap <= 0 {
		return
	}
	mainCount := 0
	for _, m := range t.messages {
		if !m.Source.IsWindow() {
			mainCount++
		}
	}
	if mainCount <= t.mainSoftCap {
		return
	}

	drop := mainCount / 2
	kept := make([]models.ContextMessage, 0, len(t.messages))
	dropped := 0
	for _, m := range t.messages {
		if !m.Source.IsWindow() && dropped < drop {
			dropped++
			continue
		}
		kept = append(kept, m)
	}
	t.messages = kept
}

// GetOptions filters GetMessages/FormatForPrompt output.
type GetOptions struct {
	IncludeWindows   bool
	WindowIDs        []string
	ExcludeWindowIDs []string
}

func (o GetOptions) matches(m models.ContextMessage) bool {
	if !m.Source.IsWindow() {
		return true
	}
	if !o.IncludeWindows {
		return false
	}
	if len(o.WindowIDs) > 0 && !contains(o.WindowIDs, m.Source.WindowID) {
		return false
	}
	if contains(o.ExcludeWindowIDs, m.Source.WindowID) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// GetMessages returns a filtered snapshot copy.
func (t *Tape) GetMessages(opts GetOptions) []models.ContextMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.ContextMessage, 0, len(t.messages))
	for _, m := range t.messages {
		if opts.matches(m) {
			out = append(out, m)
		}
	}
	return out
}

// PruneWindow removes every message tagged to windowID and returns what was
// pruned.
func (t *Tape) PruneWindow(windowID string) []models.ContextMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := make([]models.ContextMessage, 0, len(t.messages))
	var pruned []models.ContextMessage
	for _, m := range t.messages {
		if m.Source.WindowID == windowID {
			pruned = append(pruned, m)
			continue
		}
		kept = append(kept, m)
	}
	t.messages = kept
	return pruned
}

// FormatOptions controls FormatForPrompt.
type FormatOptions struct {
	// ForWindow, if non-empty, includes main messages plus that window's
	// messages. Empty means main-only (the main-agent view).
	ForWindow string
}

// FormatForPrompt emits a <previous_conversation> block. For window agents
// it includes main plus their own window; for main agents, main only.
func (t *Tape) FormatForPrompt(opts FormatOptions) string {
	getOpts := GetOptions{}
	if opts.ForWindow != "" {
		getOpts.IncludeWindows = true
		getOpts.WindowIDs = []string{opts.ForWindow}
	}
	msgs := t.GetMessages(getOpts)

	var b strings.Builder
	b.WriteString("<previous_conversation>\n")
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	b.WriteString("</previous_conversation>")
	return b.String()
}

// Restore prepends messages from a previous session without reordering
// already-present messages.
func (t *Tape) Restore(messages []models.ContextMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(append([]models.ContextMessage{}, messages...), t.messages...)
	if len(t.messages) > 0 {
		last := t.messages[len(t.messages)-1].Timestamp
		if last.After(t.lastTimestamp) {
			t.lastTimestamp = last
		}
	}
}

// Len returns the total number of messages currently held.
func (t *Tape) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// Clear removes every message.
func (t *Tape) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
}
