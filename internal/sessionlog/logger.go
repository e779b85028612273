// Package sessionlog implements SessionLogger: an append-only JSONL log per
// session, with agent-hierarchy-aware formatting, used for restore on next
// boot.
package sessionlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/deskmux/deskmux/pkg/models"
)

// EntryType tags one line of messages.jsonl.
type EntryType string

const (
	EntryUser       EntryType = "user"
	EntryAssistant  EntryType = "assistant"
	EntryAction     EntryType = "action"
	EntryThinking   EntryType = "thinking"
	EntryToolUse    EntryType = "tool_use"
	EntryToolResult EntryType = "tool_result"
)

// Entry is one JSON object in messages.jsonl.
type Entry struct {
	Type          EntryType      `json:"type"`
	Timestamp     time.Time      `json:"timestamp"`
	AgentID       string         `json:"agentId"`
	ParentAgentID string         `json:"parentAgentId,omitempty"`
	Content       string         `json:"content,omitempty"`
	Action        *models.Action `json:"action,omitempty"`
	ToolName      string         `json:"toolName,omitempty"`
	ToolInput     string         `json:"toolInput,omitempty"`
	ToolUseID     string         `json:"toolUseId,omitempty"`
}

// AgentMeta is one entry in metadata.json's agents map.
type AgentMeta struct {
	AgentID       string    `json:"agentId"`
	ParentAgentID string    `json:"parentAgentId,omitempty"`
	WindowID      string    `json:"windowId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Metadata is the contents of metadata.json.
type Metadata struct {
	CreatedAt    time.Time            `json:"createdAt"`
	Provider     string               `json:"provider"`
	LastActivity time.Time            `json:"lastActivity"`
	Agents       map[string]AgentMeta `json:"agents"`
}

// Logger owns one session directory.
type Logger struct {
	mu   sync.Mutex
	dir  string
	meta Metadata

	messages *os.File
	writer   *bufio.Writer

	transcript *os.File
}

// New creates a new session directory named by the current timestamp
// (YYYY-MM-DD_HH-MM-SS) under baseDir.
func New(baseDir, provider string, now time.Time) (*Logger, error) {
	dir := filepath.Join(baseDir, now.Format("2006-01-02_15-04-05"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sessionlog: mkdir %s: %w", dir, err)
	}
	l := &Logger{
		dir: dir,
		meta: Metadata{
			CreatedAt:    now,
			Provider:     provider,
			LastActivity: now,
			Agents:       make(map[string]AgentMeta),
		},
	}
	messages, err := os.OpenFile(filepath.Join(dir, "messages.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sessionlog: open messages.jsonl: %w", err)
	}
	transcript, err := os.OpenFile(filepath.Join(dir, "transcript.md"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		messages.Close()
		return nil, fmt.Errorf("sessionlog: open transcript.md: %w", err)
	}
	l.messages = messages
	l.writer = bufio.NewWriter(messages)
	l.transcript = transcript
	return l, nil
}

// RegisterAgent records an agent in metadata.json's agent hierarchy.
func (l *Logger) RegisterAgent(agentID, parentAgentID, windowID string, now time.Time) error {
	l.mu.Lock()
	l.meta.Agents[agentID] = AgentMeta{AgentID: agentID, ParentAgentID: parentAgentID, WindowID: windowID, CreatedAt: now}
	l.mu.Unlock()
	return l.flushMetadata()
}

func (l *Logger) flushMetadata() error {
	l.mu.Lock()
	data, err := json.MarshalIndent(l.meta, "", "  ")
	l.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(l.dir, "metadata.json"), data, 0o644)
}

// append writes one Entry as a line of JSON to messages.jsonl, followed by
// a human-readable mirror line in transcript.md.
func (l *Logger) append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.Timestamp = time.Now()
	l.meta.LastActivity = e.Timestamp

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("sessionlog: marshal entry: %w", err)
	}
	if _, err := l.writer.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("sessionlog: write entry: %w", err)
	}
	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("sessionlog: flush: %w", err)
	}

	fmt.Fprintf(l.transcript, "**%s** (%s): %s\n\n", e.AgentID, e.Type, transcriptLine(e))
	return nil
}

func transcriptLine(e Entry) string {
	if e.Action != nil {
		return fmt.Sprintf("action %s windowId=%s", e.Action.Type, e.Action.WindowID)
	}
	if e.ToolName != "" {
		return fmt.Sprintf("tool %s", e.ToolName)
	}
	return e.Content
}

// LogUser appends a user message entry.
func (l *Logger) LogUser(agentID, parentAgentID, content string) error {
	return l.append(Entry{Type: EntryUser, AgentID: agentID, ParentAgentID: parentAgentID, Content: content})
}

// LogAssistant appends an assistant message entry.
func (l *Logger) LogAssistant(agentID, parentAgentID, content string) error {
	return l.append(Entry{Type: EntryAssistant, AgentID: agentID, ParentAgentID: parentAgentID, Content: content})
}

// LogAction appends an action entry; satisfies actions.Logger.
func (l *Logger) LogAction(agentID, parentAgentID string, action models.Action) error {
	a := action
	return l.append(Entry{Type: EntryAction, AgentID: agentID, ParentAgentID: parentAgentID, Action: &a})
}

// LogThinking appends a thinking entry.
func (l *Logger) LogThinking(agentID, parentAgentID, content string) error {
	return l.append(Entry{Type: EntryThinking, AgentID: agentID, ParentAgentID: parentAgentID, Content: content})
}

// LogToolUse appends a tool_use entry.
func (l *Logger) LogToolUse(agentID, parentAgentID, toolName, toolInput, toolUseID string) error {
	return l.append(Entry{Type: EntryToolUse, AgentID: agentID, ParentAgentID: parentAgentID, ToolName: toolName, ToolInput: toolInput, ToolUseID: toolUseID})
}

// LogToolResult appends a tool_result entry.
func (l *Logger) LogToolResult(agentID, parentAgentID, toolUseID, content string) error {
	return l.append(Entry{Type: EntryToolResult, AgentID: agentID, ParentAgentID: parentAgentID, ToolUseID: toolUseID, Content: content})
}

// Close flushes and closes the underlying files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer.Flush()
	l.messages.Close()
	return l.transcript.Close()
}

// Dir returns the session directory.
func (l *Logger) Dir() string { return l.dir }
