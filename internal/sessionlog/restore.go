package sessionlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/deskmux/deskmux/pkg/models"
)

// RestoreResult is what Restore extracts from the newest session.
type RestoreResult struct {
	// AliveWindows is the final state of each window still alive after
	// folding the action stream, each surfaced as a window.create action.
	AliveWindows []models.Action

	// MainMessages are user/assistant messages whose agentId starts with
	// "main-", in causal order, for ContextTape's restore buffer.
	MainMessages []models.ContextMessage
}

// FindNewestSession returns the most recent session directory under
// baseDir, named by the YYYY-MM-DD_HH-MM-SS convention.
func FindNewestSession(baseDir string) (string, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return "", fmt.Errorf("sessionlog: read %s: %w", baseDir, err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) == 0 {
		return "", fmt.Errorf("sessionlog: no sessions under %s", baseDir)
	}
	sort.Strings(dirs)
	return filepath.Join(baseDir, dirs[len(dirs)-1]), nil
}

// Restore reads sessionDir's messages.jsonl, folds the action stream to
// find windows still alive, and extracts main-agent user/assistant
// messages.
func Restore(sessionDir string) (RestoreResult, error) {
	f, err := os.Open(filepath.Join(sessionDir, "messages.jsonl"))
	if err != nil {
		return RestoreResult{}, fmt.Errorf("sessionlog: open messages.jsonl: %w", err)
	}
	defer f.Close()

	alive := make(map[string]models.Action)
	var mainMessages []models.ContextMessage

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return RestoreResult{}, fmt.Errorf("sessionlog: decode entry: %w", err)
		}

		if e.Type == EntryAction && e.Action != nil {
			foldAction(alive, *e.Action)
			continue
		}

		if !strings.HasPrefix(e.AgentID, "main-") {
			continue
		}
		switch e.Type {
		case EntryUser:
			mainMessages = append(mainMessages, models.ContextMessage{Role: models.RoleUser, Content: e.Content, Timestamp: e.Timestamp, Source: models.ContextSource{Main: true}})
		case EntryAssistant:
			mainMessages = append(mainMessages, models.ContextMessage{Role: models.RoleAssistant, Content: e.Content, Timestamp: e.Timestamp, Source: models.ContextSource{Main: true}})
		}
	}
	if err := scanner.Err(); err != nil {
		return RestoreResult{}, fmt.Errorf("sessionlog: scan: %w", err)
	}

	var creates []models.Action
	for _, a := range alive {
		creates = append(creates, a)
	}
	return RestoreResult{AliveWindows: creates, MainMessages: mainMessages}, nil
}

// foldAction applies one action's effect on the alive-window set, mirroring
// WindowStateRegistry's own §6.2 folding rules closely enough to answer
// "is this window still alive, and with what create payload".
func foldAction(alive map[string]models.Action, a models.Action) {
	switch a.Type {
	case models.ActionWindowCreate:
		alive[a.WindowID] = a
	case models.ActionWindowClose:
		delete(alive, a.WindowID)
	case models.ActionWindowSetTitle:
		if cur, ok := alive[a.WindowID]; ok {
			cur.Title = a.Title
			alive[a.WindowID] = cur
		}
	case models.ActionWindowSetContent:
		if cur, ok := alive[a.WindowID]; ok {
			cur.Content = a.Content
			alive[a.WindowID] = cur
		}
	case models.ActionWindowMove:
		if cur, ok := alive[a.WindowID]; ok {
			if cur.Bounds == nil {
				cur.Bounds = &models.Bounds{}
			}
			cur.Bounds.X, cur.Bounds.Y = a.X, a.Y
			alive[a.WindowID] = cur
		}
	case models.ActionWindowResize:
		if cur, ok := alive[a.WindowID]; ok {
			if cur.Bounds == nil {
				cur.Bounds = &models.Bounds{}
			}
			cur.Bounds.W, cur.Bounds.H = a.W, a.H
			alive[a.WindowID] = cur
		}
	}
}
