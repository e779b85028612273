package windowstate

import (
	"testing"

	"github.com/deskmux/deskmux/pkg/models"
)

func TestCreateThenCloseRemovesWindow(t *testing.T) {
	r := New()
	r.Apply(models.Action{Type: models.ActionWindowCreate, WindowID: "w1", Title: "Notes"})
	if !r.HasWindow("w1") {
		t.Fatal("expected window to exist after create")
	}
	r.Apply(models.Action{Type: models.ActionWindowClose, WindowID: "w1"})
	if r.HasWindow("w1") {
		t.Fatal("expected window to be gone after close")
	}
}

func TestUnlockByWrongAgentIsRejected(t *testing.T) {
	r := New()
	r.Apply(models.Action{Type: models.ActionWindowCreate, WindowID: "w1"})
	r.Apply(models.Action{Type: models.ActionWindowLock, WindowID: "w1", AgentID: "window-w1"})

	err := r.Apply(models.Action{Type: models.ActionWindowUnlock, WindowID: "w1", AgentID: "ephemeral-1"})
	if err == nil {
		t.Fatal("expected unlock by wrong agent to be rejected")
	}

	w, _ := r.GetWindow("w1")
	if !w.Locked || w.LockedBy != "window-w1" {
		t.Fatalf("expected no state change on rejected unlock, got %+v", w)
	}
}

func TestUnlockByOwnerSucceeds(t *testing.T) {
	r := New()
	r.Apply(models.Action{Type: models.ActionWindowCreate, WindowID: "w1"})
	r.Apply(models.Action{Type: models.ActionWindowLock, WindowID: "w1", AgentID: "window-w1"})
	if err := r.Apply(models.Action{Type: models.ActionWindowUnlock, WindowID: "w1", AgentID: "window-w1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w, _ := r.GetWindow("w1")
	if w.Locked {
		t.Fatal("expected window unlocked")
	}
}

func TestUpdateContentAppendFallsBackToReplaceForNonString(t *testing.T) {
	r := New()
	content := &models.Content{Renderer: "json", Data: map[string]any{"a": 1}}
	r.Apply(models.Action{Type: models.ActionWindowCreate, WindowID: "w1", Content: content})

	pos := 0
	_ = pos
	r.Apply(models.Action{
		Type:     models.ActionWindowUpdateContent,
		WindowID: "w1",
		Operation: &models.Operation{Op: models.ContentOpAppend, Data: "replacement"},
	})

	w, _ := r.GetWindow("w1")
	if w.Content.Data != "replacement" {
		t.Fatalf("expected fallback to replace for non-string data, got %+v", w.Content.Data)
	}
}

func TestUpdateContentAppendOnString(t *testing.T) {
	r := New()
	r.Apply(models.Action{Type: models.ActionWindowCreate, WindowID: "w1", Content: &models.Content{Data: "hello "}})
	r.Apply(models.Action{Type: models.ActionWindowUpdateContent, WindowID: "w1", Operation: &models.Operation{Op: models.ContentOpAppend, Data: "world"}})

	w, _ := r.GetWindow("w1")
	if w.Content.Data != "hello world" {
		t.Fatalf("expected appended string, got %+v", w.Content.Data)
	}
}

func TestListWindowsIsASnapshotCopy(t *testing.T) {
	r := New()
	r.Apply(models.Action{Type: models.ActionWindowCreate, WindowID: "w1", Title: "A"})
	snap := r.ListWindows()
	r.Apply(models.Action{Type: models.ActionWindowSetTitle, WindowID: "w1", Title: "B"})

	if snap[0].Title != "A" {
		t.Fatalf("expected snapshot to be unaffected by later mutation, got %+v", snap[0])
	}
}
