package sessionlog

import (
	"testing"
	"time"

	"github.com/deskmux/deskmux/pkg/models"
)

func TestAppendWritesJSONLAndTranscript(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, "stdio", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	if err := l.LogUser("main-1", "", "hello"); err != nil {
		t.Fatal(err)
	}
	if err := l.LogAssistant("main-1", "", "hi there"); err != nil {
		t.Fatal(err)
	}
	if err := l.LogAction("main-1", "", models.Action{Type: models.ActionWindowCreate, WindowID: "w1"}); err != nil {
		t.Fatal(err)
	}
}

func TestRestoreFoldsActionStreamAndExtractsMainMessages(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	l, err := New(dir, "stdio", now)
	if err != nil {
		t.Fatal(err)
	}

	l.LogUser("main-1", "", "open notes")
	l.LogAction("main-1", "", models.Action{Type: models.ActionWindowCreate, WindowID: "w1", Title: "Notes"})
	l.LogAssistant("main-1", "", "opened notes")
	l.LogAction("main-1", "", models.Action{Type: models.ActionWindowCreate, WindowID: "w2", Title: "Calendar"})
	l.LogAction("window-w2", "main-1", models.Action{Type: models.ActionWindowClose, WindowID: "w2"})
	l.Close()

	sessionDir, err := FindNewestSession(dir)
	if err != nil {
		t.Fatal(err)
	}
	result, err := Restore(sessionDir)
	if err != nil {
		t.Fatal(err)
	}

	if len(result.AliveWindows) != 1 || result.AliveWindows[0].WindowID != "w1" {
		t.Fatalf("expected only w1 alive, got %+v", result.AliveWindows)
	}
	if len(result.MainMessages) != 2 {
		t.Fatalf("expected 2 main messages, got %d", len(result.MainMessages))
	}
}
