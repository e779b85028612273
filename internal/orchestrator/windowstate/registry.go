// Package windowstate implements WindowStateRegistry, the authoritative
// server-side mirror of window existence, title, bounds, content, and
// lock/owner state, updated by every outgoing action.
package windowstate

import (
	"fmt"
	"sync"
	"time"

	"github.com/deskmux/deskmux/internal/orchestrator/errs"
	"github.com/deskmux/deskmux/pkg/models"
)

// Registry has a single writer (the action-emit path) and multiple readers.
// Reads see a consistent snapshot per window (copy-on-read).
type Registry struct {
	mu      sync.RWMutex
	windows map[string]models.WindowState
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{windows: make(map[string]models.WindowState)}
}

// ListWindows returns a snapshot copy of every window.
func (r *Registry) ListWindows() []models.WindowState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.WindowState, 0, len(r.windows))
	for _, w := range r.windows {
		out = append(out, w.Clone())
	}
	return out
}

// GetWindow returns a snapshot copy of one window.
func (r *Registry) GetWindow(id string) (models.WindowState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.windows[id]
	if !ok {
		return models.WindowState{}, false
	}
	return w.Clone(), true
}

// HasWindow reports whether id currently exists.
func (r *Registry) HasWindow(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.windows[id]
	return ok
}

// Clear removes every window.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.windows = make(map[string]models.WindowState)
}

// Apply folds one action into the registry per the §6.2 state-transition
// table and returns an error for a contract violation (e.g. unlocking with
// the wrong agent id) without mutating state.
func (r *Registry) Apply(a models.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()

	switch a.Type {
	case models.ActionWindowCreate:
		w := models.WindowState{ID: a.WindowID, Title: a.Title, CreatedAt: now, UpdatedAt: now}
		if a.Bounds != nil {
			w.Bounds = *a.Bounds
		}
		if a.Content != nil {
			w.Content = *a.Content
		}
		r.windows[a.WindowID] = w

	case models.ActionWindowClose:
		delete(r.windows, a.WindowID)

	case models.ActionWindowSetTitle:
		w, ok := r.windows[a.WindowID]
		if !ok {
			return errs.New(errs.KindContractViolation, fmt.Errorf("setTitle: unknown window %s", a.WindowID))
		}
		w.Title = a.Title
		w.UpdatedAt = now
		r.windows[a.WindowID] = w

	case models.ActionWindowSetContent:
		w, ok := r.windows[a.WindowID]
		if !ok {
			return errs.New(errs.KindContractViolation, fmt.Errorf("setContent: unknown window %s", a.WindowID))
		}
		if a.Content != nil {
			w.Content = *a.Content
		}
		w.UpdatedAt = now
		r.windows[a.WindowID] = w

	case models.ActionWindowUpdateContent:
		w, ok := r.windows[a.WindowID]
		if !ok {
			return errs.New(errs.KindContractViolation, fmt.Errorf("updateContent: unknown window %s", a.WindowID))
		}
		if a.Renderer != "" {
			w.Content.Renderer = a.Renderer
		}
		if a.Operation != nil {
			w.Content.Data = applyOperation(w.Content.Data, *a.Operation)
		}
		w.UpdatedAt = now
		r.windows[a.WindowID] = w

	case models.ActionWindowMove:
		w, ok := r.windows[a.WindowID]
		if !ok {
			return errs.New(errs.KindContractViolation, fmt.Errorf("move: unknown window %s", a.WindowID))
		}
		w.Bounds.X, w.Bounds.Y = a.X, a.Y
		w.UpdatedAt = now
		r.windows[a.WindowID] = w

	case models.ActionWindowResize:
		w, ok := r.windows[a.WindowID]
		if !ok {
			return errs.New(errs.KindContractViolation, fmt.Errorf("resize: unknown window %s", a.WindowID))
		}
		w.Bounds.W, w.Bounds.H = a.W, a.H
		w.UpdatedAt = now
		r.windows[a.WindowID] = w

	case models.ActionWindowMinimize, models.ActionWindowMaximize,
		models.ActionWindowRestore, models.ActionWindowFocus:
		// Client-side only; state mirrored but no server invariant.
		if w, ok := r.windows[a.WindowID]; ok {
			w.UpdatedAt = now
			r.windows[a.WindowID] = w
		}

	case models.ActionWindowLock:
		w, ok := r.windows[a.WindowID]
		if !ok {
			return errs.New(errs.KindContractViolation, fmt.Errorf("lock: unknown window %s", a.WindowID))
		}
		w.Locked = true
		w.LockedBy = a.AgentID
		w.UpdatedAt = now
		r.windows[a.WindowID] = w

	case models.ActionWindowUnlock:
		w, ok := r.windows[a.WindowID]
		if !ok {
			return errs.New(errs.KindContractViolation, fmt.Errorf("unlock: unknown window %s", a.WindowID))
		}
		if w.Locked && w.LockedBy != a.AgentID {
			return errs.New(errs.KindContractViolation, errs.ErrLockHeldByOther)
		}
		w.Locked = false
		w.LockedBy = ""
		w.UpdatedAt = now
		r.windows[a.WindowID] = w

	case models.ActionNotificationShow, models.ActionNotificationDismiss,
		models.ActionToastShow, models.ActionToastDismiss, models.ActionDialogConfirm:
		// Passthrough to client, no registry state.

	default:
		return errs.New(errs.KindContractViolation, fmt.Errorf("unknown action type %q", a.Type))
	}
	return nil
}

// applyOperation implements window.updateContent semantics: text-typed ops
// apply to string data; for non-string data, append/prepend fall back to
// replace.
func applyOperation(current any, op models.Operation) any {
	switch op.Op {
	case models.ContentOpClear:
		return ""
	case models.ContentOpReplace:
		return op.Data
	case models.ContentOpAppend:
		if s, ok := current.(string); ok {
			if add, ok := op.Data.(string); ok {
				return s + add
			}
		}
		return op.Data
	case models.ContentOpPrepend:
		if s, ok := current.(string); ok {
			if add, ok := op.Data.(string); ok {
				return add + s
			}
		}
		return op.Data
	case models.ContentOpInsertAt:
		s, ok := current.(string)
		add, okAdd := op.Data.(string)
		if !ok || !okAdd || op.Position == nil {
			return op.Data
		}
		pos := *op.Position
		if pos < 0 {
			pos = 0
		}
		if pos > len(s) {
			pos = len(s)
		}
		return s[:pos] + add + s[pos:]
	default:
		return current
	}
}
