package models

import "time"

// Bounds is a window's position and size.
type Bounds struct {
	X, Y, W, H float64
}

// Content is a window's renderable payload.
type Content struct {
	Renderer string `json:"renderer"`
	Data     any    `json:"data"`
}

// WindowState is the authoritative server-side mirror of one window.
//
// Invariant: Locked is true iff LockedBy names the role of the active
// window-agent holding the lock.
type WindowState struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Bounds    Bounds    `json:"bounds"`
	Content   Content   `json:"content"`
	Locked    bool      `json:"locked"`
	LockedBy  string    `json:"lockedBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a value copy safe to hand to a reader.
func (w WindowState) Clone() WindowState {
	return w
}
