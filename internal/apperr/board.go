package apperr

import (
	"sync"
	"time"
)

// SuccessTTL is how long a success message stays visible.
const SuccessTTL = 5 * time.Second

// Notice is one user-visible message.
type Notice struct {
	Kind    Kind // zero for success
	Message string
	Shown   time.Time
}

// Success reports whether the notice is a success message.
func (n Notice) Success() bool { return n.Kind == 0 }

// Board holds at most one visible message. A new message replaces the
// previous one; success messages expire after SuccessTTL while errors stay
// until the next Clear or Show.
type Board struct {
	mu  sync.Mutex
	cur *Notice
	now func() time.Time
}

// NewBoard returns an empty board. A nil clock uses time.Now.
func NewBoard(now func() time.Time) *Board {
	if now == nil {
		now = time.Now
	}
	return &Board{now: now}
}

// ShowError displays err after normalizing it.
func (b *Board) ShowError(err error) {
	if err == nil {
		return
	}
	ne := Normalize(err).(*Error)
	b.mu.Lock()
	b.cur = &Notice{Kind: ne.Kind, Message: ne.Message, Shown: b.now()}
	b.mu.Unlock()
}

// ShowSuccess displays a success message.
func (b *Board) ShowSuccess(msg string) {
	b.mu.Lock()
	b.cur = &Notice{Message: msg, Shown: b.now()}
	b.mu.Unlock()
}

// Clear removes the visible message, e.g. when the user starts a new action.
func (b *Board) Clear() {
	b.mu.Lock()
	b.cur = nil
	b.mu.Unlock()
}

// Current returns the visible message, if any.
func (b *Board) Current() (Notice, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cur == nil {
		return Notice{}, false
	}
	if b.cur.Success() && b.now().Sub(b.cur.Shown) >= SuccessTTL {
		b.cur = nil
		return Notice{}, false
	}
	return *b.cur, true
}
