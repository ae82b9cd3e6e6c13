// Package session owns the client's single authentication session and tells
// interested components when it changes. Components subscribe when they are
// created and call the returned function to unsubscribe when they go away.
package session

import (
	"sort"
	"sync"

	"github.com/iliyamo/student-stay/internal/backend"
)

// State is the tri-state of the session.
type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	}
	return "anonymous"
}

// Session is a snapshot of the current session. Account is only meaningful
// when State is Authenticated.
type Session struct {
	State   State
	Account backend.Account
}

// AccountID returns the signed-in account id, or "" when not authenticated.
func (s Session) AccountID() string {
	if s.State != Authenticated {
		return ""
	}
	return s.Account.ID
}

// Source is the subscription side of a Hub.
type Source interface {
	Current() Session
	Subscribe(fn func(Session)) (unsubscribe func())
}

// Hub holds the session and fans out changes to subscribers.
type Hub struct {
	mu   sync.Mutex
	cur  Session
	subs map[int]func(Session)
	next int
}

func NewHub() *Hub { return &Hub{subs: map[int]func(Session){}} }

func (h *Hub) Current() Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cur
}

// Subscribe registers fn and calls it once with the current session.
func (h *Hub) Subscribe(fn func(Session)) func() {
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = fn
	cur := h.cur
	h.mu.Unlock()

	fn(cur)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

func (h *Hub) SetAuthenticating() { h.set(Session{State: Authenticating}) }

func (h *Hub) SetAuthenticated(acct backend.Account) {
	h.set(Session{State: Authenticated, Account: acct})
}

func (h *Hub) SetAnonymous() { h.set(Session{State: Anonymous}) }

func (h *Hub) set(s Session) {
	h.mu.Lock()
	h.cur = s
	ids := make([]int, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Session), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, h.subs[id])
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
