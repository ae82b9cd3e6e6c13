// Package saved tracks which accommodations the signed-in user bookmarked.
// Membership only changes after the backend confirms the add or remove, and
// each confirmation touches only the id it belongs to, so toggles on
// different ids can resolve in any order without losing updates.
package saved

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/iliyamo/student-stay/internal/apperr"
	"github.com/iliyamo/student-stay/internal/backend"
	"github.com/iliyamo/student-stay/internal/session"
)

// DestinationRecorder remembers where to send the user after sign-in.
type DestinationRecorder interface {
	RememberDestination(dest string) error
}

// Manager is the in-memory saved set for the current account.
type Manager struct {
	accounts backend.Accounts
	src      session.Source
	dest     DestinationRecorder

	mu       sync.Mutex
	account  string
	set      map[int]struct{}
	inflight map[int]bool
	unsub    func()
}

// New creates a manager and subscribes it to src. dest may be nil.
func New(accounts backend.Accounts, src session.Source, dest DestinationRecorder) *Manager {
	m := &Manager{
		accounts: accounts,
		src:      src,
		dest:     dest,
		set:      map[int]struct{}{},
		inflight: map[int]bool{},
	}
	m.unsub = src.Subscribe(m.onSession)
	return m
}

// Close unsubscribes from session changes.
func (m *Manager) Close() { m.unsub() }

func (m *Manager) onSession(s session.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := s.AccountID()
	if id == m.account {
		return
	}
	// A different account, or sign-out: nothing from the old set survives.
	m.account = id
	m.set = map[int]struct{}{}
	m.inflight = map[int]bool{}
}

// DetailPath is the destination remembered when an anonymous user tries to
// save an accommodation.
func DetailPath(id int) string { return fmt.Sprintf("/accommodations/%d", id) }

// LoadForAccount fetches the saved ids of accountID. An account without a
// record yet has an empty set.
func (m *Manager) LoadForAccount(ctx context.Context, accountID string) ([]int, error) {
	rec, err := m.accounts.GetAccountRecord(ctx, accountID)
	if err != nil && !errors.Is(err, backend.ErrNotFound) {
		return nil, apperr.Normalize(err)
	}
	set := make(map[int]struct{}, len(rec.SavedIDs))
	for _, id := range rec.SavedIDs {
		set[id] = struct{}{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.account != accountID {
		// Session changed while loading.
		return nil, apperr.Authentication("session changed, please sign in again", nil)
	}
	m.set = set
	return m.idsLocked(), nil
}

// IsSaved reports whether id is in the current set.
func (m *Manager) IsSaved(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.set[id]
	return ok
}

// IDs returns the saved ids in ascending order.
func (m *Manager) IDs() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idsLocked()
}

func (m *Manager) idsLocked() []int {
	out := make([]int, 0, len(m.set))
	for id := range m.set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Toggle adds id when absent and removes it when present. It returns the
// membership after the backend confirmed the change. Without a signed-in
// account it returns *apperr.LoginRequiredError and changes nothing.
func (m *Manager) Toggle(ctx context.Context, id int) (bool, error) {
	cur := m.src.Current()
	account := cur.AccountID()
	if account == "" {
		dest := DetailPath(id)
		if m.dest != nil {
			if err := m.dest.RememberDestination(dest); err != nil {
				return false, apperr.Normalize(err)
			}
		}
		return false, &apperr.LoginRequiredError{Destination: dest}
	}

	m.mu.Lock()
	if m.account != account {
		m.mu.Unlock()
		return false, apperr.Authentication("session changed, please sign in again", nil)
	}
	if m.inflight[id] {
		m.mu.Unlock()
		return false, apperr.ErrInFlight
	}
	_, present := m.set[id]
	m.inflight[id] = true
	m.mu.Unlock()

	upd := backend.AccountUpdate{SavedAdd: []int{id}}
	if present {
		upd = backend.AccountUpdate{SavedRemove: []int{id}}
	}
	err := m.accounts.UpdateAccountRecord(ctx, account, upd)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.account != account {
		// Signed out (or switched account) while the request was in flight.
		if err != nil {
			return present, apperr.Normalize(err)
		}
		return !present, nil
	}
	delete(m.inflight, id)
	if err != nil {
		return present, apperr.Normalize(err)
	}
	if present {
		delete(m.set, id)
	} else {
		m.set[id] = struct{}{}
	}
	return !present, nil
}
