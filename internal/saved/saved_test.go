package saved

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/iliyamo/student-stay/internal/apperr"
	"github.com/iliyamo/student-stay/internal/backend"
	"github.com/iliyamo/student-stay/internal/session"
)

// fakeAccounts implements the record half of backend.Accounts. Updates block
// on the channel registered for their id, if any.
type fakeAccounts struct {
	backend.Accounts

	mu      sync.Mutex
	records map[string]backend.AccountRecord
	gates   map[int]chan error
	updates []backend.AccountUpdate
}

func newFake() *fakeAccounts {
	return &fakeAccounts{records: map[string]backend.AccountRecord{}, gates: map[int]chan error{}}
}

func (f *fakeAccounts) gate(id int) chan error {
	ch := make(chan error)
	f.mu.Lock()
	f.gates[id] = ch
	f.mu.Unlock()
	return ch
}

func (f *fakeAccounts) GetAccountRecord(_ context.Context, id string) (backend.AccountRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return backend.AccountRecord{}, backend.ErrNotFound
	}
	return rec, nil
}

func (f *fakeAccounts) UpdateAccountRecord(_ context.Context, _ string, upd backend.AccountUpdate) error {
	id := 0
	if len(upd.SavedAdd) > 0 {
		id = upd.SavedAdd[0]
	} else if len(upd.SavedRemove) > 0 {
		id = upd.SavedRemove[0]
	}
	f.mu.Lock()
	f.updates = append(f.updates, upd)
	ch := f.gates[id]
	f.mu.Unlock()
	if ch != nil {
		return <-ch
	}
	return nil
}

type recorder struct{ dests []string }

func (r *recorder) RememberDestination(d string) error {
	r.dests = append(r.dests, d)
	return nil
}

func signedIn(t *testing.T, id string) (*session.Hub, *fakeAccounts) {
	t.Helper()
	hub := session.NewHub()
	hub.SetAuthenticated(backend.Account{ID: id})
	return hub, newFake()
}

func TestToggleAnonymousRecordsDestination(t *testing.T) {
	hub := session.NewHub()
	fake := newFake()
	rec := &recorder{}
	m := New(fake, hub, rec)
	defer m.Close()

	_, err := m.Toggle(context.Background(), 7)
	var lr *apperr.LoginRequiredError
	if !errors.As(err, &lr) {
		t.Fatalf("err = %v, want LoginRequiredError", err)
	}
	if lr.Destination != "/accommodations/7" {
		t.Fatalf("destination = %q", lr.Destination)
	}
	if !reflect.DeepEqual(rec.dests, []string{"/accommodations/7"}) {
		t.Fatalf("recorded %v", rec.dests)
	}
	if len(fake.updates) != 0 {
		t.Fatal("backend must not be called while anonymous")
	}
}

func TestLoadForAccountMissingRecordIsEmpty(t *testing.T) {
	hub, fake := signedIn(t, "u1")
	m := New(fake, hub, nil)
	ids, err := m.LoadForAccount(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Fatalf("ids = %v", ids)
	}
}

func TestToggleAddsThenRemoves(t *testing.T) {
	hub, fake := signedIn(t, "u1")
	fake.records["u1"] = backend.AccountRecord{ID: "u1", SavedIDs: []int{3}}
	m := New(fake, hub, nil)
	if _, err := m.LoadForAccount(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}

	saved, err := m.Toggle(context.Background(), 5)
	if err != nil || !saved {
		t.Fatalf("Toggle(5) = %v, %v", saved, err)
	}
	saved, err = m.Toggle(context.Background(), 3)
	if err != nil || saved {
		t.Fatalf("Toggle(3) = %v, %v", saved, err)
	}
	if got := m.IDs(); !reflect.DeepEqual(got, []int{5}) {
		t.Fatalf("IDs = %v", got)
	}
	if !reflect.DeepEqual(fake.updates[1].SavedRemove, []int{3}) {
		t.Fatalf("second update = %+v", fake.updates[1])
	}
}

func TestFailedToggleLeavesSetUnchanged(t *testing.T) {
	hub, fake := signedIn(t, "u1")
	m := New(fake, hub, nil)
	gate := fake.gate(9)

	done := make(chan error)
	go func() {
		_, err := m.Toggle(context.Background(), 9)
		done <- err
	}()
	gate <- backend.ErrUnavailable
	err := <-done
	if !apperr.Is(err, apperr.KindTransient) {
		t.Fatalf("err = %v, want transient", err)
	}
	if m.IsSaved(9) {
		t.Fatal("failed add must not change membership")
	}
}

func TestConcurrentTogglesResolveIndependently(t *testing.T) {
	hub, fake := signedIn(t, "u1")
	m := New(fake, hub, nil)
	ga, gb := fake.gate(1), fake.gate(2)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); m.Toggle(context.Background(), 1) }()
	go func() { defer wg.Done(); m.Toggle(context.Background(), 2) }()

	// B confirms before A.
	gb <- nil
	ga <- nil
	wg.Wait()

	if got := m.IDs(); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("IDs = %v, want [1 2]", got)
	}
}

func TestSecondToggleWhileInFlightIsIgnored(t *testing.T) {
	hub, fake := signedIn(t, "u1")
	m := New(fake, hub, nil)
	gate := fake.gate(4)

	done := make(chan struct{})
	go func() {
		m.Toggle(context.Background(), 4)
		close(done)
	}()
	// Wait until the first update reached the backend.
	for {
		fake.mu.Lock()
		n := len(fake.updates)
		fake.mu.Unlock()
		if n == 1 {
			break
		}
	}
	if _, err := m.Toggle(context.Background(), 4); !errors.Is(err, apperr.ErrInFlight) {
		t.Fatalf("err = %v, want ErrInFlight", err)
	}
	gate <- nil
	<-done
	if !m.IsSaved(4) {
		t.Fatal("first toggle should have saved 4")
	}
}

func TestSignOutClearsSet(t *testing.T) {
	hub, fake := signedIn(t, "u1")
	fake.records["u1"] = backend.AccountRecord{SavedIDs: []int{1, 2}}
	m := New(fake, hub, nil)
	m.LoadForAccount(context.Background(), "u1")
	hub.SetAnonymous()
	if got := m.IDs(); len(got) != 0 {
		t.Fatalf("IDs after sign-out = %v", got)
	}
}

func TestLateConfirmationAfterSignOutIsDropped(t *testing.T) {
	hub, fake := signedIn(t, "u1")
	m := New(fake, hub, nil)
	gate := fake.gate(6)

	done := make(chan struct{})
	go func() {
		m.Toggle(context.Background(), 6)
		close(done)
	}()
	for {
		fake.mu.Lock()
		n := len(fake.updates)
		fake.mu.Unlock()
		if n == 1 {
			break
		}
	}
	hub.SetAnonymous()
	gate <- nil
	<-done
	if m.IsSaved(6) {
		t.Fatal("confirmation for a signed-out account must not touch the set")
	}
}
