package session

import (
	"testing"

	"github.com/iliyamo/student-stay/internal/backend"
)

func TestSubscribeReceivesCurrentAndChanges(t *testing.T) {
	h := NewHub()
	var seen []State
	unsub := h.Subscribe(func(s Session) { seen = append(seen, s.State) })

	h.SetAuthenticating()
	h.SetAuthenticated(backend.Account{ID: "a1"})
	if got := h.Current().AccountID(); got != "a1" {
		t.Fatalf("AccountID = %q", got)
	}
	unsub()
	unsub()
	h.SetAnonymous()

	want := []State{Anonymous, Authenticating, Authenticated}
	if len(seen) != len(want) {
		t.Fatalf("seen %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("seen %v, want %v", seen, want)
		}
	}
}

func TestAccountIDEmptyUnlessAuthenticated(t *testing.T) {
	s := Session{State: Authenticating, Account: backend.Account{ID: "x"}}
	if s.AccountID() != "" {
		t.Fatal("AccountID must be empty while authenticating")
	}
}
