package authflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/student-stay/internal/apperr"
	"github.com/iliyamo/student-stay/internal/backend"
	"github.com/iliyamo/student-stay/internal/kv"
	"github.com/iliyamo/student-stay/internal/session"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeAccounts answers auth calls from fixed tables.
type fakeAccounts struct {
	backend.Accounts

	mu        sync.Mutex
	passwords map[string]string // email -> password
	phones    map[string]string // phone -> account id
	code      string
	handles   int
	requested []string
	created   []backend.Profile
	createErr error
	block     chan struct{}
}

func newFake() *fakeAccounts {
	return &fakeAccounts{
		passwords: map[string]string{"asha@example.com": "secret1"},
		phones:    map[string]string{},
		code:      "123456",
	}
}

func (f *fakeAccounts) Authenticate(_ context.Context, email, password string) (backend.Account, error) {
	if f.block != nil {
		<-f.block
	}
	if f.passwords[email] != password {
		return backend.Account{}, backend.ErrInvalidCredentials
	}
	return backend.Account{ID: "acc-" + email, Email: email}, nil
}

func (f *fakeAccounts) AuthenticateFederated(_ context.Context, provider, token string) (backend.Account, error) {
	if provider != "google" || token != "good" {
		return backend.Account{}, backend.ErrInvalidCredentials
	}
	return backend.Account{ID: "g-1", Email: "g@example.com"}, nil
}

func (f *fakeAccounts) RequestOtp(_ context.Context, phone string) (backend.OtpHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handles++
	f.requested = append(f.requested, phone)
	return backend.OtpHandle{ID: string(rune('a' + f.handles)), Phone: phone}, nil
}

func (f *fakeAccounts) ConfirmOtp(_ context.Context, h backend.OtpHandle, code string) (backend.Account, error) {
	if code != f.code {
		return backend.Account{}, backend.ErrOtpInvalid
	}
	return backend.Account{ID: f.phones[h.Phone], Phone: h.Phone, Verification: "v-" + h.Phone}, nil
}

func (f *fakeAccounts) CreateAccount(_ context.Context, email, _ string, p backend.Profile) (backend.Account, error) {
	f.created = append(f.created, p)
	if f.createErr != nil {
		return backend.Account{}, f.createErr
	}
	return backend.Account{ID: "new-" + p.Phone, Email: email, Phone: p.Phone}, nil
}

type harness struct {
	m     *Machine
	fake  *fakeAccounts
	hub   *session.Hub
	store *kv.MemoryStore
	clk   *clock
}

func newHarness() *harness {
	h := &harness{
		fake:  newFake(),
		hub:   session.NewHub(),
		store: kv.NewMemoryStore(),
		clk:   &clock{t: time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)},
	}
	h.m = New(Config{Accounts: h.fake, Hub: h.hub, Store: h.store, Now: h.clk.Now})
	return h
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in, want string
		ok       bool
	}{
		{"98765 43210", "+919876543210", true},
		{"098765-43210", "+919876543210", true},
		{"+91 98765 43210", "+919876543210", true},
		{"0044 20 7946 0958", "+442079460958", true},
		{"12345", "", false},
		{"+91 12345", "", false},
		{"", "", false},
		{"phone", "", false},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.in, "")
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("NormalizePhone(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
		if !tc.ok && !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("NormalizePhone(%q) err = %v, want validation", tc.in, err)
		}
	}
}

func TestLoginEmailRedirectsOnce(t *testing.T) {
	h := newHarness()
	if err := h.m.RememberDestination("/accommodations/4"); err != nil {
		t.Fatal(err)
	}
	h.m.ChooseMode(ModeEmail)
	dest, err := h.m.LoginEmail(context.Background(), "asha@example.com", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	if dest != "/accommodations/4" {
		t.Fatalf("dest = %q", dest)
	}
	if h.hub.Current().AccountID() != "acc-asha@example.com" {
		t.Fatalf("session = %+v", h.hub.Current())
	}
	if _, ok, _ := h.store.Get(RedirectKey); ok {
		t.Fatal("redirect destination must be cleared after use")
	}

	h.m.Logout()
	dest, err = h.m.LoginEmail(context.Background(), "asha@example.com", "secret1")
	if err != nil || dest != DefaultDestination {
		t.Fatalf("second login dest = %q, %v", dest, err)
	}
}

func TestLoginFailureReturnsToPreviousStep(t *testing.T) {
	h := newHarness()
	var steps []Step
	h.m.Watch(func(s State) { steps = append(steps, s.Step) })
	h.m.ChooseMode(ModeEmail)

	_, err := h.m.LoginEmail(context.Background(), "asha@example.com", "wrong")
	if !apperr.Is(err, apperr.KindAuthentication) {
		t.Fatalf("err = %v, want authentication", err)
	}
	st := h.m.State()
	if st.Step != StepChoosingMode || st.Mode != ModeEmail {
		t.Fatalf("state = %+v", st)
	}
	want := []Step{StepChoosingMode, StepAuthenticating, StepFailed, StepChoosingMode}
	if len(steps) != len(want) {
		t.Fatalf("steps = %v, want %v", steps, want)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Fatalf("steps = %v, want %v", steps, want)
		}
	}
	if n, ok := h.m.Board().Current(); !ok || n.Message != "incorrect email or password" {
		t.Fatalf("board = %+v, %v", n, ok)
	}
	if h.hub.Current().State != session.Anonymous {
		t.Fatal("failed login must leave the session anonymous")
	}
}

func TestInvalidEmailNeverCallsBackend(t *testing.T) {
	h := newHarness()
	h.fake.passwords = nil
	_, err := h.m.LoginEmail(context.Background(), "not-an-email", "x")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("err = %v", err)
	}
}

func TestDoubleSubmitIsIgnored(t *testing.T) {
	h := newHarness()
	h.fake.block = make(chan struct{})
	done := make(chan error)
	go func() {
		_, err := h.m.LoginEmail(context.Background(), "asha@example.com", "secret1")
		done <- err
	}()
	for h.m.State().Step != StepAuthenticating {
		time.Sleep(time.Millisecond)
	}
	if _, err := h.m.LoginEmail(context.Background(), "asha@example.com", "secret1"); !errors.Is(err, apperr.ErrInFlight) {
		t.Fatalf("err = %v, want ErrInFlight", err)
	}
	close(h.fake.block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestResendCooldown(t *testing.T) {
	h := newHarness()
	if err := h.m.RequestCode(context.Background(), "9876543210"); err != nil {
		t.Fatal(err)
	}
	if h.m.CanResend() {
		t.Fatal("resend allowed right after the code was sent")
	}
	if err := h.m.Resend(context.Background()); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("early resend err = %v", err)
	}
	h.clk.Advance(29 * time.Second)
	if h.m.CooldownRemaining() != time.Second {
		t.Fatalf("remaining = %v", h.m.CooldownRemaining())
	}
	h.clk.Advance(time.Second)
	if !h.m.CanResend() {
		t.Fatal("resend still refused after the cooldown")
	}
	first := h.m.State().Handle
	if err := h.m.Resend(context.Background()); err != nil {
		t.Fatal(err)
	}
	st := h.m.State()
	if st.Handle == first {
		t.Fatal("resend should replace the handle")
	}
	if h.m.CanResend() {
		t.Fatal("resend should restart the cooldown")
	}
	if len(h.fake.requested) != 2 || h.fake.requested[1] != "+919876543210" {
		t.Fatalf("requested = %v", h.fake.requested)
	}
}

func TestWrongCodeKeepsPhone(t *testing.T) {
	h := newHarness()
	h.fake.phones["+919876543210"] = "p-1"
	h.m.ChooseMode(ModePhone)
	h.m.RequestCode(context.Background(), "9876543210")

	_, err := h.m.SubmitCode(context.Background(), "000000")
	if !apperr.Is(err, apperr.KindAuthentication) {
		t.Fatalf("err = %v", err)
	}
	st := h.m.State()
	if st.Step != StepAwaitingOtp || st.Phone != "+919876543210" {
		t.Fatalf("state = %+v", st)
	}

	if _, err := h.m.SubmitCode(context.Background(), "123456"); err != nil {
		t.Fatal(err)
	}
	if got := h.hub.Current().AccountID(); got != "p-1" {
		t.Fatalf("account = %q", got)
	}
	if len(h.fake.created) != 0 {
		t.Fatal("existing phone account must not be recreated")
	}
}

func TestFirstPhoneLoginCreatesAccount(t *testing.T) {
	h := newHarness()
	h.m.RequestCode(context.Background(), "9876543210")
	if _, err := h.m.SubmitCode(context.Background(), "123456"); err != nil {
		t.Fatal(err)
	}
	if len(h.fake.created) != 1 || h.fake.created[0].Verification != "v-+919876543210" {
		t.Fatalf("created = %+v", h.fake.created)
	}
}

func TestSignupCreatesAccountOnlyAfterVerification(t *testing.T) {
	h := newHarness()
	h.m.ChooseMode(ModeEmail)
	err := h.m.SignupEmail(context.Background(), "new@example.com", "secret1", "9876543210", backend.Profile{Name: "Ravi", College: "NIET"})
	if err != nil {
		t.Fatal(err)
	}
	if len(h.fake.created) != 0 {
		t.Fatal("account created before the phone was verified")
	}
	if st := h.m.State(); st.Step != StepAwaitingOtp || st.Purpose != PurposeSignup {
		t.Fatalf("state = %+v", st)
	}
	if _, err := h.m.SubmitCode(context.Background(), "123456"); err != nil {
		t.Fatal(err)
	}
	if len(h.fake.created) != 1 {
		t.Fatalf("created = %+v", h.fake.created)
	}
	p := h.fake.created[0]
	if p.Name != "Ravi" || p.Phone != "+919876543210" || p.Verification == "" {
		t.Fatalf("profile = %+v", p)
	}
}

func TestSignupCreateFailureReturnsToEmailMode(t *testing.T) {
	h := newHarness()
	h.fake.createErr = backend.ErrEmailExists
	h.m.SignupEmail(context.Background(), "asha@example.com", "secret1", "9876543210", backend.Profile{Name: "Asha"})
	_, err := h.m.SubmitCode(context.Background(), "123456")
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("err = %v", err)
	}
	if st := h.m.State(); st.Step != StepChoosingMode || st.Mode != ModeEmail {
		t.Fatalf("state = %+v", st)
	}
}

func TestSubmitWithoutSession(t *testing.T) {
	h := newHarness()
	_, err := h.m.SubmitCode(context.Background(), "123456")
	if !apperr.Is(err, apperr.KindAuthentication) {
		t.Fatalf("err = %v", err)
	}
}

func TestGoogleAndRestore(t *testing.T) {
	h := newHarness()
	if _, err := h.m.LoginGoogle(context.Background(), "good"); err != nil {
		t.Fatal(err)
	}

	// A new process over the same storage picks the account back up.
	hub := session.NewHub()
	m2 := New(Config{Accounts: h.fake, Hub: hub, Store: h.store})
	if !m2.Restore() {
		t.Fatal("Restore found nothing")
	}
	if hub.Current().AccountID() != "g-1" {
		t.Fatalf("restored session = %+v", hub.Current())
	}
	m2.Logout()
	if New(Config{Accounts: h.fake, Hub: session.NewHub(), Store: h.store}).Restore() {
		t.Fatal("account survived logout")
	}
}

func TestRestoreNotifiesWatchers(t *testing.T) {
	store := kv.NewMemoryStore()
	if err := store.Set(AccountKey, `{"id":"acc-7","email":"r@example.com"}`); err != nil {
		t.Fatal(err)
	}
	m := New(Config{Accounts: newFake(), Hub: session.NewHub(), Store: store})
	var seen []Step
	m.Watch(func(s State) { seen = append(seen, s.Step) })

	if !m.Restore() {
		t.Fatal("Restore found nothing")
	}
	if len(seen) != 1 || seen[0] != StepAuthenticated {
		t.Fatalf("watcher saw %v", seen)
	}
}

func TestRestoreDropsAccountWithoutID(t *testing.T) {
	for name, raw := range map[string]string{
		"no id":   `{"email":"r@example.com"}`,
		"garbled": `{"id":`,
	} {
		t.Run(name, func(t *testing.T) {
			store := kv.NewMemoryStore()
			_ = store.Set(AccountKey, raw)
			m := New(Config{Accounts: newFake(), Hub: session.NewHub(), Store: store})
			var seen []Step
			m.Watch(func(s State) { seen = append(seen, s.Step) })

			if m.Restore() {
				t.Fatal("restored an unusable account")
			}
			if _, ok, _ := store.Get(AccountKey); ok {
				t.Fatal("unusable account left in storage")
			}
			if len(seen) != 0 || m.State().Step == StepAuthenticated {
				t.Fatalf("state = %+v, watcher saw %v", m.State(), seen)
			}
		})
	}
}

func TestRefreshedOnlyUpdatesCurrentAccount(t *testing.T) {
	h := newHarness()
	if _, err := h.m.LoginGoogle(context.Background(), "good"); err != nil {
		t.Fatal(err)
	}

	h.m.Refreshed(backend.Account{ID: "other", Tokens: backend.Tokens{Access: "x"}})
	if h.hub.Current().Account.Tokens.Access == "x" {
		t.Fatal("tokens of another account were adopted")
	}

	h.m.Refreshed(backend.Account{ID: "g-1", Tokens: backend.Tokens{Access: "rotated"}})
	if h.hub.Current().Account.Tokens.Access != "rotated" {
		t.Fatalf("session = %+v", h.hub.Current())
	}
	m2 := New(Config{Accounts: h.fake, Hub: session.NewHub(), Store: h.store})
	m2.Restore()
	if m2.State().Account.Tokens.Access != "rotated" {
		t.Fatal("rotated tokens were not persisted")
	}
}
