// Package authflow drives sign-in and sign-up across email/password, Google
// and phone verification codes. It owns the transitions of the shared
// session hub: nothing else moves a client between anonymous and signed in.
package authflow

import (
	"context"
	"encoding/json"
	"log"
	"regexp"
	"sync"
	"time"

	"github.com/iliyamo/student-stay/internal/apperr"
	"github.com/iliyamo/student-stay/internal/backend"
	"github.com/iliyamo/student-stay/internal/kv"
	"github.com/iliyamo/student-stay/internal/model"
	"github.com/iliyamo/student-stay/internal/session"
)

// ResendCooldown is how long the resend action stays disabled after a code
// was sent.
const ResendCooldown = 30 * time.Second

// Storage keys.
const (
	RedirectKey = "auth.redirect"
	AccountKey  = "auth.account"
)

// DefaultDestination is used when nothing was remembered before sign-in.
const DefaultDestination = "/"

// MinPasswordLength applies to new email accounts.
const MinPasswordLength = 6

var codePattern = regexp.MustCompile(`^[0-9]{6}$`)

// Step is the position of the machine.
type Step int

const (
	StepAnonymous Step = iota
	StepChoosingMode
	StepAuthenticating
	StepAwaitingOtp
	StepVerifyingOtp
	StepAuthenticated
	StepFailed
)

func (s Step) String() string {
	return [...]string{"anonymous", "choosing_mode", "authenticating", "awaiting_otp", "verifying_otp", "authenticated", "failed"}[s]
}

// Mode is the credential family picked on the sign-in screen.
type Mode int

const (
	ModeNone Mode = iota
	ModeEmail
	ModePhone
)

func (m Mode) String() string {
	switch m {
	case ModeEmail:
		return "email"
	case ModePhone:
		return "phone"
	}
	return "none"
}

// Purpose says what a verified phone code is for.
type Purpose int

const (
	PurposeLogin Purpose = iota
	PurposeSignup
)

// State is a snapshot of the machine.
type State struct {
	Step    Step
	Mode    Mode
	Purpose Purpose

	// Set while a code is outstanding.
	Phone      string
	Handle     backend.OtpHandle
	CodeSentAt time.Time

	// Set when Step is StepFailed.
	Reason string

	Account backend.Account
}

type signup struct {
	email    string
	password string
	profile  backend.Profile
}

// Config wires a Machine. Accounts, Hub and Store are required.
type Config struct {
	Accounts    backend.Accounts
	Hub         *session.Hub
	Store       kv.Store
	Board       *apperr.Board
	Now         func() time.Time
	CountryCode string
}

// Machine is the sign-in state machine. Methods are safe to call from
// several goroutines; a second backend-bound action while one is pending
// returns apperr.ErrInFlight and does nothing.
type Machine struct {
	accounts backend.Accounts
	hub      *session.Hub
	store    kv.Store
	board    *apperr.Board
	now      func() time.Time
	cc       string

	mu       sync.Mutex
	st       State
	busy     bool
	pending  *signup
	watchers []func(State)
}

func New(cfg Config) *Machine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Board == nil {
		cfg.Board = apperr.NewBoard(cfg.Now)
	}
	if cfg.CountryCode == "" {
		cfg.CountryCode = DefaultCountryCode
	}
	return &Machine{
		accounts: cfg.Accounts,
		hub:      cfg.Hub,
		store:    cfg.Store,
		board:    cfg.Board,
		now:      cfg.Now,
		cc:       cfg.CountryCode,
	}
}

// State returns the current snapshot.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st
}

// Board returns the message board failures are shown on.
func (m *Machine) Board() *apperr.Board { return m.board }

// Watch registers fn for every transition, including the transient failed
// step. Watchers run with the machine locked and must not call back into it.
func (m *Machine) Watch(fn func(State)) {
	m.mu.Lock()
	m.watchers = append(m.watchers, fn)
	m.mu.Unlock()
}

// Restore adopts an account saved by an earlier process.
func (m *Machine) Restore() bool {
	raw, ok, err := m.store.Get(AccountKey)
	if err != nil || !ok {
		return false
	}
	var acct backend.Account
	if err := json.Unmarshal([]byte(raw), &acct); err != nil {
		log.Printf("authflow: discarding stored account: %v", err)
		_ = m.store.Remove(AccountKey)
		return false
	}
	if acct.ID == "" {
		log.Printf("authflow: discarding stored account without id")
		_ = m.store.Remove(AccountKey)
		return false
	}
	m.mu.Lock()
	m.setLocked(State{Step: StepAuthenticated, Account: acct})
	m.mu.Unlock()
	m.hub.SetAuthenticated(acct)
	return true
}

// RememberDestination stores where to go after the next successful sign-in.
func (m *Machine) RememberDestination(dest string) error {
	return m.store.Set(RedirectKey, dest)
}

// ChooseMode opens the sign-in screen in mode. It abandons any outstanding
// code or half-finished sign-up.
func (m *Machine) ChooseMode(mode Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return apperr.ErrInFlight
	}
	if m.st.Step == StepAuthenticated {
		return apperr.Validation("already signed in")
	}
	if mode != ModeEmail && mode != ModePhone {
		return apperr.Validation("unknown sign-in mode")
	}
	m.pending = nil
	m.setLocked(State{Step: StepChoosingMode, Mode: mode})
	return nil
}

// LoginEmail checks an email/password pair.
func (m *Machine) LoginEmail(ctx context.Context, email, password string) (string, error) {
	if err := model.Validate.Var(email, "required,email"); err != nil {
		return "", m.reject(apperr.Validation("enter a valid email address"))
	}
	if password == "" {
		return "", m.reject(apperr.Validation("password is required"))
	}
	prev, err := m.begin(ModeEmail, StepAuthenticating)
	if err != nil {
		return "", err
	}
	acct, err := m.accounts.Authenticate(ctx, email, password)
	if err != nil {
		return "", m.fail(prev, err)
	}
	return m.succeed(acct)
}

// LoginGoogle completes a federated sign-in with a provider token. The
// backend creates a default account the first time an identity is seen.
func (m *Machine) LoginGoogle(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", m.reject(apperr.Validation("google token is required"))
	}
	prev, err := m.begin(ModeNone, StepAuthenticating)
	if err != nil {
		return "", err
	}
	acct, err := m.accounts.AuthenticateFederated(ctx, "google", token)
	if err != nil {
		return "", m.fail(prev, err)
	}
	return m.succeed(acct)
}

// SignupEmail validates the new account fields, then sends a code to phone.
// The account is created by SubmitCode once the phone is verified.
func (m *Machine) SignupEmail(ctx context.Context, email, password, phone string, profile backend.Profile) error {
	switch {
	case model.Validate.Var(email, "required,email") != nil:
		return m.reject(apperr.Validation("enter a valid email address"))
	case len(password) < MinPasswordLength:
		return m.reject(apperr.Validation("password must be at least 6 characters"))
	case profile.Name == "":
		return m.reject(apperr.Validation("name is required"))
	}
	return m.requestCode(ctx, phone, PurposeSignup, &signup{email: email, password: password, profile: profile})
}

// RequestCode sends a sign-in code to phone.
func (m *Machine) RequestCode(ctx context.Context, phone string) error {
	return m.requestCode(ctx, phone, PurposeLogin, nil)
}

func (m *Machine) requestCode(ctx context.Context, phone string, purpose Purpose, su *signup) error {
	e164, err := NormalizePhone(phone, m.cc)
	if err != nil {
		return m.reject(err)
	}
	mode := ModePhone
	if purpose == PurposeSignup {
		mode = ModeEmail
	}
	prev, err := m.begin(mode, StepAuthenticating)
	if err != nil {
		return err
	}
	h, err := m.accounts.RequestOtp(ctx, e164)
	if err != nil {
		return m.fail(prev, err)
	}
	m.mu.Lock()
	m.busy = false
	m.pending = su
	m.setLocked(State{Step: StepAwaitingOtp, Mode: mode, Purpose: purpose, Phone: e164, Handle: h, CodeSentAt: m.now()})
	m.mu.Unlock()
	m.hub.SetAnonymous()
	m.board.ShowSuccess("code sent to " + e164)
	return nil
}

// CooldownRemaining reports how long until Resend is allowed. It is zero
// when no code is outstanding.
func (m *Machine) CooldownRemaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cooldownLocked()
}

func (m *Machine) cooldownLocked() time.Duration {
	if m.st.Step != StepAwaitingOtp {
		return 0
	}
	left := ResendCooldown - m.now().Sub(m.st.CodeSentAt)
	if left < 0 {
		return 0
	}
	return left
}

// CanResend reports whether Resend would be accepted now.
func (m *Machine) CanResend() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.busy && m.st.Step == StepAwaitingOtp && m.cooldownLocked() == 0
}

// Resend requests a fresh code for the same phone once the cooldown is over.
// The new code replaces the previous one.
func (m *Machine) Resend(ctx context.Context) error {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return apperr.ErrInFlight
	}
	if m.st.Step != StepAwaitingOtp {
		m.mu.Unlock()
		return apperr.Validation("no code has been requested")
	}
	if left := m.cooldownLocked(); left > 0 {
		m.mu.Unlock()
		return apperr.Validation("wait " + left.Round(time.Second).String() + " before requesting a new code")
	}
	prev := m.st
	m.busy = true
	m.mu.Unlock()

	h, err := m.accounts.RequestOtp(ctx, prev.Phone)
	if err != nil {
		return m.fail(prev, err)
	}
	m.mu.Lock()
	next := prev
	next.Handle = h
	next.CodeSentAt = m.now()
	m.busy = false
	m.setLocked(next)
	m.mu.Unlock()
	m.board.ShowSuccess("new code sent to " + prev.Phone)
	return nil
}

// SubmitCode confirms the outstanding code. A wrong or expired code leaves
// the machine waiting for another attempt on the same phone.
func (m *Machine) SubmitCode(ctx context.Context, code string) (string, error) {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return "", apperr.ErrInFlight
	}
	if m.st.Step != StepAwaitingOtp {
		m.mu.Unlock()
		return "", m.reject(apperr.Authentication("no active verification session, request a new code", backend.ErrOtpSession))
	}
	if !codePattern.MatchString(code) {
		m.mu.Unlock()
		return "", m.reject(apperr.Validation("enter the 6-digit code"))
	}
	prev := m.st
	su := m.pending
	m.busy = true
	next := prev
	next.Step = StepVerifyingOtp
	m.setLocked(next)
	m.mu.Unlock()
	m.hub.SetAuthenticating()

	verified, err := m.accounts.ConfirmOtp(ctx, prev.Handle, code)
	if err != nil {
		return "", m.fail(prev, err)
	}

	switch {
	case prev.Purpose == PurposeSignup:
		if verified.ID != "" {
			return "", m.fail(State{Step: StepChoosingMode, Mode: ModeEmail},
				apperr.Conflict("this phone number is already registered", backend.ErrPhoneExists))
		}
		p := su.profile
		p.Phone = prev.Phone
		p.Verification = verified.Verification
		acct, err := m.accounts.CreateAccount(ctx, su.email, su.password, p)
		if err != nil {
			return "", m.fail(State{Step: StepChoosingMode, Mode: ModeEmail}, err)
		}
		return m.succeed(acct)

	case verified.ID == "":
		// First phone sign-in: the verified number becomes a phone-only account.
		acct, err := m.accounts.CreateAccount(ctx, "", "", backend.Profile{Phone: prev.Phone, Verification: verified.Verification})
		if err != nil {
			return "", m.fail(State{Step: StepChoosingMode, Mode: ModePhone}, err)
		}
		return m.succeed(acct)
	}
	return m.succeed(verified)
}

// Refreshed replaces the stored credentials after a token rotation. It is
// ignored unless acct is the account currently signed in.
func (m *Machine) Refreshed(acct backend.Account) {
	m.mu.Lock()
	if m.st.Step != StepAuthenticated || m.st.Account.ID != acct.ID {
		m.mu.Unlock()
		return
	}
	m.st.Account = acct
	m.mu.Unlock()
	m.persist(acct)
	m.hub.SetAuthenticated(acct)
}

// Logout drops the signed-in account.
func (m *Machine) Logout() {
	m.mu.Lock()
	m.pending = nil
	m.busy = false
	m.setLocked(State{Step: StepAnonymous})
	m.mu.Unlock()
	if err := m.store.Remove(AccountKey); err != nil {
		log.Printf("authflow: clear stored account: %v", err)
	}
	m.hub.SetAnonymous()
}

// begin claims the in-flight slot and moves to step.
func (m *Machine) begin(mode Mode, step Step) (State, error) {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return State{}, apperr.ErrInFlight
	}
	if m.st.Step == StepAuthenticated {
		m.mu.Unlock()
		return State{}, apperr.Validation("already signed in")
	}
	prev := m.st
	m.busy = true
	m.board.Clear()
	m.setLocked(State{Step: step, Mode: mode})
	m.mu.Unlock()
	m.hub.SetAuthenticating()
	return prev, nil
}

// fail surfaces err, passes through the failed step and returns to back.
func (m *Machine) fail(back State, err error) error {
	ne := apperr.Normalize(err)
	m.board.ShowError(ne)
	m.mu.Lock()
	m.busy = false
	failed := back
	failed.Step = StepFailed
	failed.Reason = ne.Error()
	m.setLocked(failed)
	m.setLocked(back)
	if back.Step == StepChoosingMode || back.Step == StepAnonymous {
		m.pending = nil
	}
	m.mu.Unlock()
	m.hub.SetAnonymous()
	return ne
}

// reject surfaces a local validation failure without touching the step.
func (m *Machine) reject(err error) error {
	m.board.ShowError(err)
	return err
}

func (m *Machine) succeed(acct backend.Account) (string, error) {
	m.mu.Lock()
	m.busy = false
	m.pending = nil
	m.setLocked(State{Step: StepAuthenticated, Account: acct})
	m.mu.Unlock()

	m.persist(acct)
	m.hub.SetAuthenticated(acct)
	m.board.ShowSuccess("signed in")
	return m.consumeDestination(), nil
}

func (m *Machine) persist(acct backend.Account) {
	raw, err := json.Marshal(acct)
	if err == nil {
		err = m.store.Set(AccountKey, string(raw))
	}
	if err != nil {
		log.Printf("authflow: persist account: %v", err)
	}
}

// consumeDestination returns the remembered destination once.
func (m *Machine) consumeDestination() string {
	dest, ok, err := m.store.Get(RedirectKey)
	if err != nil {
		log.Printf("authflow: read redirect: %v", err)
	}
	if err := m.store.Remove(RedirectKey); err != nil {
		log.Printf("authflow: clear redirect: %v", err)
	}
	if !ok || dest == "" {
		return DefaultDestination
	}
	return dest
}

func (m *Machine) setLocked(s State) {
	m.st = s
	for _, fn := range m.watchers {
		fn(s)
	}
}
