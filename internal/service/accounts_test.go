package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/student-stay/internal/backend"
	"github.com/iliyamo/student-stay/internal/federated"
	"github.com/iliyamo/student-stay/internal/queue"
	"github.com/iliyamo/student-stay/internal/repository"
	"github.com/iliyamo/student-stay/internal/utils"
)

type memAccounts struct {
	seq   int
	byID  map[string]repository.Account
	saved map[string]map[int]bool
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: map[string]repository.Account{}, saved: map[string]map[int]bool{}}
}

func (m *memAccounts) Create(_ context.Context, a repository.Account) (repository.Account, error) {
	for _, o := range m.byID {
		if a.Email != "" && o.Email == strings.ToLower(a.Email) {
			return repository.Account{}, backend.ErrEmailExists
		}
		if a.Phone != "" && o.Phone == a.Phone {
			return repository.Account{}, backend.ErrPhoneExists
		}
	}
	m.seq++
	a.ID = fmt.Sprintf("u%d", m.seq)
	a.Email = strings.ToLower(a.Email)
	m.byID[a.ID] = a
	return a, nil
}

func (m *memAccounts) find(match func(repository.Account) bool) (repository.Account, error) {
	for _, a := range m.byID {
		if match(a) {
			return a, nil
		}
	}
	return repository.Account{}, backend.ErrNotFound
}

func (m *memAccounts) GetByID(_ context.Context, id string) (repository.Account, error) {
	return m.find(func(a repository.Account) bool { return a.ID == id })
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (repository.Account, error) {
	return m.find(func(a repository.Account) bool { return a.Email == strings.ToLower(email) })
}

func (m *memAccounts) GetByPhone(_ context.Context, phone string) (repository.Account, error) {
	return m.find(func(a repository.Account) bool { return a.Phone == phone })
}

func (m *memAccounts) GetByProvider(_ context.Context, p, sub string) (repository.Account, error) {
	return m.find(func(a repository.Account) bool { return a.Provider == p && a.ProviderSub == sub })
}

func (m *memAccounts) LinkProvider(_ context.Context, id, p, sub string) error {
	a := m.byID[id]
	a.Provider, a.ProviderSub = p, sub
	m.byID[id] = a
	return nil
}

func (m *memAccounts) SavedIDs(_ context.Context, id string) ([]int, error) {
	out := []int{}
	for v := range m.saved[id] {
		out = append(out, v)
	}
	return out, nil
}

func (m *memAccounts) Update(_ context.Context, id string, upd backend.AccountUpdate) error {
	if _, ok := m.byID[id]; !ok {
		return backend.ErrNotFound
	}
	if m.saved[id] == nil {
		m.saved[id] = map[int]bool{}
	}
	for _, v := range upd.SavedAdd {
		m.saved[id][v] = true
	}
	for _, v := range upd.SavedRemove {
		delete(m.saved[id], v)
	}
	return nil
}

type memTokens struct{ live map[string]string }

func (m *memTokens) StoreRefresh(_ context.Context, uid, h string, _ time.Time) error {
	m.live[h] = uid
	return nil
}

func (m *memTokens) ValidateRefresh(_ context.Context, h string) (string, error) {
	uid, ok := m.live[h]
	if !ok {
		return "", backend.ErrInvalidCredentials
	}
	return uid, nil
}

func (m *memTokens) RevokeByHash(_ context.Context, h string) error {
	delete(m.live, h)
	return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, uid string) error {
	for h, u := range m.live {
		if u == uid {
			delete(m.live, h)
		}
	}
	return nil
}

// memOtp keeps one code per phone in memory.
type memOtp struct {
	current map[string]string // phone -> handle
	codes   map[string]string // handle -> code
	phones  map[string]string // handle -> phone
	verify  map[string]string // token -> phone
	n       int
}

func newMemOtp() *memOtp {
	return &memOtp{current: map[string]string{}, codes: map[string]string{}, phones: map[string]string{}, verify: map[string]string{}}
}

func (m *memOtp) Issue(_ context.Context, phone string) (backend.OtpHandle, string, error) {
	m.n++
	h := fmt.Sprintf("h%d", m.n)
	code := fmt.Sprintf("%06d", 100000+m.n)
	m.current[phone], m.codes[h], m.phones[h] = h, code, phone
	return backend.OtpHandle{ID: h, Phone: phone}, code, nil
}

func (m *memOtp) Verify(_ context.Context, h backend.OtpHandle, code string) (string, error) {
	phone, ok := m.phones[h.ID]
	if !ok || m.current[phone] != h.ID {
		return "", backend.ErrOtpSession
	}
	if m.codes[h.ID] != code {
		return "", backend.ErrOtpInvalid
	}
	delete(m.current, phone)
	return phone, nil
}

func (m *memOtp) IssueVerification(_ context.Context, phone string) (string, error) {
	t := "v-" + phone
	m.verify[t] = phone
	return t, nil
}

func (m *memOtp) ConsumeVerification(_ context.Context, t string) (string, error) {
	p, ok := m.verify[t]
	if !ok {
		return "", backend.ErrOtpSession
	}
	delete(m.verify, t)
	return p, nil
}

type fakeGoogle map[string]federated.Identity

func (f fakeGoogle) Verify(_ context.Context, token string) (federated.Identity, error) {
	id, ok := f[token]
	if !ok {
		return federated.Identity{}, backend.ErrInvalidCredentials
	}
	return id, nil
}

type outbox struct{ sent []queue.OtpRequestedEvent }

func (o *outbox) SendOtp(_ context.Context, ev queue.OtpRequestedEvent) error {
	o.sent = append(o.sent, ev)
	return nil
}

type fixture struct {
	svc    *AccountService
	accts  *memAccounts
	tokens *memTokens
	otp    *memOtp
	out    *outbox
}

func newFixture() *fixture {
	f := &fixture{accts: newMemAccounts(), tokens: &memTokens{live: map[string]string{}}, otp: newMemOtp(), out: &outbox{}}
	google := fakeGoogle{
		"tok-new":    {Provider: "google", Subject: "g1", Email: "neha@example.com", EmailVerified: true, Name: "Neha"},
		"tok-linked": {Provider: "google", Subject: "g2", Email: "asha@example.com", EmailVerified: true},
	}
	f.svc = NewAccountService(f.accts, f.tokens, f.otp, google, f.out, AccountConfig{
		JWTSecret: "test", AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: bcrypt.MinCost,
		AdminEmails: []string{"admin@example.com"},
	})
	return f
}

// verifyPhone runs the request/confirm round trip and returns the result.
func (f *fixture) verifyPhone(t *testing.T, phone string) backend.Account {
	t.Helper()
	ctx := context.Background()
	h, err := f.svc.RequestOtp(ctx, phone)
	if err != nil {
		t.Fatal(err)
	}
	code := f.out.sent[len(f.out.sent)-1].Code
	acct, err := f.svc.ConfirmOtp(ctx, h, code)
	if err != nil {
		t.Fatal(err)
	}
	return acct
}

func TestSignupRequiresVerifiedPhone(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.CreateAccount(ctx, "asha@example.com", "secret1", backend.Profile{Name: "Asha"})
	if !errors.Is(err, backend.ErrOtpSession) {
		t.Fatalf("err = %v, want ErrOtpSession", err)
	}

	v := f.verifyPhone(t, "+919876543210")
	if v.ID != "" || v.Verification == "" {
		t.Fatalf("confirm = %+v", v)
	}
	acct, err := f.svc.CreateAccount(ctx, "asha@example.com", "secret1",
		backend.Profile{Name: "Asha", Phone: "+919876543210", Verification: v.Verification})
	if err != nil {
		t.Fatal(err)
	}
	if acct.Phone != "+919876543210" || acct.Tokens.Access == "" || acct.IsAdmin {
		t.Fatalf("account = %+v", acct)
	}
	claims, err := utils.ParseAccessToken("test", acct.Tokens.Access)
	if err != nil || claims.Subject != acct.ID {
		t.Fatalf("claims = %+v, %v", claims, err)
	}

	// The verification token is single use.
	_, err = f.svc.CreateAccount(ctx, "other@example.com", "secret1",
		backend.Profile{Name: "Other", Verification: v.Verification})
	if !errors.Is(err, backend.ErrOtpSession) {
		t.Fatalf("reuse err = %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture()
	v := f.verifyPhone(t, "+919876543210")
	f.svc.CreateAccount(context.Background(), "admin@example.com", "secret1", backend.Profile{Name: "Admin", Verification: v.Verification})

	acct, err := f.svc.Authenticate(context.Background(), "ADMIN@example.com", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	if !acct.IsAdmin {
		t.Fatal("configured admin email did not get the flag")
	}
	for _, tc := range []struct{ email, pw string }{{"admin@example.com", "nope"}, {"ghost@example.com", "secret1"}} {
		if _, err := f.svc.Authenticate(context.Background(), tc.email, tc.pw); !errors.Is(err, backend.ErrInvalidCredentials) {
			t.Fatalf("Authenticate(%s) err = %v", tc.email, err)
		}
	}
}

func TestConfirmOtpSignsInRegisteredPhone(t *testing.T) {
	f := newFixture()
	v := f.verifyPhone(t, "+919876543210")
	created, _ := f.svc.CreateAccount(context.Background(), "", "", backend.Profile{Verification: v.Verification})

	again := f.verifyPhone(t, "+919876543210")
	if again.ID != created.ID || again.Tokens.Access == "" {
		t.Fatalf("confirm = %+v, want account %s", again, created.ID)
	}
}

func TestNewCodeInvalidatesOld(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	h1, _ := f.svc.RequestOtp(ctx, "+919876543210")
	code1 := f.out.sent[0].Code
	f.svc.RequestOtp(ctx, "+919876543210")
	if _, err := f.svc.ConfirmOtp(ctx, h1, code1); !errors.Is(err, backend.ErrOtpSession) {
		t.Fatalf("old handle err = %v", err)
	}
}

func TestRequestOtpRejectsNonE164(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.RequestOtp(context.Background(), "98765"); !errors.Is(err, backend.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
	if len(f.out.sent) != 0 {
		t.Fatal("code sent for an invalid phone")
	}
}

func TestFederatedCreatesThenReuses(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	first, err := f.svc.AuthenticateFederated(ctx, "google", "tok-new")
	if err != nil {
		t.Fatal(err)
	}
	rec, _ := f.svc.GetAccountRecord(ctx, first.ID)
	if rec.IsAdmin || len(rec.SavedIDs) != 0 || rec.Provider != "google" {
		t.Fatalf("record = %+v", rec)
	}
	second, _ := f.svc.AuthenticateFederated(ctx, "google", "tok-new")
	if second.ID != first.ID {
		t.Fatal("second sign-in created another account")
	}
	if _, err := f.svc.AuthenticateFederated(ctx, "apple", "tok-new"); !errors.Is(err, backend.ErrInvalidInput) {
		t.Fatalf("unsupported provider err = %v", err)
	}
}

func TestFederatedLinksExistingEmail(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	v := f.verifyPhone(t, "+919876543210")
	asha, _ := f.svc.CreateAccount(ctx, "asha@example.com", "secret1", backend.Profile{Name: "Asha", Verification: v.Verification})

	got, err := f.svc.AuthenticateFederated(ctx, "google", "tok-linked")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != asha.ID {
		t.Fatalf("linked to %s, want %s", got.ID, asha.ID)
	}
}

func TestSavedSetUpdates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	acct, _ := f.svc.AuthenticateFederated(ctx, "google", "tok-new")

	if err := f.svc.UpdateAccountRecord(ctx, acct.ID, backend.AccountUpdate{SavedAdd: []int{4}}); err != nil {
		t.Fatal(err)
	}
	f.svc.UpdateAccountRecord(ctx, acct.ID, backend.AccountUpdate{SavedAdd: []int{7}})
	f.svc.UpdateAccountRecord(ctx, acct.ID, backend.AccountUpdate{SavedRemove: []int{4}})
	rec, _ := f.svc.GetAccountRecord(ctx, acct.ID)
	if len(rec.SavedIDs) != 1 || rec.SavedIDs[0] != 7 {
		t.Fatalf("saved = %v", rec.SavedIDs)
	}
	if err := f.svc.UpdateAccountRecord(ctx, acct.ID, backend.AccountUpdate{SavedAdd: []int{0}}); !errors.Is(err, backend.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
}

func TestRefreshRotates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	acct, _ := f.svc.AuthenticateFederated(ctx, "google", "tok-new")

	next, err := f.svc.Refresh(ctx, acct.Tokens.Refresh)
	if err != nil {
		t.Fatal(err)
	}
	if next.Tokens.Refresh == acct.Tokens.Refresh {
		t.Fatal("refresh token not rotated")
	}
	if _, err := f.svc.Refresh(ctx, acct.Tokens.Refresh); !errors.Is(err, backend.ErrInvalidCredentials) {
		t.Fatalf("reuse err = %v", err)
	}
	if err := f.svc.Logout(ctx, acct.ID, "", true); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Refresh(ctx, next.Tokens.Refresh); !errors.Is(err, backend.ErrInvalidCredentials) {
		t.Fatalf("after logout err = %v", err)
	}
}
