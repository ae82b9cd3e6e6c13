// Package service implements the account operations of the service on top of
// the repositories, the OTP store and the identity verifier.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/iliyamo/student-stay/internal/backend"
	"github.com/iliyamo/student-stay/internal/federated"
	"github.com/iliyamo/student-stay/internal/model"
	"github.com/iliyamo/student-stay/internal/queue"
	"github.com/iliyamo/student-stay/internal/repository"
	"github.com/iliyamo/student-stay/internal/utils"
)

// AccountStore is the subset of repository.AccountRepo the service uses.
type AccountStore interface {
	Create(ctx context.Context, a repository.Account) (repository.Account, error)
	GetByID(ctx context.Context, id string) (repository.Account, error)
	GetByEmail(ctx context.Context, email string) (repository.Account, error)
	GetByPhone(ctx context.Context, phone string) (repository.Account, error)
	GetByProvider(ctx context.Context, provider, sub string) (repository.Account, error)
	LinkProvider(ctx context.Context, id, provider, sub string) error
	SavedIDs(ctx context.Context, id string) ([]int, error)
	Update(ctx context.Context, id string, upd backend.AccountUpdate) error
}

// TokenStore is the subset of repository.TokenRepo the service uses.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// OtpStore issues and checks verification codes.
type OtpStore interface {
	Issue(ctx context.Context, phone string) (backend.OtpHandle, string, error)
	Verify(ctx context.Context, h backend.OtpHandle, code string) (string, error)
	IssueVerification(ctx context.Context, phone string) (string, error)
	ConsumeVerification(ctx context.Context, token string) (string, error)
}

// IdentityVerifier resolves a federated token.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (federated.Identity, error)
}

// OtpSender delivers a code.
type OtpSender interface {
	SendOtp(ctx context.Context, ev queue.OtpRequestedEvent) error
}

// AccountConfig holds the token and hashing settings.
type AccountConfig struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
	AdminEmails    []string
}

// AccountService implements backend.Accounts for the HTTP service.
type AccountService struct {
	accounts AccountStore
	tokens   TokenStore
	otp      OtpStore
	google   IdentityVerifier
	sender   OtpSender
	cfg      AccountConfig
}

func NewAccountService(accounts AccountStore, tokens TokenStore, otp OtpStore, google IdentityVerifier, sender OtpSender, cfg AccountConfig) *AccountService {
	return &AccountService{accounts: accounts, tokens: tokens, otp: otp, google: google, sender: sender, cfg: cfg}
}

var _ backend.Accounts = (*AccountService)(nil)

func (s *AccountService) isAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, e := range s.cfg.AdminEmails {
		if email != "" && e == email {
			return true
		}
	}
	return false
}

// CreateAccount creates an email or phone-only account. Both require a
// verification token from ConfirmOtp; the verified phone is attached to the
// account.
func (s *AccountService) CreateAccount(ctx context.Context, email, password string, p backend.Profile) (backend.Account, error) {
	a := repository.Account{Name: strings.TrimSpace(p.Name), College: strings.TrimSpace(p.College), Provider: "phone"}
	if email != "" {
		if model.Validate.Var(email, "email") != nil || len(password) < 6 {
			return backend.Account{}, fmt.Errorf("%w: email or password", backend.ErrInvalidInput)
		}
		if a.Name == "" {
			return backend.Account{}, fmt.Errorf("%w: name is required", backend.ErrInvalidInput)
		}
		hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
		if err != nil {
			return backend.Account{}, err
		}
		a.Email, a.PasswordHash, a.Provider = email, hash, "password"
	}

	phone, err := s.otp.ConsumeVerification(ctx, p.Verification)
	if err != nil {
		return backend.Account{}, err
	}
	if p.Phone != "" && p.Phone != phone {
		return backend.Account{}, backend.ErrOtpSession
	}
	a.Phone = phone
	a.IsAdmin = s.isAdminEmail(email)

	created, err := s.accounts.Create(ctx, a)
	if err != nil {
		return backend.Account{}, err
	}
	return s.issue(ctx, created)
}

// Authenticate checks an email/password pair.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (backend.Account, error) {
	a, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, backend.ErrNotFound) {
		utils.BurnPasswordCheck(password)
		return backend.Account{}, backend.ErrInvalidCredentials
	}
	if err != nil {
		return backend.Account{}, err
	}
	if a.PasswordHash == "" || !utils.VerifyPassword(a.PasswordHash, password) {
		return backend.Account{}, backend.ErrInvalidCredentials
	}
	return s.issue(ctx, a)
}

// AuthenticateFederated signs in with a provider token. An unknown identity
// is linked to the account holding its verified email, or gets a new account
// with default fields.
func (s *AccountService) AuthenticateFederated(ctx context.Context, provider, token string) (backend.Account, error) {
	if provider != "google" {
		return backend.Account{}, fmt.Errorf("%w: unsupported provider %q", backend.ErrInvalidInput, provider)
	}
	id, err := s.google.Verify(ctx, token)
	if err != nil {
		return backend.Account{}, err
	}

	a, err := s.accounts.GetByProvider(ctx, id.Provider, id.Subject)
	if err == nil {
		return s.issue(ctx, a)
	}
	if !errors.Is(err, backend.ErrNotFound) {
		return backend.Account{}, err
	}

	if id.EmailVerified {
		a, err = s.accounts.GetByEmail(ctx, id.Email)
		switch {
		case err == nil:
			if err := s.accounts.LinkProvider(ctx, a.ID, id.Provider, id.Subject); err != nil {
				log.Printf("accounts: link %s identity to %s: %v", id.Provider, a.ID, err)
			}
			return s.issue(ctx, a)
		case !errors.Is(err, backend.ErrNotFound):
			return backend.Account{}, err
		}
	}

	email := ""
	if id.EmailVerified {
		email = id.Email
	}
	created, err := s.accounts.Create(ctx, repository.Account{
		Email:       email,
		Name:        id.Name,
		Provider:    id.Provider,
		ProviderSub: id.Subject,
		IsAdmin:     s.isAdminEmail(email),
	})
	if err != nil {
		return backend.Account{}, err
	}
	return s.issue(ctx, created)
}

// RequestOtp issues a code for an E.164 phone and hands it to the sender.
// Any earlier code for the phone stops working.
func (s *AccountService) RequestOtp(ctx context.Context, phone string) (backend.OtpHandle, error) {
	if model.Validate.Var(phone, "required,e164") != nil {
		return backend.OtpHandle{}, fmt.Errorf("%w: phone must be E.164", backend.ErrInvalidInput)
	}
	h, code, err := s.otp.Issue(ctx, phone)
	if err != nil {
		return backend.OtpHandle{}, err
	}
	ev := queue.OtpRequestedEvent{
		Handle:      h.ID,
		Phone:       phone,
		Code:        code,
		ExpiresAt:   h.ExpiresAt.Format(time.RFC3339),
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.sender.SendOtp(ctx, ev); err != nil {
		return backend.OtpHandle{}, fmt.Errorf("%w: send code: %v", backend.ErrUnavailable, err)
	}
	return h, nil
}

// ConfirmOtp verifies a code. The result always carries a single-use
// verification token for CreateAccount; it also carries the account and its
// tokens when the phone is already registered.
func (s *AccountService) ConfirmOtp(ctx context.Context, h backend.OtpHandle, code string) (backend.Account, error) {
	phone, err := s.otp.Verify(ctx, h, code)
	if err != nil {
		return backend.Account{}, err
	}
	verification, err := s.otp.IssueVerification(ctx, phone)
	if err != nil {
		return backend.Account{}, err
	}
	a, err := s.accounts.GetByPhone(ctx, phone)
	if errors.Is(err, backend.ErrNotFound) {
		return backend.Account{Phone: phone, Verification: verification}, nil
	}
	if err != nil {
		return backend.Account{}, err
	}
	out, err := s.issue(ctx, a)
	if err != nil {
		return backend.Account{}, err
	}
	out.Verification = verification
	return out, nil
}

func (s *AccountService) GetAccountRecord(ctx context.Context, id string) (backend.AccountRecord, error) {
	a, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return backend.AccountRecord{}, err
	}
	saved, err := s.accounts.SavedIDs(ctx, id)
	if err != nil {
		return backend.AccountRecord{}, err
	}
	return backend.AccountRecord{
		ID:        a.ID,
		Email:     a.Email,
		Phone:     a.Phone,
		Name:      a.Name,
		College:   a.College,
		Provider:  a.Provider,
		IsAdmin:   a.IsAdmin,
		SavedIDs:  saved,
		CreatedAt: a.CreatedAt,
	}, nil
}

func (s *AccountService) UpdateAccountRecord(ctx context.Context, id string, upd backend.AccountUpdate) error {
	for _, v := range append(append([]int{}, upd.SavedAdd...), upd.SavedRemove...) {
		if v <= 0 {
			return fmt.Errorf("%w: accommodation id %d", backend.ErrInvalidInput, v)
		}
	}
	return s.accounts.Update(ctx, id, upd)
}

// Refresh rotates a refresh token.
func (s *AccountService) Refresh(ctx context.Context, raw string) (backend.Account, error) {
	hash := utils.HashToken(raw)
	userID, err := s.tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return backend.Account{}, err
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		return backend.Account{}, err
	}
	a, err := s.accounts.GetByID(ctx, userID)
	if errors.Is(err, backend.ErrNotFound) {
		return backend.Account{}, backend.ErrInvalidCredentials
	}
	if err != nil {
		return backend.Account{}, err
	}
	return s.issue(ctx, a)
}

// Logout revokes one refresh token, or every token of accountID when all is
// set.
func (s *AccountService) Logout(ctx context.Context, accountID, raw string, all bool) error {
	if all {
		return s.tokens.RevokeAllForUser(ctx, accountID)
	}
	return s.tokens.RevokeByHash(ctx, utils.HashToken(raw))
}

func (s *AccountService) issue(ctx context.Context, a repository.Account) (backend.Account, error) {
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, a.ID, a.IsAdmin, s.cfg.AccessTTLMin)
	if err != nil {
		return backend.Account{}, err
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return backend.Account{}, err
	}
	if err := s.tokens.StoreRefresh(ctx, a.ID, utils.HashToken(refresh.Raw), refresh.Exp); err != nil {
		return backend.Account{}, err
	}
	return backend.Account{
		ID:      a.ID,
		Email:   a.Email,
		Phone:   a.Phone,
		Name:    a.Name,
		IsAdmin: a.IsAdmin,
		Tokens:  backend.Tokens{Access: access.Token, AccessExpires: access.Exp, Refresh: refresh.Raw},
	}, nil
}
