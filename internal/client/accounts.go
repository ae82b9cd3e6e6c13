package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/iliyamo/student-stay/internal/apperr"
	"github.com/iliyamo/student-stay/internal/backend"
)

// Accounts implements backend.Accounts over the HTTP API.
type Accounts struct{ c *Client }

func (c *Client) Accounts() *Accounts { return &Accounts{c: c} }

var _ backend.Accounts = (*Accounts)(nil)

func (a *Accounts) CreateAccount(ctx context.Context, email, password string, p backend.Profile) (backend.Account, error) {
	var out backend.Account
	err := a.c.call(ctx, http.MethodPost, "/v1/auth/signup", jsonMap{
		"email":        email,
		"password":     password,
		"name":         p.Name,
		"college":      p.College,
		"phone":        p.Phone,
		"verification": p.Verification,
	}, &out, false)
	return out, err
}

func (a *Accounts) Authenticate(ctx context.Context, email, password string) (backend.Account, error) {
	var out backend.Account
	err := a.c.call(ctx, http.MethodPost, "/v1/auth/login", jsonMap{"email": email, "password": password}, &out, false)
	return out, err
}

func (a *Accounts) AuthenticateFederated(ctx context.Context, provider, token string) (backend.Account, error) {
	var out backend.Account
	err := a.c.call(ctx, http.MethodPost, "/v1/auth/federated", jsonMap{"provider": provider, "token": token}, &out, false)
	return out, err
}

func (a *Accounts) RequestOtp(ctx context.Context, phone string) (backend.OtpHandle, error) {
	var out backend.OtpHandle
	err := a.c.call(ctx, http.MethodPost, "/v1/auth/otp", jsonMap{"phone": phone}, &out, false)
	return out, err
}

func (a *Accounts) ConfirmOtp(ctx context.Context, h backend.OtpHandle, code string) (backend.Account, error) {
	var out backend.Account
	err := a.c.call(ctx, http.MethodPost, "/v1/auth/otp/confirm", jsonMap{"handle": h.ID, "phone": h.Phone, "code": code}, &out, false)
	return out, err
}

// GetAccountRecord reads the signed-in account. The service only exposes the
// caller's own record, so accountID must be that account.
func (a *Accounts) GetAccountRecord(ctx context.Context, accountID string) (backend.AccountRecord, error) {
	if err := a.own(accountID); err != nil {
		return backend.AccountRecord{}, err
	}
	var out backend.AccountRecord
	err := a.c.call(ctx, http.MethodGet, "/v1/me", nil, &out, true)
	return out, err
}

// UpdateAccountRecord applies profile changes, then each saved-set change as
// its own idempotent request.
func (a *Accounts) UpdateAccountRecord(ctx context.Context, accountID string, upd backend.AccountUpdate) error {
	if err := a.own(accountID); err != nil {
		return err
	}
	if upd.Name != nil || upd.College != nil {
		body := jsonMap{}
		if upd.Name != nil {
			body["name"] = *upd.Name
		}
		if upd.College != nil {
			body["college"] = *upd.College
		}
		if err := a.c.call(ctx, http.MethodPatch, "/v1/me", body, nil, true); err != nil {
			return err
		}
	}
	for _, id := range upd.SavedAdd {
		if err := a.c.call(ctx, http.MethodPut, fmt.Sprintf("/v1/me/saved/%d", id), nil, nil, true); err != nil {
			return err
		}
	}
	for _, id := range upd.SavedRemove {
		if err := a.c.call(ctx, http.MethodDelete, fmt.Sprintf("/v1/me/saved/%d", id), nil, nil, true); err != nil {
			return err
		}
	}
	return nil
}

func (a *Accounts) own(accountID string) error {
	if cur := a.c.session().ID; cur == "" || cur != accountID {
		return apperr.Authorization("only the signed-in account can be read")
	}
	return nil
}

// Logout revokes the signed-in session's refresh token on the server.
func (a *Accounts) Logout(ctx context.Context) error {
	rt := a.c.session().Tokens.Refresh
	if rt == "" {
		return nil
	}
	return a.c.call(ctx, http.MethodPost, "/v1/auth/logout", jsonMap{"refresh_token": rt}, nil, true)
}
