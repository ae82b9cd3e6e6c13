package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/student-stay/internal/backend"
	"github.com/iliyamo/student-stay/internal/middleware"
)

// SessionService is the account service plus token rotation.
type SessionService interface {
	backend.Accounts
	Refresh(ctx context.Context, raw string) (backend.Account, error)
	Logout(ctx context.Context, accountID, raw string, all bool) error
}

// AuthHandler serves the sign-in endpoints.
type AuthHandler struct {
	Accounts SessionService
}

func NewAuthHandler(a SessionService) *AuthHandler { return &AuthHandler{Accounts: a} }

type signupReq struct {
	Email        string `json:"email" validate:"omitempty,email"`
	Password     string `json:"password" validate:"required_with=Email,max=72"`
	Name         string `json:"name" validate:"required_with=Email,max=120"`
	College      string `json:"college" validate:"max=120"`
	Phone        string `json:"phone" validate:"omitempty,e164"`
	Verification string `json:"verification" validate:"required"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type federatedReq struct {
	Provider string `json:"provider" validate:"required,oneof=google"`
	Token    string `json:"token" validate:"required"`
}

type otpReq struct {
	Phone string `json:"phone" validate:"required,e164"`
}

type otpConfirmReq struct {
	Handle string `json:"handle" validate:"required"`
	Phone  string `json:"phone"`
	Code   string `json:"code" validate:"required,len=6,numeric"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	All          bool   `json:"all"`
}

// Signup creates an account for a verified phone.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	acct, err := h.Accounts.CreateAccount(ctx, strings.TrimSpace(req.Email), req.Password, backend.Profile{
		Name: req.Name, College: req.College, Phone: req.Phone, Verification: req.Verification,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, acct)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	acct, err := h.Accounts.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, acct)
}

func (h *AuthHandler) Federated(c echo.Context) error {
	var req federatedReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	acct, err := h.Accounts.AuthenticateFederated(ctx, req.Provider, req.Token)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, acct)
}

// RequestOtp sends a code. The response carries the handle to confirm with.
func (h *AuthHandler) RequestOtp(c echo.Context) error {
	var req otpReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	handle, err := h.Accounts.RequestOtp(ctx, req.Phone)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusAccepted, handle)
}

func (h *AuthHandler) ConfirmOtp(c echo.Context) error {
	var req otpConfirmReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	acct, err := h.Accounts.ConfirmOtp(ctx, backend.OtpHandle{ID: req.Handle, Phone: req.Phone}, req.Code)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, acct)
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	acct, err := h.Accounts.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, acct)
}

// Logout revokes the given refresh token, or all of the caller's tokens when
// "all" is set. It requires an access token.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if !req.All && req.RefreshToken == "" {
		return badRequest(c, "refresh_token is required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Accounts.Logout(ctx, middleware.AccountID(c), req.RefreshToken, req.All); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
