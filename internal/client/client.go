// Package client talks to the HTTP API. Accounts and Files implement the
// backend interfaces so the client-side components run unchanged against a
// remote service; the remaining methods cover listings, inquiries and the
// blog.
//
// Every failure is returned as an *apperr.Error carrying the kind and message
// the server sent. Not-found and credential failures also wrap the matching
// backend sentinel.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iliyamo/student-stay/internal/apperr"
	"github.com/iliyamo/student-stay/internal/backend"
)

// maxResponse bounds how much of a response body is read.
const maxResponse = 8 << 20

// Client is a thin JSON client for the service.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	// Session returns the credentials of the signed-in account; the zero
	// value means anonymous.
	Session func() backend.Account
	// OnRefresh receives the account after a successful token rotation.
	OnRefresh func(backend.Account)
}

// New returns a client for baseURL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

var kindByName = map[string]apperr.Kind{
	"validation":     apperr.KindValidation,
	"authentication": apperr.KindAuthentication,
	"authorization":  apperr.KindAuthorization,
	"not_found":      apperr.KindNotFound,
	"conflict":       apperr.KindConflict,
	"transient":      apperr.KindTransient,
}

var kindByStatus = map[int]apperr.Kind{
	http.StatusBadRequest:      apperr.KindValidation,
	http.StatusUnauthorized:    apperr.KindAuthentication,
	http.StatusForbidden:       apperr.KindAuthorization,
	http.StatusNotFound:        apperr.KindNotFound,
	http.StatusConflict:        apperr.KindConflict,
	http.StatusTooManyRequests: apperr.KindTransient,
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// decodeError turns a non-2xx response into an *apperr.Error.
func decodeError(status int, body []byte) *apperr.Error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	kind, ok := kindByName[eb.Error]
	if !ok {
		if kind, ok = kindByStatus[status]; !ok {
			kind = apperr.KindTransient
		}
	}
	msg := eb.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	e := &apperr.Error{Kind: kind, Message: msg}
	switch kind {
	case apperr.KindNotFound:
		e.Err = backend.ErrNotFound
	case apperr.KindAuthentication:
		e.Err = backend.ErrInvalidCredentials
	case apperr.KindAuthorization:
		e.Err = backend.ErrForbidden
	case apperr.KindTransient:
		e.Err = fmt.Errorf("%w: status %d", backend.ErrUnavailable, status)
	}
	return e
}

// call sends in as JSON and decodes a 2xx response into out. When authed is
// set the access token is attached, and an expired token is rotated once.
func (c *Client) call(ctx context.Context, method, path string, in, out any, authed bool) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return apperr.Validation("invalid request")
		}
	}
	build := func() (*http.Request, error) {
		var r io.Reader
		if body != nil {
			r = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, r)
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	}
	return c.send(ctx, build, out, authed)
}

func (c *Client) send(ctx context.Context, build func() (*http.Request, error), out any, authed bool) error {
	status, raw, err := c.roundTrip(build, authed)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized && authed && c.refresh(ctx) {
		if status, raw, err = c.roundTrip(build, authed); err != nil {
			return err
		}
	}
	if status < 200 || status > 299 {
		return decodeError(status, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Transient(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) roundTrip(build func() (*http.Request, error), authed bool) (int, []byte, error) {
	req, err := build()
	if err != nil {
		return 0, nil, apperr.Transient(err)
	}
	if authed {
		tok := c.session().Tokens.Access
		if tok == "" {
			return 0, nil, apperr.Authentication("sign in required", backend.ErrInvalidCredentials)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, apperr.Transient(fmt.Errorf("%w: %v", backend.ErrUnavailable, err))
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponse))
	if err != nil {
		return 0, nil, apperr.Transient(err)
	}
	return res.StatusCode, raw, nil
}

func (c *Client) session() backend.Account {
	if c.Session == nil {
		return backend.Account{}
	}
	return c.Session()
}

// refresh rotates the refresh token. It reports whether a retry makes sense.
func (c *Client) refresh(ctx context.Context) bool {
	rt := c.session().Tokens.Refresh
	if rt == "" {
		return false
	}
	var acct backend.Account
	err := c.call(ctx, http.MethodPost, "/v1/auth/refresh", jsonMap{"refresh_token": rt}, &acct, false)
	if err != nil || acct.Tokens.Access == "" {
		return false
	}
	if c.OnRefresh != nil {
		c.OnRefresh(acct)
	}
	return true
}

type jsonMap = map[string]any

// items is the list envelope used by every collection endpoint.
type items[T any] struct {
	Items []T `json:"items"`
}

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return errors.Is(err, backend.ErrNotFound) }
