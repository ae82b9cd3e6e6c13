// Package federated verifies third-party identity tokens.
package federated

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iliyamo/student-stay/internal/backend"
)

// Identity is what a provider vouches for.
type Identity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// Google resolves an OAuth access token through the userinfo endpoint.
type Google struct {
	URL    string
	Client *http.Client
}

func NewGoogle(url string) *Google {
	return &Google{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

type googleUser struct {
	Sub           string `json:"sub"`
	ID            string `json:"id"` // v2 endpoint
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	VerifiedEmail *bool  `json:"verified_email"` // v2 endpoint
	Name          string `json:"name"`
}

// Verify returns the identity behind token. Rejected tokens report
// backend.ErrInvalidCredentials; anything else is an availability problem.
func (g *Google) Verify(ctx context.Context, token string) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.URL, nil)
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := g.Client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: google userinfo: %v", backend.ErrUnavailable, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return Identity{}, backend.ErrInvalidCredentials
	case res.StatusCode != http.StatusOK:
		return Identity{}, fmt.Errorf("%w: google userinfo status %d", backend.ErrUnavailable, res.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<16))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: google userinfo: %v", backend.ErrUnavailable, err)
	}
	var u googleUser
	if err := json.Unmarshal(body, &u); err != nil {
		return Identity{}, fmt.Errorf("%w: google userinfo: %v", backend.ErrUnavailable, err)
	}
	sub := u.Sub
	if sub == "" {
		sub = u.ID
	}
	if sub == "" || u.Email == "" {
		return Identity{}, backend.ErrInvalidCredentials
	}
	verified := (u.EmailVerified != nil && *u.EmailVerified) || (u.VerifiedEmail != nil && *u.VerifiedEmail)
	return Identity{
		Provider:      "google",
		Subject:       sub,
		Email:         strings.ToLower(u.Email),
		EmailVerified: verified,
		Name:          u.Name,
	}, nil
}
