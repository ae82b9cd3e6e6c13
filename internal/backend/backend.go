// Package backend describes the operations the client-side components consume
// from the account/record/file service. The server implements them with local
// repositories; the terminal client implements them over HTTP. Components only
// ever see these interfaces so tests can swap in fakes.
package backend

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by every implementation. Callers compare with
// errors.Is; implementations wrap them with context.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("email already exists")
	ErrPhoneExists        = errors.New("phone already registered")
	ErrOtpSession         = errors.New("no active verification session")
	ErrOtpInvalid         = errors.New("invalid or expired code")
	ErrNotPending         = errors.New("record is not pending")
	ErrForbidden          = errors.New("forbidden")
	ErrUnavailable        = errors.New("service unavailable")
	ErrInvalidInput       = errors.New("invalid input")
)

// Tokens is the credential pair handed out after a successful sign-in.
type Tokens struct {
	Access        string    `json:"access"`
	AccessExpires time.Time `json:"access_expires"`
	Refresh       string    `json:"refresh"`
}

// Account is the identity returned by every authentication operation.
type Account struct {
	ID      string `json:"id"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Name    string `json:"name,omitempty"`
	IsAdmin bool   `json:"is_admin"`
	Tokens  Tokens `json:"tokens"`

	// Verification is set by ConfirmOtp. It proves ownership of Phone and is
	// accepted once by CreateAccount. ID is empty when no account uses the
	// verified phone yet.
	Verification string `json:"verification,omitempty"`
}

// Profile carries the optional fields supplied at sign-up.
type Profile struct {
	Name         string `json:"name"`
	College      string `json:"college,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Verification string `json:"verification"`
}

// AccountRecord is the durable per-account document: profile fields, the
// saved accommodation ids and the administrator flag.
type AccountRecord struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Name      string    `json:"name,omitempty"`
	College   string    `json:"college,omitempty"`
	Provider  string    `json:"provider"`
	IsAdmin   bool      `json:"is_admin"`
	SavedIDs  []int     `json:"saved_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// AccountUpdate is a partial update. SavedAdd and SavedRemove are applied as
// atomic set operations on the saved ids, never as a whole-set overwrite.
type AccountUpdate struct {
	Name        *string `json:"name,omitempty"`
	College     *string `json:"college,omitempty"`
	SavedAdd    []int   `json:"saved_add,omitempty"`
	SavedRemove []int   `json:"saved_remove,omitempty"`
}

// OtpHandle identifies one outstanding verification code request.
type OtpHandle struct {
	ID        string    `json:"handle"`
	Phone     string    `json:"phone"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Accounts groups the identity and account-record operations.
type Accounts interface {
	CreateAccount(ctx context.Context, email, password string, profile Profile) (Account, error)
	Authenticate(ctx context.Context, email, password string) (Account, error)
	AuthenticateFederated(ctx context.Context, provider, token string) (Account, error)
	RequestOtp(ctx context.Context, e164Phone string) (OtpHandle, error)
	ConfirmOtp(ctx context.Context, handle OtpHandle, code string) (Account, error)
	GetAccountRecord(ctx context.Context, accountID string) (AccountRecord, error)
	UpdateAccountRecord(ctx context.Context, accountID string, upd AccountUpdate) error
}

// Fields is an untyped record document as stored by the record service.
// It never travels past the package that decodes it into a typed model.
type Fields map[string]any

// Predicate is an equality filter on one top-level field.
type Predicate struct {
	Field string
	Value string
}

// Order describes the sort applied by ListRecords.
type Order struct {
	Field string
	Desc  bool
}

// Records is the generic collection store.
type Records interface {
	CreateRecord(ctx context.Context, collection string, fields Fields) (string, error)
	GetRecord(ctx context.Context, collection, id string) (Fields, error)
	UpdateRecordStatus(ctx context.Context, collection, id, newStatus string, extra Fields) error
	ListRecords(ctx context.Context, collection string, filters []Predicate, orderBy Order) ([]Fields, error)
}

// Files stores uploaded bytes and returns a public URL.
type Files interface {
	UploadFile(ctx context.Context, data []byte, path string) (string, error)
}

// Collection names used across the service.
const (
	CollectionListings         = "listings"
	CollectionApprovedListings = "approved_listings"
	CollectionInquiries        = "inquiries"
	CollectionBlogPosts        = "blog_posts"
)
