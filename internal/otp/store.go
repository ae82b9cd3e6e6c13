// Package otp keeps phone verification codes in Redis. Each phone has at
// most one live code: issuing a new one repoints the phone key, which makes
// every earlier handle unusable. Codes are stored as bcrypt hashes. Attempts
// are counted in a separate key that is incremented before any comparison.
package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/student-stay/internal/backend"
	"github.com/iliyamo/student-stay/internal/utils"
)

// CodeLength is the number of digits in a code.
const CodeLength = 6

type session struct {
	Phone     string    `json:"phone"`
	CodeHash  string    `json:"code_hash"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store issues and checks codes.
type Store struct {
	rdb         *redis.Client
	ttl         time.Duration
	verifyTTL   time.Duration
	maxAttempts int
}

func NewStore(rdb *redis.Client, ttl, verifyTTL time.Duration, maxAttempts int) *Store {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Store{rdb: rdb, ttl: ttl, verifyTTL: verifyTTL, maxAttempts: maxAttempts}
}

func handleKey(id string) string    { return "otp:h:" + id }
func phoneKey(phone string) string  { return "otp:phone:" + phone }
func verifyKey(token string) string { return "otp:v:" + token }
func attemptsKey(id string) string  { return "otp:a:" + id }

// countAttempt increments the attempt counter and starts its expiry on the
// first attempt. Returns the new count.
var countAttempt = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Issue creates a code for phone and returns it with its handle. The caller
// delivers the code; the handle goes back to the client.
func (s *Store) Issue(ctx context.Context, phone string) (backend.OtpHandle, string, error) {
	code, err := utils.RandomDigits(CodeLength)
	if err != nil {
		return backend.OtpHandle{}, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.MinCost)
	if err != nil {
		return backend.OtpHandle{}, "", err
	}
	h := backend.OtpHandle{ID: uuid.NewString(), Phone: phone, ExpiresAt: time.Now().UTC().Add(s.ttl)}
	raw, err := json.Marshal(session{Phone: phone, CodeHash: string(hash), ExpiresAt: h.ExpiresAt})
	if err != nil {
		return backend.OtpHandle{}, "", err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, handleKey(h.ID), raw, s.ttl)
		p.Set(ctx, phoneKey(phone), h.ID, s.ttl)
		return nil
	})
	if err != nil {
		return backend.OtpHandle{}, "", fmt.Errorf("otp issue: %w", err)
	}
	return h, code, nil
}

// Verify checks code against handle and returns the verified phone. A
// superseded, expired or exhausted handle reports backend.ErrOtpSession; a
// wrong code reports backend.ErrOtpInvalid and uses up one attempt.
func (s *Store) Verify(ctx context.Context, h backend.OtpHandle, code string) (string, error) {
	raw, err := s.rdb.Get(ctx, handleKey(h.ID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", backend.ErrOtpSession
	}
	if err != nil {
		return "", fmt.Errorf("otp verify: %w", err)
	}
	var sess session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return "", fmt.Errorf("otp verify: %w", err)
	}
	current, err := s.rdb.Get(ctx, phoneKey(sess.Phone)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("otp verify: %w", err)
	}
	if current != h.ID {
		s.rdb.Del(ctx, handleKey(h.ID))
		return "", backend.ErrOtpSession
	}
	n, err := countAttempt.Run(ctx, s.rdb, []string{attemptsKey(h.ID)}, s.ttl.Milliseconds()).Int()
	if err != nil {
		return "", fmt.Errorf("otp verify: %w", err)
	}
	// The counter is left to expire so a late caller cannot restart it.
	if n > s.maxAttempts {
		s.rdb.Del(ctx, handleKey(h.ID), phoneKey(sess.Phone))
		return "", backend.ErrOtpSession
	}

	if bcrypt.CompareHashAndPassword([]byte(sess.CodeHash), []byte(code)) != nil {
		return "", backend.ErrOtpInvalid
	}

	// Consume; a concurrent Verify of the same handle loses here.
	if got, err := s.rdb.GetDel(ctx, phoneKey(sess.Phone)).Result(); err != nil || got != h.ID {
		return "", backend.ErrOtpSession
	}
	s.rdb.Del(ctx, handleKey(h.ID))
	return sess.Phone, nil
}

// IssueVerification returns a single-use token proving phone was verified.
func (s *Store) IssueVerification(ctx context.Context, phone string) (string, error) {
	token, err := utils.RandomHex(24)
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, verifyKey(token), phone, s.verifyTTL).Err(); err != nil {
		return "", fmt.Errorf("otp verification: %w", err)
	}
	return token, nil
}

// ConsumeVerification redeems a token from IssueVerification.
func (s *Store) ConsumeVerification(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", backend.ErrOtpSession
	}
	phone, err := s.rdb.GetDel(ctx, verifyKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", backend.ErrOtpSession
	}
	if err != nil {
		return "", fmt.Errorf("otp verification: %w", err)
	}
	return phone, nil
}
