package otp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/student-stay/internal/backend"
)

const phone = "+919876543210"

func newStore(t *testing.T, maxAttempts int) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, 5*time.Minute, 15*time.Minute, maxAttempts), mr
}

// wrong returns a code of the right length that differs from code.
func wrong(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestIssueSupersedesEarlierHandle(t *testing.T) {
	s, _ := newStore(t, 5)
	ctx := context.Background()

	first, firstCode, err := s.Issue(ctx, phone)
	if err != nil {
		t.Fatal(err)
	}
	second, secondCode, err := s.Issue(ctx, phone)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Verify(ctx, first, firstCode); !errors.Is(err, backend.ErrOtpSession) {
		t.Fatalf("superseded handle err = %v", err)
	}
	got, err := s.Verify(ctx, second, secondCode)
	if err != nil || got != phone {
		t.Fatalf("Verify = %q, %v", got, err)
	}
}

func TestCodeIsSingleUse(t *testing.T) {
	s, _ := newStore(t, 5)
	ctx := context.Background()
	h, code, _ := s.Issue(ctx, phone)

	if _, err := s.Verify(ctx, h, code); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Verify(ctx, h, code); !errors.Is(err, backend.ErrOtpSession) {
		t.Fatalf("second use err = %v", err)
	}
}

func TestAttemptCap(t *testing.T) {
	s, _ := newStore(t, 3)
	ctx := context.Background()
	h, code, _ := s.Issue(ctx, phone)

	for i := 0; i < 3; i++ {
		if _, err := s.Verify(ctx, h, wrong(code)); !errors.Is(err, backend.ErrOtpInvalid) {
			t.Fatalf("attempt %d err = %v", i+1, err)
		}
	}
	if _, err := s.Verify(ctx, h, code); !errors.Is(err, backend.ErrOtpSession) {
		t.Fatalf("correct code after cap err = %v", err)
	}
}

func TestConcurrentWrongGuessesAreEachCounted(t *testing.T) {
	const maxAttempts, guesses = 5, 20
	s, _ := newStore(t, maxAttempts)
	ctx := context.Background()
	h, code, _ := s.Issue(ctx, phone)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		invalid int
	)
	for i := 0; i < guesses; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Verify(ctx, h, wrong(code))
			switch {
			case errors.Is(err, backend.ErrOtpInvalid):
				mu.Lock()
				invalid++
				mu.Unlock()
			case errors.Is(err, backend.ErrOtpSession):
			default:
				t.Errorf("err = %v", err)
			}
		}()
	}
	wg.Wait()

	if invalid != maxAttempts {
		t.Fatalf("codes compared = %d, want %d", invalid, maxAttempts)
	}
	if _, err := s.Verify(ctx, h, code); !errors.Is(err, backend.ErrOtpSession) {
		t.Fatalf("correct code after exhaustion err = %v", err)
	}
}

func TestExpiredCode(t *testing.T) {
	s, mr := newStore(t, 5)
	ctx := context.Background()
	h, code, _ := s.Issue(ctx, phone)

	mr.FastForward(6 * time.Minute)
	if _, err := s.Verify(ctx, h, code); !errors.Is(err, backend.ErrOtpSession) {
		t.Fatalf("err = %v", err)
	}
}

func TestVerificationTokenSingleUse(t *testing.T) {
	s, _ := newStore(t, 5)
	ctx := context.Background()

	token, err := s.IssueVerification(ctx, phone)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.ConsumeVerification(ctx, token)
	if err != nil || got != phone {
		t.Fatalf("ConsumeVerification = %q, %v", got, err)
	}
	if _, err := s.ConsumeVerification(ctx, token); !errors.Is(err, backend.ErrOtpSession) {
		t.Fatalf("reuse err = %v", err)
	}
	if _, err := s.ConsumeVerification(ctx, ""); !errors.Is(err, backend.ErrOtpSession) {
		t.Fatalf("empty token err = %v", err)
	}
}
