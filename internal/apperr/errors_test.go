package apperr

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/iliyamo/student-stay/internal/backend"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want Kind
	}{
		{"credentials", fmt.Errorf("login: %w", backend.ErrInvalidCredentials), KindAuthentication},
		{"otp", backend.ErrOtpInvalid, KindAuthentication},
		{"otp session", backend.ErrOtpSession, KindAuthentication},
		{"forbidden", backend.ErrForbidden, KindAuthorization},
		{"not found", backend.ErrNotFound, KindNotFound},
		{"not pending", backend.ErrNotPending, KindNotFound},
		{"email exists", backend.ErrEmailExists, KindConflict},
		{"unknown", errors.New("connection reset"), KindTransient},
		{"already normalized", Validation("bad"), KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(Normalize(tc.in)); got != tc.want {
				t.Fatalf("kind = %v, want %v", got, tc.want)
			}
		})
	}
	if Normalize(nil) != nil {
		t.Fatal("Normalize(nil) should be nil")
	}
}

func TestBoardReplacesAndDismisses(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	b := NewBoard(func() time.Time { return now })

	b.ShowError(backend.ErrInvalidCredentials)
	b.ShowError(backend.ErrNotFound)
	n, ok := b.Current()
	if !ok || n.Kind != KindNotFound {
		t.Fatalf("expected latest error to replace the first, got %+v", n)
	}

	now = now.Add(time.Hour)
	if _, ok := b.Current(); !ok {
		t.Fatal("error notices must persist")
	}

	b.ShowSuccess("saved")
	now = now.Add(SuccessTTL - time.Millisecond)
	if _, ok := b.Current(); !ok {
		t.Fatal("success should still be visible before the TTL")
	}
	now = now.Add(time.Millisecond)
	if _, ok := b.Current(); ok {
		t.Fatal("success should auto-dismiss after the TTL")
	}
}
