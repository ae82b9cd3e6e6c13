package utils

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", "acc-1", true, 5)
	if err != nil {
		t.Fatal(err)
	}
	c, err := ParseAccessToken("s3cret", tok.Token)
	if err != nil {
		t.Fatal(err)
	}
	if c.Subject != "acc-1" || !c.Admin || c.Role != RoleAdmin {
		t.Fatalf("claims = %+v", c)
	}
	if _, err := ParseAccessToken("other", tok.Token); err == nil {
		t.Fatal("token accepted with the wrong secret")
	}
}

func TestExpiredAccessToken(t *testing.T) {
	tok, err := NewAccessToken("s3cret", "acc-1", false, -1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseAccessToken("s3cret", tok.Token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestRandomDigits(t *testing.T) {
	for i := 0; i < 50; i++ {
		s, err := RandomDigits(6)
		if err != nil {
			t.Fatal(err)
		}
		if len(s) != 6 || strings.Trim(s, "0123456789") != "" {
			t.Fatalf("RandomDigits(6) = %q", s)
		}
	}
}

func TestPasswordHash(t *testing.T) {
	h, err := HashPassword("hunter22", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if !VerifyPassword(h, "hunter22") || VerifyPassword(h, "hunter23") {
		t.Fatal("password verification mismatch")
	}
}

func TestHashTokenStable(t *testing.T) {
	if HashToken("abc") != HashToken("abc") || len(HashToken("abc")) != 64 {
		t.Fatal("HashToken must be a stable hex sha256")
	}
}
