package authflow

import (
	"strings"

	"github.com/iliyamo/student-stay/internal/apperr"
	"github.com/iliyamo/student-stay/internal/model"
)

// DefaultCountryCode is prefixed to numbers entered without one.
const DefaultCountryCode = "+91"

// nationalDigits is the length of a number under DefaultCountryCode.
const nationalDigits = 10

// NormalizePhone turns user input into E.164. Spaces, dashes, dots and
// parentheses are dropped; a leading 00 becomes +; a bare national number
// (optionally with a trunk 0) gets countryCode.
func NormalizePhone(input, countryCode string) (string, error) {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '(', ')', '\t':
			return -1
		}
		return r
	}, strings.TrimSpace(input))

	switch {
	case s == "":
		return "", apperr.Validation("phone number is required")
	case strings.HasPrefix(s, "+"):
	case strings.HasPrefix(s, "00"):
		s = "+" + s[2:]
	default:
		s = strings.TrimPrefix(s, "0")
		s = countryCode + s
	}

	if err := model.Validate.Var(s, "e164"); err != nil {
		return "", apperr.Validation("enter a valid phone number")
	}
	if strings.HasPrefix(s, DefaultCountryCode) && len(s)-len(DefaultCountryCode) != nationalDigits {
		return "", apperr.Validation("enter a valid 10-digit mobile number")
	}
	return s, nil
}
