package model

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationMessage turns the first validator failure in err into a short
// sentence fit for users.
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid input"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required", "required_with":
		return field + " is required"
	case "email":
		return "enter a valid email address"
	case "e164":
		return "enter a valid phone number"
	case "oneof":
		return field + " must be one of: " + fe.Param()
	case "min":
		return field + " must be at least " + fe.Param() + " characters"
	case "max":
		return field + " is too long"
	case "gt":
		return field + " must be greater than " + fe.Param()
	case "datetime":
		return field + " must be a date like 2006-01-02"
	}
	return field + " is invalid"
}
