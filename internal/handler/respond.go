// Package handler implements the HTTP API. Every failure is answered with
// {"error": <kind>, "message": <text>} and the status of its kind.
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/student-stay/internal/apperr"
	"github.com/iliyamo/student-stay/internal/approval"
	"github.com/iliyamo/student-stay/internal/middleware"
	"github.com/iliyamo/student-stay/internal/model"
)

// requestTimeout bounds the backend work of a single request.
const requestTimeout = 5 * time.Second

var kindStatus = map[apperr.Kind]int{
	apperr.KindValidation:     http.StatusBadRequest,
	apperr.KindAuthentication: http.StatusUnauthorized,
	apperr.KindAuthorization:  http.StatusForbidden,
	apperr.KindNotFound:       http.StatusNotFound,
	apperr.KindConflict:       http.StatusConflict,
	apperr.KindTransient:      http.StatusServiceUnavailable,
}

// StatusOf returns the HTTP status for an error kind.
func StatusOf(k apperr.Kind) int {
	if s, ok := kindStatus[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// fail writes err as a normalized error body.
func fail(c echo.Context, err error) error {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Normalize(err).(*apperr.Error)
	}
	if ae.Kind == apperr.KindTransient {
		log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
	}
	return c.JSON(StatusOf(ae.Kind), echo.Map{"error": ae.Kind.String(), "message": ae.Message})
}

func badRequest(c echo.Context, msg string) error {
	return fail(c, apperr.Validation(msg))
}

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

func actor(c echo.Context) approval.Actor {
	return approval.Actor{ID: middleware.AccountID(c), IsAdmin: middleware.IsAdmin(c)}
}

func intParam(c echo.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	return n, err == nil && n > 0
}

// bindValid binds the body into dst and runs the struct validator.
func bindValid(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Validation("invalid body")
	}
	if err := model.Validate.Struct(dst); err != nil {
		return apperr.Validation(model.ValidationMessage(err))
	}
	return nil
}

// intQuery parses a positive integer query value and returns it in canonical
// form for use as a record predicate.
func intQuery(v string) (string, bool) {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return "", false
	}
	return strconv.Itoa(n), true
}
