// Package repository holds the MySQL data access for accounts, refresh
// tokens and generic records. Errors are returned as the backend sentinels
// where one applies so the service layer can pass them straight through.
package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/student-stay/internal/backend"
)

// ErrConflict is returned when a write collides with a unique key that has
// no more specific sentinel.
var ErrConflict = errors.New("conflict")

// ErrBadField is returned for record field names that cannot be used in a
// JSON path.
var ErrBadField = fmt.Errorf("%w: invalid field name", backend.ErrInvalidInput)

// duplicateKey reports whether err is MySQL error 1062 and returns the name
// of the violated key.
func duplicateKey(err error) (string, bool) {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		// Duplicate entry 'x' for key 'users.email'
		msg := me.Message
		if i := strings.LastIndex(msg, "key '"); i >= 0 {
			return strings.TrimSuffix(msg[i+5:], "'"), true
		}
		return "", true
	}
	return "", false
}
