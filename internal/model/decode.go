// Package model holds the typed records the application works with. Records
// read from the record service arrive as untyped field bags; the Decode*
// functions are the only place those bags are turned into these types, and a
// missing or malformed field is reported there instead of leaking further.
package model

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/student-stay/internal/backend"
)

// Validate is the shared validator instance. It is safe for concurrent use.
var Validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeError reports a record that could not be turned into its model.
type DecodeError struct {
	Collection string
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s record: %v", e.Collection, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeFields(collection string, f backend.Fields, dst any) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return &DecodeError{Collection: collection, Err: err}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &DecodeError{Collection: collection, Err: err}
	}
	if err := Validate.Struct(dst); err != nil {
		return &DecodeError{Collection: collection, Err: err}
	}
	return nil
}

func toFields(src any) (backend.Fields, error) {
	raw, err := json.Marshal(src)
	if err != nil {
		return nil, err
	}
	var f backend.Fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return f, nil
}
