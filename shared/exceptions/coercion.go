package exceptions

import "fmt"

type CoercionError struct {
	error
	Row    int
	Column string
	Value  any
}

func NewCoercionError(err error, row int, column string, value any) *CoercionError {
	return &CoercionError{error: err, Row: row, Column: column, Value: value}
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("Coercion Error: row %d column %s value %#v: %v", e.Row, e.Column, e.Value, e.error)
}

func (e *CoercionError) Unwrap() error {
	return e.error
}
