package exceptions

import "fmt"

type SchemaMismatchError struct {
	error
	Destination string
}

func NewSchemaMismatchError(err error, destination string) *SchemaMismatchError {
	return &SchemaMismatchError{error: err, Destination: destination}
}

func (e *SchemaMismatchError) Error() string {
	if e.Destination == "" {
		return "Schema Mismatch: " + e.error.Error()
	}
	return fmt.Sprintf("Schema Mismatch for %s: %v", e.Destination, e.error)
}

func (e *SchemaMismatchError) Unwrap() error {
	return e.error
}
