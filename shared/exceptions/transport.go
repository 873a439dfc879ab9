package exceptions

import "fmt"

// TransportError is raised when a credential exchange or any Google API call fails.
// It is always fatal for the run.
type TransportError struct {
	error
	Operation string
	Resource  string
}

func NewTransportError(err error, operation string, resource string) *TransportError {
	return &TransportError{error: err, Operation: operation, Resource: resource}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("Transport Error: %s %s: %v", e.Operation, e.Resource, e.error)
}

func (e *TransportError) Unwrap() error {
	return e.error
}
