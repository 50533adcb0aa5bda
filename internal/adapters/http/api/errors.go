package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
)

// newKind tags a sentinel with the failing operation.
func newKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// wrapKind tags a sentinel with the failing operation and the cause.
func wrapKind(op string, kind, cause error) error {
	return fmt.Errorf("%s: %w: %v", op, kind, cause)
}
