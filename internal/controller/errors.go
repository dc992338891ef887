package controller

import "errors"

var (
	// ErrValidation marks bad controller input: unknown user, malformed payload.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks an unknown symbol, position id, or adjustment id.
	ErrNotFound = errors.New("not found")
)
