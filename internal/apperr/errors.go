// Package apperr holds the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrInvalidInput    = errors.New("invalid input")
)
