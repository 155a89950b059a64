package catalog

import "errors"

var (
	ErrNotFound  = errors.New("catalog: not found")
	ErrDuplicate = errors.New("catalog: specialist already offers this specialty")

	// ErrInvalidInput marks caller mistakes caught before any storage access.
	ErrInvalidInput = errors.New("catalog: invalid input")
)
