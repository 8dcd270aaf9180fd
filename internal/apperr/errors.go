// Package apperr holds the error kinds shared by every service. Callers wrap
// them with context and match with errors.Is.
package apperr

import "errors"

var (
	// ErrNotFound: a referenced order, inventory or preference does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a unique field (name, sku, customer id) is already taken.
	ErrConflict = errors.New("conflict")
	// ErrAlreadyProcessed: a saga message for this order was handled before.
	ErrAlreadyProcessed = errors.New("already processed")
	// ErrValidation: input failed validation or stock is insufficient.
	ErrValidation = errors.New("validation failed")
	// ErrInternal: unexpected fault during a saga step.
	ErrInternal = errors.New("internal failure")
)
