package repository

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrStatusMismatch    = errors.New("status mismatch")
	ErrLimitReached      = errors.New("limit reached")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadySet        = errors.New("already set")

	// ErrUnavailable means the store could not be reached or did not answer in time.
	ErrUnavailable = errors.New("store unavailable")
)
