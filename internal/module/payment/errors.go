package payment

import "errors"

var (
	ErrMissingParty  = errors.New("party is required")
	ErrInvalidAmount = errors.New("amount must be positive with at most 2 decimal places")
	ErrInvalidMethod = errors.New("method must be cash or bank")
)
