package invoice

import "errors"

var (
	ErrMissingCustomer = errors.New("customer is required")
	ErrNoItems         = errors.New("invoice must have at least one item")
	ErrZeroTotal       = errors.New("invoice total must be positive")
)
