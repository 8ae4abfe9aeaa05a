package bill

import "errors"

var (
	ErrMissingSupplier = errors.New("supplier is required")
	ErrNoItems         = errors.New("bill must have at least one item")
	ErrZeroTotal       = errors.New("bill total must be positive")
)
