package ledger

import "errors"

var (
	// ErrInvalidRecordOrder means the daily sequence is not strictly increasing by date.
	ErrInvalidRecordOrder = errors.New("records are not in strictly increasing date order")
	// ErrNegativeQuantity rejects negative input, output or opening quantities.
	ErrNegativeQuantity = errors.New("quantity cannot be negative")
	// ErrNegativePrice rejects negative unit prices.
	ErrNegativePrice = errors.New("unit price cannot be negative")
	// ErrInvalidPeriod is returned for out of range weeks, months or inverted ranges.
	ErrInvalidPeriod = errors.New("invalid period")
)
