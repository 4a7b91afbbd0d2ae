package tips

import "errors"

var (
	// ErrNotFound is returned when a tip identifier matches no stored row.
	ErrNotFound = errors.New("tip not found")

	// ErrNegativeAmount is returned when a tip carries a negative amount.
	ErrNegativeAmount = errors.New("tip amount must not be negative")
)
