package domain

import "errors"

var (
	// ErrSchema reports an expected column, category or field that is absent
	// or malformed in the input.
	ErrSchema = errors.New("schema mismatch")

	// ErrAlignment reports operands whose dates or column sets differ.
	ErrAlignment = errors.New("alignment mismatch")

	// ErrUnknownRegion reports a region name that matches no population row.
	ErrUnknownRegion = errors.New("unknown region")

	// ErrUnknownAgeBand reports an age or band label outside the partition.
	ErrUnknownAgeBand = errors.New("unknown age band")

	// ErrEmptySeries reports an operation that needs at least one row.
	ErrEmptySeries = errors.New("empty series")

	// ErrInvalidParameter reports a caller-supplied parameter out of range.
	ErrInvalidParameter = errors.New("invalid parameter")
)
