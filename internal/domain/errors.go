package domain

import "errors"

var (
	// ErrNoData means the meter has no reading for the requested window.
	ErrNoData = errors.New("no data")
	// ErrUpstreamUnavailable means the reading source or registry could not be reached.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrMalformedQuery is returned for unparseable query parameters.
	ErrMalformedQuery = errors.New("malformed query")
	// ErrPersistenceFailure means a durable write failed; the working set was kept.
	ErrPersistenceFailure = errors.New("persistence failure")

	ErrOutOfOrder      = errors.New("reading out of order")
	ErrInvalidReading  = errors.New("invalid reading")
	ErrStaleWorkingSet = errors.New("working set belongs to an earlier day")
	ErrNotArchived     = errors.New("working set has unarchived readings")
	ErrBusy            = errors.New("server is busy")
)
