package coalesce

import "errors"

var (
	// ErrLoad wraps a failed bulk fetch. The store keeps its previous rows.
	ErrLoad = errors.New("load failed")

	// ErrUnknownID is returned when toggling an id the store does not hold.
	ErrUnknownID = errors.New("unknown id")

	// ErrInFlight is returned when toggling an id whose remote toggle has not
	// returned yet. The request is dropped; the user may retry once it lands.
	ErrInFlight = errors.New("confirmation in flight")

	// ErrBusy is returned by Load while a flush is scheduled or in flight.
	ErrBusy = errors.New("flush in progress")

	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("coordinator closed")
)
