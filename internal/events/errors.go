package events

import "errors"

var (
	// ErrUnsigned is returned when the factory has no secret key to sign with
	ErrUnsigned = errors.New("no secret key available to sign event")
	// ErrInvalidPayload is returned when a payload is missing a required reference
	ErrInvalidPayload = errors.New("invalid event payload")
)
