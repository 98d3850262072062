package sip

import (
	"errors"

	"github.com/samber/oops"
)

// Sentinels are plain errors so errors.Is matches them through oops wrapping.
var (
	// ErrAddressUnavailable is returned when a stack cannot be created for an address
	ErrAddressUnavailable = errors.New("address unavailable for SIP stack")

	// ErrTransportNotSupported is returned for an unknown transport kind
	ErrTransportNotSupported = errors.New("transport not supported")
	// ErrTooManyListeners is returned when a listener slot is already taken
	ErrTooManyListeners = errors.New("too many listeners")
	// ErrObjectInUse is returned when an address/port or listening point is already used
	ErrObjectInUse = errors.New("object in use")
	// ErrInvalidArgument is returned for arguments a stack cannot act on
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrProviderClosed is returned by Send after the owning stack stopped
	ErrProviderClosed = errors.New("SIP provider is closed")
)

// WrapStackError attaches the failing operation to a stack error.
func WrapStackError(err error, operation string) error {
	return oops.
		In("sip").
		Wrapf(err, "SIP %s failed", operation)
}
