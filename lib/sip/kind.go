package sip

import (
	"strings"

	"github.com/samber/oops"
)

// TransportKind selects the delivery model of a listening point.
type TransportKind int

const (
	// Stream is connection-oriented delivery (TCP).
	Stream TransportKind = iota
	// Datagram is connectionless delivery (UDP).
	Datagram
)

// TransportKinds returns every kind in the order endpoints are created.
func TransportKinds() []TransportKind {
	return []TransportKind{Stream, Datagram}
}

// String returns the SIP transport token for the kind.
func (k TransportKind) String() string {
	switch k {
	case Stream:
		return "TCP"
	case Datagram:
		return "UDP"
	default:
		return "UNKNOWN"
	}
}

// Network returns the name used by the net package for the kind.
func (k TransportKind) Network() string {
	return strings.ToLower(k.String())
}

// Valid reports whether k is one of the known kinds.
func (k TransportKind) Valid() bool {
	return k == Stream || k == Datagram
}

// ParseTransportKind maps a transport token ("tcp", "UDP", ...) to its kind.
func ParseTransportKind(s string) (TransportKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TCP":
		return Stream, nil
	case "UDP":
		return Datagram, nil
	}
	return 0, oops.Wrapf(ErrTransportNotSupported, "transport %q", s)
}
