package transport

import (
	"errors"
	"fmt"

	"github.com/go-i2p/go-siplayer/lib/sip"
)

var (
	// ErrNoEndpoints is returned when bootstrap registered no provider at all
	ErrNoEndpoints = errors.New("no SIP transport endpoint could be created")

	// ErrNoUnambiguousLocalAddress is returned when the local address cannot be
	// derived because zero or several datagram providers are registered
	ErrNoUnambiguousLocalAddress = errors.New("no unambiguous local address")
)

// Bind stages reported in BindError.Stage.
const (
	StageStack          = "stack"
	StageListeningPoint = "listening_point"
	StageProvider       = "provider"
	StageObserver       = "observer"
)

// BindError describes one failed unit of bootstrap work. Kind is nil when the
// stack for the address could not be created.
type BindError struct {
	Address string
	Port    int
	Kind    *sip.TransportKind
	Stage   string
	Err     error
}

func (e *BindError) Error() string {
	if e.Kind == nil {
		return fmt.Sprintf("sip stack for %s: %v", e.Address, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", endpointURI(*e.Kind, e.Address, e.Port), e.Stage, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}
