package sip

import (
	"net"
	"time"
)

// LogSetting enables per-message tracing inside a stack.
type LogSetting bool

// StackFactory creates one protocol stack per monitor address.
// CreateStack fails with ErrAddressUnavailable when the address cannot be used.
type StackFactory interface {
	CreateStack(address string, logSetting LogSetting) (Stack, error)
}

// Stack owns the listening points and providers created for one address.
type Stack interface {
	// Address is the monitor address the stack was created for.
	Address() string
	// CreateListeningPoint binds (address, port, kind).
	CreateListeningPoint(address string, port int, kind TransportKind) (ListeningPoint, error)
	// CreateProvider creates the provider serving lp.
	CreateProvider(lp ListeningPoint) (Provider, error)
	// DeleteProvider detaches and closes a provider created by this stack.
	DeleteProvider(p Provider) error
	// DeleteListeningPoint unbinds a listening point created by this stack.
	DeleteListeningPoint(lp ListeningPoint) error
	// Stop releases every listening point and provider of the stack.
	Stop() error
}

// ListeningPoint is a bound (address, port, transport kind) triple.
type ListeningPoint interface {
	IPAddress() string
	Port() int
	Transport() TransportKind
	// Addr is the address the socket is actually bound to.
	Addr() net.Addr
}

// Provider sends and receives SIP messages over one listening point and
// hands every inbound message to its observer.
type Provider interface {
	ListeningPoint() ListeningPoint
	// AddObserver attaches the single observer; a second call fails with ErrTooManyListeners.
	AddObserver(o Observer) error
	// SetDialogErrorsAutomaticallyHandled lets the stack answer dialog errors itself.
	SetDialogErrorsAutomaticallyHandled()
	// Send writes a raw message to the given remote address.
	Send(msg []byte, to net.Addr) error
}

// Observer consumes inbound protocol events.
type Observer interface {
	ProcessMessage(msg *Message)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(msg *Message)

// ProcessMessage calls f(msg).
func (f ObserverFunc) ProcessMessage(msg *Message) {
	f(msg)
}

// Message is one inbound SIP message as received from the wire.
type Message struct {
	// ID correlates log lines for a single message
	ID        string
	Transport TransportKind
	Local     net.Addr
	Remote    net.Addr
	Data      []byte
	Received  time.Time
	// Provider the message arrived on, used to send replies
	Provider Provider
}
