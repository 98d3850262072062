// Package sip defines the capabilities the transport layer needs from a SIP
// protocol stack implementation.
//
// # Capabilities
//
// A StackFactory turns a monitor address into a Stack. A Stack creates
// ListeningPoints (address, port, transport kind) and Providers bound to them.
// A Provider dispatches every inbound message to exactly one Observer.
//
//	stack, err := factory.CreateStack("192.0.2.1", sip.LogSetting(false))
//	lp, err := stack.CreateListeningPoint("192.0.2.1", 5060, sip.Datagram)
//	provider, err := stack.CreateProvider(lp)
//	err = provider.AddObserver(observer)
//
// # Errors
//
// Failures are reported with the sentinel errors in this package so callers can
// classify them with errors.Is regardless of how an implementation wraps them:
//   - ErrAddressUnavailable: the stack cannot be created for an address
//   - ErrTransportNotSupported, ErrTooManyListeners, ErrObjectInUse,
//     ErrInvalidArgument: listening point or provider creation failed
//
// The default implementation over the host network lives in lib/sip/netstack.
package sip
