// Package transport brings up the SIP transports of the process.
//
// # Bootstrap
//
// A Bootstrapper creates one sip.Stack per monitor address and, on each stack,
// one listening point and provider per transport kind (TCP, then UDP). Every
// provider is wired to the same sip.Observer. Each (address, kind) pair is an
// independent unit: a failure is logged as a *BindError and the run moves on.
// Objects created for a failed unit are released again, and a stack that ends
// up with no endpoint is stopped.
//
// The run is fatal only when no endpoint at all was registered; callers get
// false from Bootstrap (or !Result.OK()) and surface ErrNoEndpoints.
//
// # Registry
//
// Registry maps (address, kind) to the provider bound there. LookupSingleton
// (and TCPSingleton, UDPSingleton) answers the common single-address case: it
// returns the provider only when exactly one exists for the kind.
// ResolveLocalAddress derives the local SIP address from the single UDP
// provider when none is configured.
//
// # Thread Safety
//
// Registry is safe for concurrent use. A Bootstrapper may bind addresses in
// parallel (WithParallel); registry contents are identical to a sequential run.
//
// # Usage Example
//
//	b := transport.NewBootstrapper(factory, dispatcher, transport.WithMetrics(m))
//	res := b.Run([]string{"10.0.0.1", "10.0.0.2"}, 5060, false)
//	if !res.OK() {
//		return transport.ErrNoEndpoints
//	}
//	udp := res.Registry.UDPProvider("10.0.0.1")
package transport
