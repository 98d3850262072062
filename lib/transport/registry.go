package transport

import (
	"sort"
	"sync"

	"github.com/go-i2p/go-siplayer/lib/sip"
	"github.com/go-i2p/logger"
)

// Compile-time check that Registry satisfies Lookup
var _ Lookup = (*Registry)(nil)

// Lookup is the read side of the registry handed to request-handling code.
type Lookup interface {
	Lookup(address string, kind sip.TransportKind) sip.Provider
	LookupSingleton(kind sip.TransportKind) sip.Provider
	ResolveLocalAddress(explicit string) (string, error)
}

// Registry maps monitor addresses to providers, one map per transport kind.
// A present key always denotes a provider with its observer attached; failed
// and never-attempted binds are both simply absent.
type Registry struct {
	mu        sync.RWMutex
	providers map[sip.TransportKind]map[string]sip.Provider
}

// NewRegistry creates an empty registry with a map for every transport kind.
func NewRegistry() *Registry {
	r := &Registry{
		providers: make(map[sip.TransportKind]map[string]sip.Provider),
	}
	for _, kind := range sip.TransportKinds() {
		r.providers[kind] = make(map[string]sip.Provider)
	}
	return r
}

// Register inserts or overwrites the provider for (address, kind).
func (r *Registry) Register(address string, kind sip.TransportKind, p sip.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.providers[kind]
	if !ok {
		m = make(map[string]sip.Provider)
		r.providers[kind] = m
	}
	if _, exists := m[address]; exists {
		log.WithFields(logger.Fields{
			"at":        "(Registry) Register",
			"reason":    "overwrite",
			"address":   address,
			"transport": kind.String(),
		}).Warn("replacing registered provider")
	}
	m[address] = p
}

// Lookup returns the provider bound to (address, kind), or nil when the
// address is empty or nothing is registered for it.
func (r *Registry) Lookup(address string, kind sip.TransportKind) sip.Provider {
	if address == "" {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[kind][address]
}

// LookupSingleton returns the provider for kind only when exactly one is
// registered. Zero and several registrations both yield nil: with more than
// one the intended endpoint cannot be inferred, and none is picked.
func (r *Registry) LookupSingleton(kind sip.TransportKind) sip.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.providers[kind]
	if len(m) != 1 {
		return nil
	}
	for _, p := range m {
		return p
	}
	return nil
}

// TCPProvider returns the stream provider bound to ip. An empty ip yields
// nil, like Lookup; use TCPSingleton for the single-address case.
func (r *Registry) TCPProvider(ip string) sip.Provider {
	return r.Lookup(ip, sip.Stream)
}

// UDPProvider returns the datagram provider bound to ip, or nil.
func (r *Registry) UDPProvider(ip string) sip.Provider {
	return r.Lookup(ip, sip.Datagram)
}

// TCPSingleton returns the stream provider when exactly one is registered.
func (r *Registry) TCPSingleton() sip.Provider {
	return r.LookupSingleton(sip.Stream)
}

// UDPSingleton returns the datagram provider when exactly one is registered.
func (r *Registry) UDPSingleton() sip.Provider {
	return r.LookupSingleton(sip.Datagram)
}

// Len returns the number of providers registered for kind.
func (r *Registry) Len(kind sip.TransportKind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers[kind])
}

// Total returns the number of providers across all kinds.
func (r *Registry) Total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, m := range r.providers {
		n += len(m)
	}
	return n
}

// Addresses returns the sorted addresses registered for kind.
func (r *Registry) Addresses(kind sip.TransportKind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addrs := make([]string, 0, len(r.providers[kind]))
	for addr := range r.providers[kind] {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}
