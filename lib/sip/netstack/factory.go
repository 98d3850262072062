// Package netstack is the default sip.StackFactory. Listening points are plain
// TCP listeners and UDP sockets of the host network; providers frame inbound
// messages and hand them to the observer without interpreting them.
package netstack

import (
	"net"

	"github.com/go-i2p/go-siplayer/lib/metrics"
	"github.com/go-i2p/go-siplayer/lib/sip"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"golang.org/x/time/rate"
)

var log = logger.GetGoI2PLogger()

// Compile-time check that Factory implements sip.StackFactory
var _ sip.StackFactory = (*Factory)(nil)

// Option configures a Factory.
type Option func(*Factory)

// WithInterfaceAddrs replaces the lookup of local interface addresses used to
// decide whether an address can be bound.
func WithInterfaceAddrs(fn func() ([]net.Addr, error)) Option {
	return func(f *Factory) {
		if fn != nil {
			f.interfaceAddrs = fn
		}
	}
}

// WithInboundRate limits inbound messages per provider to limit per second
// with the given burst. A zero limit disables limiting.
func WithInboundRate(limit float64, burst int) Option {
	return func(f *Factory) {
		f.inboundRate = rate.Limit(limit)
		f.inboundBurst = burst
	}
}

// WithMetrics records inbound messages on rec.
func WithMetrics(rec metrics.Recorder) Option {
	return func(f *Factory) {
		if rec != nil {
			f.metrics = rec
		}
	}
}

// Factory creates stacks bound to local interface addresses.
type Factory struct {
	interfaceAddrs func() ([]net.Addr, error)
	inboundRate    rate.Limit
	inboundBurst   int
	metrics        metrics.Recorder
}

// NewFactory creates a Factory.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		interfaceAddrs: net.InterfaceAddrs,
		metrics:        metrics.Nop{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStack creates a stack for address. The address must be an IP literal
// that is either unspecified or assigned to a local interface.
func (f *Factory) CreateStack(address string, logSetting sip.LogSetting) (sip.Stack, error) {
	ip := net.ParseIP(address)
	if ip == nil {
		return nil, oops.
			In("netstack").
			With("address", address).
			Wrapf(sip.ErrAddressUnavailable, "%q is not an IP address", address)
	}
	if !ip.IsUnspecified() {
		local, err := f.isLocal(ip)
		if err != nil {
			return nil, oops.
				In("netstack").
				With("address", address).
				Wrapf(sip.ErrAddressUnavailable, "listing interface addresses: %v", err)
		}
		if !local {
			return nil, oops.
				In("netstack").
				With("address", address).
				Wrapf(sip.ErrAddressUnavailable, "%s is not assigned to a local interface", address)
		}
	}

	log.WithFields(logger.Fields{
		"at":          "(Factory) CreateStack",
		"reason":      "stack_created",
		"address":     address,
		"log_setting": bool(logSetting),
	}).Debug("created SIP stack")
	return newStack(f, address, logSetting), nil
}

func (f *Factory) isLocal(ip net.IP) (bool, error) {
	addrs, err := f.interfaceAddrs()
	if err != nil {
		return false, err
	}
	for _, a := range addrs {
		switch v := a.(type) {
		case *net.IPNet:
			if v.IP.Equal(ip) {
				return true, nil
			}
		case *net.IPAddr:
			if v.IP.Equal(ip) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *Factory) newLimiter() *rate.Limiter {
	if f.inboundRate <= 0 {
		return nil
	}
	burst := f.inboundBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(f.inboundRate, burst)
}
