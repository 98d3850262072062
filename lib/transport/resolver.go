package transport

import (
	"github.com/go-i2p/go-siplayer/lib/sip"
	"github.com/go-i2p/logger"
)

// ResolveLocalAddress returns explicit unchanged when it is set. Otherwise it
// returns the address of the only datagram provider, failing with
// ErrNoUnambiguousLocalAddress when zero or several are registered.
func (r *Registry) ResolveLocalAddress(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	p := r.LookupSingleton(sip.Datagram)
	if p == nil {
		log.WithFields(logger.Fields{
			"at":          "(Registry) ResolveLocalAddress",
			"reason":      "no_single_datagram_provider",
			"udp_entries": r.Len(sip.Datagram),
		}).Warn("cannot derive local address")
		return "", ErrNoUnambiguousLocalAddress
	}
	return p.ListeningPoint().IPAddress(), nil
}
