package transport

import (
	"testing"

	"github.com/go-i2p/go-siplayer/lib/sip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLocalAddressExplicit(t *testing.T) {
	empty := NewRegistry()
	full := NewRegistry()
	full.Register("192.0.2.1", sip.Datagram, newFakeProvider("192.0.2.1", sip.Datagram))

	for _, r := range []*Registry{empty, full} {
		addr, err := r.ResolveLocalAddress("203.0.113.5")
		require.NoError(t, err)
		assert.Equal(t, "203.0.113.5", addr)
	}
}

func TestResolveLocalAddressFromSingleton(t *testing.T) {
	r := NewRegistry()
	r.Register("192.0.2.1", sip.Datagram, newFakeProvider("192.0.2.1", sip.Datagram))
	r.Register("192.0.2.1", sip.Stream, newFakeProvider("192.0.2.1", sip.Stream))
	r.Register("192.0.2.2", sip.Stream, newFakeProvider("192.0.2.2", sip.Stream))

	addr, err := r.ResolveLocalAddress("")
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.1", addr)
}

func TestResolveLocalAddressAmbiguous(t *testing.T) {
	r := NewRegistry()
	_, err := r.ResolveLocalAddress("")
	assert.ErrorIs(t, err, ErrNoUnambiguousLocalAddress, "no datagram provider")

	r.Register("192.0.2.1", sip.Datagram, newFakeProvider("192.0.2.1", sip.Datagram))
	r.Register("192.0.2.2", sip.Datagram, newFakeProvider("192.0.2.2", sip.Datagram))
	_, err = r.ResolveLocalAddress("")
	assert.ErrorIs(t, err, ErrNoUnambiguousLocalAddress, "two datagram providers")
}
