package transport

import (
	"fmt"
	"sync"
	"testing"

	"github.com/go-i2p/go-siplayer/lib/sip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	tcp := newFakeProvider("192.0.2.1", sip.Stream)
	udp := newFakeProvider("192.0.2.1", sip.Datagram)
	r.Register("192.0.2.1", sip.Stream, tcp)
	r.Register("192.0.2.1", sip.Datagram, udp)

	assert.Same(t, tcp, r.Lookup("192.0.2.1", sip.Stream))
	assert.Same(t, udp, r.Lookup("192.0.2.1", sip.Datagram))
	assert.Nil(t, r.Lookup("", sip.Stream))
	assert.Nil(t, r.Lookup("", sip.Datagram))
	assert.Nil(t, r.Lookup("198.51.100.7", sip.Stream))
	assert.Equal(t, 2, r.Total())
}

func TestRegistryLookupSingleton(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.LookupSingleton(sip.Datagram), "empty registry")

	a := newFakeProvider("192.0.2.1", sip.Datagram)
	r.Register("192.0.2.1", sip.Datagram, a)
	assert.Same(t, a, r.LookupSingleton(sip.Datagram))
	assert.Nil(t, r.LookupSingleton(sip.Stream), "other kind has no entry")

	b := newFakeProvider("192.0.2.2", sip.Datagram)
	r.Register("192.0.2.2", sip.Datagram, b)
	assert.Nil(t, r.LookupSingleton(sip.Datagram), "two entries are ambiguous")
}

func TestRegistryTwoAddressesBothKinds(t *testing.T) {
	r := NewRegistry()
	providers := map[string]map[sip.TransportKind]*fakeProvider{}
	for _, addr := range []string{"192.0.2.1", "192.0.2.2"} {
		providers[addr] = map[sip.TransportKind]*fakeProvider{}
		for _, kind := range sip.TransportKinds() {
			p := newFakeProvider(addr, kind)
			providers[addr][kind] = p
			r.Register(addr, kind, p)
		}
	}

	assert.Nil(t, r.LookupSingleton(sip.Stream))
	assert.Nil(t, r.LookupSingleton(sip.Datagram))
	assert.Same(t, providers["192.0.2.1"][sip.Stream], r.Lookup("192.0.2.1", sip.Stream))
	assert.NotSame(t, providers["192.0.2.2"][sip.Stream], r.Lookup("192.0.2.1", sip.Stream))
	assert.Equal(t, []string{"192.0.2.1", "192.0.2.2"}, r.Addresses(sip.Stream))
}

func TestRegistryOverwrite(t *testing.T) {
	r := NewRegistry()
	first := newFakeProvider("192.0.2.1", sip.Stream)
	second := newFakeProvider("192.0.2.1", sip.Stream)
	r.Register("192.0.2.1", sip.Stream, first)
	r.Register("192.0.2.1", sip.Stream, second)

	assert.Same(t, second, r.Lookup("192.0.2.1", sip.Stream))
	assert.Equal(t, 1, r.Len(sip.Stream))
}

func TestRegistryConvenienceAccessors(t *testing.T) {
	r := NewRegistry()
	tcp := newFakeProvider("192.0.2.1", sip.Stream)
	udp := newFakeProvider("192.0.2.1", sip.Datagram)
	r.Register("192.0.2.1", sip.Stream, tcp)
	r.Register("192.0.2.1", sip.Datagram, udp)

	assert.Same(t, tcp, r.TCPProvider("192.0.2.1"))
	assert.Same(t, udp, r.UDPProvider("192.0.2.1"))
	assert.Nil(t, r.UDPProvider("192.0.2.2"))
	assert.Same(t, tcp, r.TCPSingleton())
	assert.Same(t, udp, r.UDPSingleton())
}

func TestRegistryEmptyAddressNeverMatches(t *testing.T) {
	r := NewRegistry()
	r.Register("192.0.2.1", sip.Stream, newFakeProvider("192.0.2.1", sip.Stream))
	r.Register("192.0.2.1", sip.Datagram, newFakeProvider("192.0.2.1", sip.Datagram))

	assert.Nil(t, r.Lookup("", sip.Datagram))
	assert.Nil(t, r.TCPProvider(""))
	assert.Nil(t, r.UDPProvider(""))

	r.Register("192.0.2.2", sip.Datagram, newFakeProvider("192.0.2.2", sip.Datagram))
	assert.Nil(t, r.UDPSingleton(), "two datagram providers")
	assert.NotNil(t, r.TCPSingleton())
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		addr := fmt.Sprintf("192.0.2.%d", i+1)
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register(addr, sip.Datagram, newFakeProvider(addr, sip.Datagram))
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = r.Lookup(addr, sip.Datagram)
				_ = r.LookupSingleton(sip.Datagram)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 16, r.Len(sip.Datagram))
}
