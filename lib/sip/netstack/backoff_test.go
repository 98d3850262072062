package netstack

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/go-i2p/go-siplayer/lib/sip"
	"github.com/stretchr/testify/assert"
)

func TestErrorBackoffDoublesAndCaps(t *testing.T) {
	var b errorBackoff
	assert.Equal(t, minErrorBackoff, b.next())
	assert.Equal(t, 2*minErrorBackoff, b.next())
	assert.Equal(t, 4*minErrorBackoff, b.next())
	for i := 0; i < 20; i++ {
		b.next()
	}
	assert.Equal(t, maxErrorBackoff, b.next())
	assert.Equal(t, 24, b.failures)

	b.reset()
	assert.Equal(t, minErrorBackoff, b.next())
	assert.Equal(t, 1, b.failures)
}

// failingPacketConn fails every read until it runs out of errors, then
// reports itself closed
type failingPacketConn struct {
	net.PacketConn
	mu       sync.Mutex
	failures int
	reads    int
}

func (c *failingPacketConn) ReadFrom([]byte) (int, net.Addr, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	if c.failures > 0 {
		c.failures--
		return 0, nil, errors.New("socket error")
	}
	return 0, nil, net.ErrClosed
}

func (c *failingPacketConn) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.ParseIP(loopback), Port: 5060}
}

func TestReadLoopBacksOffOnErrors(t *testing.T) {
	conn := &failingPacketConn{failures: 3}
	s := newStack(newTestFactory(), loopback, false)
	lp := &ListeningPoint{stack: s, ip: loopback, kind: sip.Datagram, packetConn: conn}

	s.wg.Add(1)
	start := time.Now()
	lp.readLoop()

	assert.Equal(t, 4, conn.reads)
	assert.GreaterOrEqual(t, time.Since(start), minErrorBackoff+2*minErrorBackoff+4*minErrorBackoff)
}
