package netstack

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/go-i2p/go-siplayer/lib/sip"
	"github.com/go-i2p/logger"
	"go.uber.org/multierr"
)

// maxDatagramSize is the largest UDP payload.
const maxDatagramSize = 65535

// Compile-time check that ListeningPoint implements sip.ListeningPoint
var _ sip.ListeningPoint = (*ListeningPoint)(nil)

// ListeningPoint is a bound TCP listener or UDP socket. Its receive loop
// starts when the first observer is attached and hands messages to whichever
// provider currently serves it.
type ListeningPoint struct {
	stack *Stack
	ip    string
	port  int
	kind  sip.TransportKind

	listener   net.Listener   // Stream
	packetConn net.PacketConn // Datagram

	mu       sync.Mutex
	provider *Provider
	conns    map[string]net.Conn // Stream connections keyed by remote address
	serving  bool
	closed   bool
}

// IPAddress returns the monitor address the point was created for.
func (lp *ListeningPoint) IPAddress() string {
	return lp.ip
}

// Port returns the bound port.
func (lp *ListeningPoint) Port() int {
	return lp.port
}

// Transport returns the transport kind.
func (lp *ListeningPoint) Transport() sip.TransportKind {
	return lp.kind
}

// Addr returns the bound socket address.
func (lp *ListeningPoint) Addr() net.Addr {
	if lp.listener != nil {
		return lp.listener.Addr()
	}
	if lp.packetConn != nil {
		return lp.packetConn.LocalAddr()
	}
	return nil
}

func (lp *ListeningPoint) setProvider(p *Provider) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	lp.provider = p
}

func (lp *ListeningPoint) clearProvider(p *Provider) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if lp.provider == p {
		lp.provider = nil
	}
}

func (lp *ListeningPoint) currentProvider() *Provider {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.provider
}

// startServing launches the receive loop once.
func (lp *ListeningPoint) startServing() {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if lp.serving || lp.closed {
		return
	}
	lp.serving = true
	lp.stack.wg.Add(1)
	switch lp.kind {
	case sip.Stream:
		go lp.acceptLoop()
	case sip.Datagram:
		go lp.readLoop()
	}
}

func (lp *ListeningPoint) deliver(data []byte, remote net.Addr) {
	if p := lp.currentProvider(); p != nil {
		p.deliver(data, remote)
	}
}

// readLoop receives datagrams until the socket is closed.
func (lp *ListeningPoint) readLoop() {
	defer lp.stack.wg.Done()
	buf := make([]byte, maxDatagramSize)
	var backoff errorBackoff
	for {
		n, from, err := lp.packetConn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			lp.pause(&backoff, err, "UDP read failed")
			continue
		}
		backoff.reset()
		data := bytes.TrimLeft(buf[:n], "\r\n")
		if len(data) == 0 {
			// keep-alive
			continue
		}
		lp.deliver(bytes.Clone(data), from)
	}
}

// acceptLoop accepts stream connections until the listener is closed.
func (lp *ListeningPoint) acceptLoop() {
	defer lp.stack.wg.Done()
	var backoff errorBackoff
	for {
		conn, err := lp.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			lp.pause(&backoff, err, "TCP accept failed")
			continue
		}
		backoff.reset()
		lp.track(conn)
	}
}

// pause logs a receive error and sleeps for the next backoff step. Only the
// first failure of a run is logged at Warn.
func (lp *ListeningPoint) pause(b *errorBackoff, err error, msg string) {
	delay := b.next()
	entry := log.WithError(err).WithFields(logger.Fields{
		"at":       "(ListeningPoint) pause",
		"addr":     lp.Addr().String(),
		"failures": b.failures,
		"backoff":  delay.String(),
	})
	if b.failures == 1 {
		entry.Warn(msg)
	} else {
		entry.Debug(msg)
	}
	time.Sleep(delay)
}

// track registers conn for replies and serves it. Connections arriving
// after close are dropped.
func (lp *ListeningPoint) track(conn net.Conn) bool {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if lp.closed {
		conn.Close()
		return false
	}
	if lp.conns == nil {
		lp.conns = make(map[string]net.Conn)
	}
	lp.conns[conn.RemoteAddr().String()] = conn
	lp.stack.wg.Add(1)
	go lp.serveConn(conn)
	return true
}

func (lp *ListeningPoint) untrack(conn net.Conn) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	key := conn.RemoteAddr().String()
	if lp.conns[key] == conn {
		delete(lp.conns, key)
	}
}

func (lp *ListeningPoint) conn(remote string) net.Conn {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.conns[remote]
}

// serveConn reads framed messages from one stream connection.
func (lp *ListeningPoint) serveConn(conn net.Conn) {
	defer lp.stack.wg.Done()
	defer lp.untrack(conn)
	defer conn.Close()

	r := bufio.NewReader(conn)
	for {
		msg, err := ReadStreamMessage(r)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.WithError(err).WithFields(logger.Fields{
					"at":     "(ListeningPoint) serveConn",
					"reason": "framing_error",
					"remote": conn.RemoteAddr().String(),
				}).Warn("closing SIP stream connection")
			}
			return
		}
		lp.deliver(msg, conn.RemoteAddr())
	}
}

// close unbinds the socket and closes every stream connection.
func (lp *ListeningPoint) close() error {
	lp.mu.Lock()
	if lp.closed {
		lp.mu.Unlock()
		return nil
	}
	lp.closed = true
	conns := lp.conns
	lp.conns = nil
	lp.provider = nil
	lp.mu.Unlock()

	var err error
	if lp.listener != nil {
		err = multierr.Append(err, lp.listener.Close())
	}
	if lp.packetConn != nil {
		err = multierr.Append(err, lp.packetConn.Close())
	}
	for _, c := range conns {
		_ = c.Close()
	}
	return err
}
