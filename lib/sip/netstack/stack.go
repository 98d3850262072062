package netstack

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"syscall"

	"github.com/go-i2p/go-siplayer/lib/sip"
	"github.com/go-i2p/logger"
	"go.uber.org/multierr"
)

// Compile-time check that Stack implements sip.Stack
var _ sip.Stack = (*Stack)(nil)

// Stack owns at most one listening point per transport kind for its address.
type Stack struct {
	factory    *Factory
	address    string
	logSetting sip.LogSetting

	mu        sync.Mutex
	points    map[sip.TransportKind]*ListeningPoint
	providers map[*ListeningPoint]*Provider
	stopped   bool

	// receive loops of every provider
	wg sync.WaitGroup
}

func newStack(f *Factory, address string, logSetting sip.LogSetting) *Stack {
	return &Stack{
		factory:    f,
		address:    address,
		logSetting: logSetting,
		points:     make(map[sip.TransportKind]*ListeningPoint),
		providers:  make(map[*ListeningPoint]*Provider),
	}
}

// Address returns the monitor address of the stack.
func (s *Stack) Address() string {
	return s.address
}

// CreateListeningPoint binds (address, port, kind). Port 0 lets the kernel pick.
func (s *Stack) CreateListeningPoint(address string, port int, kind sip.TransportKind) (sip.ListeningPoint, error) {
	if !kind.Valid() {
		return nil, sip.WrapStackError(fmt.Errorf("%w: kind %d", sip.ErrTransportNotSupported, int(kind)), "creating listening point")
	}
	if address != s.address {
		return nil, sip.WrapStackError(fmt.Errorf("%w: address %s does not belong to stack %s", sip.ErrInvalidArgument, address, s.address), "creating listening point")
	}
	if port < 0 || port > 65535 {
		return nil, sip.WrapStackError(fmt.Errorf("%w: port %d out of range", sip.ErrInvalidArgument, port), "creating listening point")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, sip.WrapStackError(sip.ErrProviderClosed, "creating listening point")
	}
	if _, exists := s.points[kind]; exists {
		return nil, sip.WrapStackError(fmt.Errorf("%w: %s listening point already exists on %s", sip.ErrTooManyListeners, kind, address), "creating listening point")
	}

	lp, err := listen(s, address, port, kind)
	if err != nil {
		return nil, sip.WrapStackError(err, "creating listening point")
	}
	s.points[kind] = lp

	log.WithFields(logger.Fields{
		"at":        "(Stack) CreateListeningPoint",
		"reason":    "bound",
		"transport": kind.String(),
		"addr":      lp.Addr().String(),
	}).Debug("listening point bound")
	return lp, nil
}

// listen binds the socket and maps bind failures onto the sip error taxonomy.
func listen(s *Stack, address string, port int, kind sip.TransportKind) (*ListeningPoint, error) {
	hostport := net.JoinHostPort(address, strconv.Itoa(port))
	lp := &ListeningPoint{stack: s, ip: address, kind: kind}
	var err error
	switch kind {
	case sip.Stream:
		lp.listener, err = net.Listen(kind.Network(), hostport)
	case sip.Datagram:
		lp.packetConn, err = net.ListenPacket(kind.Network(), hostport)
	}
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("%w: %w", sip.ErrObjectInUse, err)
		}
		return nil, fmt.Errorf("%w: %w", sip.ErrInvalidArgument, err)
	}
	lp.port = portOf(lp.Addr())
	return lp, nil
}

func portOf(addr net.Addr) int {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.Port
	case *net.UDPAddr:
		return a.Port
	}
	return 0
}

// CreateProvider creates the provider serving lp. Each listening point can
// carry one provider.
func (s *Stack) CreateProvider(lp sip.ListeningPoint) (sip.Provider, error) {
	point, ok := lp.(*ListeningPoint)
	if !ok || point == nil || point.stack != s {
		return nil, sip.WrapStackError(fmt.Errorf("%w: listening point not created by this stack", sip.ErrInvalidArgument), "creating provider")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.points[point.kind] != point {
		return nil, sip.WrapStackError(fmt.Errorf("%w: listening point was deleted", sip.ErrInvalidArgument), "creating provider")
	}
	if _, exists := s.providers[point]; exists {
		return nil, sip.WrapStackError(fmt.Errorf("%w: listening point already has a provider", sip.ErrObjectInUse), "creating provider")
	}

	p := newProvider(s, point)
	s.providers[point] = p
	return p, nil
}

// DeleteProvider closes the provider and its stream connections. The
// listening point stays bound.
func (s *Stack) DeleteProvider(p sip.Provider) error {
	provider, ok := p.(*Provider)
	if !ok || provider == nil || provider.stack != s {
		return sip.WrapStackError(sip.ErrInvalidArgument, "deleting provider")
	}
	s.mu.Lock()
	if s.providers[provider.lp] == provider {
		delete(s.providers, provider.lp)
	}
	s.mu.Unlock()
	return provider.close()
}

// DeleteListeningPoint unbinds lp. Its provider, if any, is deleted first.
func (s *Stack) DeleteListeningPoint(lp sip.ListeningPoint) error {
	point, ok := lp.(*ListeningPoint)
	if !ok || point == nil || point.stack != s {
		return sip.WrapStackError(sip.ErrInvalidArgument, "deleting listening point")
	}
	s.mu.Lock()
	provider := s.providers[point]
	delete(s.providers, point)
	if s.points[point.kind] == point {
		delete(s.points, point.kind)
	}
	s.mu.Unlock()

	var err error
	if provider != nil {
		err = multierr.Append(err, provider.close())
	}
	return multierr.Append(err, point.close())
}

// Stop closes every provider and listening point and waits for the receive
// loops to exit. Stop is idempotent.
func (s *Stack) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	providers := s.providers
	points := s.points
	s.providers = make(map[*ListeningPoint]*Provider)
	s.points = make(map[sip.TransportKind]*ListeningPoint)
	s.mu.Unlock()

	var err error
	for _, p := range providers {
		err = multierr.Append(err, p.close())
	}
	for _, lp := range points {
		err = multierr.Append(err, lp.close())
	}
	s.wg.Wait()

	log.WithFields(logger.Fields{
		"at":      "(Stack) Stop",
		"reason":  "stopped",
		"address": s.address,
	}).Debug("SIP stack stopped")
	return err
}
