package netstack

import (
	"bytes"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/go-i2p/go-siplayer/lib/metrics"
	"github.com/go-i2p/go-siplayer/lib/sip"
	"github.com/go-i2p/logger"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// dialTimeout bounds outbound stream connection setup in Send.
const dialTimeout = 5 * time.Second

// Compile-time check that Provider implements sip.Provider
var _ sip.Provider = (*Provider)(nil)

// Provider dispatches the messages of one listening point to its observer.
type Provider struct {
	stack   *Stack
	lp      *ListeningPoint
	limiter *rate.Limiter

	mu                  sync.RWMutex
	observer            sip.Observer
	dialogErrorsHandled bool
	closed              bool
}

func newProvider(s *Stack, lp *ListeningPoint) *Provider {
	p := &Provider{
		stack:   s,
		lp:      lp,
		limiter: s.factory.newLimiter(),
	}
	lp.setProvider(p)
	return p
}

// ListeningPoint returns the listening point the provider serves.
func (p *Provider) ListeningPoint() sip.ListeningPoint {
	return p.lp
}

// AddObserver attaches o and starts receiving. Only one observer is allowed.
func (p *Provider) AddObserver(o sip.Observer) error {
	if o == nil {
		return sip.WrapStackError(fmt.Errorf("%w: nil observer", sip.ErrInvalidArgument), "adding observer")
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return sip.WrapStackError(sip.ErrProviderClosed, "adding observer")
	}
	if p.observer != nil {
		p.mu.Unlock()
		return sip.WrapStackError(fmt.Errorf("%w: provider already has an observer", sip.ErrTooManyListeners), "adding observer")
	}
	p.observer = o
	p.mu.Unlock()

	p.lp.startServing()
	return nil
}

// SetDialogErrorsAutomaticallyHandled marks dialog errors as handled by the stack.
func (p *Provider) SetDialogErrorsAutomaticallyHandled() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialogErrorsHandled = true
}

// DialogErrorsAutomaticallyHandled reports whether the flag was set.
func (p *Provider) DialogErrorsAutomaticallyHandled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dialogErrorsHandled
}

// Send writes msg to the remote address. Stream sends reuse the inbound
// connection from to when one exists and dial otherwise.
func (p *Provider) Send(msg []byte, to net.Addr) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return sip.ErrProviderClosed
	}
	if to == nil {
		return sip.WrapStackError(fmt.Errorf("%w: nil destination", sip.ErrInvalidArgument), "sending")
	}

	switch p.lp.kind {
	case sip.Datagram:
		if _, err := p.lp.packetConn.WriteTo(msg, to); err != nil {
			return sip.WrapStackError(err, "sending datagram")
		}
		return nil
	default:
		conn := p.lp.conn(to.String())
		if conn == nil {
			dialed, err := net.DialTimeout(p.lp.kind.Network(), to.String(), dialTimeout)
			if err != nil {
				return sip.WrapStackError(err, "dialing "+to.String())
			}
			p.lp.track(dialed)
			conn = dialed
		}
		if _, err := conn.Write(msg); err != nil {
			return sip.WrapStackError(err, "sending stream message")
		}
		return nil
	}
}

// deliver hands one inbound message to the observer.
func (p *Provider) deliver(data []byte, remote net.Addr) {
	kind := p.lp.kind.String()
	p.mu.RLock()
	observer, closed := p.observer, p.closed
	p.mu.RUnlock()
	if closed || observer == nil {
		return
	}
	if p.limiter != nil && !p.limiter.Allow() {
		p.stack.factory.metrics.RecordInbound(kind, metrics.ResultDropped)
		log.WithFields(logger.Fields{
			"at":     "(Provider) deliver",
			"reason": "rate_limited",
			"remote": remote.String(),
		}).Debug("dropping inbound SIP message")
		return
	}

	msg := &sip.Message{
		ID:        uuid.NewString(),
		Transport: p.lp.kind,
		Local:     p.lp.Addr(),
		Remote:    remote,
		Data:      data,
		Received:  time.Now(),
		Provider:  p,
	}
	if p.stack.logSetting {
		log.WithFields(logger.Fields{
			"at":         "(Provider) deliver",
			"id":         msg.ID,
			"transport":  kind,
			"remote":     remote.String(),
			"bytes":      len(data),
			"start_line": startLine(data),
		}).Debug("inbound SIP message")
	}

	defer func() {
		if r := recover(); r != nil {
			p.stack.factory.metrics.RecordInbound(kind, metrics.ResultFailure)
			log.WithFields(logger.Fields{
				"at":    "(Provider) deliver",
				"id":    msg.ID,
				"panic": fmt.Sprint(r),
			}).Error("observer panicked processing SIP message")
		}
	}()
	observer.ProcessMessage(msg)
	p.stack.factory.metrics.RecordInbound(kind, metrics.ResultSuccess)
}

func (p *Provider) close() error {
	p.mu.Lock()
	p.closed = true
	p.observer = nil
	p.mu.Unlock()
	p.lp.clearProvider(p)
	return nil
}

func startLine(data []byte) string {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		data = data[:i]
	}
	return string(bytes.TrimRight(data, "\r"))
}
