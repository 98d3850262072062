package layer

import (
	"errors"
	"sync"

	"github.com/go-i2p/go-siplayer/lib/config"
	"github.com/go-i2p/go-siplayer/lib/metrics"
	"github.com/go-i2p/go-siplayer/lib/sip"
	"github.com/go-i2p/go-siplayer/lib/transport"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"go.uber.org/multierr"
)

var log = logger.GetGoI2PLogger()

// ErrAlreadyRunning is returned by Start on a running Layer.
var ErrAlreadyRunning = errors.New("SIP layer already running")

// Layer owns the stacks and providers created from a SipConfig.
type Layer struct {
	cfg      *config.SipConfig
	user     *config.UserSetting
	factory  sip.StackFactory
	observer sip.Observer
	metrics  metrics.Recorder

	registry *transport.Registry
	stacks   []sip.Stack

	// closed when the layer stops
	closeChnl chan struct{}
	// running flag and mutex for thread-safe access
	running bool
	runMux  sync.RWMutex
}

// New creates a Layer. rec may be nil.
func New(cfg *config.SipConfig, user *config.UserSetting, factory sip.StackFactory, obs sip.Observer, rec metrics.Recorder) *Layer {
	if user == nil {
		user = &config.UserSetting{}
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Layer{
		cfg:       cfg,
		user:      user,
		factory:   factory,
		observer:  obs,
		metrics:   rec,
		registry:  transport.NewRegistry(),
		closeChnl: make(chan struct{}),
	}
}

// Start binds every monitor address on TCP and UDP. Individual failures are
// logged and skipped; when no endpoint at all could be created Start returns
// an error wrapping transport.ErrNoEndpoints and the layer stays stopped.
func (l *Layer) Start() error {
	l.runMux.Lock()
	defer l.runMux.Unlock()

	if l.running {
		log.WithFields(logger.Fields{
			"at":     "(Layer) Start",
			"reason": "layer is already running",
		}).Error("Error starting SIP layer")
		return ErrAlreadyRunning
	}

	addresses := config.ParseMonitorAddresses(l.cfg.IP)
	log.WithFields(logger.Fields{
		"at":        "(Layer) Start",
		"addresses": addresses,
		"port":      l.cfg.Port,
	}).Info("Starting SIP layer")

	b := transport.NewBootstrapper(l.factory, l.observer,
		transport.WithMetrics(l.metrics),
		transport.WithParallel(l.cfg.ParallelBootstrap),
	)
	res := b.Run(addresses, l.cfg.Port, sip.LogSetting(l.user.SipLog))
	if !res.OK() {
		return oops.
			In("layer").
			With("addresses", addresses).
			With("port", l.cfg.Port).
			With("failures", len(res.Failures())).
			Wrapf(transport.ErrNoEndpoints, "SIP server failed to start")
	}

	select {
	case <-l.closeChnl:
		l.closeChnl = make(chan struct{})
	default:
	}
	l.registry = res.Registry
	l.stacks = res.Stacks
	l.running = true

	log.WithFields(logger.Fields{
		"at":        "(Layer) Start",
		"tcp":       l.registry.Addresses(sip.Stream),
		"udp":       l.registry.Addresses(sip.Datagram),
		"failures":  len(res.Failures()),
		"stack_cnt": len(l.stacks),
	}).Info("SIP layer started")
	return nil
}

// Registry returns the providers created by Start. It is empty before a
// successful Start.
func (l *Layer) Registry() *transport.Registry {
	l.runMux.RLock()
	defer l.runMux.RUnlock()
	return l.registry
}

// ResolveLocalAddress is Registry().ResolveLocalAddress.
func (l *Layer) ResolveLocalAddress(explicit string) (string, error) {
	return l.Registry().ResolveLocalAddress(explicit)
}

// Running reports whether the layer has started and not yet stopped.
func (l *Layer) Running() bool {
	l.runMux.RLock()
	defer l.runMux.RUnlock()
	return l.running
}

// Stop stops every stack. Calling Stop on a stopped layer does nothing.
func (l *Layer) Stop() error {
	l.runMux.Lock()
	defer l.runMux.Unlock()

	if !l.running {
		log.Debug("SIP layer already stopped")
		return nil
	}
	l.running = false

	var err error
	for _, stack := range l.stacks {
		if serr := stack.Stop(); serr != nil {
			log.WithError(serr).WithField("address", stack.Address()).Warn("Error stopping SIP stack")
			err = multierr.Append(err, serr)
		}
	}
	l.stacks = nil
	close(l.closeChnl)

	log.Debug("SIP layer stopped")
	return err
}

// Wait blocks until Stop has been called after a successful Start.
func (l *Layer) Wait() {
	l.runMux.RLock()
	done := l.closeChnl
	l.runMux.RUnlock()

	log.Debug("Waiting for SIP layer to stop")
	<-done
	log.Debug("SIP layer has stopped")
}
