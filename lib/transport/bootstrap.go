package transport

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/go-i2p/go-siplayer/lib/metrics"
	"github.com/go-i2p/go-siplayer/lib/sip"
	"github.com/go-i2p/logger"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

var log = logger.GetGoI2PLogger()

// Option configures a Bootstrapper.
type Option func(*Bootstrapper)

// WithMetrics records bind attempts and endpoint counts on rec.
func WithMetrics(rec metrics.Recorder) Option {
	return func(b *Bootstrapper) {
		if rec != nil {
			b.metrics = rec
		}
	}
}

// WithParallel binds the addresses concurrently. Failures stay isolated per
// unit and registry writes are keyed per address, so the result is the same
// as a sequential run.
func WithParallel(parallel bool) Option {
	return func(b *Bootstrapper) {
		b.parallel = parallel
	}
}

// Bootstrapper creates one stack per monitor address and a provider per
// (address, transport kind), wiring every provider to the shared observer.
type Bootstrapper struct {
	factory  sip.StackFactory
	observer sip.Observer
	metrics  metrics.Recorder
	parallel bool
}

// NewBootstrapper creates a Bootstrapper using factory for stack creation.
func NewBootstrapper(factory sip.StackFactory, observer sip.Observer, opts ...Option) *Bootstrapper {
	b := &Bootstrapper{
		factory:  factory,
		observer: observer,
		metrics:  metrics.Nop{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Result is the outcome of a bootstrap run.
type Result struct {
	// Registry holds every provider that was created successfully
	Registry *Registry
	// Stacks are the stacks that own at least one registered provider
	Stacks []sip.Stack
	// Err combines one *BindError per failed unit; nil when nothing failed
	Err error
}

// OK reports whether at least one (address, kind) endpoint was registered.
func (r *Result) OK() bool {
	return r.Registry.Total() > 0
}

// Failures returns the individual bind failures of the run.
func (r *Result) Failures() []error {
	return multierr.Errors(r.Err)
}

// Bootstrap binds every address on every transport kind and reports whether
// at least one endpoint was created. A false result leaves the process with
// no usable transport; the caller is expected to terminate.
func (b *Bootstrapper) Bootstrap(addresses []string, port int, logSetting sip.LogSetting) (*Registry, bool) {
	res := b.Run(addresses, port, logSetting)
	return res.Registry, res.OK()
}

// Run performs the bootstrap and returns the detailed result.
func (b *Bootstrapper) Run(addresses []string, port int, logSetting sip.LogSetting) *Result {
	log.WithFields(logger.Fields{
		"at":            "(Bootstrapper) Run",
		"reason":        "bootstrap_started",
		"address_count": len(addresses),
		"port":          port,
		"parallel":      b.parallel,
	}).Debug("binding SIP transports")

	res := &Result{Registry: NewRegistry()}
	var mu sync.Mutex
	bind := func(address string) {
		stack, err := b.bindAddress(address, port, logSetting, res.Registry)
		mu.Lock()
		defer mu.Unlock()
		if stack != nil {
			res.Stacks = append(res.Stacks, stack)
		}
		res.Err = multierr.Append(res.Err, err)
	}

	if b.parallel {
		var g errgroup.Group
		for _, address := range addresses {
			address := address
			g.Go(func() error {
				bind(address)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, address := range addresses {
			bind(address)
		}
	}

	for _, kind := range sip.TransportKinds() {
		b.metrics.SetEndpoints(kind.String(), res.Registry.Len(kind))
	}

	fields := logger.Fields{
		"at":        "(Bootstrapper) Run",
		"tcp_count": res.Registry.Len(sip.Stream),
		"udp_count": res.Registry.Len(sip.Datagram),
		"failures":  len(res.Failures()),
	}
	if !res.OK() {
		fields["reason"] = "no_endpoints"
		log.WithFields(fields).Error("SIP server failed to start: no transport endpoint could be bound")
	} else {
		fields["reason"] = "bootstrap_complete"
		log.WithFields(fields).Debug("SIP transports bound")
	}
	return res
}

// bindAddress creates the stack for address and attempts every transport
// kind on it. The stack is returned only if it owns a registered provider.
func (b *Bootstrapper) bindAddress(address string, port int, logSetting sip.LogSetting, reg *Registry) (sip.Stack, error) {
	stack, err := b.createStack(address, logSetting)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"at":      "(Bootstrapper) bindAddress",
			"reason":  "stack_creation_failed",
			"address": address,
		}).Error("SIP server failed to start: cannot listen on address, check that the ip is correct")
		b.metrics.RecordStackFailure(address)
		return nil, &BindError{Address: address, Port: port, Stage: StageStack, Err: err}
	}

	var errs error
	bound := 0
	for _, kind := range sip.TransportKinds() {
		if err := b.bindEndpoint(stack, address, port, kind, reg); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		bound++
	}

	if bound == 0 {
		if err := stack.Stop(); err != nil {
			log.WithError(err).WithField("address", address).Warn("error stopping unused SIP stack")
		}
		return nil, errs
	}
	return stack, errs
}

func (b *Bootstrapper) createStack(address string, logSetting sip.LogSetting) (stack sip.Stack, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack, err = nil, fmt.Errorf("panic creating stack: %v", r)
		}
	}()
	return b.factory.CreateStack(address, logSetting)
}

// bindEndpoint creates the listening point and provider for one (address,
// kind) and attaches the observer. Nothing is registered unless all three
// steps succeed; partially created objects are released.
func (b *Bootstrapper) bindEndpoint(stack sip.Stack, address string, port int, kind sip.TransportKind, reg *Registry) (err error) {
	var (
		lp    sip.ListeningPoint
		p     sip.Provider
		stage = StageListeningPoint
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err == nil {
			return
		}
		release(stack, lp, p)
		b.metrics.RecordBind(kind.String(), false)
		log.WithError(err).WithFields(logger.Fields{
			"at":        "(Bootstrapper) bindEndpoint",
			"reason":    "bind_failed",
			"stage":     stage,
			"address":   address,
			"port":      port,
			"transport": kind.String(),
			"endpoint":  endpointURI(kind, address, port),
		}).Error("SIP server failed to start, check whether the port is in use or the ip is correct")
		err = &BindError{Address: address, Port: port, Kind: &kind, Stage: stage, Err: err}
	}()

	lp, err = stack.CreateListeningPoint(address, port, kind)
	if err != nil {
		return err
	}

	stage = StageProvider
	p, err = stack.CreateProvider(lp)
	if err != nil {
		return err
	}
	if kind == sip.Stream {
		p.SetDialogErrorsAutomaticallyHandled()
	}

	stage = StageObserver
	if err = p.AddObserver(b.observer); err != nil {
		return err
	}

	reg.Register(address, kind, p)
	b.metrics.RecordBind(kind.String(), true)
	log.WithFields(logger.Fields{
		"at":        "(Bootstrapper) bindEndpoint",
		"reason":    "bind_succeeded",
		"address":   address,
		"port":      port,
		"transport": kind.String(),
		"endpoint":  endpointURI(kind, address, port),
	}).Info("SIP server started")
	return nil
}

func endpointURI(kind sip.TransportKind, address string, port int) string {
	return fmt.Sprintf("%s://%s", kind.Network(), net.JoinHostPort(address, strconv.Itoa(port)))
}

// release undoes a partially created endpoint.
func release(stack sip.Stack, lp sip.ListeningPoint, p sip.Provider) {
	if p != nil {
		if err := stack.DeleteProvider(p); err != nil {
			log.WithError(err).Debug("error deleting SIP provider")
		}
	}
	if lp != nil {
		if err := stack.DeleteListeningPoint(lp); err != nil {
			log.WithError(err).Debug("error deleting listening point")
		}
	}
}
