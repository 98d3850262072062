package transport

import (
	"net"
	"strconv"
	"sync"

	"github.com/go-i2p/go-siplayer/lib/sip"
)

// fakeListeningPoint implements sip.ListeningPoint for testing
type fakeListeningPoint struct {
	ip   string
	port int
	kind sip.TransportKind
}

func (f *fakeListeningPoint) IPAddress() string            { return f.ip }
func (f *fakeListeningPoint) Port() int                    { return f.port }
func (f *fakeListeningPoint) Transport() sip.TransportKind { return f.kind }
func (f *fakeListeningPoint) Addr() net.Addr {
	addr, _ := net.ResolveUDPAddr("udp", net.JoinHostPort(f.ip, strconv.Itoa(f.port)))
	return addr
}

// fakeProvider implements sip.Provider for testing
type fakeProvider struct {
	lp                  *fakeListeningPoint
	observer            sip.Observer
	observerErr         error
	dialogErrorsHandled bool
}

func newFakeProvider(ip string, kind sip.TransportKind) *fakeProvider {
	return &fakeProvider{lp: &fakeListeningPoint{ip: ip, port: 5060, kind: kind}}
}

func (f *fakeProvider) ListeningPoint() sip.ListeningPoint { return f.lp }
func (f *fakeProvider) SetDialogErrorsAutomaticallyHandled() {
	f.dialogErrorsHandled = true
}
func (f *fakeProvider) Send([]byte, net.Addr) error { return nil }
func (f *fakeProvider) AddObserver(o sip.Observer) error {
	if f.observerErr != nil {
		return f.observerErr
	}
	f.observer = o
	return nil
}

// fakeStack implements sip.Stack; failures are configured per kind
type fakeStack struct {
	address     string
	lpErr       map[sip.TransportKind]error
	providerErr map[sip.TransportKind]error
	observerErr map[sip.TransportKind]error
	panicKind   *sip.TransportKind

	mu               sync.Mutex
	providers        []*fakeProvider
	deletedProviders int
	deletedPoints    int
	stopped          bool
}

func (s *fakeStack) Address() string { return s.address }

func (s *fakeStack) CreateListeningPoint(address string, port int, kind sip.TransportKind) (sip.ListeningPoint, error) {
	if s.panicKind != nil && *s.panicKind == kind {
		panic("listening point exploded")
	}
	if err := s.lpErr[kind]; err != nil {
		return nil, err
	}
	return &fakeListeningPoint{ip: address, port: port, kind: kind}, nil
}

func (s *fakeStack) CreateProvider(lp sip.ListeningPoint) (sip.Provider, error) {
	kind := lp.Transport()
	if err := s.providerErr[kind]; err != nil {
		return nil, err
	}
	p := &fakeProvider{lp: lp.(*fakeListeningPoint), observerErr: s.observerErr[kind]}
	s.mu.Lock()
	s.providers = append(s.providers, p)
	s.mu.Unlock()
	return p, nil
}

func (s *fakeStack) DeleteProvider(sip.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedProviders++
	return nil
}

func (s *fakeStack) DeleteListeningPoint(sip.ListeningPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedPoints++
	return nil
}

func (s *fakeStack) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

// fakeFactory implements sip.StackFactory for testing
type fakeFactory struct {
	mu         sync.Mutex
	unusable   map[string]bool
	configure  func(s *fakeStack)
	stacks     map[string]*fakeStack
	calls      []string
	logSetting sip.LogSetting
}

func newFakeFactory(unusable ...string) *fakeFactory {
	f := &fakeFactory{unusable: make(map[string]bool), stacks: make(map[string]*fakeStack)}
	for _, a := range unusable {
		f.unusable[a] = true
	}
	return f
}

func (f *fakeFactory) CreateStack(address string, logSetting sip.LogSetting) (sip.Stack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, address)
	f.logSetting = logSetting
	if f.unusable[address] {
		return nil, sip.WrapStackError(sip.ErrAddressUnavailable, "creating stack")
	}
	s := &fakeStack{address: address}
	if f.configure != nil {
		f.configure(s)
	}
	f.stacks[address] = s
	return s, nil
}

func (f *fakeFactory) stack(address string) *fakeStack {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stacks[address]
}

var nopObserver = sip.ObserverFunc(func(*sip.Message) {})
