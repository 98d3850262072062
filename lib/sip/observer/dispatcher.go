// Package observer provides the message observer attached to every SIP
// provider. It classifies each inbound message by its start line and routes
// it to the processor registered for the request method, or to the response
// processor. Headers and bodies are left to the processors.
package observer

import (
	"bytes"
	"strings"
	"sync"

	"github.com/go-i2p/go-siplayer/lib/metrics"
	"github.com/go-i2p/go-siplayer/lib/sip"
	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// Compile-time check that Dispatcher implements sip.Observer
var _ sip.Observer = (*Dispatcher)(nil)

// responseKey is the metrics label for responses.
const responseKey = "RESPONSE"

// Processor handles the messages routed to it.
type Processor interface {
	Process(msg *sip.Message) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(msg *sip.Message) error

// Process calls f(msg).
func (f ProcessorFunc) Process(msg *sip.Message) error {
	return f(msg)
}

// Dispatcher routes messages to processors keyed by request method.
type Dispatcher struct {
	mu        sync.RWMutex
	requests  map[string]Processor
	response  Processor
	metrics   metrics.Recorder
	unhandled func(msg *sip.Message, method string)
}

// New creates an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{
		requests: make(map[string]Processor),
		metrics:  metrics.Nop{},
	}
}

// WithMetrics records every routed message on rec.
func (d *Dispatcher) WithMetrics(rec metrics.Recorder) *Dispatcher {
	d.mu.Lock()
	defer d.mu.Unlock()
	if rec != nil {
		d.metrics = rec
	}
	return d
}

// Handle registers p for requests with the given method (case-insensitive).
func (d *Dispatcher) Handle(method string, p Processor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests[strings.ToUpper(method)] = p
}

// HandleResponse registers p for all responses.
func (d *Dispatcher) HandleResponse(p Processor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.response = p
}

// OnUnhandled sets a callback for messages no processor accepts.
func (d *Dispatcher) OnUnhandled(fn func(msg *sip.Message, method string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unhandled = fn
}

// ProcessMessage implements sip.Observer.
func (d *Dispatcher) ProcessMessage(msg *sip.Message) {
	method, isResponse := Classify(msg.Data)

	d.mu.RLock()
	var p Processor
	key := method
	if isResponse {
		p = d.response
		key = responseKey
	} else {
		p = d.requests[method]
	}
	rec, unhandled := d.metrics, d.unhandled
	d.mu.RUnlock()

	if p == nil {
		log.WithFields(logger.Fields{
			"at":     "(Dispatcher) ProcessMessage",
			"reason": "no_processor",
			"id":     msg.ID,
			"method": key,
			"remote": remoteString(msg),
		}).Debug("no processor for SIP message")
		if unhandled != nil {
			unhandled(msg, key)
		}
		return
	}

	rec.RecordDispatch(key)
	if err := p.Process(msg); err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"at":     "(Dispatcher) ProcessMessage",
			"reason": "processor_failed",
			"id":     msg.ID,
			"method": key,
		}).Error("SIP processor failed")
	}
}

// Classify reads the start line of a SIP message. Requests yield their
// upper-cased method; responses yield ("", true).
func Classify(data []byte) (method string, isResponse bool) {
	line := data
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	token, _, _ := bytes.Cut(bytes.TrimSpace(line), []byte(" "))
	if bytes.HasPrefix(token, []byte("SIP/")) {
		return "", true
	}
	return strings.ToUpper(string(token)), false
}

func remoteString(msg *sip.Message) string {
	if msg.Remote == nil {
		return ""
	}
	return msg.Remote.String()
}
