package util

import (
	"io"
	"sync"

	"go.uber.org/multierr"
)

// Closers releases a set of resources in reverse registration order.
// The zero value is ready to use.
type Closers struct {
	mu      sync.Mutex
	closers []namedCloser
}

type namedCloser struct {
	name string
	c    io.Closer
}

// Add registers c under name. Nil closers are ignored.
func (cs *Closers) Add(name string, c io.Closer) {
	if c == nil {
		return
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.closers = append(cs.closers, namedCloser{name: name, c: c})
	log.WithField("count", len(cs.closers)).WithField("name", name).Debug("Registered closer")
}

// AddFunc registers f as a closer.
func (cs *Closers) AddFunc(name string, f func() error) {
	if f == nil {
		return
	}
	cs.Add(name, closerFunc(f))
}

// CloseAll closes every registered closer, newest first, and clears the set.
// Every closer runs even when an earlier one fails; the failures are combined.
func (cs *Closers) CloseAll() error {
	cs.mu.Lock()
	pending := cs.closers
	cs.closers = nil
	cs.mu.Unlock()

	log.WithField("count", len(pending)).Debug("Closing all registered closers")

	var err error
	for i := len(pending) - 1; i >= 0; i-- {
		if cerr := pending[i].c.Close(); cerr != nil {
			log.WithError(cerr).WithField("name", pending[i].name).Warn("Error closing resource")
			err = multierr.Append(err, cerr)
		}
	}
	return err
}

// Len reports the number of registered closers.
func (cs *Closers) Len() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.closers)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
