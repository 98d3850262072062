// Package signals routes process signals to registered handlers.
//
// SIGHUP fires Reload handlers. SIGINT and SIGTERM first run the Shutdown
// handlers, bounded by the shutdown timeout, and then the Interrupt handlers.
package signals

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// sigChan is buffered so a signal that arrives while no receiver is ready is kept.
var sigChan = make(chan os.Signal, 1)

// Handler is called when its Event fires.
type Handler func()

// HandlerID identifies a registration for Deregister.
type HandlerID int

// Event selects which signal a handler reacts to.
type Event int

const (
	// Reload fires on SIGHUP.
	Reload Event = iota
	// Shutdown fires first on SIGINT/SIGTERM and is bounded by the shutdown timeout.
	Shutdown
	// Interrupt fires after every Shutdown handler returned or timed out.
	Interrupt
)

func (e Event) String() string {
	switch e {
	case Reload:
		return "reload"
	case Shutdown:
		return "shutdown"
	case Interrupt:
		return "interrupt"
	default:
		return "unknown"
	}
}

const defaultShutdownTimeout = 30 * time.Second

type registeredHandler struct {
	id HandlerID
	fn Handler
}

var (
	mu              sync.RWMutex
	handlers        = map[Event][]registeredHandler{}
	nextID          HandlerID
	shutdownTimeout = defaultShutdownTimeout
	stopOnce        sync.Once
)

// Register adds f to the handlers of ev. Nil handlers are ignored and get -1.
func Register(ev Event, f Handler) HandlerID {
	if f == nil {
		return -1
	}
	mu.Lock()
	defer mu.Unlock()
	id := nextID
	nextID++
	handlers[ev] = append(handlers[ev], registeredHandler{id: id, fn: f})
	return id
}

// RegisterReloadHandler registers f for SIGHUP.
func RegisterReloadHandler(f Handler) HandlerID {
	return Register(Reload, f)
}

// RegisterInterruptHandler registers f for SIGINT/SIGTERM.
func RegisterInterruptHandler(f Handler) HandlerID {
	return Register(Interrupt, f)
}

// RegisterShutdownHandler registers f to run before the interrupt handlers.
func RegisterShutdownHandler(f Handler) HandlerID {
	return Register(Shutdown, f)
}

// Deregister removes the handler with the given id, whatever its event.
func Deregister(id HandlerID) {
	mu.Lock()
	defer mu.Unlock()
	for ev, hs := range handlers {
		for i, h := range hs {
			if h.id == id {
				handlers[ev] = append(hs[:i], hs[i+1:]...)
				return
			}
		}
	}
}

// SetShutdownTimeout bounds the Shutdown handlers. Non-positive values restore
// the 30 second default.
func SetShutdownTimeout(timeout time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	if timeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
		return
	}
	shutdownTimeout = timeout
}

func snapshot(ev Event) []registeredHandler {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]registeredHandler, len(handlers[ev]))
	copy(out, handlers[ev])
	return out
}

// dispatch runs the handlers of ev in registration order; a panicking
// handler is logged and does not stop the rest.
func dispatch(ev Event) {
	for _, h := range snapshot(ev) {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(logger.Fields{
						"at":    "signals.dispatch",
						"event": ev.String(),
						"id":    h.id,
						"panic": r,
					}).Error("signal handler panicked")
				}
			}()
			h.fn()
		}()
	}
}

// runShutdown reports whether every Shutdown handler finished in time.
func runShutdown() bool {
	mu.RLock()
	timeout := shutdownTimeout
	mu.RUnlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		dispatch(Shutdown)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		log.WithFields(logger.Fields{
			"at":      "signals.runShutdown",
			"timeout": timeout.String(),
		}).Warn("shutdown handlers timed out")
		return false
	}
}

func handleInterrupted() {
	runShutdown()
	dispatch(Interrupt)
}

// Handle dispatches signals until ctx is done or StopHandle is called.
func Handle(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-sigChan:
			if !ok {
				return
			}
			ev, known := eventFor(sig)
			if !known {
				log.WithField("signal", sig.String()).Debug("ignoring signal")
				continue
			}
			log.WithFields(logger.Fields{
				"at":     "signals.Handle",
				"signal": sig.String(),
				"event":  ev.String(),
			}).Info("signal received")
			if ev == Reload {
				dispatch(Reload)
			} else {
				handleInterrupted()
			}
		}
	}
}

// StopHandle stops signal delivery and makes Handle return. Only the first
// call has an effect.
func StopHandle() {
	stopOnce.Do(func() {
		signal.Stop(sigChan)
		close(sigChan)
	})
}
