package main

import (
	"errors"
	"os"

	"github.com/go-i2p/go-siplayer/lib/transport"
	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// Process exit codes.
const (
	ExitOK = 0
	// ExitUsage covers configuration and command line errors
	ExitUsage = 1
	// ExitNoEndpoints means no SIP endpoint could be bound
	ExitNoEndpoints = 3
)

func main() {
	if err := newRootCmd(newNetstackFactory).Execute(); err != nil {
		log.WithError(err).Error("go-siplayer terminated")
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, transport.ErrNoEndpoints):
		return ExitNoEndpoints
	default:
		return ExitUsage
	}
}
