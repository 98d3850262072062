package config

import (
	"errors"
	"strings"

	"github.com/go-i2p/logger"
)

// ErrInvalidConfig is returned when a configuration value is rejected.
var ErrInvalidConfig = errors.New("configuration validation failed")

// addressSeparator splits the monitor address list.
const addressSeparator = ","

// ParseMonitorAddresses splits a comma separated address list, trimming
// whitespace and dropping empty entries. Repeated addresses are kept once,
// at their first position; binding the same address twice can only fail.
func ParseMonitorAddresses(ip string) []string {
	parts := strings.Split(ip, addressSeparator)
	addrs := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		addr := strings.TrimSpace(part)
		if addr == "" {
			continue
		}
		if _, dup := seen[addr]; dup {
			log.WithFields(logger.Fields{
				"at":      "ParseMonitorAddresses",
				"reason":  "duplicate_address",
				"address": addr,
			}).Warn("ignoring repeated monitor address")
			continue
		}
		seen[addr] = struct{}{}
		addrs = append(addrs, addr)
	}
	return addrs
}
