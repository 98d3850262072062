// Package config provides configuration management for the SIP transport layer.
//
// # Sources
//
// Values are resolved by viper in this order: command line flags bound by the
// CLI, environment variables prefixed with SIPLAYER_ (SIPLAYER_SIP_PORT for
// sip.port), the YAML config file, and finally the built-in Defaults.
//
// The config file lives at $HOME/.go-siplayer/config.yaml unless --config is
// given. A default file is written there on first start.
//
// # Monitor Addresses
//
// sip.ip holds one address or a comma separated list. ParseMonitorAddresses
// turns it into the ordered, de-duplicated list handed to the bootstrapper.
// Every address is bound on TCP and UDP at sip.port.
package config
