package config

import (
	"github.com/go-i2p/logger"
	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
)

// DefaultSipPort is the standard SIP port.
const DefaultSipPort = 5060

// Config is the complete process configuration.
type Config struct {
	Sip     SipConfig     `yaml:"sip"`
	User    UserSetting   `yaml:"user"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// SipConfig describes where the SIP transports listen.
type SipConfig struct {
	// IP is one monitor address or a comma separated list of them
	// Default: 0.0.0.0
	IP string `yaml:"ip" validate:"required"`

	// Port is shared by the TCP and UDP listening points of every address
	// Default: 5060
	Port int `yaml:"port" validate:"gte=0,lte=65535"`

	// InboundRate caps inbound messages per second per provider, 0 disables
	InboundRate float64 `yaml:"inbound_rate" validate:"gte=0"`

	// InboundBurst is the token bucket size for InboundRate
	InboundBurst int `yaml:"inbound_burst" validate:"gte=0"`

	// ParallelBootstrap binds the monitor addresses concurrently
	ParallelBootstrap bool `yaml:"parallel_bootstrap"`
}

// UserSetting holds operator preferences.
type UserSetting struct {
	// SipLog traces every inbound SIP message at debug level
	SipLog bool `yaml:"sip_log"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the host:port of the /metrics endpoint, empty disables it
	Listen string `yaml:"listen" validate:"omitempty,hostname_port"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Sip: SipConfig{
			IP:           "0.0.0.0",
			Port:         DefaultSipPort,
			InboundRate:  0,
			InboundBurst: 100,
		},
	}
}

var validate = validator.New()

// Validate checks cfg and returns the first invalid field.
func Validate(cfg *Config) error {
	log.WithFields(logger.Fields{
		"at":     "Validate",
		"reason": "verification_requested",
	}).Debug("validating configuration")

	if err := validate.Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			fe := errs[0]
			log.WithFields(logger.Fields{
				"at":    "Validate",
				"field": fe.Namespace(),
				"tag":   fe.Tag(),
				"value": fe.Value(),
			}).Error("Invalid configuration")
			return oops.
				Code("invalid_config").
				With("field", fe.Namespace()).
				Wrapf(ErrInvalidConfig, "%s fails %q", fe.Namespace(), fe.Tag())
		}
		return oops.Wrapf(err, "validating configuration")
	}
	if len(ParseMonitorAddresses(cfg.Sip.IP)) == 0 {
		return oops.Wrapf(ErrInvalidConfig, "Config.Sip.IP lists no address")
	}
	return nil
}
