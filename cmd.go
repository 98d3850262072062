package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-i2p/go-siplayer/lib/config"
	"github.com/go-i2p/go-siplayer/lib/layer"
	"github.com/go-i2p/go-siplayer/lib/metrics"
	"github.com/go-i2p/go-siplayer/lib/sip"
	"github.com/go-i2p/go-siplayer/lib/sip/netstack"
	"github.com/go-i2p/go-siplayer/lib/sip/observer"
	"github.com/go-i2p/go-siplayer/lib/util"
	"github.com/go-i2p/go-siplayer/lib/util/signals"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const metricsShutdownTimeout = 5 * time.Second

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"ip":           "sip.ip",
	"port":         "sip.port",
	"sip-log":      "user.sip_log",
	"metrics-addr": "metrics.listen",
}

// StackFactoryFunc builds the stack factory for a run.
type StackFactoryFunc func(cfg *config.Config, rec metrics.Recorder) sip.StackFactory

// newNetstackFactory binds real sockets on local interfaces.
func newNetstackFactory(cfg *config.Config, rec metrics.Recorder) sip.StackFactory {
	return netstack.NewFactory(
		netstack.WithInboundRate(cfg.Sip.InboundRate, cfg.Sip.InboundBurst),
		netstack.WithMetrics(rec),
	)
}

func newRootCmd(newFactory StackFactoryFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "go-siplayer",
		Short: "SIP transport layer",
		Long: `go-siplayer binds a SIP stack on every monitor address, with one TCP and one
UDP endpoint each, and hands every inbound message to a single dispatcher.

Addresses that cannot be bound are logged and skipped. The process exits with
status 3 when not a single endpoint could be created.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(config.CurrentConfig(), newFactory)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&config.CfgFile, "config", "", "config file (default $HOME/.go-siplayer/config.yaml)")
	flags.String("ip", "", "monitor address, or a comma separated list of them")
	flags.Int("port", config.DefaultSipPort, "SIP port shared by TCP and UDP")
	flags.Bool("sip-log", false, "log every inbound SIP message")
	flags.String("metrics-addr", "", "serve Prometheus metrics on host:port")
	for name, key := range flagKeys {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(newConfigCmd())
	return root
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := yaml.Marshal(config.CurrentConfig())
			if err != nil {
				return oops.Wrapf(err, "encoding configuration")
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}

func loadConfig() error {
	if err := config.InitConfig(); err != nil {
		return oops.In("config").Wrapf(err, "loading configuration")
	}
	return nil
}

// run starts the layer and blocks until a shutdown signal stops it.
func run(cfg *config.Config, newFactory StackFactoryFunc) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}

	var closers util.Closers
	m := metrics.NewPrometheusMetrics()
	if cfg.Metrics.Listen != "" {
		srv, err := metrics.Listen(cfg.Metrics.Listen, m)
		if err != nil {
			return err
		}
		closers.AddFunc("metrics", func() error { return srv.Close(metricsShutdownTimeout) })
	}

	factory := newFactory(cfg, m)
	dispatcher := observer.New().WithMetrics(m)
	l := layer.New(&cfg.Sip, &cfg.User, factory, dispatcher, m)

	if err := l.Start(); err != nil {
		if cerr := closers.CloseAll(); cerr != nil {
			log.WithError(cerr).Warn("cleanup after failed start")
		}
		return err
	}
	closers.AddFunc("layer", l.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go signals.Handle(ctx)

	reloadID := signals.RegisterReloadHandler(func() {
		log.WithFields(logger.Fields{
			"at":     "run",
			"reason": "reload_unsupported",
		}).Warn("monitor addresses are bound at startup; restart to apply changes")
	})
	shutdownID := signals.RegisterShutdownHandler(func() {
		if err := l.Stop(); err != nil {
			log.WithError(err).Warn("Error stopping SIP layer")
		}
	})
	defer signals.Deregister(reloadID)
	defer signals.Deregister(shutdownID)

	log.WithFields(logger.Fields{
		"at":      "run",
		"tcp":     l.Registry().Len(sip.Stream),
		"udp":     l.Registry().Len(sip.Datagram),
		"metrics": cfg.Metrics.Listen,
	}).Info("go-siplayer running")

	l.Wait()
	return closers.CloseAll()
}
