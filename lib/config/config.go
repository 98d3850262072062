package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-i2p/go-siplayer/lib/util"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	CfgFile string
	log     = logger.GetGoI2PLogger()
)

const (
	SIPLAYER_BASE_DIR = ".go-siplayer"
	// EnvPrefix prefixes environment overrides, e.g. SIPLAYER_SIP_PORT
	EnvPrefix = "SIPLAYER"
)

// InitConfig loads the configuration file into viper, creating a default one
// in BuildSipLayerDirPath when no file was given and none exists yet.
func InitConfig() error {
	if CfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(CfgFile)
	} else {
		viper.AddConfigPath(BuildSipLayerDirPath())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	return handleConfigFile()
}

func setDefaults() {
	d := Defaults()

	viper.SetDefault("sip.ip", d.Sip.IP)
	viper.SetDefault("sip.port", d.Sip.Port)
	viper.SetDefault("sip.inbound_rate", d.Sip.InboundRate)
	viper.SetDefault("sip.inbound_burst", d.Sip.InboundBurst)
	viper.SetDefault("sip.parallel_bootstrap", d.Sip.ParallelBootstrap)

	viper.SetDefault("user.sip_log", d.User.SipLog)

	viper.SetDefault("metrics.listen", d.Metrics.Listen)
}

// CurrentConfig builds a Config from the current viper settings.
func CurrentConfig() *Config {
	return &Config{
		Sip: SipConfig{
			IP:                viper.GetString("sip.ip"),
			Port:              viper.GetInt("sip.port"),
			InboundRate:       viper.GetFloat64("sip.inbound_rate"),
			InboundBurst:      viper.GetInt("sip.inbound_burst"),
			ParallelBootstrap: viper.GetBool("sip.parallel_bootstrap"),
		},
		User: UserSetting{
			SipLog: viper.GetBool("user.sip_log"),
		},
		Metrics: MetricsConfig{
			Listen: viper.GetString("metrics.listen"),
		},
	}
}

// createDefaultConfig writes the built-in defaults, never flag or environment
// overrides, so the file does not pin one invocation's settings.
func createDefaultConfig(defaultConfigDir string) error {
	defaultConfigFile := filepath.Join(defaultConfigDir, "config.yaml")
	if err := os.MkdirAll(defaultConfigDir, 0o755); err != nil {
		return oops.Wrapf(err, "creating config directory %s", defaultConfigDir)
	}

	body, err := yaml.Marshal(Defaults())
	if err != nil {
		return oops.Wrapf(err, "encoding default config")
	}
	f, err := os.OpenFile(defaultConfigFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return oops.Wrapf(err, "creating default config file %s", defaultConfigFile)
	}
	defer f.Close()
	if _, err := f.Write(body); err != nil {
		return oops.Wrapf(err, "writing default config file %s", defaultConfigFile)
	}

	log.Debugf("Created default configuration at: %s", defaultConfigFile)
	return nil
}

func handleConfigFile() error {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && CfgFile == "" {
			return createDefaultConfig(BuildSipLayerDirPath())
		}
		return oops.Wrapf(err, "reading config file")
	}
	log.Debugf("Using config file: %s", viper.ConfigFileUsed())
	return nil
}

func BuildSipLayerDirPath() string {
	return filepath.Join(util.UserHome(), SIPLAYER_BASE_DIR)
}
