package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	saved := CfgFile
	t.Cleanup(func() {
		viper.Reset()
		CfgFile = saved
	})
}

func TestCurrentConfigDefaults(t *testing.T) {
	resetViper(t)
	setDefaults()

	cfg := CurrentConfig()
	d := Defaults()
	assert.Equal(t, d, *cfg)
	assert.Equal(t, "0.0.0.0", cfg.Sip.IP)
	assert.Equal(t, DefaultSipPort, cfg.Sip.Port)
	assert.False(t, cfg.User.SipLog)
	assert.Empty(t, cfg.Metrics.Listen)
}

func TestInitConfigReadsFile(t *testing.T) {
	resetViper(t)

	path := filepath.Join(t.TempDir(), "siplayer.yaml")
	body := []byte("sip:\n  ip: 10.0.0.1, 10.0.0.2\n  port: 5080\nuser:\n  sip_log: true\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))
	CfgFile = path

	require.NoError(t, InitConfig())
	cfg := CurrentConfig()
	assert.Equal(t, "10.0.0.1, 10.0.0.2", cfg.Sip.IP)
	assert.Equal(t, 5080, cfg.Sip.Port)
	assert.True(t, cfg.User.SipLog)
	assert.Equal(t, Defaults().Sip.InboundBurst, cfg.Sip.InboundBurst)
}

func TestInitConfigEnvOverride(t *testing.T) {
	resetViper(t)

	path := filepath.Join(t.TempDir(), "siplayer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sip:\n  port: 5080\n"), 0o600))
	CfgFile = path
	t.Setenv("SIPLAYER_SIP_PORT", "5090")

	require.NoError(t, InitConfig())
	assert.Equal(t, 5090, CurrentConfig().Sip.Port)
}

func TestInitConfigMissingExplicitFile(t *testing.T) {
	resetViper(t)
	CfgFile = filepath.Join(t.TempDir(), "missing.yaml")

	assert.Error(t, InitConfig())
}

func TestInitConfigCreatesDefaultFile(t *testing.T) {
	resetViper(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	CfgFile = ""

	require.NoError(t, InitConfig())
	_, err := os.Stat(filepath.Join(home, SIPLAYER_BASE_DIR, "config.yaml"))
	assert.NoError(t, err)
}

func TestDefaultFileIgnoresOverrides(t *testing.T) {
	resetViper(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SIPLAYER_SIP_PORT", "5099")
	CfgFile = ""

	require.NoError(t, InitConfig())
	assert.Equal(t, 5099, CurrentConfig().Sip.Port)

	body, err := os.ReadFile(filepath.Join(home, SIPLAYER_BASE_DIR, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "port: 5060")
	assert.NotContains(t, string(body), "5099")
}
