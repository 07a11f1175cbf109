package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse(nil, env(nil))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, BackendPortal, cfg.Backend)
	assert.Equal(t, "weblinuxremote", filepath.Base(cfg.StateDir))
	assert.Equal(t, 70, cfg.JPEGQuality)
	assert.Equal(t, time.Second, cfg.IdleSleep)
	assert.Equal(t, 10*time.Millisecond, cfg.KeyHold)
	assert.Equal(t, 50*time.Millisecond, cfg.BootstrapStepDelay)
	assert.True(t, cfg.Bootstrap)
	assert.Equal(t, 25, cfg.Framerate)
	assert.Equal(t, 4096, cfg.MaxWidth)
	assert.Equal(t, 4096, cfg.MaxHeight)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
listen: 0.0.0.0:9000
backend: x11
jpeg_quality: 85
idle_sleep: 250ms
bootstrap: false
display: 1
log:
  level: debug
  format: json
webrtc:
  ice_servers:
    - urls: ["stun:stun.l.google.com:19302"]
    - urls: ["turn:turn.example.net:3478"]
      username: remote
      credential: secret
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, BackendX11, cfg.Backend)
	assert.Equal(t, 85, cfg.JPEGQuality)
	assert.Equal(t, 250*time.Millisecond, cfg.IdleSleep)
	assert.False(t, cfg.Bootstrap)
	assert.Equal(t, 1, cfg.Display)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Logging().Format)
	require.Len(t, cfg.WebRTC.ICEServers, 2)
	assert.Equal(t, "secret", cfg.WebRTC.ICEServers[1].Credential)

	// Untouched fields keep their defaults.
	assert.Equal(t, 25, cfg.Framerate)
	assert.Equal(t, 10*time.Millisecond, cfg.KeyHold)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPrecedence(t *testing.T) {
	path := writeConfig(t, "listen: 10.0.0.1:7000\njpeg_quality: 40\nframerate: 30\n")

	cfg, err := Parse(
		[]string{"--config", path, "--jpeg-quality", "90"},
		env(map[string]string{"PORT": "7100"}),
	)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:7100", cfg.Listen, "env overrides the file")
	assert.Equal(t, 90, cfg.JPEGQuality, "flags override the file")
	assert.Equal(t, 30, cfg.Framerate)

	cfg, err = Parse(
		[]string{"-c", path, "--listen", "[::1]:6000"},
		env(map[string]string{"IP": "0.0.0.0", "PORT": "7100"}),
	)
	require.NoError(t, err)
	assert.Equal(t, "[::1]:6000", cfg.Listen, "flags override env")
}

func TestEnvIP(t *testing.T) {
	cfg, err := Parse(nil, env(map[string]string{"IP": "0.0.0.0"}))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Listen)
}

func TestBoolFlag(t *testing.T) {
	cfg, err := Parse([]string{"--bootstrap=false", "--key-hold", "20ms"}, env(nil))
	require.NoError(t, err)
	assert.False(t, cfg.Bootstrap)
	assert.Equal(t, 20*time.Millisecond, cfg.KeyHold)
}

func TestHelp(t *testing.T) {
	_, err := Parse([]string{"--help"}, env(nil))
	assert.ErrorIs(t, err, pflag.ErrHelp)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"listen", func(c *Config) { c.Listen = "nohost" }, "listen"},
		{"port", func(c *Config) { c.Listen = "127.0.0.1:99999" }, "listen"},
		{"backend", func(c *Config) { c.Backend = "vnc" }, "backend"},
		{"state dir", func(c *Config) { c.StateDir = "" }, "state_dir"},
		{"quality", func(c *Config) { c.JPEGQuality = 0 }, "jpeg_quality"},
		{"idle sleep", func(c *Config) { c.IdleSleep = -time.Second }, "idle_sleep"},
		{"framerate", func(c *Config) { c.Framerate = 0 }, "framerate"},
		{"width", func(c *Config) { c.MaxWidth = 8192 }, "max_width"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"ice", func(c *Config) { c.WebRTC.ICEServers = []ICEServer{{}} }, "ice_servers[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.field)
		})
	}

	x11 := Default()
	x11.Backend = BackendX11
	x11.StateDir = ""
	assert.NoError(t, x11.Validate(), "x11 needs no state dir")
}
