// Package config loads the remote-desktop configuration from an optional
// YAML file, the IP and PORT environment variables and command-line flags,
// applied in that order.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"weblinuxremote/internal/logging"
)

const (
	BackendPortal = "portal"
	BackendX11    = "x11"

	appName = "weblinuxremote"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Listen             string        `yaml:"listen"`
	Backend            string        `yaml:"backend"`
	StateDir           string        `yaml:"state_dir"`
	JPEGQuality        int           `yaml:"jpeg_quality"`
	IdleSleep          time.Duration `yaml:"idle_sleep"`
	KeyHold            time.Duration `yaml:"key_hold"`
	BootstrapStepDelay time.Duration `yaml:"bootstrap_step_delay"`
	Bootstrap          bool          `yaml:"bootstrap"`
	Framerate          int           `yaml:"framerate"`
	MaxWidth           int           `yaml:"max_width"`
	MaxHeight          int           `yaml:"max_height"`
	// Display is the screen index for the x11 backend.
	Display int          `yaml:"display"`
	Log     LogConfig    `yaml:"log"`
	WebRTC  WebRTCConfig `yaml:"webrtc"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Logging converts to the logging package's options.
func (c LogConfig) Logging() logging.Config {
	return logging.Config{Level: c.Level, Format: c.Format, File: c.File}
}

type WebRTCConfig struct {
	ICEServers []ICEServer `yaml:"ice_servers"`
}

type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username"`
	Credential string   `yaml:"credential"`
}

func Default() *Config {
	return &Config{
		Listen:             "127.0.0.1:8080",
		Backend:            BackendPortal,
		StateDir:           filepath.Join(xdg.StateHome, appName),
		JPEGQuality:        70,
		IdleSleep:          time.Second,
		KeyHold:            10 * time.Millisecond,
		BootstrapStepDelay: 50 * time.Millisecond,
		Bootstrap:          true,
		Framerate:          25,
		MaxWidth:           4096,
		MaxHeight:          4096,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.load(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// Parse builds the configuration for a command line. args excludes the
// program name. It returns pflag.ErrHelp when help was requested.
func Parse(args []string, getenv func(string) string) (*Config, error) {
	def := Default()
	fs := pflag.NewFlagSet(appName, pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", "", "path to a YAML configuration file")
	listen := fs.String("listen", def.Listen, "HTTP listen address")
	backend := fs.String("backend", def.Backend, "capture and input backend (portal or x11)")
	stateDir := fs.String("state-dir", def.StateDir, "directory holding the portal restore token")
	quality := fs.Int("jpeg-quality", def.JPEGQuality, "JPEG quality, 1-100")
	idleSleep := fs.Duration("idle-sleep", def.IdleSleep, "pause between frames while nobody is watching")
	keyHold := fs.Duration("key-hold", def.KeyHold, "time a key is held down when pressed")
	stepDelay := fs.Duration("bootstrap-step-delay", def.BootstrapStepDelay, "delay between bootstrap key presses")
	bootstrap := fs.Bool("bootstrap", def.Bootstrap, "dismiss the portal dialog with a bootstrap session")
	framerate := fs.Int("framerate", def.Framerate, "preferred capture framerate")
	maxWidth := fs.Int("max-width", def.MaxWidth, "largest accepted frame width")
	maxHeight := fs.Int("max-height", def.MaxHeight, "largest accepted frame height")
	display := fs.Int("display", def.Display, "screen index for the x11 backend")
	logLevel := fs.String("log-level", def.Log.Level, "log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", def.Log.Format, "log format (text or json)")
	logFile := fs.String("log-file", "", "also write logs to this file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := def
	if *configPath != "" {
		if err := cfg.load(*configPath); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv(getenv)

	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "listen":
			cfg.Listen = *listen
		case "backend":
			cfg.Backend = *backend
		case "state-dir":
			cfg.StateDir = *stateDir
		case "jpeg-quality":
			cfg.JPEGQuality = *quality
		case "idle-sleep":
			cfg.IdleSleep = *idleSleep
		case "key-hold":
			cfg.KeyHold = *keyHold
		case "bootstrap-step-delay":
			cfg.BootstrapStepDelay = *stepDelay
		case "bootstrap":
			cfg.Bootstrap = *bootstrap
		case "framerate":
			cfg.Framerate = *framerate
		case "max-width":
			cfg.MaxWidth = *maxWidth
		case "max-height":
			cfg.MaxHeight = *maxHeight
		case "display":
			cfg.Display = *display
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		case "log-file":
			cfg.Log.File = *logFile
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv lets IP and PORT replace either half of the listen address.
func (c *Config) applyEnv(getenv func(string) string) {
	if getenv == nil {
		return
	}
	ip, port := getenv("IP"), getenv("PORT")
	if ip == "" && port == "" {
		return
	}
	host, p, err := net.SplitHostPort(c.Listen)
	if err != nil {
		host, p = c.Listen, ""
	}
	if ip != "" {
		host = ip
	}
	if port != "" {
		p = port
	}
	c.Listen = net.JoinHostPort(host, p)
}

func (c *Config) Validate() error {
	if _, port, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("%w: listen: %v", ErrInvalidConfig, err)
	} else if _, err := strconv.ParseUint(port, 10, 16); err != nil && port != "" {
		return fmt.Errorf("%w: listen: bad port %q", ErrInvalidConfig, port)
	}
	switch c.Backend {
	case BackendPortal, BackendX11:
	default:
		return fmt.Errorf("%w: backend: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
	if c.Backend == BackendPortal && c.StateDir == "" {
		return fmt.Errorf("%w: state_dir is required", ErrInvalidConfig)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("%w: jpeg_quality: %d not in 1-100", ErrInvalidConfig, c.JPEGQuality)
	}
	if c.IdleSleep < 0 {
		return fmt.Errorf("%w: idle_sleep is negative", ErrInvalidConfig)
	}
	if c.KeyHold < 0 {
		return fmt.Errorf("%w: key_hold is negative", ErrInvalidConfig)
	}
	if c.BootstrapStepDelay < 0 {
		return fmt.Errorf("%w: bootstrap_step_delay is negative", ErrInvalidConfig)
	}
	if c.Framerate < 1 || c.Framerate > 1000 {
		return fmt.Errorf("%w: framerate: %d not in 1-1000", ErrInvalidConfig, c.Framerate)
	}
	if c.MaxWidth < 1 || c.MaxWidth > 4096 {
		return fmt.Errorf("%w: max_width: %d not in 1-4096", ErrInvalidConfig, c.MaxWidth)
	}
	if c.MaxHeight < 1 || c.MaxHeight > 4096 {
		return fmt.Errorf("%w: max_height: %d not in 1-4096", ErrInvalidConfig, c.MaxHeight)
	}
	if c.Display < 0 {
		return fmt.Errorf("%w: display is negative", ErrInvalidConfig)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalidConfig, err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log.format: unknown format %q", ErrInvalidConfig, c.Log.Format)
	}
	for i, s := range c.WebRTC.ICEServers {
		if len(s.URLs) == 0 {
			return fmt.Errorf("%w: webrtc.ice_servers[%d]: urls is required", ErrInvalidConfig, i)
		}
	}
	return nil
}
