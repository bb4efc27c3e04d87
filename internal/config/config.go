package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"recorder/internal/browser"
	"recorder/internal/codegen"
	"recorder/internal/protocol"
)

// Config holds all recorder configuration.
type Config struct {
	// Recording behaviour
	Recorder RecorderConfig `yaml:"recorder"`

	// Ad hoc commands issued from the control surface
	Executor ExecutorConfig `yaml:"executor"`

	// Chrome connection
	Browser browser.Config `yaml:"browser"`

	// Control-surface transport
	Surface SurfaceConfig `yaml:"surface"`

	// Persistent command history
	Audit AuditConfig `yaml:"audit"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// RecorderConfig configures a recording session.
type RecorderConfig struct {
	// Language is the primary generator id, mirrored to Output.
	Language     string   `yaml:"language"`
	Mode         string   `yaml:"mode"`
	StartURL     string   `yaml:"start_url"`
	Output       string   `yaml:"output"`
	OutputDelay  string   `yaml:"output_delay"`
	UserSources  []string `yaml:"user_sources"`
	Programmatic bool     `yaml:"programmatic"`
	AutoExpect   bool     `yaml:"auto_expect"`

	ClickWindow     string `yaml:"click_window"`     // merge window for single clicks
	SignalThreshold string `yaml:"signal_threshold"` // how long a navigation counts as caused by an action
}

// ExecutorConfig configures the command executor.
type ExecutorConfig struct {
	Timeout string `yaml:"timeout"`
}

// SurfaceConfig configures the control-surface server.
type SurfaceConfig struct {
	Enabled         bool    `yaml:"enabled"`
	Addr            string  `yaml:"addr"`
	MaxMessageSize  int64   `yaml:"max_message_size"`
	EventsPerSecond float64 `yaml:"events_per_second"`
	Burst           int     `yaml:"burst"`
	ReadTimeout     string  `yaml:"read_timeout"`
	WriteTimeout    string  `yaml:"write_timeout"`
	PingInterval    string  `yaml:"ping_interval"`
}

// AuditConfig configures the call-log store.
type AuditConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Recorder: RecorderConfig{
			Language:        "playwright-test",
			Mode:            string(protocol.ModeRecording),
			OutputDelay:     "500ms",
			ClickWindow:     "500ms",
			SignalThreshold: "5s",
		},

		Executor: ExecutorConfig{
			Timeout: "5s",
		},

		Browser: browser.DefaultConfig(),

		Surface: SurfaceConfig{
			Enabled:         true,
			Addr:            "127.0.0.1:9323",
			MaxMessageSize:  1 << 20,
			EventsPerSecond: 50,
			Burst:           100,
			ReadTimeout:     "60s",
			WriteTimeout:    "10s",
			PingInterval:    "30s",
		},

		Audit: AuditConfig{
			Enabled:      false,
			DatabasePath: ".recorder/calllog.db",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("RECORDER_DEBUGGER_URL"); url != "" {
		c.Browser.DebuggerURL = url
	}
	if addr := os.Getenv("RECORDER_SURFACE_ADDR"); addr != "" {
		c.Surface.Addr = addr
	}
	if out := os.Getenv("RECORDER_OUTPUT"); out != "" {
		c.Recorder.Output = out
	}
	if level := os.Getenv("RECORDER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetCommandTimeout returns the executor deadline.
func (c *Config) GetCommandTimeout() time.Duration {
	return parseDuration(c.Executor.Timeout, 5*time.Second)
}

// GetOutputDelay returns how long output writes are coalesced.
func (c *Config) GetOutputDelay() time.Duration {
	return parseDuration(c.Recorder.OutputDelay, 500*time.Millisecond)
}

// GetClickWindow returns the single-click merge window.
func (c *Config) GetClickWindow() time.Duration {
	return parseDuration(c.Recorder.ClickWindow, 500*time.Millisecond)
}

// GetSignalThreshold returns the navigation attribution window.
func (c *Config) GetSignalThreshold() time.Duration {
	return parseDuration(c.Recorder.SignalThreshold, 5*time.Second)
}

func (c *Config) GetSurfaceReadTimeout() time.Duration {
	return parseDuration(c.Surface.ReadTimeout, 60*time.Second)
}

func (c *Config) GetSurfaceWriteTimeout() time.Duration {
	return parseDuration(c.Surface.WriteTimeout, 10*time.Second)
}

func (c *Config) GetSurfacePingInterval() time.Duration {
	return parseDuration(c.Surface.PingInterval, 30*time.Second)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, ok := codegen.Lookup(codegen.Builtin(), c.Recorder.Language); !ok {
		var ids []string
		for _, g := range codegen.Builtin() {
			ids = append(ids, g.ID())
		}
		return fmt.Errorf("invalid recorder language: %s (valid: %v)", c.Recorder.Language, ids)
	}
	if !protocol.Mode(c.Recorder.Mode).Valid() {
		return fmt.Errorf("invalid recorder mode: %s", c.Recorder.Mode)
	}

	durations := map[string]string{
		"recorder.output_delay":     c.Recorder.OutputDelay,
		"recorder.click_window":     c.Recorder.ClickWindow,
		"recorder.signal_threshold": c.Recorder.SignalThreshold,
		"executor.timeout":          c.Executor.Timeout,
		"surface.read_timeout":      c.Surface.ReadTimeout,
		"surface.write_timeout":     c.Surface.WriteTimeout,
		"surface.ping_interval":     c.Surface.PingInterval,
	}
	for field, v := range durations {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", field, err)
		}
	}

	if c.Surface.Enabled && c.Surface.Addr == "" {
		return fmt.Errorf("surface.addr is required when the surface is enabled")
	}
	if c.Audit.Enabled && c.Audit.DatabasePath == "" {
		return fmt.Errorf("audit.database_path is required when auditing is enabled")
	}
	return nil
}
