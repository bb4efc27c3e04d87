package config

import "recorder/internal/logging"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`      // debug, info, warn, error
	Format     string          `yaml:"format"`     // console, json
	File       string          `yaml:"file"`       // empty writes to stderr
	DebugMode  bool            `yaml:"debug_mode"` // forces debug level everywhere
	Categories map[string]bool `yaml:"categories"` // per-category toggles
}

// ToLogging converts the section for logging.Initialize.
func (c *LoggingConfig) ToLogging() logging.Config {
	return logging.Config{
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		DebugMode:  c.DebugMode,
		Categories: c.Categories,
	}
}
