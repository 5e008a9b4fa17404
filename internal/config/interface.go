package config

import (
	"time"

	"codeberg.org/mutker/agxmon/internal/monitor"
)

const (
	DefaultEnvPrefix  = "AGXMON"
	DefaultConfigName = "agxmon"
	DefaultConfigDir  = "/etc"
	DefaultLogLevel   = "info"
	DefaultPIDFile    = "agxmon.pid"

	DefaultHistoryPath          = "/var/lib/agxmon/history.db"
	DefaultHistoryBatchSize     = 10
	DefaultHistoryFlushInterval = 30 * time.Second
	DefaultHistoryBuffer        = 256
)

// Config is the complete daemon configuration
type Config struct {
	Monitor  monitor.Config
	LogLevel string
	// Console enables the interactive shell on stdin
	Console bool
	PIDFile string
	History HistoryConfig
	// Source is the configuration file that was read, empty if none
	Source string
}

// HistoryConfig controls the optional sqlite snapshot log
type HistoryConfig struct {
	Enabled       bool
	Path          string
	BatchSize     int
	FlushInterval time.Duration
	Buffer        int
}

// Option defines a configuration option that can be passed to Load
type Option func(*options) error

type options struct {
	configPath string
	configDir  string
	envPrefix  string
}

// WithConfigFile specifies an explicit configuration file path. A missing
// explicit file is an error.
func WithConfigFile(path string) Option {
	return func(o *options) error {
		o.configPath = path
		return nil
	}
}

// WithConfigDir changes the directory searched for agxmon.toml
func WithConfigDir(dir string) Option {
	return func(o *options) error {
		o.configDir = dir
		return nil
	}
}

// WithEnvPrefix specifies a custom environment variable prefix
// Default is "AGXMON"
func WithEnvPrefix(prefix string) Option {
	return func(o *options) error {
		o.envPrefix = prefix
		return nil
	}
}
