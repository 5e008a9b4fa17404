package config

import (
	"os"
	"strings"

	"codeberg.org/mutker/agxmon/internal/errors"
	"codeberg.org/mutker/agxmon/internal/logger"
	"codeberg.org/mutker/agxmon/internal/monitor"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type flagSpec struct {
	key   string
	name  string
	usage string
}

var flags = []flagSpec{
	{"host", "host", "Telemetry source host"},
	{"port", "port", "Telemetry source port"},
	{"tls", "tls", "Connect with wss://"},
	{"event", "event", "Socket.IO event carrying telemetry"},
	{"auto_start", "auto-start", "Start monitoring at launch"},
	{"startup_delay", "startup-delay", "Delay before the first connection attempt"},
	{"reconnect_interval", "reconnect-interval", "Interval between attempts after fast retries"},
	{"fast_retry_count", "fast-retry-count", "Number of fast retries"},
	{"fast_retry_interval", "fast-retry-interval", "Interval between fast retries"},
	{"heartbeat_timeout", "heartbeat-timeout", "Silence after which the link is dropped"},
	{"data_warn_timeout", "data-warn-timeout", "Silence after which a warning is logged"},
	{"stale_after", "stale-after", "Age after which a snapshot is stale"},
	{"watchdog_tick", "watchdog-tick", "Watchdog evaluation interval"},
	{"lock_timeout", "lock-timeout", "Bounded wait for the monitor lock"},
	{"max_frame_size", "max-frame-size", "Largest inbound frame processed, in bytes"},
	{"log_level", "log-level", "Log level (debug, info, warn, error)"},
	{"console", "console", "Enable the interactive console"},
	{"pid_file", "pid-file", "PID file name or path"},
	{"history.enabled", "history", "Record snapshots to sqlite"},
	{"history.path", "history-path", "History database path"},
	{"history.batch_size", "history-batch-size", "Snapshots per history write"},
	{"history.flush_interval", "history-flush-interval", "Maximum delay before a history write"},
}

func setDefaults(v *viper.Viper) {
	d := monitor.DefaultConfig()

	v.SetDefault("host", d.Host)
	v.SetDefault("port", d.Port)
	v.SetDefault("tls", d.TLS)
	v.SetDefault("event", d.Event)
	v.SetDefault("auto_start", d.AutoStart)
	v.SetDefault("startup_delay", d.StartupDelay)
	v.SetDefault("reconnect_interval", d.ReconnectInterval)
	v.SetDefault("fast_retry_count", d.FastRetryCount)
	v.SetDefault("fast_retry_interval", d.FastRetryInterval)
	v.SetDefault("heartbeat_timeout", d.HeartbeatTimeout)
	v.SetDefault("data_warn_timeout", d.DataWarnTimeout)
	v.SetDefault("stale_after", d.StaleAfter)
	v.SetDefault("watchdog_tick", d.WatchdogTick)
	v.SetDefault("lock_timeout", d.LockTimeout)
	v.SetDefault("max_frame_size", d.MaxFrameSize)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("console", true)
	v.SetDefault("pid_file", DefaultPIDFile)
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", DefaultHistoryPath)
	v.SetDefault("history.batch_size", DefaultHistoryBatchSize)
	v.SetDefault("history.flush_interval", DefaultHistoryFlushInterval)
	v.SetDefault("history.buffer", DefaultHistoryBuffer)
}

// newFlagSet declares every flag with a zero default. Viper only takes a
// flag's value when it was set on the command line.
func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("agxmon", pflag.ContinueOnError)
	fs.String("config", "", "Configuration file (TOML)")

	for _, f := range flags {
		switch f.key {
		case "port", "fast_retry_count", "max_frame_size", "history.batch_size":
			fs.Int(f.name, 0, f.usage)
		case "tls", "auto_start", "console", "history.enabled":
			fs.Bool(f.name, false, f.usage)
		case "startup_delay", "reconnect_interval", "fast_retry_interval", "heartbeat_timeout",
			"data_warn_timeout", "stale_after", "watchdog_tick", "lock_timeout", "history.flush_interval":
			fs.Duration(f.name, 0, f.usage)
		default:
			fs.String(f.name, "", f.usage)
		}
	}

	return fs
}

// Load reads configuration from defaults, the TOML file, the environment
// and args, in increasing order of precedence. args excludes the program
// name.
func Load(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{
		configDir: DefaultConfigDir,
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	for _, f := range flags {
		if err := v.BindPFlag(f.key, fs.Lookup(f.name)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := o.configPath
	if cf, _ := fs.GetString("config"); cf != "" {
		path = cf
	}
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(o.configDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errFactory.Wrap(errors.ErrReadConfig, err)
			}
		}
	}

	cfg := &Config{
		Monitor: monitor.Config{
			Host:              v.GetString("host"),
			Port:              v.GetInt("port"),
			TLS:               v.GetBool("tls"),
			Event:             v.GetString("event"),
			AutoStart:         v.GetBool("auto_start"),
			StartupDelay:      v.GetDuration("startup_delay"),
			ReconnectInterval: v.GetDuration("reconnect_interval"),
			FastRetryCount:    v.GetInt("fast_retry_count"),
			FastRetryInterval: v.GetDuration("fast_retry_interval"),
			HeartbeatTimeout:  v.GetDuration("heartbeat_timeout"),
			DataWarnTimeout:   v.GetDuration("data_warn_timeout"),
			StaleAfter:        v.GetDuration("stale_after"),
			WatchdogTick:      v.GetDuration("watchdog_tick"),
			LockTimeout:       v.GetDuration("lock_timeout"),
			MaxFrameSize:      v.GetInt("max_frame_size"),
		},
		LogLevel: v.GetString("log_level"),
		Console:  v.GetBool("console"),
		PIDFile:  v.GetString("pid_file"),
		History: HistoryConfig{
			Enabled:       v.GetBool("history.enabled"),
			Path:          v.GetString("history.path"),
			BatchSize:     v.GetInt("history.batch_size"),
			FlushInterval: v.GetDuration("history.flush_interval"),
			Buffer:        v.GetInt("history.buffer"),
		},
		Source: v.ConfigFileUsed(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the daemon settings and the monitor configuration
func (c *Config) Validate() error {
	errFactory := errors.New()

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if err := c.Monitor.Validate(); err != nil {
		return errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	if c.History.Enabled {
		switch {
		case c.History.Path == "":
			return errFactory.WithMessage(errors.ErrInvalidConfig, "history.path must not be empty")
		case c.History.BatchSize < 1:
			return errFactory.WithMessage(errors.ErrInvalidConfig, "history.batch_size must be positive")
		case c.History.FlushInterval <= 0:
			return errFactory.WithMessage(errors.ErrInvalidConfig, "history.flush_interval must be positive")
		case c.History.Buffer < c.History.BatchSize:
			return errFactory.WithMessage(errors.ErrInvalidConfig, "history.buffer must hold a full batch")
		}
	}

	return nil
}
