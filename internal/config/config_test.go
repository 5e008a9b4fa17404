package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/agxmon/internal/config"
	"codeberg.org/mutker/agxmon/internal/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "agxmon.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

// load isolates tests from /etc and the caller's environment
func load(t *testing.T, args []string, opts ...config.Option) (*config.Config, error) {
	t.Helper()
	t.Setenv("AGXMON_CONFIG", "")
	opts = append([]config.Option{config.WithConfigDir(t.TempDir())}, opts...)

	return config.Load(args, opts...)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
host = "10.1.1.2"
port = 5050
tls = true
event = "jtop"
auto_start = false
startup_delay = "5s"
reconnect_interval = "20s"
fast_retry_count = 5
fast_retry_interval = "500ms"
heartbeat_timeout = "60s"
data_warn_timeout = "20s"
stale_after = "15s"
watchdog_tick = "1s"
lock_timeout = "250ms"
max_frame_size = 32768
log_level = "debug"
console = false

[history]
enabled = true
path = "/tmp/agx.db"
batch_size = 25
flush_interval = "1m"
`)

	cfg, err := load(t, nil, config.WithConfigFile(path))
	require.NoError(t, err)

	m := cfg.Monitor
	assert.Equal(t, "10.1.1.2", m.Host)
	assert.Equal(t, 5050, m.Port)
	assert.True(t, m.TLS)
	assert.Equal(t, "jtop", m.Event)
	assert.False(t, m.AutoStart)
	assert.Equal(t, 5*time.Second, m.StartupDelay)
	assert.Equal(t, 20*time.Second, m.ReconnectInterval)
	assert.Equal(t, 5, m.FastRetryCount)
	assert.Equal(t, 500*time.Millisecond, m.FastRetryInterval)
	assert.Equal(t, time.Minute, m.HeartbeatTimeout)
	assert.Equal(t, 20*time.Second, m.DataWarnTimeout)
	assert.Equal(t, 15*time.Second, m.StaleAfter)
	assert.Equal(t, time.Second, m.WatchdogTick)
	assert.Equal(t, 250*time.Millisecond, m.LockTimeout)
	assert.Equal(t, 32768, m.MaxFrameSize)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.Console)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "/tmp/agx.db", cfg.History.Path)
	assert.Equal(t, 25, cfg.History.BatchSize)
	assert.Equal(t, time.Minute, cfg.History.FlushInterval)
	assert.Equal(t, path, cfg.Source)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(t, nil)
	require.NoError(t, err, "Failed to load config")

	m := cfg.Monitor
	assert.Equal(t, "192.168.55.1", m.Host)
	assert.Equal(t, 5000, m.Port)
	assert.False(t, m.TLS)
	assert.Equal(t, "telemetry", m.Event)
	assert.True(t, m.AutoStart)
	assert.Equal(t, 30*time.Second, m.StartupDelay)
	assert.Equal(t, 10*time.Second, m.ReconnectInterval)
	assert.Equal(t, 3, m.FastRetryCount)
	assert.Equal(t, 2*time.Second, m.FastRetryInterval)
	assert.Equal(t, 45*time.Second, m.HeartbeatTimeout)
	assert.Equal(t, 30*time.Second, m.DataWarnTimeout)
	assert.Equal(t, 5*time.Second, m.WatchdogTick)
	assert.Equal(t, 100*time.Millisecond, m.LockTimeout)
	assert.Equal(t, 16384, m.MaxFrameSize)

	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel, "Expected default LogLevel info")
	assert.True(t, cfg.Console)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, config.DefaultHistoryPath, cfg.History.Path)
	assert.Empty(t, cfg.Source)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	path := writeConfig(t, `
This is not a valid TOML file
`)

	_, err := load(t, nil, config.WithConfigFile(path))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := load(t, nil, config.WithConfigFile(filepath.Join(t.TempDir(), "missing.toml")))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestInvalidLogLevel(t *testing.T) {
	path := writeConfig(t, `
log_level = "invalid"
`)

	_, err := load(t, nil, config.WithConfigFile(path))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestInvalidMonitorSetting(t *testing.T) {
	path := writeConfig(t, `
port = 70000
`)

	_, err := load(t, nil, config.WithConfigFile(path))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
	assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument))
	assert.Contains(t, err.Error(), "port")
}

func TestPrecedence(t *testing.T) {
	path := writeConfig(t, `
host = "file-host"
port = 6000
log_level = "warn"
`)
	t.Setenv("AGXMON_PORT", "7000")
	t.Setenv("AGXMON_HISTORY_BATCH_SIZE", "50")

	cfg, err := load(t, []string{"--config", path, "--log-level", "debug"})
	require.NoError(t, err)

	assert.Equal(t, "file-host", cfg.Monitor.Host, "file over default")
	assert.Equal(t, 7000, cfg.Monitor.Port, "env over file")
	assert.Equal(t, "debug", cfg.LogLevel, "flag over file")
	assert.Equal(t, 50, cfg.History.BatchSize, "nested key from env")
}

func TestDurationFlag(t *testing.T) {
	cfg, err := load(t, []string{"--startup-delay", "0s", "--history"})
	require.NoError(t, err)

	assert.Zero(t, cfg.Monitor.StartupDelay)
	assert.True(t, cfg.History.Enabled)
}

func TestHelpFlag(t *testing.T) {
	_, err := load(t, []string{"--help"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, pflag.ErrHelp))
}

func TestUnknownFlag(t *testing.T) {
	_, err := load(t, []string{"--no-such-flag"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrBindFlags))
}

func TestEnvPrefix(t *testing.T) {
	t.Setenv("AGXTEST_HOST", "10.0.0.9")
	t.Setenv("AGXMON_HOST", "ignored")

	cfg, err := load(t, nil, config.WithEnvPrefix("AGXTEST"))
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9", cfg.Monitor.Host)
}
