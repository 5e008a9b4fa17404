package history

import (
	"time"

	"codeberg.org/mutker/agxmon/internal/errors"
)

const (
	defaultDirPerm = 0o755
	defaultDBPath  = "/var/lib/agxmon/history.db"
)

type Config struct {
	Enabled       bool
	Path          string
	BatchSize     int
	FlushInterval time.Duration
	// Buffer is the number of snapshots that may wait for the writer
	Buffer int
}

func DefaultConfig() Config {
	return Config{
		Path:          defaultDBPath,
		BatchSize:     10,
		FlushInterval: 30 * time.Second,
		Buffer:        256,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if !c.Enabled {
		return nil
	}
	if c.Path == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 1 || c.FlushInterval <= 0 || c.Buffer < c.BatchSize {
		return errFactory.WithData(ErrInvalidConfig, struct {
			BatchSize     int
			FlushInterval time.Duration
			Buffer        int
		}{c.BatchSize, c.FlushInterval, c.Buffer})
	}

	return nil
}
