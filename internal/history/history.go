// Package history keeps an optional local sqlite log of decoded snapshots
// for inspection.
package history

import (
	"context"

	"codeberg.org/mutker/agxmon/internal/errors"
	"codeberg.org/mutker/agxmon/internal/logger"
	"codeberg.org/mutker/agxmon/internal/telemetry"
)

type noopRecorder struct{}

// New returns a sqlite backed Recorder, or a no-op one when history is
// disabled
func New(cfg Config, log logger.Logger) (Recorder, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Str("component", "history").Msg("History disabled, using no-op recorder")
		return noopRecorder{}, nil
	}

	repo, err := newRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	return repo, nil
}

func (noopRecorder) Record(telemetry.Snapshot) bool { return false }

func (noopRecorder) Recent(context.Context, int) ([]Entry, error) { return nil, nil }

func (noopRecorder) Enabled() bool { return false }

func (noopRecorder) Close() error { return nil }
