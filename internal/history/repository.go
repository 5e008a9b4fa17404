package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/agxmon/internal/errors"
	"codeberg.org/mutker/agxmon/internal/logger"
	"codeberg.org/mutker/agxmon/internal/telemetry"
	_ "github.com/mattn/go-sqlite3"
)

type repository struct {
	db     *sql.DB
	logger logger.Logger
	cfg    Config

	mu     sync.RWMutex
	closed bool
	queue  chan Entry
	done   chan struct{}

	dropped atomic.Uint64
}

func newRepository(cfg Config, log logger.Logger) (*repository, error) {
	errFactory := errors.New()

	if cfg.Path == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.Path,
			Error: err.Error(),
		})
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal=WAL&_auto_vacuum=2&_busy_timeout=5000")
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	if err := ValidateAndUpdateSchema(db, cfg.Path, log); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	repo := &repository{
		db:     db,
		logger: log,
		cfg:    cfg,
		queue:  make(chan Entry, cfg.Buffer),
		done:   make(chan struct{}),
	}
	go repo.writer()

	log.Info().
		Str("component", "history").
		Str("path", cfg.Path).
		Int("batch_size", cfg.BatchSize).
		Dur("flush_interval", cfg.FlushInterval).
		Msg("History repository initialized")

	return repo, nil
}

func (r *repository) Record(snap telemetry.Snapshot) bool {
	if !snap.Valid {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return false
	}

	select {
	case r.queue <- EntryFrom(snap):
		return true
	default:
		if n := r.dropped.Add(1); n == 1 || n%100 == 0 {
			r.logger.Warn().Str("component", "history").Uint64("dropped", n).Msg("History queue full, snapshot dropped")
		}
		return false
	}
}

func (r *repository) Recent(ctx context.Context, n int) ([]Entry, error) {
	errFactory := errors.New()

	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, errFactory.New(ErrClosed)
	}
	if n <= 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, recentSnapshotsSQL, n)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			capturedAt int64
		)
		if err := rows.Scan(&capturedAt, &e.Timestamp, &e.ActiveCores, &e.CPUUsage,
			&e.RAMUsed, &e.RAMTotal, &e.RAMUnit,
			&e.TempCPU, &e.TempGPU, &e.TempTJ,
			&e.PowerTotal, &e.GPULoad); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		e.CapturedAt = time.Unix(0, capturedAt).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return entries, nil
}

func (*repository) Enabled() bool { return true }

// Close writes every queued entry and closes the database
func (r *repository) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done

	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		r.logger.Debug().Str("component", "history").Err(err).Msg("WAL checkpoint failed")
	}

	if err := r.db.Close(); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	r.logger.Info().Str("component", "history").Msg("History repository closed")

	return nil
}

// writer batches queued entries into transactions by size or interval
func (r *repository) writer() {
	defer close(r.done)

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, r.cfg.BatchSize)
	flush := func() {
		if err := r.flush(batch); err != nil {
			r.logger.Error().Str("component", "history").Err(err).Int("records", len(batch)).Msg("Failed to write history")
		}
		batch = batch[:0]
	}

	for {
		select {
		case e, ok := <-r.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= r.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (r *repository) flush(batch []Entry) error {
	if len(batch) == 0 {
		return nil
	}

	errFactory := errors.New()

	tx, err := r.db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	stmt, err := tx.Prepare(insertSnapshotSQL)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Error().Err(rbErr).Msg("Failed to roll back transaction")
		}
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for _, e := range batch {
		if _, err := stmt.Exec(
			e.CapturedAt.UnixNano(), e.Timestamp, e.ActiveCores, e.CPUUsage,
			e.RAMUsed, e.RAMTotal, e.RAMUnit,
			e.TempCPU, e.TempGPU, e.TempTJ,
			e.PowerTotal, e.GPULoad,
		); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Error().Err(rbErr).Msg("Failed to roll back transaction")
			}
			return errFactory.Wrap(ErrTransactionFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	r.logger.Debug().Str("component", "history").Int("records", len(batch)).Msg("Flushed history to database")

	return nil
}
