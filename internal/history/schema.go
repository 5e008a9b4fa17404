package history

import (
	"database/sql"

	"codeberg.org/mutker/agxmon/internal/errors"
	"codeberg.org/mutker/agxmon/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS snapshots (
	       id           INTEGER PRIMARY KEY AUTOINCREMENT,
	       captured_at  INTEGER NOT NULL,
	       source_ts    TEXT NOT NULL,
	       active_cores INTEGER NOT NULL CHECK (active_cores BETWEEN 0 AND 12),
	       cpu_usage    REAL NOT NULL,
	       ram_used     REAL NOT NULL,
	       ram_total    REAL NOT NULL,
	       ram_unit     TEXT NOT NULL,
	       temp_cpu     REAL NOT NULL,
	       temp_gpu     REAL NOT NULL,
	       temp_tj      REAL NOT NULL,
	       power_total  REAL NOT NULL,
	       gpu_load     REAL NOT NULL
	   );
	   CREATE INDEX IF NOT EXISTS snapshots_captured_at ON snapshots (captured_at);`

	insertSnapshotSQL = `
    INSERT INTO snapshots (
        captured_at, source_ts, active_cores, cpu_usage,
        ram_used, ram_total, ram_unit,
        temp_cpu, temp_gpu, temp_tj,
        power_total, gpu_load
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	recentSnapshotsSQL = `
    SELECT captured_at, source_ts, active_cores, cpu_usage,
           ram_used, ram_total, ram_unit,
           temp_cpu, temp_gpu, temp_tj,
           power_total, gpu_load
    FROM snapshots
    ORDER BY captured_at DESC, id DESC
    LIMIT ?`
)

// InitSchema creates a new database schema with the current version
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback schema creation")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Phase string
			Error string
		}{
			Phase: "create_tables",
			Error: err.Error(),
		})
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Phase string
			Error string
		}{
			Phase: "record_version",
			Error: err.Error(),
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Info().
		Str("component", "history").
		Int("version", SchemaVersion).
		Msg("Schema initialized")

	return nil
}

// GetSchemaVersion returns the current schema version, 0 for a new database
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "get_version",
			Error: err.Error(),
		})
	}

	return version, nil
}

// TableExists checks if a table exists
func TableExists(db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errors.New().WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: tableName,
			Error: err.Error(),
		})
	}

	return exists, nil
}
