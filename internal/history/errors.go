package history

import "codeberg.org/mutker/agxmon/internal/errors"

const (
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("history_invalid_db_path")

	ErrSchemaInitFailed       = errors.ErrorCode("history_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("history_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("history_schema_migration_failed")
	ErrTransactionFailed      = errors.ErrorCode("history_transaction_failed")

	ErrStorageAccess = errors.ErrStorageAccess
	ErrStorageInit   = errors.ErrStorageInit
	ErrStorageClose  = errors.ErrStorageClose
	ErrClosed        = errors.ErrorCode("history_closed")
)
