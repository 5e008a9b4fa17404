package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrUnavailable     ErrorCode = "service_unavailable"

	// Lifecycle errors
	ErrInvalidState   ErrorCode = "invalid_state"
	ErrAlreadyRunning ErrorCode = "already_running"
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Link errors
	ErrTimeout   ErrorCode = "operation_timeout"
	ErrTransport ErrorCode = "transport_error"
	ErrNotOpen   ErrorCode = "transport_not_open"

	// Data errors
	ErrParse             ErrorCode = "parse_error"
	ErrResourceExhausted ErrorCode = "resource_exhausted"

	// Storage errors
	ErrStorageInit   ErrorCode = "storage_init_failed"
	ErrStorageAccess ErrorCode = "storage_access_failed"
	ErrStorageClose  ErrorCode = "storage_close_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:          "Internal error occurred",
	ErrInvalidArgument:   "Invalid argument provided",
	ErrUnavailable:       "Service unavailable",
	ErrInvalidState:      "Operation not allowed in current state",
	ErrAlreadyRunning:    "Already running",
	ErrInitFailed:        "Initialization failed",
	ErrShutdownFailed:    "Shutdown failed",
	ErrInvalidConfig:     "Invalid configuration",
	ErrBindFlags:         "Failed to bind flags",
	ErrReadConfig:        "Failed to read configuration",
	ErrInvalidLogLevel:   "Invalid log level",
	ErrTimeout:           "Operation timed out",
	ErrTransport:         "Transport failure",
	ErrNotOpen:           "Transport is not connected",
	ErrParse:             "Failed to parse message",
	ErrResourceExhausted: "Resource exhausted",
	ErrStorageInit:       "Failed to initialize storage",
	ErrStorageAccess:     "Failed to access storage",
	ErrStorageClose:      "Failed to close storage",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
