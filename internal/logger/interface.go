package logger

import "codeberg.org/mutker/agxmon/internal/errors"

// Logger defines the interface for logging operations, for components that
// take their logger as a dependency instead of using the package functions.
type Logger interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	ErrorWithCode(err errors.Error) *LogEvent
}
