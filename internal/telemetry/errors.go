package telemetry

import "codeberg.org/mutker/agxmon/internal/errors"

const (
	// Payload Errors
	ErrMalformedPayload = errors.ErrParse

	// Section Errors
	ErrSectionInvalid = errors.ErrorCode("telemetry_section_invalid")
	ErrFieldType      = errors.ErrorCode("telemetry_field_type")
)
