package monitor

import "codeberg.org/mutker/agxmon/internal/errors"

const (
	ErrLinkDead     errors.ErrorCode = "monitor_link_dead"
	ErrCorruptFrame errors.ErrorCode = "monitor_corrupt_frame"
	ErrNamespace    errors.ErrorCode = "monitor_namespace_closed"
)
