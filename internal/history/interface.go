package history

import (
	"context"
	"time"

	"codeberg.org/mutker/agxmon/internal/telemetry"
)

// Recorder keeps a local log of decoded snapshots
type Recorder interface {
	// Record queues snap without blocking and reports whether it was
	// accepted. Invalid snapshots are ignored.
	Record(snap telemetry.Snapshot) bool
	// Recent returns up to n stored entries, newest first. Queued entries
	// not yet written are not included.
	Recent(ctx context.Context, n int) ([]Entry, error)
	Enabled() bool
	Close() error
}

// Entry is the stored summary of one snapshot
type Entry struct {
	CapturedAt  time.Time
	Timestamp   string
	ActiveCores int
	CPUUsage    float64
	RAMUsed     float64
	RAMTotal    float64
	RAMUnit     string
	TempCPU     float64
	TempGPU     float64
	TempTJ      float64
	PowerTotal  float64
	GPULoad     float64
}

// EntryFrom summarises snap
func EntryFrom(snap telemetry.Snapshot) Entry {
	return Entry{
		CapturedAt:  snap.CapturedAt,
		Timestamp:   snap.Timestamp,
		ActiveCores: snap.CPU.CoreCount,
		CPUUsage:    snap.CPU.AverageUsage(),
		RAMUsed:     snap.Memory.RAM.Used,
		RAMTotal:    snap.Memory.RAM.Total,
		RAMUnit:     snap.Memory.RAM.Unit,
		TempCPU:     snap.Temperature.CPU,
		TempGPU:     snap.Temperature.GPU,
		TempTJ:      snap.Temperature.TJ,
		PowerTotal:  snap.Power.TotalCurrent(),
		GPULoad:     snap.GPU.Load3D,
	}
}
