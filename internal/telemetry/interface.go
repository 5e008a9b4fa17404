package telemetry

import "time"

// MaxCores is the number of CPU cores a Snapshot can hold. Cores reported
// beyond it are dropped.
const MaxCores = 12

// Snapshot is one decoded telemetry record. It is a plain value: copying it
// copies every section, including the core array.
type Snapshot struct {
	// Timestamp is the producer's timestamp, kept verbatim
	Timestamp   string
	CPU         CPUMetrics
	Memory      MemoryMetrics
	Temperature TempMetrics
	Power       PowerMetrics
	GPU         GPUMetrics
	Valid       bool
	// CapturedAt is the local receive time (carries a monotonic reading)
	CapturedAt time.Time
}

// Domain value objects
type CPUMetrics struct {
	CoreCount int
	Cores     [MaxCores]CoreMetrics
}

type CoreMetrics struct {
	ID        int
	Usage     float64
	Frequency float64
}

type MemoryMetrics struct {
	RAM  MemoryUsage
	Swap MemoryUsage
}

type MemoryUsage struct {
	Used   float64
	Total  float64
	Cached float64
	Unit   string
}

type TempMetrics struct {
	CPU  float64
	GPU  float64
	SOC0 float64
	SOC1 float64
	TJ   float64
}

type PowerMetrics struct {
	GPUSOC PowerRail
	CPUCV  PowerRail
	SYS5V0 PowerRail
	RAM    PowerRail
	Swap   PowerRail
}

type PowerRail struct {
	Current float64
	Average float64
	Unit    string
}

type GPUMetrics struct {
	Load3D float64
}

// ActiveCores returns the populated part of the core array
func (c CPUMetrics) ActiveCores() []CoreMetrics {
	return c.Cores[:c.CoreCount]
}

// AverageUsage returns the mean usage across the populated cores
func (c CPUMetrics) AverageUsage() float64 {
	if c.CoreCount == 0 {
		return 0
	}

	var sum float64
	for _, core := range c.ActiveCores() {
		sum += core.Usage
	}

	return sum / float64(c.CoreCount)
}

// TotalCurrent sums the instantaneous reading of all rails. Callers should
// only sum rails that share a unit.
func (p PowerMetrics) TotalCurrent() float64 {
	return p.GPUSOC.Current + p.CPUCV.Current + p.SYS5V0.Current
}
