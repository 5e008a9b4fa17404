package telemetry_test

import (
	"fmt"
	"strings"
	"testing"

	"codeberg.org/mutker/agxmon/internal/errors"
	"codeberg.org/mutker/agxmon/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullPayload = `{
	"timestamp": "2024-05-01T10:00:00Z",
	"cpu": {"cores": [
		{"id": 0, "usage": 12.5, "freq": 1984},
		{"id": 1, "usage": "40", "freq": 2201.6}
	]},
	"memory": {
		"ram": {"used": 5120, "total": 31000, "cached": 900, "unit": "MB"},
		"swap": {"used": 0, "total": 15500, "cached": 0, "unit": "MB"}
	},
	"temperature": {"cpu": 45.1, "gpu": 43.2, "soc0": 41, "soc1": 42, "tj": 46.5},
	"power": {
		"gpu_soc": {"current": 3200, "average": 3100, "unit": "mW"},
		"cpu_cv": {"current": 1500, "average": 1450, "unit": "mW"},
		"sys_5v0": {"current": 4000, "average": 3900, "unit": "mW"},
		"ram": {"current": 700, "average": 31000, "unit": "mW"},
		"swap": {"current": 0, "average": 62000, "unit": "mW"}
	},
	"gpu": {"load": 37.5}
}`

func TestDecodeFullPayload(t *testing.T) {
	snap, err := telemetry.Decode([]byte(fullPayload))
	require.NoError(t, err)

	assert.True(t, snap.Valid)
	assert.Equal(t, "2024-05-01T10:00:00Z", snap.Timestamp)

	require.Equal(t, 2, snap.CPU.CoreCount)
	assert.Equal(t, telemetry.CoreMetrics{ID: 0, Usage: 12.5, Frequency: 1984}, snap.CPU.Cores[0])
	assert.Equal(t, telemetry.CoreMetrics{ID: 1, Usage: 40, Frequency: 2201.6}, snap.CPU.Cores[1])
	assert.InDelta(t, 26.25, snap.CPU.AverageUsage(), 0.001)

	assert.Equal(t, telemetry.MemoryUsage{Used: 5120, Total: 31000, Cached: 900, Unit: "MB"}, snap.Memory.RAM)
	assert.Equal(t, 15500.0, snap.Memory.Swap.Total)

	assert.Equal(t, telemetry.TempMetrics{CPU: 45.1, GPU: 43.2, SOC0: 41, SOC1: 42, TJ: 46.5}, snap.Temperature)

	assert.Equal(t, telemetry.PowerRail{Current: 3200, Average: 3100, Unit: "mW"}, snap.Power.GPUSOC)
	assert.Equal(t, 700.0, snap.Power.RAM.Average, "memory size in RAM average replaced by current")
	assert.Equal(t, 0.0, snap.Power.Swap.Average, "memory size in swap average replaced by current")
	assert.Equal(t, 8700.0, snap.Power.TotalCurrent())

	assert.Equal(t, 37.5, snap.GPU.Load3D)
}

func TestDecodeCPUOnly(t *testing.T) {
	snap, err := telemetry.Decode([]byte(`{"cpu":{"cores":[{"id":0,"usage":55,"freq":1900}]}}`))
	require.NoError(t, err)

	assert.True(t, snap.Valid)
	require.Equal(t, 1, snap.CPU.CoreCount)
	assert.Equal(t, telemetry.CoreMetrics{ID: 0, Usage: 55, Frequency: 1900}, snap.CPU.Cores[0])
	assert.Equal(t, telemetry.MemoryMetrics{}, snap.Memory)
	assert.Equal(t, telemetry.TempMetrics{}, snap.Temperature)
	assert.Equal(t, telemetry.PowerMetrics{}, snap.Power)
	assert.Equal(t, telemetry.GPUMetrics{}, snap.GPU)
	assert.Empty(t, snap.Timestamp)
}

func TestDecodeMalformed(t *testing.T) {
	inputs := []string{
		`{"cpu": {`,
		`not json`,
		``,
		`[1, 2, 3]`,
		`"telemetry"`,
	}

	for _, in := range inputs {
		snap, err := telemetry.Decode([]byte(in))
		require.Error(t, err, in)
		assert.True(t, errors.HasCode(err, errors.ErrParse), in)
		assert.False(t, snap.Valid, in)
	}
}

func TestDecodeBadSectionKeepsOthers(t *testing.T) {
	payload := `{
		"cpu": {"cores": [{"id": 0, "usage": 10, "freq": 1000}]},
		"memory": "unavailable",
		"gpu": {"load": "busy"},
		"temperature": {"cpu": 50}
	}`

	snap, err := telemetry.Decode([]byte(payload))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, telemetry.ErrSectionInvalid))

	var appErr errors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, []string{"memory", "gpu"}, appErr.GetData())

	assert.False(t, snap.Valid)
	assert.Equal(t, 1, snap.CPU.CoreCount)
	assert.Equal(t, 50.0, snap.Temperature.CPU)
	assert.Equal(t, telemetry.MemoryMetrics{}, snap.Memory)
	assert.Equal(t, telemetry.GPUMetrics{}, snap.GPU)
}

func TestDecodeBadCoreDiscardsCPUSection(t *testing.T) {
	payload := `{"cpu": {"cores": [{"id": 0, "usage": 10}, 7]}, "gpu": {"load": 3}}`

	snap, err := telemetry.Decode([]byte(payload))
	require.Error(t, err)
	assert.False(t, snap.Valid)
	assert.Equal(t, 0, snap.CPU.CoreCount)
	assert.Equal(t, 3.0, snap.GPU.Load3D)
}

func TestDecodeTruncatesCores(t *testing.T) {
	cores := make([]string, 0, telemetry.MaxCores+4)
	for i := 0; i < telemetry.MaxCores+4; i++ {
		cores = append(cores, fmt.Sprintf(`{"id":%d,"usage":%d,"freq":1500}`, i, i))
	}
	payload := `{"cpu":{"cores":[` + strings.Join(cores, ",") + `]}}`

	snap, err := telemetry.Decode([]byte(payload))
	require.NoError(t, err)
	assert.True(t, snap.Valid)
	assert.Equal(t, telemetry.MaxCores, snap.CPU.CoreCount)
	assert.Equal(t, telemetry.MaxCores-1, snap.CPU.Cores[telemetry.MaxCores-1].ID)
}

func TestMemoryRailQuirkFilter(t *testing.T) {
	cases := []struct {
		name    string
		average float64
		want    float64
	}{
		{"memory size reported", 50000, 650},
		{"plausible average", 4000, 4000},
		{"negative garbage", -60000, 650},
		{"at limit", telemetry.PowerSanityLimit, telemetry.PowerSanityLimit},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := fmt.Sprintf(`{"power":{"ram":{"current":650,"average":%v,"unit":"mW"},
				"gpu_soc":{"current":650,"average":%v}}}`, tc.average, tc.average)

			snap, err := telemetry.Decode([]byte(payload))
			require.NoError(t, err)
			assert.Equal(t, tc.want, snap.Power.RAM.Average)
			assert.Equal(t, tc.average, snap.Power.GPUSOC.Average, "filter applies to memory rails only")
		})
	}
}

func TestDecodeNullAndNumericTimestamp(t *testing.T) {
	snap, err := telemetry.Decode([]byte(`{"timestamp": 1714557600, "temperature": {"cpu": null, "gpu": 30}}`))
	require.NoError(t, err)
	assert.True(t, snap.Valid)
	assert.Equal(t, "1714557600", snap.Timestamp)
	assert.Equal(t, 0.0, snap.Temperature.CPU)
	assert.Equal(t, 30.0, snap.Temperature.GPU)
}
