package telemetry

import (
	"math"
	"strconv"
	"strings"

	"codeberg.org/mutker/agxmon/internal/errors"
	"codeberg.org/mutker/agxmon/internal/logger"
	"github.com/tidwall/gjson"
)

// PowerSanityLimit is the largest plausible power reading in mW. Some
// producer firmware writes the memory size into the average field of the
// RAM and swap rails; such values exceed this limit.
const PowerSanityLimit = 20000

type section struct {
	name   string
	decode func(gjson.Result, *Snapshot) error
}

var sections = []section{
	{"timestamp", decodeTimestamp},
	{"cpu", decodeCPU},
	{"memory", decodeMemory},
	{"temperature", decodeTemperature},
	{"power", decodePower},
	{"gpu", decodeGPU},
}

// Decode converts one telemetry JSON object into a Snapshot. Sections decode
// independently: a bad section is left zeroed and reported, the others are
// still filled in. Valid is set only when every present section decoded.
func Decode(payload []byte) (Snapshot, error) {
	errFactory := errors.New()
	var snap Snapshot

	if !gjson.ValidBytes(payload) {
		return snap, errFactory.New(ErrMalformedPayload)
	}

	root := gjson.ParseBytes(payload)
	if !root.IsObject() {
		return snap, errFactory.WithMessage(ErrMalformedPayload, "payload is not a JSON object")
	}

	var failed []string
	for _, s := range sections {
		value := root.Get(s.name)
		if !value.Exists() {
			continue
		}

		if err := s.decode(value, &snap); err != nil {
			logger.Debug().
				Str("component", "decoder").
				Str("section", s.name).
				Err(err).
				Msg("Section rejected")
			failed = append(failed, s.name)
		}
	}

	if len(failed) > 0 {
		return snap, errFactory.WithData(ErrSectionInvalid, failed)
	}

	snap.Valid = true

	return snap, nil
}

func decodeTimestamp(value gjson.Result, snap *Snapshot) error {
	switch value.Type {
	case gjson.String:
		snap.Timestamp = value.Str
	case gjson.Number:
		snap.Timestamp = value.Raw
	default:
		return fieldTypeError("timestamp", value)
	}

	return nil
}

func decodeCPU(value gjson.Result, snap *Snapshot) error {
	if !value.IsObject() {
		return fieldTypeError("cpu", value)
	}

	var cpu CPUMetrics
	cores := value.Get("cores")
	if cores.Exists() {
		if !cores.IsArray() {
			return fieldTypeError("cpu.cores", cores)
		}

		var err error
		cores.ForEach(func(_, entry gjson.Result) bool {
			if cpu.CoreCount == MaxCores {
				return false
			}
			if !entry.IsObject() {
				err = fieldTypeError("cpu.cores[]", entry)
				return false
			}

			var id float64
			core := &cpu.Cores[cpu.CoreCount]
			if err = readNumbers(entry,
				field{"id", &id},
				field{"usage", &core.Usage},
				field{"freq", &core.Frequency},
			); err != nil {
				return false
			}
			core.ID = int(id)
			cpu.CoreCount++

			return true
		})
		if err != nil {
			return err
		}
	}

	snap.CPU = cpu

	return nil
}

func decodeMemory(value gjson.Result, snap *Snapshot) error {
	if !value.IsObject() {
		return fieldTypeError("memory", value)
	}

	var mem MemoryMetrics
	if err := decodeMemoryUsage(value.Get("ram"), &mem.RAM); err != nil {
		return err
	}
	if err := decodeMemoryUsage(value.Get("swap"), &mem.Swap); err != nil {
		return err
	}

	snap.Memory = mem

	return nil
}

func decodeMemoryUsage(value gjson.Result, usage *MemoryUsage) error {
	if !present(value) {
		return nil
	}
	if !value.IsObject() {
		return fieldTypeError("memory entry", value)
	}

	if err := readNumbers(value,
		field{"used", &usage.Used},
		field{"total", &usage.Total},
		field{"cached", &usage.Cached},
	); err != nil {
		return err
	}

	return readString(value, "unit", &usage.Unit)
}

func decodeTemperature(value gjson.Result, snap *Snapshot) error {
	if !value.IsObject() {
		return fieldTypeError("temperature", value)
	}

	var temp TempMetrics
	if err := readNumbers(value,
		field{"cpu", &temp.CPU},
		field{"gpu", &temp.GPU},
		field{"soc0", &temp.SOC0},
		field{"soc1", &temp.SOC1},
		field{"tj", &temp.TJ},
	); err != nil {
		return err
	}

	snap.Temperature = temp

	return nil
}

func decodePower(value gjson.Result, snap *Snapshot) error {
	if !value.IsObject() {
		return fieldTypeError("power", value)
	}

	var power PowerMetrics
	rails := []struct {
		key    string
		rail   *PowerRail
		memory bool
	}{
		{"gpu_soc", &power.GPUSOC, false},
		{"cpu_cv", &power.CPUCV, false},
		{"sys_5v0", &power.SYS5V0, false},
		{"ram", &power.RAM, true},
		{"swap", &power.Swap, true},
	}

	for _, r := range rails {
		if err := decodeRail(value.Get(r.key), r.rail); err != nil {
			return err
		}
		if r.memory {
			filterMemoryRail(r.rail)
		}
	}

	snap.Power = power

	return nil
}

func decodeRail(value gjson.Result, rail *PowerRail) error {
	if !present(value) {
		return nil
	}
	if !value.IsObject() {
		return fieldTypeError("power rail", value)
	}

	if err := readNumbers(value,
		field{"current", &rail.Current},
		field{"average", &rail.Average},
	); err != nil {
		return err
	}

	return readString(value, "unit", &rail.Unit)
}

// filterMemoryRail replaces an implausible average with the current reading.
func filterMemoryRail(rail *PowerRail) {
	if math.Abs(rail.Average) > PowerSanityLimit {
		rail.Average = rail.Current
	}
}

func decodeGPU(value gjson.Result, snap *Snapshot) error {
	if !value.IsObject() {
		return fieldTypeError("gpu", value)
	}

	var gpu GPUMetrics
	if err := readNumbers(value, field{"load", &gpu.Load3D}); err != nil {
		return err
	}

	snap.GPU = gpu

	return nil
}

type field struct {
	key string
	dst *float64
}

// readNumbers fills each destination from obj. Absent and null fields are
// skipped; numeric strings are accepted.
func readNumbers(obj gjson.Result, fields ...field) error {
	for _, f := range fields {
		value := obj.Get(f.key)
		if !present(value) {
			continue
		}

		switch value.Type {
		case gjson.Number:
			*f.dst = value.Num
		case gjson.String:
			n, err := strconv.ParseFloat(strings.TrimSpace(value.Str), 64)
			if err != nil {
				return errors.New().Wrap(ErrFieldType, err).WithMessage("field " + f.key + " is not numeric")
			}
			*f.dst = n
		default:
			return fieldTypeError(f.key, value)
		}
	}

	return nil
}

func readString(obj gjson.Result, key string, dst *string) error {
	value := obj.Get(key)
	if !present(value) {
		return nil
	}
	if value.Type != gjson.String {
		return fieldTypeError(key, value)
	}
	*dst = value.Str

	return nil
}

func present(value gjson.Result) bool {
	return value.Exists() && value.Type != gjson.Null
}

func fieldTypeError(name string, value gjson.Result) error {
	return errors.New().WithData(ErrFieldType, struct {
		Field string
		Type  string
	}{
		Field: name,
		Type:  value.Type.String(),
	})
}
