package cyclelife

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// RawField is one value of a raw per-cycle record: a scalar, a float series, or
// absent. JSON nulls inside a series decode to NaN.
type RawField struct {
	Scalar   float64
	Series   []float64
	IsScalar bool
	Present  bool
}

// ScalarField builds a present scalar field.
func ScalarField(v float64) RawField {
	return RawField{Scalar: v, IsScalar: true, Present: true}
}

// SeriesField builds a present series field.
func SeriesField(values []float64) RawField {
	return RawField{Series: values, Present: true}
}

// UnmarshalJSON accepts a number, an array of numbers/nulls, or null. Strings,
// booleans, objects and arrays of non-numbers leave the field absent.
func (f *RawField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*f = RawField{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '[':
		var items []*float64
		if err := json.Unmarshal(data, &items); err != nil {
			// Nested arrays show up in a few MATR exports; flatten one level.
			var nested [][]*float64
			if nerr := json.Unmarshal(data, &nested); nerr != nil {
				return nil
			}
			for _, row := range nested {
				items = append(items, row...)
			}
		}
		series := make([]float64, len(items))
		for i, v := range items {
			if v == nil {
				series[i] = math.NaN()
				continue
			}
			series[i] = *v
		}
		*f = SeriesField(series)
		return nil
	case '"', '{', 't', 'f':
		// Dates, labels, flags and nested metadata are not numeric fields.
		return nil
	default:
		var v float64
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("decode scalar: %w", err)
		}
		*f = ScalarField(v)
		return nil
	}
}

// Values returns the field as a series; a scalar becomes a one-element series.
func (f RawField) Values() []float64 {
	if !f.Present {
		return nil
	}
	if f.IsScalar {
		return []float64{f.Scalar}
	}
	return f.Series
}

// RawCycle maps raw field names to values, exactly as stored in the source file.
type RawCycle map[string]RawField

// Battery is one cell's chronological cycle history.
type Battery struct {
	ID      string
	Kind    DatasetKind
	Cycles  []RawCycle
	Summary map[string][]float64
}

// CycleLife is the label: the number of cycles present.
func (b *Battery) CycleLife() int {
	if b == nil {
		return 0
	}
	return len(b.Cycles)
}

// Field names the canonical per-cycle quantities.
type Field string

const (
	FieldCurrent            Field = "current"
	FieldVoltage            Field = "voltage"
	FieldTime               Field = "time"
	FieldChargeCapacity     Field = "charge_capacity"
	FieldDischargeCapacity  Field = "discharge_capacity"
	FieldTemperature        Field = "temperature"
	FieldInternalResistance Field = "internal_resistance"
	FieldQdlin              Field = "Qdlin"
)

// sampleFields are the per-sample arrays that must agree in length.
var sampleFields = []Field{
	FieldCurrent,
	FieldVoltage,
	FieldTime,
	FieldChargeCapacity,
	FieldDischargeCapacity,
	FieldTemperature,
}

// Cycle is the canonical, SI-unit view of one cycle. A nil slice means the field
// is absent from the source.
type Cycle struct {
	Index int

	Current           []float64
	Voltage           []float64
	Time              []float64
	ChargeCapacity    []float64
	DischargeCapacity []float64
	Temperature       []float64

	InternalResistance float64
	HasResistance      bool

	Qdlin []float64
}

// Len is the number of samples in the cycle.
func (c *Cycle) Len() int {
	if c == nil {
		return 0
	}
	for _, f := range sampleFields {
		if v := c.series(f); v != nil {
			return len(v)
		}
	}
	return 0
}

func (c *Cycle) series(f Field) []float64 {
	switch f {
	case FieldCurrent:
		return c.Current
	case FieldVoltage:
		return c.Voltage
	case FieldTime:
		return c.Time
	case FieldChargeCapacity:
		return c.ChargeCapacity
	case FieldDischargeCapacity:
		return c.DischargeCapacity
	case FieldTemperature:
		return c.Temperature
	case FieldQdlin:
		return c.Qdlin
	}
	return nil
}

func (c *Cycle) setSeries(f Field, v []float64) {
	switch f {
	case FieldCurrent:
		c.Current = v
	case FieldVoltage:
		c.Voltage = v
	case FieldTime:
		c.Time = v
	case FieldChargeCapacity:
		c.ChargeCapacity = v
	case FieldDischargeCapacity:
		c.DischargeCapacity = v
	case FieldTemperature:
		c.Temperature = v
	case FieldQdlin:
		c.Qdlin = v
	}
}

// fieldAlias is one candidate raw key for a canonical field, with the factor that
// converts it to SI units.
type fieldAlias struct {
	Key   string
	Scale float64
}

var temperatureAliases = []fieldAlias{
	{"temperature_in_C", 1},
	{"temp_in_C", 1},
	{"T_in_C", 1},
	{"temperature", 1},
	{"temp", 1},
	{"T", 1},
}

var aliasTables = map[DatasetKind]map[Field][]fieldAlias{
	DatasetMATR: {
		FieldCurrent:            {{"current_in_A", 1}, {"I", 1}},
		FieldVoltage:            {{"voltage_in_V", 1}, {"V", 1}},
		FieldTime:               {{"time_in_s", 1}, {"t", 60}},
		FieldChargeCapacity:     {{"charge_capacity_in_Ah", 1}, {"Qc", 1}},
		FieldDischargeCapacity:  {{"discharge_capacity_in_Ah", 1}, {"Qd", 1}},
		FieldTemperature:        temperatureAliases,
		FieldInternalResistance: {{"internal_resistance_in_ohm", 1}, {"IR", 1}},
		FieldQdlin:              {{"Qdlin", 1}},
	},
	DatasetISUILCC: {
		FieldCurrent:            {{"current_in_A", 1}, {"I", 1}},
		FieldVoltage:            {{"voltage_in_V", 1}, {"V", 1}},
		FieldTime:               {{"time_in_s", 1e-9}, {"time_in_ns", 1e-9}},
		FieldChargeCapacity:     {{"charge_capacity_in_Ah", 1}, {"Qc", 1}},
		FieldDischargeCapacity:  {{"discharge_capacity_in_Ah", 1}, {"Qd", 1}},
		FieldTemperature:        temperatureAliases,
		FieldInternalResistance: {{"internal_resistance_in_ohm", 1}},
	},
}

// ValidateAliasTable checks the alias tables once: every dataset kind is covered,
// scales are positive, and no raw key maps to two canonical fields.
func ValidateAliasTable() error {
	for _, kind := range []DatasetKind{DatasetMATR, DatasetISUILCC} {
		table, ok := aliasTables[kind]
		if !ok {
			return fmt.Errorf("alias table missing for dataset %s", kind)
		}
		seen := map[string]Field{}
		fields := make([]string, 0, len(table))
		for f := range table {
			fields = append(fields, string(f))
		}
		sort.Strings(fields)
		for _, name := range fields {
			f := Field(name)
			for _, a := range table[f] {
				if a.Scale <= 0 || !isFinite(a.Scale) {
					return fmt.Errorf("dataset %s: alias %s has invalid scale %v", kind, a.Key, a.Scale)
				}
				if prev, dup := seen[a.Key]; dup {
					return fmt.Errorf("dataset %s: alias %s maps to both %s and %s", kind, a.Key, prev, f)
				}
				seen[a.Key] = f
			}
		}
		for _, f := range []Field{FieldCurrent, FieldVoltage, FieldTime} {
			if len(table[f]) == 0 {
				return fmt.Errorf("dataset %s: no alias for required field %s", kind, f)
			}
		}
	}
	return nil
}

// ResolvedKeys reports which raw key was picked for each canonical field.
func ResolvedKeys(raw RawCycle, kind DatasetKind) map[Field]string {
	out := make(map[Field]string)
	for f, aliases := range aliasTables[kind] {
		if a, ok := lookupAlias(raw, aliases); ok {
			out[f] = a.Key
		}
	}
	return out
}

func lookupAlias(raw RawCycle, aliases []fieldAlias) (fieldAlias, bool) {
	for _, a := range aliases {
		if v, ok := raw[a.Key]; ok && v.Present {
			return a, true
		}
	}
	return fieldAlias{}, false
}

// Normalize converts one raw cycle into a Cycle. index is the 1-based cycle number.
// Populated sample arrays of different lengths yield a *MalformedCycleError.
func Normalize(raw RawCycle, kind DatasetKind, index int) (*Cycle, error) {
	table, ok := aliasTables[kind]
	if !ok {
		return nil, fmt.Errorf("normalize cycle %d: unknown dataset kind %q", index, kind)
	}

	c := &Cycle{Index: index}
	want := -1
	wantField := Field("")
	for _, f := range sampleFields {
		a, ok := lookupAlias(raw, table[f])
		if !ok {
			continue
		}
		values := scaled(raw[a.Key].Values(), a.Scale)
		if want < 0 {
			want = len(values)
			wantField = f
		} else if len(values) != want {
			return nil, &MalformedCycleError{
				Cycle: index,
				Field: fmt.Sprintf("%s (vs %s)", f, wantField),
				Got:   len(values),
				Want:  want,
			}
		}
		c.setSeries(f, values)
	}

	if a, ok := lookupAlias(raw, table[FieldInternalResistance]); ok {
		if v := finiteMean(raw[a.Key].Values()); isFinite(v) {
			c.InternalResistance = v * a.Scale
			c.HasResistance = true
		}
	}
	if a, ok := lookupAlias(raw, table[FieldQdlin]); ok {
		c.Qdlin = scaled(raw[a.Key].Values(), a.Scale)
	}
	return c, nil
}

func scaled(values []float64, scale float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v * scale
	}
	return out
}

// finiteMean averages the finite values, NaN when there are none.
func finiteMean(values []float64) float64 {
	total := 0.0
	count := 0
	for _, v := range values {
		if !isFinite(v) {
			continue
		}
		total += v
		count++
	}
	if count == 0 {
		return math.NaN()
	}
	return total / float64(count)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
