package cyclelife

import (
	"math"
	"testing"
)

// Synthetic cycle layout: 40 CC samples, 30 CV samples, 50 discharge samples and a
// 20 sample rest, 10 s apart.
const (
	synthCC        = 40
	synthCV        = 30
	synthDischarge = 50
	synthRest      = 20
	synthDT        = 10.0
	synthSamples   = synthCC + synthCV + synthDischarge + synthRest
)

type synthOptions struct {
	temperature bool
	minutes     bool
	// voltageShift moves the discharge curve of every cycle.
	voltageShift float64
}

func synthCapacity(index int) float64 {
	return 1.1 - 0.001*float64(index)
}

type synthArrays struct {
	current, voltage, time, qc, qd, temp []float64
}

func synthCycleArrays(index int, capacity float64, opts synthOptions) synthArrays {
	var a synthArrays
	t0 := float64(index-1) * 2000
	qc := 0.0
	push := func(i, v, q, qd float64) {
		k := len(a.current)
		a.current = append(a.current, i)
		a.voltage = append(a.voltage, v)
		a.time = append(a.time, t0+float64(k)*synthDT)
		a.qc = append(a.qc, q)
		a.qd = append(a.qd, qd)
		a.temp = append(a.temp, 25+0.01*float64(k)+0.001*float64(index))
	}
	for j := 0; j < synthCC; j++ {
		qc += 1.0 * synthDT / 3600
		push(1.0, 3.0+1.2*float64(j)/float64(synthCC-1), qc, 0)
	}
	for j := 0; j < synthCV; j++ {
		i := math.Exp(-float64(j+1) / 8)
		qc += i * synthDT / 3600
		push(i, 4.2, qc, 0)
	}
	for j := 0; j < synthDischarge; j++ {
		v := 4.1 - 1.6*float64(j)/float64(synthDischarge-1) + opts.voltageShift
		push(-1.0, v, qc, capacity*float64(j)/float64(synthDischarge-1))
	}
	for j := 0; j < synthRest; j++ {
		v := 2.5 + 0.4*(1-math.Exp(-float64(j)/5)) + opts.voltageShift
		push(0, v, qc, capacity)
	}
	return a
}

func synthRawCycle(kind DatasetKind, index int, capacity float64, opts synthOptions) RawCycle {
	a := synthCycleArrays(index, capacity, opts)
	raw := RawCycle{
		"current_in_A":             SeriesField(a.current),
		"voltage_in_V":             SeriesField(a.voltage),
		"charge_capacity_in_Ah":    SeriesField(a.qc),
		"discharge_capacity_in_Ah": SeriesField(a.qd),
	}
	switch {
	case kind == DatasetISUILCC:
		raw["time_in_s"] = SeriesField(scaled(a.time, 1e9))
	case opts.minutes:
		raw["t"] = SeriesField(scaled(a.time, 1.0/60))
	default:
		raw["time_in_s"] = SeriesField(a.time)
	}
	if opts.temperature {
		raw["temperature_in_C"] = SeriesField(a.temp)
	}
	return raw
}

func synthBattery(kind DatasetKind, cycles int, opts synthOptions) *Battery {
	b := &Battery{ID: "synthetic", Kind: kind}
	ir := make([]float64, cycles)
	for i := 1; i <= cycles; i++ {
		b.Cycles = append(b.Cycles, synthRawCycle(kind, i, synthCapacity(i), opts))
		ir[i-1] = 0.02 + 0.0001*float64(i)
	}
	if kind == DatasetMATR {
		b.Summary = map[string][]float64{"IR": ir}
	}
	return b
}

func mustExtractor(t *testing.T, kind DatasetKind) *Extractor {
	t.Helper()
	ex, err := NewExtractor(DefaultConfig(kind), nil)
	if err != nil {
		t.Fatalf("NewExtractor() error: %v", err)
	}
	return ex
}

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
