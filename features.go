package cyclelife

import (
	"math"
	"strconv"
)

// FeatureCount is the width of the feature vector.
const FeatureCount = 59

// FeatureVector holds F1..F59 in schema order.
type FeatureVector [FeatureCount]float64

// Named returns the vector keyed by feature name.
func (v FeatureVector) Named() map[string]float64 {
	out := make(map[string]float64, FeatureCount)
	for i, def := range featureDefs {
		out[def.Name] = v[i]
	}
	return out
}

// FeatureDef documents one slot of the vector.
type FeatureDef struct {
	Name        string
	Description string
	Unit        string
	Fallback    float64

	compute func(x *extraction) (float64, error)
}

// Features returns the catalogue in schema order.
func Features() []FeatureDef {
	out := make([]FeatureDef, FeatureCount)
	copy(out, featureDefs[:])
	return out
}

// FeatureNames returns "F1".."F59".
func FeatureNames() []string {
	out := make([]string, FeatureCount)
	for i, def := range featureDefs {
		out[i] = def.Name
	}
	return out
}

func featureIndex(name string) (int, bool) {
	if len(name) < 2 || name[0] != 'F' {
		return 0, false
	}
	n, err := strconv.Atoi(name[1:])
	if err != nil || n < 1 || n > FeatureCount {
		return 0, false
	}
	return n - 1, true
}

// cycleMetric computes a scalar from one cycle of the battery.
type cycleMetric func(x *extraction, cycle int) (float64, error)

// delta evaluates m at the target cycle minus the reference cycle.
func delta(m cycleMetric) func(*extraction) (float64, error) {
	return func(x *extraction) (float64, error) {
		ref, err := m(x, x.cfg.ReferenceCycle)
		if err != nil {
			return 0, err
		}
		target, err := m(x, x.cfg.TargetCycle)
		if err != nil {
			return 0, err
		}
		return target - ref, nil
	}
}

// atTarget evaluates m at the target cycle.
func atTarget(m cycleMetric) func(*extraction) (float64, error) {
	return func(x *extraction) (float64, error) {
		return m(x, x.cfg.TargetCycle)
	}
}

var featureDefs = [FeatureCount]FeatureDef{
	{Name: "F1", Description: "log10 |min dQ(V)|, target minus reference cycle", Unit: "log10 Ah", Fallback: LogSentinel, compute: deltaQStat(func(d []float64) (float64, error) {
		lo, _, ok := finiteRange(d)
		if !ok {
			return 0, insufficient("min dQ", 0, 1)
		}
		return LogAbs(lo), nil
	})},
	{Name: "F2", Description: "mean of dQ(V)", Unit: "Ah", compute: deltaQStat(Mean)},
	{Name: "F3", Description: "population variance of dQ(V)", Unit: "Ah^2", compute: deltaQStat(Variance)},
	{Name: "F4", Description: "skewness of dQ(V)", compute: deltaQStat(Skewness)},
	{Name: "F5", Description: "kurtosis of dQ(V)", compute: deltaQStat(Kurtosis)},
	{Name: "F6", Description: "dQ at the probe voltage (2.0 V)", Unit: "Ah", compute: deltaQAtProbe},

	{Name: "F7", Description: "capacity fade slope, cycles 2-100", Unit: "Ah/cycle", compute: fadeFit(fullFade, true)},
	{Name: "F8", Description: "capacity fade intercept, cycles 2-100", Unit: "Ah", compute: fadeFit(fullFade, false)},
	{Name: "F9", Description: "capacity fade slope, cycles 91-100", Unit: "Ah/cycle", compute: fadeFit(lateFade, true)},
	{Name: "F10", Description: "capacity fade intercept, cycles 91-100", Unit: "Ah", compute: fadeFit(lateFade, false)},
	{Name: "F11", Description: "discharge capacity, early cycle", Unit: "Ah", compute: earlyCapacity},
	{Name: "F12", Description: "max discharge capacity up to target cycle minus F11", Unit: "Ah", compute: capacityGain},
	{Name: "F13", Description: "discharge capacity, target cycle", Unit: "Ah", compute: targetCapacity},
	{Name: "F14", Description: "mean charge time of the first cycles", Unit: "s", compute: meanChargeTime},

	{Name: "F15", Description: "max temperature, cycles 2-100", Unit: "degC", compute: temperatureStat(tempMax)},
	{Name: "F16", Description: "min temperature, cycles 2-100", Unit: "degC", compute: temperatureStat(tempMin)},
	{Name: "F17", Description: "temperature integral over time, cycles 2-100", Unit: "degC*s", compute: temperatureStat(tempIntegral)},
	{Name: "F18", Description: "internal resistance, early cycle", Unit: "ohm", compute: resistanceEarly},
	{Name: "F19", Description: "min internal resistance, cycles 2-100", Unit: "ohm", compute: resistanceMin},
	{Name: "F20", Description: "internal resistance change, target minus early cycle", Unit: "ohm", compute: resistanceChange},

	{Name: "F21", Description: "delta discharge capacity", Unit: "Ah", compute: delta(dischargeCapacityMetric)},
	{Name: "F22", Description: "delta discharge energy", Unit: "Wh", compute: delta(dischargeEnergyMetric)},
	{Name: "F23", Description: "delta cycle duration", Unit: "s", compute: delta(cycleDurationMetric)},

	{Name: "F24", Description: "charge start voltage, target cycle", Unit: "V", compute: atTarget(chargeStartVoltage)},
	{Name: "F25", Description: "CC duration, target cycle", Unit: "s", compute: atTarget(phaseDurationMetric(PhaseCC))},
	{Name: "F26", Description: "CV duration, target cycle", Unit: "s", compute: atTarget(phaseDurationMetric(PhaseCV))},
	{Name: "F27", Description: "mean CC current, target cycle", Unit: "A", compute: atTarget(phaseMeanMetric(PhaseCC, FieldCurrent))},
	{Name: "F28", Description: "mean CV voltage, target cycle", Unit: "V", compute: atTarget(phaseMeanMetric(PhaseCV, FieldVoltage))},
	{Name: "F29", Description: "CC voltage-time slope, target cycle", Unit: "V/s", compute: atTarget(phaseSlopeMetric(PhaseCC, FieldVoltage))},
	{Name: "F30", Description: "CV current-time slope, target cycle", Unit: "A/s", compute: atTarget(phaseSlopeMetric(PhaseCV, FieldCurrent))},

	{Name: "F31", Description: "delta CC energy", Unit: "Wh", compute: delta(phaseEnergyMetric(PhaseCC))},
	{Name: "F32", Description: "delta CV energy", Unit: "Wh", compute: delta(phaseEnergyMetric(PhaseCV))},
	{Name: "F33", Description: "delta CC/CV energy ratio", compute: delta(energyRatioMetric)},
	{Name: "F34", Description: "delta CC minus CV energy", Unit: "Wh", compute: delta(energyGapMetric)},

	{Name: "F35", Description: "delta entropy of CC voltage", Unit: "bit", compute: delta(phaseShapeMetric(PhaseCC, FieldVoltage, ShannonEntropy))},
	{Name: "F36", Description: "delta entropy of CV current", Unit: "bit", compute: delta(phaseShapeMetric(PhaseCV, FieldCurrent, ShannonEntropy))},
	{Name: "F37", Description: "entropy of CC voltage, target cycle", Unit: "bit", compute: atTarget(phaseShapeMetric(PhaseCC, FieldVoltage, ShannonEntropy))},
	{Name: "F38", Description: "entropy of CV current, target cycle", Unit: "bit", compute: atTarget(phaseShapeMetric(PhaseCV, FieldCurrent, ShannonEntropy))},
	{Name: "F39", Description: "delta skewness of CC voltage", compute: delta(phaseShapeMetric(PhaseCC, FieldVoltage, Skewness))},
	{Name: "F40", Description: "delta skewness of CV current", compute: delta(phaseShapeMetric(PhaseCV, FieldCurrent, Skewness))},
	{Name: "F41", Description: "delta kurtosis of CC voltage", compute: delta(phaseShapeMetric(PhaseCC, FieldVoltage, Kurtosis))},
	{Name: "F42", Description: "delta kurtosis of CV current", compute: delta(phaseShapeMetric(PhaseCV, FieldCurrent, Kurtosis))},
	{Name: "F43", Description: "Frechet distance of CC voltage curves, reference vs target", compute: curveDistance(PhaseCC, FieldVoltage, Frechet)},
	{Name: "F44", Description: "Frechet distance of CV current curves, reference vs target", compute: curveDistance(PhaseCV, FieldCurrent, Frechet)},
	{Name: "F45", Description: "Hausdorff distance of CC voltage curves, reference vs target", compute: curveDistance(PhaseCC, FieldVoltage, Hausdorff)},
	{Name: "F46", Description: "Hausdorff distance of CV current curves, reference vs target", compute: curveDistance(PhaseCV, FieldCurrent, Hausdorff)},

	{Name: "F47", Description: "delta post-discharge rest voltage falloff rate", Unit: "V/s", compute: delta(restFalloffRate)},
	{Name: "F48", Description: "delta CC time between 30% and 80% of the CC voltage range", Unit: "s", compute: delta(ccIntervalMetric(intervalTime))},
	{Name: "F49", Description: "delta CC charge between 30% and 80% of the CC voltage range", Unit: "Ah", compute: delta(ccIntervalMetric(intervalCharge))},
	{Name: "F50", Description: "delta CV time between the high and low current levels", Unit: "s", compute: delta(cvIntervalMetric(intervalTime))},
	{Name: "F51", Description: "delta CV charge between the high and low current levels", Unit: "Ah", compute: delta(cvIntervalMetric(intervalCharge))},
	{Name: "F52", Description: "delta CC temperature rate over the F48 interval", Unit: "degC/s", compute: delta(ccIntervalMetric(intervalTemperatureRate))},
	{Name: "F53", Description: "delta CV temperature rate over the F50 interval", Unit: "degC/s", compute: delta(cvIntervalMetric(intervalTemperatureRate))},
	{Name: "F54", Description: "delta CC charge capacity", Unit: "Ah", compute: delta(phaseCapacityMetric(PhaseCC))},
	{Name: "F55", Description: "delta CV charge capacity", Unit: "Ah", compute: delta(phaseCapacityMetric(PhaseCV))},
	{Name: "F56", Description: "delta CC end voltage slope", Unit: "V/s", compute: delta(ccEndSlope)},
	{Name: "F57", Description: "delta CC-to-CV corner slope change", Unit: "V/s", compute: delta(cornerSlope)},

	{Name: "F58", Description: "cycle of maximum discharge capacity", Unit: "cycle", compute: maxCapacityCycle},
	{Name: "F59", Description: "time elapsed until the end of the maximum-capacity cycle", Unit: "h", compute: hoursToMaxCapacity},
}

// --- Q-V features ---

func deltaQStat(stat func([]float64) (float64, error)) func(*extraction) (float64, error) {
	return func(x *extraction) (float64, error) {
		d, _, err := x.deltaQ()
		if err != nil {
			return 0, err
		}
		return stat(d)
	}
}

func deltaQAtProbe(x *extraction) (float64, error) {
	d, grid, err := x.deltaQ()
	if err != nil {
		return 0, err
	}
	return ValueAtVoltage(grid, d, x.cfg.QV.ProbeVoltage)
}

// --- capacity fade features ---

func fullFade(cfg *Config) CycleWindow { return cfg.FadeWindow }
func lateFade(cfg *Config) CycleWindow { return cfg.LateFadeWindow }

func fadeFit(window func(*Config) CycleWindow, wantSlope bool) func(*extraction) (float64, error) {
	return func(x *extraction) (float64, error) {
		w := window(x.cfg)
		series := x.capacitySeries(w.From, w.To)
		slope, intercept, err := LinearTrend(CycleNumbers(w.From, len(series)), series)
		if err != nil {
			return 0, err
		}
		if wantSlope {
			return slope, nil
		}
		return intercept, nil
	}
}

func earlyCapacity(x *extraction) (float64, error) {
	return x.capacityAt(x.cfg.EarlyCycle)
}

func targetCapacity(x *extraction) (float64, error) {
	return x.capacityAt(x.cfg.TargetCycle)
}

func capacityGain(x *extraction) (float64, error) {
	early, err := x.capacityAt(x.cfg.EarlyCycle)
	if err != nil {
		return 0, err
	}
	series := x.capacitySeries(1, x.cfg.TargetCycle)
	_, hi, ok := finiteRange(series)
	if !ok {
		return 0, insufficient("capacity gain", 0, 1)
	}
	return hi - early, nil
}

func meanChargeTime(x *extraction) (float64, error) {
	cfg := x.cfg.ChargeTime
	durations := make([]float64, 0, cfg.Cycles)
	for i := 1; i <= cfg.Cycles; i++ {
		c, err := x.cycles.Cycle(i)
		if err != nil {
			continue
		}
		w, err := ChargeWindow(c, x.cfg.Segment)
		if err != nil {
			continue
		}
		d, err := windowDuration(c, w)
		if err != nil || d < cfg.MinSeconds || d > cfg.MaxSeconds {
			continue
		}
		durations = append(durations, d)
	}
	return Mean(durations)
}

func maxCapacityCycle(x *extraction) (float64, error) {
	n, err := x.maxCapacityCycle()
	return float64(n), err
}

func hoursToMaxCapacity(x *extraction) (float64, error) {
	n, err := x.maxCapacityCycle()
	if err != nil {
		return 0, err
	}
	total := 0.0
	for i := 1; i <= n; i++ {
		c, err := x.cycles.Cycle(i)
		if err != nil {
			continue
		}
		if d, err := cycleDuration(c); err == nil {
			total += d
		}
	}
	if total == 0 {
		return 0, insufficient("hours to max capacity", 0, 1)
	}
	return total / secondsPerHour, nil
}

// --- temperature and resistance features ---

type tempAggregate int

const (
	tempMax tempAggregate = iota
	tempMin
	tempIntegral
)

func temperatureStat(agg tempAggregate) func(*extraction) (float64, error) {
	return func(x *extraction) (float64, error) {
		var all []float64
		integral := 0.0
		for i := x.cfg.EarlyCycle; i <= x.cfg.TargetCycle; i++ {
			c, err := x.cycles.Cycle(i)
			if err != nil || c.Temperature == nil {
				continue
			}
			all = append(all, finiteValues(c.Temperature)...)
			if c.Time != nil {
				integral += trapezoid(c.Time, c.Temperature)
			}
		}
		lo, hi, ok := finiteRange(all)
		if !ok {
			return 0, &InsufficientDataError{Op: "temperature", Reason: "no temperature data"}
		}
		switch agg {
		case tempMax:
			return hi, nil
		case tempMin:
			return lo, nil
		default:
			return integral, nil
		}
	}
}

func resistanceAt(x *extraction, cycle int) (float64, error) {
	c, err := x.cycles.Cycle(cycle)
	if err != nil {
		return 0, err
	}
	if !c.HasResistance {
		return 0, &InsufficientDataError{Op: "internal resistance", Reason: "no resistance data"}
	}
	return c.InternalResistance, nil
}

func resistanceEarly(x *extraction) (float64, error) {
	return resistanceAt(x, x.cfg.EarlyCycle)
}

func resistanceMin(x *extraction) (float64, error) {
	best := math.Inf(1)
	for i := x.cfg.EarlyCycle; i <= x.cfg.TargetCycle; i++ {
		if v, err := resistanceAt(x, i); err == nil && v < best {
			best = v
		}
	}
	if math.IsInf(best, 1) {
		return 0, &InsufficientDataError{Op: "internal resistance", Reason: "no resistance data"}
	}
	return best, nil
}

func resistanceChange(x *extraction) (float64, error) {
	early, err := resistanceAt(x, x.cfg.EarlyCycle)
	if err != nil {
		return 0, err
	}
	target, err := resistanceAt(x, x.cfg.TargetCycle)
	if err != nil {
		return 0, err
	}
	return target - early, nil
}

// --- per-cycle metrics ---

func dischargeCapacityMetric(x *extraction, cycle int) (float64, error) {
	c, w, err := x.cycles.Discharge(cycle)
	if err != nil {
		return 0, err
	}
	return MaxDischargeCapacity(c, w)
}

func dischargeEnergyMetric(x *extraction, cycle int) (float64, error) {
	c, w, err := x.cycles.Discharge(cycle)
	if err != nil {
		return 0, err
	}
	return phaseEnergy(c, w)
}

func cycleDurationMetric(x *extraction, cycle int) (float64, error) {
	c, err := x.cycles.Cycle(cycle)
	if err != nil {
		return 0, err
	}
	return cycleDuration(c)
}

func chargeStartVoltage(x *extraction, cycle int) (float64, error) {
	c, phases, err := x.cycles.Charge(cycle)
	if err != nil {
		return 0, err
	}
	if c.Voltage == nil {
		return 0, insufficient("charge start voltage", 0, 1)
	}
	return c.Voltage[phases.Charge.First()], nil
}

func phaseDurationMetric(kind PhaseKind) cycleMetric {
	return func(x *extraction, cycle int) (float64, error) {
		c, w, err := x.phase(cycle, kind)
		if err != nil {
			return 0, err
		}
		return windowDuration(c, w)
	}
}

func phaseMeanMetric(kind PhaseKind, f Field) cycleMetric {
	return func(x *extraction, cycle int) (float64, error) {
		c, w, err := x.phase(cycle, kind)
		if err != nil {
			return 0, err
		}
		return Mean(finiteValues(w.Take(c.series(f))))
	}
}

func phaseSlopeMetric(kind PhaseKind, f Field) cycleMetric {
	return func(x *extraction, cycle int) (float64, error) {
		c, w, err := x.phase(cycle, kind)
		if err != nil {
			return 0, err
		}
		return slopeOver(c, c.series(f), w.Indices())
	}
}

func phaseEnergyMetric(kind PhaseKind) cycleMetric {
	return func(x *extraction, cycle int) (float64, error) {
		c, w, err := x.phase(cycle, kind)
		if err != nil {
			return 0, err
		}
		return phaseEnergy(c, w)
	}
}

func chargeEnergies(x *extraction, cycle int) (cc, cv float64, err error) {
	if cc, err = phaseEnergyMetric(PhaseCC)(x, cycle); err != nil {
		return 0, 0, err
	}
	if cv, err = phaseEnergyMetric(PhaseCV)(x, cycle); err != nil {
		return 0, 0, err
	}
	return cc, cv, nil
}

func energyRatioMetric(x *extraction, cycle int) (float64, error) {
	cc, cv, err := chargeEnergies(x, cycle)
	if err != nil {
		return 0, err
	}
	return safeDiv(cc, cv)
}

func energyGapMetric(x *extraction, cycle int) (float64, error) {
	cc, cv, err := chargeEnergies(x, cycle)
	if err != nil {
		return 0, err
	}
	return cc - cv, nil
}

func phaseShapeMetric(kind PhaseKind, f Field, shape func([]float64) (float64, error)) cycleMetric {
	return func(x *extraction, cycle int) (float64, error) {
		c, w, err := x.phase(cycle, kind)
		if err != nil {
			return 0, err
		}
		values := finiteValues(w.Take(c.series(f)))
		return shape(values)
	}
}

func phaseCapacityMetric(kind PhaseKind) cycleMetric {
	return func(x *extraction, cycle int) (float64, error) {
		c, w, err := x.phase(cycle, kind)
		if err != nil {
			return 0, err
		}
		return capacityMoved(c.ChargeCapacity, w)
	}
}

func curveDistance(kind PhaseKind, f Field, dist func(a, b Curve) (float64, error)) func(*extraction) (float64, error) {
	return func(x *extraction) (float64, error) {
		a, err := x.phaseCurve(x.cfg.ReferenceCycle, kind, f)
		if err != nil {
			return 0, err
		}
		b, err := x.phaseCurve(x.cfg.TargetCycle, kind, f)
		if err != nil {
			return 0, err
		}
		return dist(a, b)
	}
}

func restFalloffRate(x *extraction, cycle int) (float64, error) {
	c, w, err := x.cycles.Discharge(cycle)
	if err != nil {
		return 0, err
	}
	rest, ok := SegmentRest(c, w, x.cfg.Segment)
	if !ok {
		return 0, undefinedRange("rest falloff", "no rest window after discharge")
	}
	if c.Voltage == nil {
		return 0, insufficient("rest falloff", 0, 2)
	}
	first, last := rest.First(), rest.Last()
	span := c.Time[last] - c.Time[first]
	return safeDiv(c.Voltage[first]-c.Voltage[last], span)
}

// interval is a pair of sample indices inside one phase.
type interval struct {
	from, to int
}

func intervalTime(c *Cycle, iv interval) (float64, error) {
	if c.Time == nil {
		return 0, insufficient("interval time", 0, 2)
	}
	return c.Time[iv.to] - c.Time[iv.from], nil
}

func intervalCharge(c *Cycle, iv interval) (float64, error) {
	if c.ChargeCapacity == nil {
		return 0, insufficient("interval charge", 0, 2)
	}
	return c.ChargeCapacity[iv.to] - c.ChargeCapacity[iv.from], nil
}

func intervalTemperatureRate(c *Cycle, iv interval) (float64, error) {
	if c.Temperature == nil || c.Time == nil {
		return 0, &InsufficientDataError{Op: "interval temperature rate", Reason: "no temperature data"}
	}
	return safeDiv(c.Temperature[iv.to]-c.Temperature[iv.from], c.Time[iv.to]-c.Time[iv.from])
}

// ccInterval locates the first samples reaching the low and high fractions of the
// CC voltage range.
func ccInterval(c *Cycle, w PhaseWindow, lowFrac, highFrac float64) (interval, error) {
	if c.Voltage == nil {
		return interval{}, insufficient("cc interval", 0, 2)
	}
	idx := w.Indices()
	lo, hi, ok := finiteRange(w.Take(c.Voltage))
	if !ok || !(hi > lo) {
		return interval{}, undefinedRange("cc interval", "flat CC voltage")
	}
	lowLevel := lo + lowFrac*(hi-lo)
	highLevel := lo + highFrac*(hi-lo)
	from, to := -1, -1
	for _, i := range idx {
		if from < 0 && c.Voltage[i] >= lowLevel {
			from = i
		}
		if from >= 0 && c.Voltage[i] >= highLevel {
			to = i
			break
		}
	}
	if from < 0 || to <= from {
		return interval{}, undefinedRange("cc interval", "voltage levels %.3f..%.3f V not crossed in order", lowLevel, highLevel)
	}
	return interval{from: from, to: to}, nil
}

// cvInterval locates the first samples where the decaying CV current drops below
// max-margin*range and then below min+margin*range.
func cvInterval(c *Cycle, w PhaseWindow, margin float64) (interval, error) {
	if c.Current == nil {
		return interval{}, insufficient("cv interval", 0, 2)
	}
	idx := w.Indices()
	lo, hi, ok := finiteRange(w.Take(c.Current))
	if !ok || !(hi > lo) {
		return interval{}, undefinedRange("cv interval", "flat CV current")
	}
	highLevel := hi - margin*(hi-lo)
	lowLevel := lo + margin*(hi-lo)
	from, to := -1, -1
	for _, i := range idx {
		if from < 0 && c.Current[i] <= highLevel {
			from = i
		}
		if from >= 0 && i > from && c.Current[i] <= lowLevel {
			to = i
			break
		}
	}
	if from < 0 || to <= from {
		return interval{}, undefinedRange("cv interval", "current levels %.3f..%.3f A not crossed in order", highLevel, lowLevel)
	}
	return interval{from: from, to: to}, nil
}

func ccIntervalMetric(measure func(*Cycle, interval) (float64, error)) cycleMetric {
	return func(x *extraction, cycle int) (float64, error) {
		c, w, err := x.phase(cycle, PhaseCC)
		if err != nil {
			return 0, err
		}
		iv, err := ccInterval(c, w, x.cfg.Curves.CCLowFraction, x.cfg.Curves.CCHighFraction)
		if err != nil {
			return 0, err
		}
		return measure(c, iv)
	}
}

func cvIntervalMetric(measure func(*Cycle, interval) (float64, error)) cycleMetric {
	return func(x *extraction, cycle int) (float64, error) {
		c, w, err := x.phase(cycle, PhaseCV)
		if err != nil {
			return 0, err
		}
		iv, err := cvInterval(c, w, x.cfg.Curves.CVCurrentMargin)
		if err != nil {
			return 0, err
		}
		return measure(c, iv)
	}
}

func ccEndSlope(x *extraction, cycle int) (float64, error) {
	c, w, err := x.phase(cycle, PhaseCC)
	if err != nil {
		return 0, err
	}
	idx := w.Indices()
	n := x.cfg.Curves.TailPoints
	if len(idx) < n || n < 2 {
		return 0, insufficient("cc end slope", len(idx), n)
	}
	return slopeOver(c, c.Voltage, idx[len(idx)-n:])
}

// cornerSlope is |slope after - slope before| of voltage over time around the CV
// start, using CornerPoints samples on each side.
func cornerSlope(x *extraction, cycle int) (float64, error) {
	c, phases, err := x.cycles.Charge(cycle)
	if err != nil {
		return 0, err
	}
	idx := phases.Charge.Indices()
	k := phases.CC.Len()
	n := x.cfg.Curves.CornerPoints
	if n < 2 || k < n || k+n > len(idx) {
		return 0, insufficient("corner slope", len(idx), 2*n)
	}
	before, err := slopeOver(c, c.Voltage, idx[k-n:k])
	if err != nil {
		return 0, err
	}
	after, err := slopeOver(c, c.Voltage, idx[k:k+n])
	if err != nil {
		return 0, err
	}
	return math.Abs(after - before), nil
}
