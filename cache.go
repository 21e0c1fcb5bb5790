package cyclelife

import "fmt"

// batteryCycles memoizes normalized cycles and their phase windows for one battery.
// It is owned by a single extraction and needs no locking.
type batteryCycles struct {
	battery *Battery
	cfg     *Config
	entries map[int]*cycleEntry
}

type cycleEntry struct {
	cycle *Cycle
	err   error

	chargeDone bool
	charge     ChargePhases
	chargeErr  error

	dischargeDone bool
	discharge     PhaseWindow
	dischargeErr  error
}

func newBatteryCycles(b *Battery, cfg *Config) *batteryCycles {
	return &batteryCycles{
		battery: b,
		cfg:     cfg,
		entries: make(map[int]*cycleEntry),
	}
}

func (bc *batteryCycles) Len() int { return bc.battery.CycleLife() }

func (bc *batteryCycles) entry(index int) *cycleEntry {
	if e, ok := bc.entries[index]; ok {
		return e
	}
	e := &cycleEntry{}
	if index < 1 || index > bc.Len() {
		e.err = &InsufficientDataError{
			Op:     "cycle lookup",
			Have:   bc.Len(),
			Need:   index,
			Reason: fmt.Sprintf("cycle %d not present (battery has %d)", index, bc.Len()),
		}
	} else {
		e.cycle, e.err = Normalize(bc.battery.Cycles[index-1], bc.battery.Kind, index)
		if e.err == nil {
			bc.fillSummary(e.cycle)
		}
	}
	bc.entries[index] = e
	return e
}

// fillSummary copies per-cycle summary metrics the cycle itself lacks.
func (bc *batteryCycles) fillSummary(c *Cycle) {
	if c.HasResistance || bc.battery.Summary == nil {
		return
	}
	ir := bc.battery.Summary["IR"]
	if c.Index-1 < len(ir) && isFinite(ir[c.Index-1]) {
		c.InternalResistance = ir[c.Index-1]
		c.HasResistance = true
	}
}

func (bc *batteryCycles) Cycle(index int) (*Cycle, error) {
	e := bc.entry(index)
	return e.cycle, e.err
}

func (bc *batteryCycles) Charge(index int) (*Cycle, ChargePhases, error) {
	e := bc.entry(index)
	if e.err != nil {
		return nil, ChargePhases{}, e.err
	}
	if !e.chargeDone {
		e.charge, e.chargeErr = SegmentCharge(e.cycle, bc.cfg.Segment)
		e.chargeDone = true
	}
	return e.cycle, e.charge, e.chargeErr
}

func (bc *batteryCycles) Discharge(index int) (*Cycle, PhaseWindow, error) {
	e := bc.entry(index)
	if e.err != nil {
		return nil, PhaseWindow{}, e.err
	}
	if !e.dischargeDone {
		e.discharge, e.dischargeErr = SegmentDischarge(e.cycle, bc.cfg.Segment)
		e.dischargeDone = true
	}
	return e.cycle, e.discharge, e.dischargeErr
}
