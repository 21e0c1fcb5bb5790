package cyclelife

import (
	"fmt"
	"math"
	"strings"
)

// BuildBatteryNotes turns an analysis into a human-readable battery summary.
func BuildBatteryNotes(a *Analysis) string {
	if a == nil {
		return ""
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Battery: %s (%s)\n", a.BatteryID, a.Dataset)
	fmt.Fprintf(&b, "Cycle life %d cycles", a.CycleLife)
	if a.MalformedCount > 0 {
		fmt.Fprintf(&b, " | %d malformed cycles", a.MalformedCount)
	}
	b.WriteString("\n")
	if a.Skipped {
		fmt.Fprintf(&b, "Skipped: %s\n", a.SkipReason)
	}

	first, last := capacityFade(a.CapacityCurve)
	if first > 0 {
		fmt.Fprintf(
			&b,
			"Discharge capacity %.4f Ah first / %.4f Ah last (%+.1f%%)\n",
			first,
			last,
			pctChange(first, last),
		)
	}

	if r := a.Result; r != nil {
		f := r.Features
		fmt.Fprintf(
			&b,
			"Fade slope %.3e Ah/cycle (2-100) / %.3e Ah/cycle (91-100) | Max capacity at cycle %.0f after %.1f h\n",
			f[6],
			f[8],
			f[57],
			f[58],
		)
		fmt.Fprintf(
			&b,
			"dQ(V) log10|min| %.3f | mean %.4f Ah | var %.3e | at 2.0 V %.4f Ah\n",
			f[0],
			f[1],
			f[2],
			f[5],
		)
		fmt.Fprintf(
			&b,
			"Charge (target cycle): CC %s at %.2f A | CV %s at %.3f V | mean charge time %s\n",
			formatDuration(f[24]),
			f[26],
			formatDuration(f[25]),
			f[27],
			formatDuration(f[13]),
		)
		if f[14] != 0 || f[15] != 0 {
			fmt.Fprintf(&b, "Temperature %.1f..%.1f C\n", f[15], f[14])
		} else {
			b.WriteString("Temperature unavailable\n")
		}
		if len(r.Fallbacks) > 0 {
			names := make([]string, 0, len(r.Fallbacks))
			for _, fb := range r.Fallbacks {
				names = append(names, fb.Feature)
			}
			fmt.Fprintf(&b, "Fallbacks (%d/%d): %s\n", len(r.Fallbacks), FeatureCount, strings.Join(names, ", "))
		}
	}

	for _, cs := range []CycleStructure{a.Reference, a.Target} {
		if cs.Cycle == 0 {
			continue
		}
		fmt.Fprintf(&b, "\nCycle %d: %s\n", cs.Cycle, cs.CanonicalLabel)
		for _, blk := range cs.Blocks {
			fmt.Fprintf(
				&b,
				"- %-9s %s | %.3f A | %.3f V | %.4f Ah | %.3f Wh\n",
				blk.Phase,
				formatDuration(blk.DurationS),
				blk.AvgCurrentA,
				blk.AvgVoltageV,
				blk.CapacityAh,
				blk.EnergyWh,
			)
		}
		for _, w := range cs.Warnings {
			fmt.Fprintf(&b, "! %s\n", w)
		}
	}

	if assessment := degradationAssessment(a); assessment != "" {
		b.WriteString("\nAssessment\n")
		b.WriteString(assessment)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func degradationAssessment(a *Analysis) string {
	if a.Result == nil {
		return ""
	}
	f := a.Result.Features
	full, late := f[6], f[8]
	switch {
	case full == 0 && late == 0:
		return "Capacity trend unavailable."
	case late < 0 && full < 0 && math.Abs(late) > 2*math.Abs(full):
		return "Fade is accelerating: the late-window slope is more than twice the early trend."
	case late < 0 && full < 0:
		return "Fade is steady across the first hundred cycles."
	case late >= 0:
		return "Capacity is flat or recovering near cycle 100."
	default:
		return "Capacity trend is mixed."
	}
}

func formatDuration(seconds float64) string {
	if seconds <= 0 || !isFinite(seconds) {
		return "0s"
	}
	total := int(math.Round(seconds))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
