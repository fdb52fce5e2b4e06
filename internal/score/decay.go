package score

import "math"

// DecayedConfidence computes the freshness-adjusted confidence of a record.
// Formula: within SLA, base; past it, max(floor, base * 2^(-(age-sla)/sla)).
// The result is rounded to 4 decimals so equal inputs compare equal.
func DecayedConfidence(base, ageHours, slaHours, floor float64) float64 {
	if base <= 0 {
		return 0
	}
	if slaHours <= 0 {
		slaHours = 168
	}
	overdue := ageHours - slaHours
	if overdue <= 0 {
		return round4(base)
	}

	decayed := base * math.Pow(2, -overdue/slaHours)
	if decayed < floor {
		decayed = floor
	}
	if decayed > base {
		decayed = base
	}
	return round4(decayed)
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
