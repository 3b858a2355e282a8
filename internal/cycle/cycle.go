// Package cycle computes payout-cycle progress and end-of-cycle alerts.
package cycle

import "math"

// DefaultPayoutPercent applies when neither the machine override nor the
// model carries a target payout.
const DefaultPayoutPercent = 0.65

// Stats describes where a machine sits inside its current payout cycle.
// All fields are nil when the inputs are incomplete.
type Stats struct {
	CyclesDone           *int64
	InCurrent            *int64
	OutCurrent           *int64
	CurrentPayoutPct     *float64
	RemainingIn          *int64
	RemainingOutToTarget *int64
}

// Compute derives cycle progress from lifetime counters. cntIn and cntOut
// are lifetime coin-in/coin-out in cents, cycleLen the cycle length in
// coin-in cents, payout the target fraction (0.65 for 65%). Any missing or
// non-positive parameter yields all-nil stats rather than an error: a
// machine without cycle data simply has no prediction.
func Compute(cntIn, cntOut, cycleLen *int64, payout *float64) Stats {
	if cntIn == nil || cntOut == nil || cycleLen == nil || *cycleLen <= 0 || payout == nil || *payout <= 0 {
		return Stats{}
	}

	cyclesDone := *cntIn / *cycleLen
	inCurrent := *cntIn - cyclesDone**cycleLen
	cycleOutValue := int64(math.Round(float64(*cycleLen) * *payout))
	outCurrent := *cntOut - cyclesDone*cycleOutValue

	var pct *float64
	if inCurrent > 0 {
		v := float64(outCurrent) / float64(inCurrent)
		pct = &v
	}

	remainingIn := *cycleLen - inCurrent
	remainingOut := cycleOutValue - outCurrent
	if remainingOut < 0 {
		remainingOut = 0
	}

	return Stats{
		CyclesDone:           &cyclesDone,
		InCurrent:            &inCurrent,
		OutCurrent:           &outCurrent,
		CurrentPayoutPct:     pct,
		RemainingIn:          &remainingIn,
		RemainingOutToTarget: &remainingOut,
	}
}

// Healthy reports whether the machine can still reach its payout target
// within the remaining coin-in of the current cycle.
func (s Stats) Healthy() bool {
	if s.RemainingIn == nil || s.RemainingOutToTarget == nil {
		return false
	}
	return *s.RemainingOutToTarget <= *s.RemainingIn
}
