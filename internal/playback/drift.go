package playback

import (
	"math"
	"time"
)

const (
	// driftTolerance is the band within which no correction is produced.
	driftTolerance = 0.2
	// hardSeekThreshold is the drift beyond which rate nudging cannot
	// converge fast enough and the viewer snaps instead.
	hardSeekThreshold = 3.0

	rateBehind = 1.08
	rateAhead  = 0.92

	adjustDurationFactor = 1.2
	maxAdjustDuration    = 3 * time.Second
)

type Action int

const (
	ActionNone Action = iota
	ActionAdjustRate
	ActionHardSeek
)

// Correction is the viewer-side action closing the gap to the authoritative
// clock. Rate corrections are bounded: apply Rate for Duration, then restore
// 1.0x.
type Correction struct {
	Action   Action
	Rate     float64
	Duration time.Duration
	SeekTo   float64
}

// Drift returns the signed difference between the authoritative position and
// the viewer's position. Positive means the viewer is behind.
func Drift(authoritative, local State) float64 {
	return authoritative.CurrentTime - local.CurrentTime
}

// Correct converts an authoritative state and a viewer's local state into a
// correction action. Small drift is absorbed by a bounded rate nudge so the
// viewer sees no jump; large drift hard-seeks to guarantee convergence.
// Explicit host seeks bypass this policy entirely and snap unconditionally.
func Correct(authoritative, local State) Correction {
	if !authoritative.IsPlaying {
		return Correction{Action: ActionNone}
	}

	drift := Drift(authoritative, local)
	abs := math.Abs(drift)

	switch {
	case abs < driftTolerance:
		return Correction{Action: ActionNone}
	case abs <= hardSeekThreshold:
		rate := rateBehind
		if drift < 0 {
			rate = rateAhead
		}

		duration := time.Duration(abs * adjustDurationFactor * float64(time.Second))
		if duration > maxAdjustDuration {
			duration = maxAdjustDuration
		}

		return Correction{
			Action:   ActionAdjustRate,
			Rate:     rate,
			Duration: duration,
		}
	default:
		return Correction{
			Action: ActionHardSeek,
			SeekTo: authoritative.CurrentTime,
		}
	}
}

// CorrectFor degrades the correction to what the provider kind can honor:
// players without rate control fall back to seeking once drift leaves the
// tolerance band entirely, and uncontrollable providers never correct.
func CorrectFor(kind ProviderKind, authoritative, local State) Correction {
	correction := Correct(authoritative, local)

	switch correction.Action {
	case ActionAdjustRate:
		if !kind.CanAdjustRate() {
			if !kind.CanSeek() {
				return Correction{Action: ActionNone}
			}

			return Correction{
				Action: ActionHardSeek,
				SeekTo: authoritative.CurrentTime,
			}
		}
	case ActionHardSeek:
		if !kind.CanSeek() {
			return Correction{Action: ActionNone}
		}
	}

	return correction
}
