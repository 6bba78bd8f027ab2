package playback

// Target is the capability surface a client-side player variant exposes to
// the drift corrector. The corrector is written once against this interface;
// provider-specific behavior lives in the variants, not in the policy.
type Target interface {
	// ApplyAuthoritativeState applies play/pause and rate changes.
	ApplyAuthoritativeState(s State)
	// SeekTo jumps to an absolute position in seconds.
	SeekTo(seconds float64)
	// ReportLocalState returns the player's current observation.
	ReportLocalState() State
}

// Apply drives a target with the correction produced for its provider kind
// and reports the action taken.
func Apply(kind ProviderKind, target Target, authoritative State) Correction {
	correction := CorrectFor(kind, authoritative, target.ReportLocalState())

	switch correction.Action {
	case ActionAdjustRate:
		target.ApplyAuthoritativeState(authoritative)
	case ActionHardSeek:
		target.SeekTo(correction.SeekTo)
		target.ApplyAuthoritativeState(authoritative)
	}

	return correction
}

// Snap performs the unconditional resync a host seek demands, bypassing the
// drift thresholds.
func Snap(kind ProviderKind, target Target, authoritative State) {
	if !kind.CanSeek() {
		return
	}

	target.SeekTo(authoritative.CurrentTime)
	target.ApplyAuthoritativeState(authoritative)
}
