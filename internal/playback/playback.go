// Package playback holds the pure playback-clock model shared by the room
// actor and by connected clients: authoritative state, wall-clock
// extrapolation and the drift correction policy.
package playback

import "time"

type ProviderKind string

const (
	ProviderEmbeddedStream ProviderKind = "embedded-stream"
	ProviderDirectMedia    ProviderKind = "direct-media"
	ProviderExternalLink   ProviderKind = "external-link"
)

func (k ProviderKind) Valid() bool {
	switch k {
	case ProviderEmbeddedStream, ProviderDirectMedia, ProviderExternalLink:
		return true
	}

	return false
}

// CanAdjustRate reports whether players of this kind accept playback-rate
// changes. External links open in a separate surface the server cannot
// drive.
func (k ProviderKind) CanAdjustRate() bool {
	return k == ProviderEmbeddedStream || k == ProviderDirectMedia
}

func (k ProviderKind) CanSeek() bool {
	return k == ProviderEmbeddedStream || k == ProviderDirectMedia
}

// State is a playback clock observation: position in seconds at UpdatedAt.
type State struct {
	CurrentTime float64
	IsPlaying   bool
	UpdatedAt   time.Time
}

// Extrapolate advances a playing state to now by wall-clock elapsed time.
// Paused states are returned unchanged. Used by viewers returning from a
// backgrounded tab and by the actor while the host is away.
func Extrapolate(s State, now time.Time) State {
	if !s.IsPlaying || s.UpdatedAt.IsZero() || !now.After(s.UpdatedAt) {
		return s
	}

	s.CurrentTime += now.Sub(s.UpdatedAt).Seconds()
	s.UpdatedAt = now
	return s
}
