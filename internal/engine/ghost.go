package engine

import "time"

// GhostState is the per-lead snapshot the recovery scanner evaluates.
type GhostState struct {
	Score           int
	Mode            Mode
	LastInbound     time.Time
	RecoveriesSent  int
	LastRecoveryAt  time.Time
	OptedOut        bool
	BookingComplete bool
}

// GhostAction is what the scanner should do for one lead.
type GhostAction string

const (
	GhostNone        GhostAction = ""
	GhostFirstNudge  GhostAction = "first_nudge"
	GhostSecondNudge GhostAction = "second_nudge"
)

const (
	ghostFirstAfter  = 4 * time.Hour
	ghostSecondAfter = 24 * time.Hour
	ghostMaxAttempts = 2

	ghostWarmThreshold = 40
	ghostHotThreshold  = 75
)

// GhostDecision tells the worker whether to nudge and with what framing.
type GhostDecision struct {
	Action GhostAction
	Hot    bool
}

// EvaluateGhost decides whether a silent lead earns a recovery message at the
// supplied instant. Only leads that showed real interest are nudged, at most
// twice, and never after opt-out or a completed booking.
func EvaluateGhost(s GhostState, now time.Time) GhostDecision {
	if s.OptedOut || s.BookingComplete {
		return GhostDecision{}
	}
	if s.Score < ghostWarmThreshold {
		return GhostDecision{}
	}
	if s.RecoveriesSent >= ghostMaxAttempts {
		return GhostDecision{}
	}
	if s.LastInbound.IsZero() {
		return GhostDecision{}
	}

	silence := now.Sub(s.LastInbound)
	hot := s.Score >= ghostHotThreshold

	switch s.RecoveriesSent {
	case 0:
		if silence >= ghostFirstAfter {
			return GhostDecision{Action: GhostFirstNudge, Hot: hot}
		}
	case 1:
		// Second nudge keys off total silence, not time since the first nudge,
		// and is suppressed if the first one just went out.
		if silence >= ghostSecondAfter && now.Sub(s.LastRecoveryAt) >= ghostFirstAfter {
			return GhostDecision{Action: GhostSecondNudge, Hot: hot}
		}
	}
	return GhostDecision{}
}

// PrepareGhostForSave produces the partial update recorded after a nudge.
func PrepareGhostForSave(s GhostState, sentAt time.Time) map[string]any {
	return map[string]any{
		"qualificationData.ghostRecoverySent":   s.RecoveriesSent + 1,
		"qualificationData.ghostLastRecoveryAt": sentAt,
	}
}
