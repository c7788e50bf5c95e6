package analysis

import (
	"github.com/Kerastion/trioflow/types"
)

// Forecast thresholds. The reactive speaker policy applies stricter ones on
// purpose: the forecast is advisory and fires earlier than an actual
// moderator intervention would.
const (
	forecastDriftThreshold   = 0.7
	forecastTensionThreshold = 0.8
)

// Recommendation thresholds.
const (
	lowMomentumThreshold = 0.3
	highDriftThreshold   = 0.7
	highTensionThreshold = 0.8
)

// recommend derives advisory nudges from the snapshot metrics.
func recommend(snap *Snapshot) []Recommendation {
	var recs []Recommendation
	if snap.Momentum < lowMomentumThreshold {
		recs = append(recs, Recommendation{
			Kind:    RecommendEnergyBoost,
			Urgency: UrgencyHigh,
			Message: "momentum is flagging; the initiator should inject energy",
			Target:  types.RoleInitiator,
		})
	}
	if snap.TopicDrift > highDriftThreshold {
		recs = append(recs, Recommendation{
			Kind:    RecommendTopicShift,
			Urgency: UrgencyMedium,
			Message: "conversation has drifted off topic; the moderator should steer back",
			Target:  types.RoleModerator,
		})
	}
	if snap.Tension > highTensionThreshold {
		recs = append(recs, Recommendation{
			Kind:    RecommendIntervention,
			Urgency: UrgencyHigh,
			Message: "tension is running high; the moderator should intervene",
			Target:  types.RoleModerator,
		})
	}
	return recs
}

// forecast predicts the next speaker:
//   - drift or tension past the forecast thresholds => moderator at 0.9,
//     annotated with whichever condition fired;
//   - otherwise alternation: initiator => reactor at 0.85,
//     reactor => initiator at 0.8;
//   - after a moderator utterance, whichever of initiator/reactor has spoken
//     less at 0.7 (ties go to the initiator);
//   - empty history opens with the initiator at 0.85.
//
// Confidence is scaled x0.9 in the opening phase and x1.1 in the peak phase,
// clamped to 1.
func forecast(snap *Snapshot, history types.History) Forecast {
	f := forecastUnscaled(snap, history)
	switch snap.Phase {
	case PhaseOpening:
		f.Confidence *= 0.9
	case PhasePeak:
		f.Confidence *= 1.1
	}
	f.Confidence = clamp01(f.Confidence)
	return f
}

func forecastUnscaled(snap *Snapshot, history types.History) Forecast {
	if snap.TopicDrift > forecastDriftThreshold {
		return Forecast{
			Role:       types.RoleModerator,
			Confidence: 0.9,
			Reasons:    []string{"topic drift above forecast threshold"},
		}
	}
	if snap.Tension > forecastTensionThreshold {
		return Forecast{
			Role:       types.RoleModerator,
			Confidence: 0.9,
			Reasons:    []string{"tension above forecast threshold"},
		}
	}

	last, ok := history.Last()
	if !ok {
		return Forecast{
			Role:       types.RoleInitiator,
			Confidence: 0.85,
			Reasons:    []string{"conversation not started; initiator opens"},
		}
	}

	switch last.Role {
	case types.RoleInitiator:
		return Forecast{
			Role:       types.RoleReactor,
			Confidence: 0.85,
			Reasons:    []string{"alternation after initiator"},
		}
	case types.RoleReactor:
		return Forecast{
			Role:       types.RoleInitiator,
			Confidence: 0.8,
			Reasons:    []string{"alternation after reactor"},
		}
	default:
		// After the moderator, predict whichever side has spoken less.
		role := types.RoleInitiator
		if history.CountByRole(types.RoleReactor) < history.CountByRole(types.RoleInitiator) {
			role = types.RoleReactor
		}
		return Forecast{
			Role:       role,
			Confidence: 0.7,
			Reasons:    []string{"moderator spoke last; balancing participation"},
		}
	}
}
