package analysis

// phaseBands maps the turn-progress ratio to fixed bands. phaseProgress is
// the ratio's position rescaled to [0,1] within its band.
var phaseBands = []struct {
	phase Phase
	lo    float64
	hi    float64
}{
	{PhaseOpening, 0, 0.15},
	{PhaseWarmUp, 0.15, 0.3},
	{PhaseDevelopment, 0.3, 0.7},
	{PhasePeak, 0.7, 0.85},
	{PhaseClosing, 0.85, 1},
}

func phaseOf(currentTurn, maxTurns int) (Phase, float64) {
	ratio := 0.0
	if maxTurns > 0 {
		ratio = clamp01(float64(currentTurn) / float64(maxTurns))
	}
	for _, band := range phaseBands {
		if ratio < band.hi || band.phase == PhaseClosing {
			return band.phase, clamp01((ratio - band.lo) / (band.hi - band.lo))
		}
	}
	return PhaseClosing, 1 // unreachable
}
