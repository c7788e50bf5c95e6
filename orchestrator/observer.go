package orchestrator

import (
	"github.com/Kerastion/trioflow/analysis"
	"github.com/Kerastion/trioflow/evolution"
	"github.com/Kerastion/trioflow/types"
)

// StepView is the read-only result of one loop step, handed to observers
// and returned by Step. All fields are copies; holding a StepView never
// aliases live session state.
type StepView struct {
	SessionID string                         `json:"session_id"`
	Turn      int                            `json:"turn"` // index of the utterance in history
	Utterance types.Utterance                `json:"utterance"`
	VariantID string                         `json:"variant_id,omitempty"`
	Snapshot  analysis.Snapshot              `json:"snapshot"`
	Stats     map[types.Role]evolution.Stats `json:"stats"`
}

// Observer receives a StepView after every completed step. Observers run on
// the loop goroutine; slow observers slow the loop.
type Observer interface {
	OnStep(view StepView)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(view StepView)

func (f ObserverFunc) OnStep(view StepView) { f(view) }
