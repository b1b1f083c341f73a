package monitor

import (
	"encoding/json"

	"github.com/Vodeneev/bttsbot/internal/pkg/models"
)

// Phase is the loop state: idle or awaiting the result of a pick.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaiting
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaiting:
		return "awaiting"
	default:
		return "idle"
	}
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// State is Idle or Awaiting{Pick}. Pick is only meaningful while awaiting.
type State struct {
	Phase Phase              `json:"phase"`
	Pick  *models.ActivePick `json:"pick,omitempty"`
}

func Idle() State {
	return State{Phase: PhaseIdle}
}

func Awaiting(pick models.ActivePick) State {
	return State{Phase: PhaseAwaiting, Pick: &pick}
}
