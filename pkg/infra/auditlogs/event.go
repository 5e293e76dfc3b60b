package auditlogs

import (
	"time"

	"github.com/promptshield/promptshield/pkg/types"
)

// Event is one audited guardrail decision.
type Event struct {
	ID          string             `json:"id"`
	Type        string             `json:"type"`
	Action      string             `json:"action"`
	ThreatLevel string             `json:"threat_level,omitempty"`
	Category    string             `json:"category,omitempty"`
	Matches     int                `json:"matches,omitempty"`
	Redactions  int                `json:"redactions,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
	State       types.RequestState `json:"state"`
}

const (
	EventTypeInputChecked  = "input.checked"
	EventTypeInputBlocked  = "input.blocked"
	EventTypeOutputChecked = "output.checked"
	EventTypeOutputBlocked = "output.blocked"
	EventTypeEscalation    = "output.escalated"
)
