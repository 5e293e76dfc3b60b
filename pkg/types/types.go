package types

import (
	"fmt"
	"time"
)

// ThreatLevel classifies the severity of a detected input pattern.
// Levels form a total order: NONE < LOW < MEDIUM < HIGH < CRITICAL.
type ThreatLevel int

const (
	ThreatNone ThreatLevel = iota
	ThreatLow
	ThreatMedium
	ThreatHigh
	ThreatCritical
)

func (t ThreatLevel) String() string {
	switch t {
	case ThreatNone:
		return "none"
	case ThreatLow:
		return "low"
	case ThreatMedium:
		return "medium"
	case ThreatHigh:
		return "high"
	case ThreatCritical:
		return "critical"
	default:
		return fmt.Sprintf("threat(%d)", int(t))
	}
}

// Escalate returns the level one step above t, capped at CRITICAL.
func (t ThreatLevel) Escalate() ThreatLevel {
	if t >= ThreatCritical {
		return ThreatCritical
	}
	return t + 1
}

// Category tags the kind of attack a catalog rule detects.
type Category string

const (
	CategoryOverride     Category = "override"
	CategoryRoleChange   Category = "role_change"
	CategorySpecialToken Category = "special_token"
	CategoryExtraction   Category = "extraction"
	CategoryJailbreak    Category = "jailbreak"
	CategoryObfuscation  Category = "obfuscation"
	CategoryKeyword      Category = "keyword"
)

// Span marks a byte range [Start, End) inside the scanned text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// DetectionMatch records a single catalog rule hit.
type DetectionMatch struct {
	RuleID   string      `json:"rule_id"`
	Category Category    `json:"category"`
	Severity ThreatLevel `json:"severity"`
	Span     Span        `json:"span"`
	Matched  string      `json:"matched"`
}

// SanitizationResult is the outcome of input sanitization. All matches are
// retained for audit regardless of the aggregated threat level.
type SanitizationResult struct {
	SanitizedInput string           `json:"sanitized_input"`
	ThreatLevel    ThreatLevel      `json:"threat_level"`
	Matches        []DetectionMatch `json:"matches"`
}

// OutputCategory classifies generated text by risk type. Precedence is
// HARMFUL > JAILBROKEN > LEAKED > SENSITIVE > SAFE.
type OutputCategory int

const (
	OutputSafe OutputCategory = iota
	OutputSensitive
	OutputLeaked
	OutputJailbroken
	OutputHarmful
)

func (c OutputCategory) String() string {
	switch c {
	case OutputSafe:
		return "safe"
	case OutputSensitive:
		return "sensitive"
	case OutputLeaked:
		return "leaked"
	case OutputJailbroken:
		return "jailbroken"
	case OutputHarmful:
		return "harmful"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Redaction records a replaced span in filtered output. Original is kept for
// audit only and never re-enters the filtered text.
type Redaction struct {
	Detector    string `json:"detector"`
	Placeholder string `json:"placeholder"`
	Span        Span   `json:"span"`
	Original    string `json:"original"`
}

// FilterResult is the outcome of output classification.
type FilterResult struct {
	FilteredOutput string         `json:"filtered_output"`
	Category       OutputCategory `json:"category"`
	Redactions     []Redaction    `json:"redactions"`
}

// GuardrailAction is the enforcement decision attached to a request.
// Actions form a severity order used for more-severe-wins arbitration.
type GuardrailAction int

const (
	ActionAllow GuardrailAction = iota
	ActionWarn
	ActionModify
	ActionBlock
	ActionEscalate
)

func (a GuardrailAction) String() string {
	switch a {
	case ActionAllow:
		return "allow"
	case ActionWarn:
		return "warn"
	case ActionModify:
		return "modify"
	case ActionBlock:
		return "block"
	case ActionEscalate:
		return "escalate"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Blocks reports whether the action terminates the request.
func (a GuardrailAction) Blocks() bool {
	return a == ActionBlock || a == ActionEscalate
}

// RequestState tracks a request through the guardrail pipeline.
type RequestState string

const (
	StateReceived      RequestState = "received"
	StateInputChecked  RequestState = "input_checked"
	StateBlocked       RequestState = "blocked"
	StateGenerating    RequestState = "generating"
	StateOutputChecked RequestState = "output_checked"
	StateDelivered     RequestState = "delivered"
)

// Decision is returned synchronously to the caller for every checked exchange.
type Decision struct {
	Action         GuardrailAction     `json:"action"`
	State          RequestState        `json:"state"`
	ThreatLevel    ThreatLevel         `json:"threat_level"`
	Category       OutputCategory      `json:"category"`
	SanitizedInput string              `json:"sanitized_input"`
	FilteredOutput string              `json:"filtered_output"`
	InputResult    *SanitizationResult `json:"input_result,omitempty"`
	OutputResult   *FilterResult       `json:"output_result,omitempty"`
	Alerts         []Alert             `json:"alerts,omitempty"`
}

// SecurityLevel governs how aggressively the simulated model itself resists
// attacks. Orthogonal to the guardrail's own checks.
type SecurityLevel int

const (
	SecurityNone SecurityLevel = iota
	SecurityLow
	SecurityMedium
	SecurityHigh
	SecurityMaximum
)

func (s SecurityLevel) String() string {
	switch s {
	case SecurityNone:
		return "none"
	case SecurityLow:
		return "low"
	case SecurityMedium:
		return "medium"
	case SecurityHigh:
		return "high"
	case SecurityMaximum:
		return "maximum"
	default:
		return fmt.Sprintf("security(%d)", int(s))
	}
}

// ParseSecurityLevel maps a config string to a SecurityLevel.
func ParseSecurityLevel(s string) (SecurityLevel, error) {
	switch s {
	case "none":
		return SecurityNone, nil
	case "low":
		return SecurityLow, nil
	case "medium":
		return SecurityMedium, nil
	case "high":
		return SecurityHigh, nil
	case "maximum":
		return SecurityMaximum, nil
	default:
		return SecurityNone, fmt.Errorf("unknown security level: %q", s)
	}
}

// Statistics is a point-in-time snapshot of orchestrator counters.
type Statistics struct {
	TotalRequests    uint64            `json:"total_requests"`
	BlockedInputs    uint64            `json:"blocked_inputs"`
	BlockedOutputs   uint64            `json:"blocked_outputs"`
	WarningsIssued   uint64            `json:"warnings_issued"`
	CheckFailures    uint64            `json:"check_failures"`
	BlockRate        float64           `json:"block_rate"`
	ThreatsByType    map[string]uint64 `json:"threats_by_type"`
	AlertsBySeverity map[string]uint64 `json:"alerts_by_severity"`
	SnapshotAt       time.Time         `json:"snapshot_at"`
}
