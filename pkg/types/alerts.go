package types

import (
	"fmt"
	"time"
)

// AlertSeverity orders alert importance.
type AlertSeverity int

const (
	SeverityInfo AlertSeverity = iota
	SeverityWarning
	SeverityCritical
	SeverityEmergency
)

func (s AlertSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	case SeverityEmergency:
		return "emergency"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ParseAlertSeverity maps a config string to an AlertSeverity.
func ParseAlertSeverity(s string) (AlertSeverity, error) {
	switch s {
	case "info":
		return SeverityInfo, nil
	case "warning":
		return SeverityWarning, nil
	case "critical":
		return SeverityCritical, nil
	case "emergency":
		return SeverityEmergency, nil
	default:
		return SeverityInfo, fmt.Errorf("unknown alert severity: %q", s)
	}
}

// AlertState is the lifecycle of a (rule, label-set) alert key.
// Transitions only PENDING -> FIRING -> RESOLVED.
type AlertState string

const (
	AlertPending  AlertState = "pending"
	AlertFiring   AlertState = "firing"
	AlertResolved AlertState = "resolved"
)

// Comparison is the operator an alert rule applies to a sample value.
type Comparison string

const (
	CompareGT  Comparison = "gt"
	CompareGTE Comparison = "gte"
	CompareLT  Comparison = "lt"
	CompareLTE Comparison = "lte"
	CompareEQ  Comparison = "eq"
)

// Holds reports whether value satisfies the comparison against threshold.
func (c Comparison) Holds(value, threshold float64) bool {
	switch c {
	case CompareGT:
		return value > threshold
	case CompareGTE:
		return value >= threshold
	case CompareLT:
		return value < threshold
	case CompareLTE:
		return value <= threshold
	case CompareEQ:
		return value == threshold
	default:
		return false
	}
}

// Valid reports whether c is one of the closed comparison set.
func (c Comparison) Valid() bool {
	switch c {
	case CompareGT, CompareGTE, CompareLT, CompareLTE, CompareEQ:
		return true
	default:
		return false
	}
}

// AlertRule defines when a streamed metric sample raises an alert.
type AlertRule struct {
	Name        string            `json:"name" mapstructure:"name"`
	Description string            `json:"description" mapstructure:"description"`
	MetricName  string            `json:"metric_name" mapstructure:"metric_name"`
	Comparison  Comparison        `json:"comparison" mapstructure:"comparison"`
	Threshold   float64           `json:"threshold" mapstructure:"threshold"`
	Severity    AlertSeverity     `json:"severity" mapstructure:"-"`
	Cooldown    time.Duration     `json:"cooldown" mapstructure:"-"`
	MinDuration time.Duration     `json:"min_duration" mapstructure:"-"`
	Labels      map[string]string `json:"labels,omitempty" mapstructure:"labels"`
}

// Alert is a raised security event delivered to handlers and callers.
type Alert struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Message     string            `json:"message"`
	Severity    AlertSeverity     `json:"severity"`
	Source      string            `json:"source"`
	MetricName  string            `json:"metric_name,omitempty"`
	MetricValue float64           `json:"metric_value,omitempty"`
	Threshold   float64           `json:"threshold,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	State       AlertState        `json:"state"`
}
