package alerting

import (
	"time"

	"github.com/promptshield/promptshield/pkg/types"
)

// DefaultRules are the baseline thresholds shipped with the engine. Config
// rules are registered on top of them.
func DefaultRules() []types.AlertRule {
	return []types.AlertRule{
		{
			Name:        "high_block_rate",
			Description: "more than half of recent requests blocked",
			MetricName:  "block_rate",
			Comparison:  types.CompareGT,
			Threshold:   0.5,
			Severity:    types.SeverityCritical,
			Cooldown:    5 * time.Minute,
		},
		{
			Name:        "elevated_block_rate",
			Description: "block rate sustained above the baseline",
			MetricName:  "block_rate",
			Comparison:  types.CompareGT,
			Threshold:   0.2,
			Severity:    types.SeverityWarning,
			Cooldown:    10 * time.Minute,
			MinDuration: 15 * time.Minute,
		},
		{
			Name:        "check_failures_present",
			Description: "one or more checks resolved fail-closed",
			MetricName:  "check_failures",
			Comparison:  types.CompareGTE,
			Threshold:   1,
			Severity:    types.SeverityWarning,
			Cooldown:    10 * time.Minute,
		},
	}
}
