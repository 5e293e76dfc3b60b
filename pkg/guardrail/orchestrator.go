package guardrail

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/promptshield/promptshield/pkg/infra/auditlogs"
	"github.com/promptshield/promptshield/pkg/infra/prometheus"
	"github.com/promptshield/promptshield/pkg/outputfilter"
	"github.com/promptshield/promptshield/pkg/types"
)

// InputChecker sanitizes raw user input before it reaches a model.
type InputChecker interface {
	SanitizeContext(ctx context.Context, text string) types.SanitizationResult
}

// OutputChecker classifies and redacts model output.
type OutputChecker interface {
	ApplyContext(ctx context.Context, text string) (types.FilterResult, error)
}

// Generator produces a model response for sanitized input.
type Generator interface {
	Generate(ctx context.Context, input string, level types.SecurityLevel) (string, error)
}

// Alerter raises alerts outside the rule-evaluation path.
type Alerter interface {
	CreateAlert(name, message string, severity types.AlertSeverity, source string, metadata map[string]string) types.Alert
	Statistics() map[string]uint64
}

// Registry publishes metric samples for rule evaluation.
type Registry interface {
	Record(metricName string, value float64, labels map[string]string)
}

type Config struct {
	StrictMode    bool
	SecurityLevel types.SecurityLevel
}

// Orchestrator drives the per-request pipeline: input check, generation,
// output check. Every exchange resolves to a Decision; checks that fail
// internally resolve fail-closed, never fail-open.
type Orchestrator struct {
	input     InputChecker
	output    OutputChecker
	generator Generator
	alerter   Alerter
	registry  Registry
	audit     auditlogs.Service
	logger    *logrus.Logger
	cfg       Config

	totalRequests  atomic.Uint64
	blockedInputs  atomic.Uint64
	blockedOutputs atomic.Uint64
	warningsIssued atomic.Uint64
	checkFailures  atomic.Uint64

	threatsMu sync.Mutex
	threats   map[string]uint64
}

func New(
	input InputChecker,
	output OutputChecker,
	generator Generator,
	alerter Alerter,
	registry Registry,
	logger *logrus.Logger,
	cfg Config,
) *Orchestrator {
	return &Orchestrator{
		input:     input,
		output:    output,
		generator: generator,
		alerter:   alerter,
		registry:  registry,
		logger:    logger,
		cfg:       cfg,
		threats:   make(map[string]uint64),
	}
}

// AttachAuditTrail enables per-decision audit recording.
func (o *Orchestrator) AttachAuditTrail(s auditlogs.Service) {
	o.audit = s
}

func (o *Orchestrator) recordAudit(d types.Decision, eventType string) {
	if o.audit == nil {
		return
	}
	o.audit.Record(auditlogs.FromDecision(d, eventType))
}

// CheckInput sanitizes text and maps the aggregated threat level to an
// action. A blocking decision terminates the exchange before any model call.
func (o *Orchestrator) CheckInput(ctx context.Context, text string) types.Decision {
	o.totalRequests.Add(1)
	return o.checkInput(ctx, text)
}

func (o *Orchestrator) checkInput(ctx context.Context, text string) types.Decision {
	start := time.Now()

	result := o.input.SanitizeContext(ctx, text)
	prometheus.CheckLatency.WithLabelValues("input").
		Observe(float64(time.Since(start).Microseconds()) / 1000.0)

	for _, m := range result.Matches {
		o.countThreat(string(m.Category))
		prometheus.ThreatsTotal.WithLabelValues(string(m.Category)).Inc()
		if m.RuleID == "sanitizer_failure" {
			o.checkFailures.Add(1)
			prometheus.CheckFailures.WithLabelValues("input").Inc()
		}
	}

	action := o.inputAction(result.ThreatLevel)
	decision := types.Decision{
		Action:         action,
		State:          types.StateInputChecked,
		ThreatLevel:    result.ThreatLevel,
		SanitizedInput: result.SanitizedInput,
		InputResult:    &result,
	}

	switch action {
	case types.ActionWarn:
		o.warningsIssued.Add(1)
	case types.ActionBlock:
		decision.State = types.StateBlocked
		o.blockedInputs.Add(1)
		alert := o.alerter.CreateAlert(
			"input_blocked",
			fmt.Sprintf("input blocked at threat level %s", result.ThreatLevel),
			types.SeverityCritical,
			"guardrail",
			map[string]string{"threat_level": result.ThreatLevel.String()},
		)
		decision.Alerts = append(decision.Alerts, alert)
	}

	o.finish(decision.Action)
	eventType := auditlogs.EventTypeInputChecked
	if decision.State == types.StateBlocked {
		eventType = auditlogs.EventTypeInputBlocked
	}
	o.recordAudit(decision, eventType)
	return decision
}

// CheckOutput classifies model output and maps its category to an action.
// A classification failure resolves as HARMFUL and is counted. Standalone
// output checks count as requests so the block rate stays a true ratio.
func (o *Orchestrator) CheckOutput(ctx context.Context, text string) types.Decision {
	o.totalRequests.Add(1)
	return o.checkOutput(ctx, text)
}

func (o *Orchestrator) checkOutput(ctx context.Context, text string) types.Decision {
	start := time.Now()
	result, err := o.output.ApplyContext(ctx, text)
	prometheus.CheckLatency.WithLabelValues("output").
		Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	if err != nil {
		o.checkFailures.Add(1)
		prometheus.CheckFailures.WithLabelValues("output").Inc()
		if o.logger != nil {
			o.logger.WithError(err).Error("output classification failed, blocking")
		}
	}

	prometheus.OutputFlagsTotal.WithLabelValues(result.Category.String()).Inc()
	if result.Category != types.OutputSafe {
		o.countThreat(result.Category.String())
	}

	action := outputAction(result.Category)
	decision := types.Decision{
		Action:         action,
		State:          types.StateOutputChecked,
		Category:       result.Category,
		FilteredOutput: result.FilteredOutput,
		OutputResult:   &result,
	}

	if action.Blocks() {
		decision.State = types.StateBlocked
		decision.FilteredOutput = outputfilter.BlockedPlaceholder
		o.blockedOutputs.Add(1)
	} else {
		decision.State = types.StateDelivered
	}

	if action == types.ActionEscalate {
		// Mandatory alert, bypassing every rule threshold and cooldown.
		alert := o.alerter.CreateAlert(
			"harmful_output",
			fmt.Sprintf("model output classified %s, escalating", result.Category),
			types.SeverityCritical,
			"guardrail",
			map[string]string{"category": result.Category.String()},
		)
		decision.Alerts = append(decision.Alerts, alert)
	}

	o.finish(decision.Action)
	switch {
	case action == types.ActionEscalate:
		o.recordAudit(decision, auditlogs.EventTypeEscalation)
	case decision.State == types.StateBlocked:
		o.recordAudit(decision, auditlogs.EventTypeOutputBlocked)
	default:
		o.recordAudit(decision, auditlogs.EventTypeOutputChecked)
	}
	return decision
}

// Handle runs the full pipeline. The returned error reports a generator
// failure; the Decision is still valid and fail-closed in that case.
func (o *Orchestrator) Handle(ctx context.Context, text string) (types.Decision, error) {
	o.totalRequests.Add(1)
	in := o.checkInput(ctx, text)
	if in.Action.Blocks() {
		return in, nil
	}

	response, err := o.generator.Generate(ctx, in.SanitizedInput, o.cfg.SecurityLevel)
	if err != nil {
		o.checkFailures.Add(1)
		in.Action = types.ActionBlock
		in.State = types.StateBlocked
		o.finish(types.ActionBlock)
		return in, fmt.Errorf("generating response: %w", err)
	}

	out := o.checkOutput(ctx, response)

	// More severe side wins when input and output disagree.
	decision := out
	if in.Action > out.Action {
		decision.Action = in.Action
		if in.Action.Blocks() {
			decision.State = types.StateBlocked
		}
	}
	decision.ThreatLevel = in.ThreatLevel
	decision.SanitizedInput = in.SanitizedInput
	decision.InputResult = in.InputResult
	decision.Alerts = append(in.Alerts, out.Alerts...)
	return decision, nil
}

// GetStatistics returns a point-in-time snapshot of the counters.
func (o *Orchestrator) GetStatistics() types.Statistics {
	total := o.totalRequests.Load()
	blockedIn := o.blockedInputs.Load()
	blockedOut := o.blockedOutputs.Load()

	stats := types.Statistics{
		TotalRequests:  total,
		BlockedInputs:  blockedIn,
		BlockedOutputs: blockedOut,
		WarningsIssued: o.warningsIssued.Load(),
		CheckFailures:  o.checkFailures.Load(),
		ThreatsByType:  make(map[string]uint64),
		SnapshotAt:     time.Now(),
	}
	if total > 0 {
		stats.BlockRate = float64(blockedIn+blockedOut) / float64(total)
	}
	o.threatsMu.Lock()
	for k, v := range o.threats {
		stats.ThreatsByType[k] = v
	}
	o.threatsMu.Unlock()
	if o.alerter != nil {
		stats.AlertsBySeverity = o.alerter.Statistics()
	}
	return stats
}

// inputAction maps a threat level to an action. The mapping is monotone;
// strict mode tightens every non-allow action one step.
func (o *Orchestrator) inputAction(level types.ThreatLevel) types.GuardrailAction {
	var action types.GuardrailAction
	switch {
	case level >= types.ThreatCritical:
		action = types.ActionBlock
	case level >= types.ThreatHigh:
		action = types.ActionModify
	case level >= types.ThreatMedium:
		action = types.ActionWarn
	default:
		action = types.ActionAllow
	}
	if o.cfg.StrictMode && action > types.ActionAllow && action < types.ActionBlock {
		action++
	}
	return action
}

func outputAction(category types.OutputCategory) types.GuardrailAction {
	switch category {
	case types.OutputHarmful:
		return types.ActionEscalate
	case types.OutputJailbroken, types.OutputLeaked:
		return types.ActionBlock
	case types.OutputSensitive:
		return types.ActionModify
	default:
		return types.ActionAllow
	}
}

func (o *Orchestrator) countThreat(kind string) {
	o.threatsMu.Lock()
	o.threats[kind]++
	o.threatsMu.Unlock()
}

// finish publishes per-decision metrics. Emission is fire-and-forget; the
// caller's decision never waits on delivery.
func (o *Orchestrator) finish(action types.GuardrailAction) {
	prometheus.DecisionsTotal.WithLabelValues(action.String()).Inc()
	if o.registry == nil {
		return
	}
	total := o.totalRequests.Load()
	if total == 0 {
		return
	}
	blocked := o.blockedInputs.Load() + o.blockedOutputs.Load()
	o.registry.Record("block_rate", float64(blocked)/float64(total), nil)
	o.registry.Record("check_failures", float64(o.checkFailures.Load()), nil)
}
