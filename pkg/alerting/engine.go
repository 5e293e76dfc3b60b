package alerting

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/promptshield/promptshield/pkg/types"
)

const (
	numShards = 16

	// maxKeysPerShard bounds the timer arena. When a shard fills up, entries
	// not seen for staleAfter are evicted before admitting a new key.
	maxKeysPerShard = 256
	staleAfter      = time.Hour
)

// Dispatcher runs alert delivery off the caller's path. A nil Dispatcher
// delivers synchronously, which tests rely on.
type Dispatcher interface {
	Enqueue(task func()) bool
}

// keyState is the per-(rule, label-set) timer record.
type keyState struct {
	state       types.AlertState
	lastFiring  time.Time
	streakStart time.Time
	streakLive  bool
	lastSeen    time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*keyState
}

// Engine evaluates metric samples against configured rules with per-key
// cooldown and streak state. Concurrent evaluations on different label sets
// never contend; evaluations on the same key serialize.
type Engine struct {
	logger     *logrus.Logger
	dispatcher Dispatcher

	rulesMu sync.RWMutex
	rules   []types.AlertRule

	thresholdsMu sync.RWMutex
	thresholds   map[string]float64
	baselines    map[string]float64

	handlersMu sync.RWMutex
	handlers   []Handler

	shards [numShards]*shard

	fired            [4]atomic.Uint64 // indexed by AlertSeverity
	deliveryFailures atomic.Uint64
}

// NewEngine builds an engine with the given rules. Invalid rules abort
// construction; the engine never runs with a partial rule set.
func NewEngine(logger *logrus.Logger, dispatcher Dispatcher, rules ...types.AlertRule) (*Engine, error) {
	e := &Engine{
		logger:     logger,
		dispatcher: dispatcher,
		thresholds: make(map[string]float64),
		baselines:  make(map[string]float64),
	}
	for i := range e.shards {
		e.shards[i] = &shard{entries: make(map[string]*keyState)}
	}
	for _, r := range rules {
		if err := e.RegisterRule(r); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// RegisterRule validates and adds a rule.
func (e *Engine) RegisterRule(rule types.AlertRule) error {
	if rule.Name == "" {
		return &types.ConfigurationError{Component: "alerting", Err: fmt.Errorf("rule is missing a name")}
	}
	if rule.MetricName == "" {
		return &types.ConfigurationError{Component: "alerting", Err: fmt.Errorf("rule %q is missing a metric name", rule.Name)}
	}
	if !rule.Comparison.Valid() {
		return &types.ConfigurationError{Component: "alerting", Err: fmt.Errorf("rule %q has invalid comparison %q", rule.Name, rule.Comparison)}
	}
	if rule.Cooldown < 0 || rule.MinDuration < 0 {
		return &types.ConfigurationError{Component: "alerting", Err: fmt.Errorf("rule %q has a negative duration", rule.Name)}
	}
	e.rulesMu.Lock()
	defer e.rulesMu.Unlock()
	for _, existing := range e.rules {
		if existing.Name == rule.Name {
			return &types.ConfigurationError{Component: "alerting", Err: fmt.Errorf("duplicate rule %q", rule.Name)}
		}
	}
	e.rules = append(e.rules, rule)
	return nil
}

// AddHandler registers an alert sink.
func (e *Engine) AddHandler(h Handler) {
	e.handlersMu.Lock()
	e.handlers = append(e.handlers, h)
	e.handlersMu.Unlock()
}

// SetThreshold overrides the threshold for every rule watching metricName.
// Takes effect for evaluations after the call, never retroactively.
func (e *Engine) SetThreshold(metricName string, value float64) {
	e.thresholdsMu.Lock()
	e.thresholds[metricName] = value
	e.thresholdsMu.Unlock()
}

// SetBaseline records a comparison baseline for a metric.
func (e *Engine) SetBaseline(metricName string, value float64) {
	e.thresholdsMu.Lock()
	e.baselines[metricName] = value
	e.thresholdsMu.Unlock()
}

// Baseline returns the configured baseline for a metric, if any.
func (e *Engine) Baseline(metricName string) (float64, bool) {
	e.thresholdsMu.RLock()
	defer e.thresholdsMu.RUnlock()
	v, ok := e.baselines[metricName]
	return v, ok
}

// Evaluate checks a metric sample against every matching rule and returns the
// first alert fired, or nil. A rule fires when its comparison holds and the
// (rule, label-set) key is outside its cooldown window; rules with a minimum
// duration additionally require the condition to have held continuously for
// that long, with the streak resetting on any false sample.
func (e *Engine) Evaluate(metricName string, value float64, labels map[string]string, ts time.Time) *types.Alert {
	e.rulesMu.RLock()
	rules := e.rules
	e.rulesMu.RUnlock()

	var fired *types.Alert
	for i := range rules {
		rule := rules[i]
		if rule.MetricName != metricName {
			continue
		}
		if !labelsMatch(rule.Labels, labels) {
			continue
		}
		if alert := e.evaluateRule(rule, value, labels, ts); alert != nil && fired == nil {
			fired = alert
		}
	}
	return fired
}

func (e *Engine) evaluateRule(rule types.AlertRule, value float64, labels map[string]string, ts time.Time) *types.Alert {
	threshold := rule.Threshold
	e.thresholdsMu.RLock()
	if override, ok := e.thresholds[rule.MetricName]; ok {
		threshold = override
	}
	e.thresholdsMu.RUnlock()

	key := rule.Name + "\x00" + canonicalLabels(labels)
	sh := e.shards[shardIndex(key)]

	sh.mu.Lock()
	st, ok := sh.entries[key]
	if !ok {
		e.evictLocked(sh, ts)
		st = &keyState{}
		sh.entries[key] = st
	}
	st.lastSeen = ts

	holds := rule.Comparison.Holds(value, threshold)
	if !holds {
		if st.state == types.AlertFiring {
			st.state = types.AlertResolved
		}
		st.streakLive = false
		sh.mu.Unlock()
		return nil
	}

	if !st.streakLive {
		st.streakLive = true
		st.streakStart = ts
		if st.state != types.AlertFiring {
			st.state = types.AlertPending
		}
	}
	if rule.MinDuration > 0 && ts.Sub(st.streakStart) < rule.MinDuration {
		sh.mu.Unlock()
		return nil
	}
	if !st.lastFiring.IsZero() && ts.Sub(st.lastFiring) < rule.Cooldown {
		sh.mu.Unlock()
		return nil
	}

	st.state = types.AlertFiring
	st.lastFiring = ts
	if rule.MinDuration > 0 {
		// A fresh continuous window is required before the next firing.
		st.streakStart = ts
	}
	sh.mu.Unlock()

	alert := types.Alert{
		ID:          uuid.NewString(),
		Name:        rule.Name,
		Message:     fmt.Sprintf("%s: %s = %v (threshold: %v)", rule.Name, rule.MetricName, value, threshold),
		Severity:    rule.Severity,
		Source:      "rule",
		MetricName:  rule.MetricName,
		MetricValue: value,
		Threshold:   threshold,
		Metadata:    copyLabels(labels),
		Timestamp:   ts,
		State:       types.AlertFiring,
	}
	e.record(alert)
	e.deliver(alert)
	return &alert
}

// CreateAlert raises an alert directly, bypassing rule evaluation and every
// cooldown. Used for mandatory escalations.
func (e *Engine) CreateAlert(name, message string, severity types.AlertSeverity, source string, metadata map[string]string) types.Alert {
	alert := types.Alert{
		ID:        uuid.NewString(),
		Name:      name,
		Message:   message,
		Severity:  severity,
		Source:    source,
		Metadata:  metadata,
		Timestamp: time.Now(),
		State:     types.AlertFiring,
	}
	e.record(alert)
	e.deliver(alert)
	return alert
}

// KeyState reports the lifecycle state of a (rule, label-set) key, for
// inspection and tests.
func (e *Engine) KeyState(ruleName string, labels map[string]string) (types.AlertState, bool) {
	key := ruleName + "\x00" + canonicalLabels(labels)
	sh := e.shards[shardIndex(key)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	st, ok := sh.entries[key]
	if !ok {
		return "", false
	}
	return st.state, true
}

// Statistics returns fired-alert counts keyed by severity name only.
func (e *Engine) Statistics() map[string]uint64 {
	out := make(map[string]uint64, 4)
	for sev := types.SeverityInfo; sev <= types.SeverityEmergency; sev++ {
		out[sev.String()] = e.fired[sev].Load()
	}
	return out
}

// DeliveryFailures returns the number of alerts dropped after failed
// handler delivery.
func (e *Engine) DeliveryFailures() uint64 {
	return e.deliveryFailures.Load()
}

func (e *Engine) record(alert types.Alert) {
	if alert.Severity >= types.SeverityInfo && alert.Severity <= types.SeverityEmergency {
		e.fired[alert.Severity].Add(1)
	}
}

// deliver fans an alert out to every handler. Delivery is fire-and-forget:
// a failing handler is retried once and then dropped with a counter bump.
func (e *Engine) deliver(alert types.Alert) {
	e.handlersMu.RLock()
	handlers := make([]Handler, len(e.handlers))
	copy(handlers, e.handlers)
	e.handlersMu.RUnlock()

	task := func() {
		for _, h := range handlers {
			if err := h.Handle(alert); err != nil {
				if err = h.Handle(alert); err != nil {
					e.deliveryFailures.Add(1)
					if e.logger != nil {
						e.logger.WithError(err).WithField("alert", alert.Name).
							Warn("alert delivery failed, dropping")
					}
				}
			}
		}
	}
	if e.dispatcher == nil {
		task()
		return
	}
	if !e.dispatcher.Enqueue(task) {
		e.deliveryFailures.Add(1)
	}
}

// evictLocked trims stale entries when the shard is at capacity. Caller
// holds the shard lock.
func (e *Engine) evictLocked(sh *shard, now time.Time) {
	if len(sh.entries) < maxKeysPerShard {
		return
	}
	for k, st := range sh.entries {
		if now.Sub(st.lastSeen) > staleAfter {
			delete(sh.entries, k)
		}
	}
}

func labelsMatch(filter, labels map[string]string) bool {
	for k, v := range filter {
		if labels[k] != v {
			return false
		}
	}
	return true
}

func canonicalLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(',')
	}
	return b.String()
}

func copyLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

func shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % numShards)
}
