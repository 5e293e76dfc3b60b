package metrics

import (
	"sync"
	"time"

	"github.com/promptshield/promptshield/pkg/alerting"
	"github.com/promptshield/promptshield/pkg/infra/prometheus"
)

// Registry accepts metric samples and feeds them to the alert engine.
type Registry interface {
	// Record publishes a sample. Evaluation happens asynchronously when a
	// worker is attached, synchronously otherwise.
	Record(metricName string, value float64, labels map[string]string)
	// Value returns the last recorded value for an unlabeled metric.
	Value(metricName string) (float64, bool)
}

type registry struct {
	engine *alerting.Engine
	worker Worker

	mu     sync.RWMutex
	latest map[string]float64
}

func NewRegistry(engine *alerting.Engine, worker Worker) Registry {
	return &registry{
		engine: engine,
		worker: worker,
		latest: make(map[string]float64),
	}
}

func (r *registry) Record(metricName string, value float64, labels map[string]string) {
	r.mu.Lock()
	r.latest[metricName] = value
	r.mu.Unlock()

	if r.engine == nil {
		return
	}
	ts := time.Now()
	task := func() {
		if alert := r.engine.Evaluate(metricName, value, labels, ts); alert != nil {
			prometheus.AlertsTotal.WithLabelValues(alert.Severity.String()).Inc()
		}
	}
	if r.worker != nil {
		if !r.worker.Enqueue(task) {
			prometheus.AlertDeliveryFailures.Inc()
		}
		return
	}
	task()
}

func (r *registry) Value(metricName string) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.latest[metricName]
	return v, ok
}
