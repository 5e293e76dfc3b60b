package alerting

import (
	"github.com/sirupsen/logrus"

	"github.com/promptshield/promptshield/pkg/types"
)

// Handler consumes a fired alert. Implementations must be safe for
// concurrent use; the engine may deliver from multiple goroutines.
type Handler interface {
	Handle(alert types.Alert) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(alert types.Alert) error

func (f HandlerFunc) Handle(alert types.Alert) error { return f(alert) }

// LogHandler writes alerts to the structured log.
type LogHandler struct {
	logger *logrus.Logger
}

func NewLogHandler(logger *logrus.Logger) *LogHandler {
	return &LogHandler{logger: logger}
}

func (h *LogHandler) Handle(alert types.Alert) error {
	entry := h.logger.WithFields(logrus.Fields{
		"alert_id":    alert.ID,
		"alert_name":  alert.Name,
		"severity":    alert.Severity.String(),
		"source":      alert.Source,
		"metric_name": alert.MetricName,
	})
	switch alert.Severity {
	case types.SeverityCritical, types.SeverityEmergency:
		entry.Error(alert.Message)
	case types.SeverityWarning:
		entry.Warn(alert.Message)
	default:
		entry.Info(alert.Message)
	}
	return nil
}
