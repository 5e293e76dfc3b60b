package auditlogs

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/promptshield/promptshield/pkg/types"
)

const defaultCapacity = 256

// Service keeps a bounded in-memory trail of recent guardrail decisions and
// mirrors each one to the structured log. Recording never blocks a decision.
type Service interface {
	Record(event Event)
	Recent(n int) []Event
}

type service struct {
	enabled bool
	logger  *logrus.Logger

	mu     sync.Mutex
	ring   []Event
	next   int
	filled bool
}

func NewService(logger *logrus.Logger, enabled bool, capacity int) Service {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &service{
		enabled: enabled,
		logger:  logger,
		ring:    make([]Event, capacity),
	}
}

func (s *service) Record(event Event) {
	if !s.enabled {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.ring[s.next] = event
	s.next++
	if s.next == len(s.ring) {
		s.next = 0
		s.filled = true
	}
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"event_id":     event.ID,
			"event_type":   event.Type,
			"action":       event.Action,
			"threat_level": event.ThreatLevel,
			"category":     event.Category,
		}).Info("decision recorded")
	}
}

// Recent returns up to n events, newest first.
func (s *service) Recent(n int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.next
	if s.filled {
		size = len(s.ring)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]Event, 0, n)
	idx := s.next - 1
	for len(out) < n {
		if idx < 0 {
			idx = len(s.ring) - 1
		}
		out = append(out, s.ring[idx])
		idx--
	}
	return out
}

// FromDecision builds an audit event for a resolved decision.
func FromDecision(d types.Decision, eventType string) Event {
	e := Event{
		Type:        eventType,
		Action:      d.Action.String(),
		ThreatLevel: d.ThreatLevel.String(),
		Category:    d.Category.String(),
		Timestamp:   time.Now(),
		State:       d.State,
	}
	if d.InputResult != nil {
		e.Matches = len(d.InputResult.Matches)
	}
	if d.OutputResult != nil {
		e.Redactions = len(d.OutputResult.Redactions)
	}
	return e
}
