package auditlogs_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptshield/promptshield/pkg/infra/auditlogs"
	"github.com/promptshield/promptshield/pkg/types"
)

func newService(enabled bool, capacity int) auditlogs.Service {
	logger := logrus.New()
	logger.SetOutput(&strings.Builder{})
	return auditlogs.NewService(logger, enabled, capacity)
}

func TestRecord_AssignsIDAndTimestamp(t *testing.T) {
	s := newService(true, 8)

	s.Record(auditlogs.Event{Type: auditlogs.EventTypeInputChecked, Action: "allow"})

	events := s.Recent(1)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestRecent_NewestFirst(t *testing.T) {
	s := newService(true, 8)

	for i := 0; i < 3; i++ {
		s.Record(auditlogs.Event{Type: fmt.Sprintf("event-%d", i)})
	}

	events := s.Recent(3)
	require.Len(t, events, 3)
	assert.Equal(t, "event-2", events[0].Type)
	assert.Equal(t, "event-0", events[2].Type)
}

func TestRecent_RingOverwritesOldest(t *testing.T) {
	s := newService(true, 4)

	for i := 0; i < 6; i++ {
		s.Record(auditlogs.Event{Type: fmt.Sprintf("event-%d", i)})
	}

	events := s.Recent(0)
	require.Len(t, events, 4)
	assert.Equal(t, "event-5", events[0].Type)
	assert.Equal(t, "event-2", events[3].Type)
}

func TestRecord_DisabledIsNoop(t *testing.T) {
	s := newService(false, 8)

	s.Record(auditlogs.Event{Type: auditlogs.EventTypeInputBlocked})
	assert.Empty(t, s.Recent(0))
}

func TestFromDecision(t *testing.T) {
	d := types.Decision{
		Action:      types.ActionBlock,
		State:       types.StateBlocked,
		ThreatLevel: types.ThreatCritical,
		InputResult: &types.SanitizationResult{
			Matches: []types.DetectionMatch{{RuleID: "role_change"}, {RuleID: "dan_jailbreak"}},
		},
	}

	e := auditlogs.FromDecision(d, auditlogs.EventTypeInputBlocked)
	assert.Equal(t, "block", e.Action)
	assert.Equal(t, "critical", e.ThreatLevel)
	assert.Equal(t, 2, e.Matches)
	assert.Equal(t, types.StateBlocked, e.State)
}
