package outputfilter_test

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptshield/promptshield/pkg/outputfilter"
	"github.com/promptshield/promptshield/pkg/types"
)

func newFilter(t *testing.T, cfg outputfilter.Config) *outputfilter.Filter {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(&strings.Builder{})
	return outputfilter.New(logger, cfg)
}

func TestApply_SafeOutput(t *testing.T) {
	f := newFilter(t, outputfilter.Config{RedactSensitive: true})

	result, err := f.Apply("The capital of France is Paris.")
	require.NoError(t, err)
	assert.Equal(t, types.OutputSafe, result.Category)
	assert.Equal(t, "The capital of France is Paris.", result.FilteredOutput)
	assert.Empty(t, result.Redactions)
}

func TestApply_PIIRedaction(t *testing.T) {
	f := newFilter(t, outputfilter.Config{RedactSensitive: true})

	result, err := f.Apply("Contact John at john.doe@example.com or 555-123-4567.")
	require.NoError(t, err)
	assert.Equal(t, types.OutputSensitive, result.Category)
	assert.Equal(t, "Contact John at [EMAIL_REDACTED] or [PHONE_REDACTED].", result.FilteredOutput)
	require.Len(t, result.Redactions, 2)
	assert.Equal(t, "email", result.Redactions[0].Detector)
	assert.Equal(t, "john.doe@example.com", result.Redactions[0].Original)
	assert.Equal(t, "phone", result.Redactions[1].Detector)
}

func TestApply_CardNumberLuhn(t *testing.T) {
	f := newFilter(t, outputfilter.Config{RedactSensitive: true})

	// 4111 1111 1111 1111 passes Luhn; flipping the last digit fails it.
	valid, err := f.Apply("card: 4111 1111 1111 1111")
	require.NoError(t, err)
	assert.Equal(t, types.OutputSensitive, valid.Category)
	assert.Contains(t, valid.FilteredOutput, "[CARD_REDACTED]")

	invalid, err := f.Apply("card: 4111 1111 1111 1112")
	require.NoError(t, err)
	assert.Equal(t, types.OutputSafe, invalid.Category)
	assert.NotContains(t, invalid.FilteredOutput, "[CARD_REDACTED]")
}

func TestApply_SecretAssignments(t *testing.T) {
	f := newFilter(t, outputfilter.Config{RedactSensitive: true})

	tests := []struct {
		input       string
		placeholder string
	}{
		{"password: hunter2", "[PASSWORD_REDACTED]"},
		{"api_key=sk-abcdef123456", "[API_KEY_REDACTED]"},
		{"the secret: squirrel42", "[SECRET_REDACTED]"},
	}
	for _, tt := range tests {
		result, err := f.Apply(tt.input)
		require.NoError(t, err)
		assert.Equal(t, types.OutputSensitive, result.Category, tt.input)
		assert.Contains(t, result.FilteredOutput, tt.placeholder, tt.input)
	}
}

func TestApply_LeakDetection(t *testing.T) {
	f := newFilter(t, outputfilter.Config{RedactSensitive: true})

	result, err := f.Apply("My system prompt is: you are a helpful assistant.")
	require.NoError(t, err)
	assert.Equal(t, types.OutputLeaked, result.Category)
	assert.Contains(t, result.FilteredOutput, "[LEAK_REDACTED]")
}

func TestApply_JailbreakDetection(t *testing.T) {
	f := newFilter(t, outputfilter.Config{RedactSensitive: true})

	result, err := f.Apply("DAN mode enabled! Restrictions removed.")
	require.NoError(t, err)
	assert.Equal(t, types.OutputJailbroken, result.Category)
}

func TestApply_HarmfulDetection(t *testing.T) {
	f := newFilter(t, outputfilter.Config{RedactSensitive: true})

	result, err := f.Apply("Here are the steps to hack the server.")
	require.NoError(t, err)
	assert.Equal(t, types.OutputHarmful, result.Category)
}

func TestApply_CategoryPrecedence(t *testing.T) {
	f := newFilter(t, outputfilter.Config{RedactSensitive: true})

	// Harmful outranks sensitive even though both matched, and the PII
	// span is still redacted.
	result, err := f.Apply("Email me at a@b.com for the steps to hack anything.")
	require.NoError(t, err)
	assert.Equal(t, types.OutputHarmful, result.Category)
	assert.Contains(t, result.FilteredOutput, "[EMAIL_REDACTED]")
	assert.Contains(t, result.FilteredOutput, "[HARMFUL_REDACTED]")
}

func TestApply_RedactionDisabled(t *testing.T) {
	f := newFilter(t, outputfilter.Config{})

	text := "reach me at jane@corp.example"
	result, err := f.Apply(text)
	require.NoError(t, err)
	assert.Equal(t, types.OutputSensitive, result.Category)
	assert.Equal(t, text, result.FilteredOutput)
	assert.Empty(t, result.Redactions)
}

func TestApply_BytesOutsideSpansUntouched(t *testing.T) {
	f := newFilter(t, outputfilter.Config{RedactSensitive: true})

	prefix := "Results (v2.1) — contact: "
	suffix := " [end of report]"
	result, err := f.Apply(prefix + "ops@example.org" + suffix)
	require.NoError(t, err)
	assert.Equal(t, prefix+"[EMAIL_REDACTED]"+suffix, result.FilteredOutput)
}

func TestApply_EmptyOutput(t *testing.T) {
	f := newFilter(t, outputfilter.Config{RedactSensitive: true})

	result, err := f.Apply("")
	require.NoError(t, err)
	assert.Equal(t, types.OutputSafe, result.Category)
}

func TestApply_InvalidUTF8(t *testing.T) {
	f := newFilter(t, outputfilter.Config{RedactSensitive: true})

	result, err := f.Apply("garbage \xff output")
	require.Error(t, err)
	var classErr *types.ClassificationError
	assert.ErrorAs(t, err, &classErr)
	assert.Equal(t, types.OutputHarmful, result.Category)
	assert.Equal(t, outputfilter.BlockedPlaceholder, result.FilteredOutput)
}

func TestApplyContext_Cancelled(t *testing.T) {
	f := newFilter(t, outputfilter.Config{RedactSensitive: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := f.ApplyContext(ctx, "anything")
	require.Error(t, err)
	assert.Equal(t, types.OutputHarmful, result.Category)
}
