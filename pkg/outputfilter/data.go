package outputfilter

import (
	"regexp"

	"github.com/promptshield/promptshield/pkg/types"
)

type detector struct {
	id          string
	category    types.OutputCategory
	placeholder string
	re          *regexp.Regexp
	validate    func(matched string) bool
}

// defaultDetectors is the built-in detector table, attempted in order.
// Structured PII first, then leak, jailbreak and harmful phrase indicators.
var defaultDetectors = []detector{
	// Structured PII
	{
		id:          "email",
		category:    types.OutputSensitive,
		placeholder: "[EMAIL_REDACTED]",
		re:          regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	},
	{
		id:          "phone",
		category:    types.OutputSensitive,
		placeholder: "[PHONE_REDACTED]",
		re:          regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`),
	},
	{
		id:          "ssn",
		category:    types.OutputSensitive,
		placeholder: "[SSN_REDACTED]",
		re:          regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	},
	{
		id:          "credit_card",
		category:    types.OutputSensitive,
		placeholder: "[CARD_REDACTED]",
		re:          regexp.MustCompile(`\b(?:4\d{3}|5[1-5]\d{2})(?:[ -]?\d{4}){3}\b`),
		validate:    luhnValid,
	},
	{
		id:          "password",
		category:    types.OutputSensitive,
		placeholder: "[PASSWORD_REDACTED]",
		re:          regexp.MustCompile(`(?i)password\s*[:=]\s*\S+`),
	},
	{
		id:          "api_key",
		category:    types.OutputSensitive,
		placeholder: "[API_KEY_REDACTED]",
		re:          regexp.MustCompile(`(?i)api[_-]?key\s*[:=]\s*\S+`),
	},
	{
		id:          "secret",
		category:    types.OutputSensitive,
		placeholder: "[SECRET_REDACTED]",
		re:          regexp.MustCompile(`(?i)secret\s*[:=]\s*\S+`),
	},
	{
		id:          "token",
		category:    types.OutputSensitive,
		placeholder: "[TOKEN_REDACTED]",
		re:          regexp.MustCompile(`(?i)(?:bearer|access[_-]?token|token)\s*[:=]\s*\S+`),
	},

	// System prompt leakage
	{
		id:          "system_prompt_leak",
		category:    types.OutputLeaked,
		placeholder: "[LEAK_REDACTED]",
		re:          regexp.MustCompile(`(?i)my\s+(system\s+)?prompt\s+(is|says|states)`),
	},
	{
		id:          "instruction_leak",
		category:    types.OutputLeaked,
		placeholder: "[LEAK_REDACTED]",
		re:          regexp.MustCompile(`(?i)i\s+was\s+(told|instructed)\s+to|my\s+instructions?\s+(are|is|include)`),
	},
	{
		id:          "prompt_reference",
		category:    types.OutputLeaked,
		placeholder: "[LEAK_REDACTED]",
		re:          regexp.MustCompile(`(?i)according\s+to\s+my\s+(system\s+)?prompt`),
	},

	// Jailbreak confessions
	{
		id:          "dan_activation",
		category:    types.OutputJailbroken,
		placeholder: "[JAILBREAK_REDACTED]",
		re:          regexp.MustCompile(`(?i)DAN\s+mode\s+(enabled|activated)`),
	},
	{
		id:          "dev_mode_activation",
		category:    types.OutputJailbroken,
		placeholder: "[JAILBREAK_REDACTED]",
		re:          regexp.MustCompile(`(?i)developer\s+mode\s+(enabled|activated)`),
	},
	{
		id:          "restriction_bypass",
		category:    types.OutputJailbroken,
		placeholder: "[JAILBREAK_REDACTED]",
		re:          regexp.MustCompile(`(?i)restrictions?\s+(removed|disabled|bypassed)|i\s+can\s+now\s+do\s+anything|no\s+(longer\s+)?(have|follow)\s+restrictions?`),
	},

	// Harmful content
	{
		id:          "weapon_instructions",
		category:    types.OutputHarmful,
		placeholder: "[HARMFUL_REDACTED]",
		re:          regexp.MustCompile(`(?i)how\s+to\s+(make|build|create)\s+(a\s+)?(bomb|explosive|weapon)`),
	},
	{
		id:          "hacking_instructions",
		category:    types.OutputHarmful,
		placeholder: "[HARMFUL_REDACTED]",
		re:          regexp.MustCompile(`(?i)steps?\s+to\s+(hack|exploit|attack)`),
	},
	{
		id:          "malware",
		category:    types.OutputHarmful,
		placeholder: "[HARMFUL_REDACTED]",
		re:          regexp.MustCompile(`(?i)(malware|virus|ransomware)\s+(code|script)`),
	},
}

// luhnValid runs the Luhn checksum over the digits of a card candidate.
func luhnValid(s string) bool {
	var digits []int
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) < 13 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
