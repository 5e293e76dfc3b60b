package catalog

import "github.com/promptshield/promptshield/pkg/types"

// defaultRules is the built-in detection table, attempted in order. Rules are
// matched case-insensitively against normalized input.
var defaultRules = []Rule{
	// Direct instruction override
	{ID: "instruction_override", Pattern: `ignore\s+(all\s+)?(previous|prior|above)\s+instructions?`, Category: types.CategoryOverride, Severity: types.ThreatHigh},
	{ID: "new_instruction", Pattern: `new\s+instructions?[:.]`, Category: types.CategoryOverride, Severity: types.ThreatHigh},
	{ID: "memory_wipe", Pattern: `forget\s+(everything|all|your)`, Category: types.CategoryOverride, Severity: types.ThreatHigh},

	// Role manipulation
	{ID: "role_change", Pattern: `you\s+are\s+now\s+(a|an|the|my|in|free|unrestricted)\b`, Category: types.CategoryRoleChange, Severity: types.ThreatCritical},
	{ID: "role_pretend", Pattern: `pretend\s+(to\s+be|you'?re)`, Category: types.CategoryRoleChange, Severity: types.ThreatHigh},
	{ID: "role_act", Pattern: `act\s+as\s+(if\s+you'?re|a)`, Category: types.CategoryRoleChange, Severity: types.ThreatMedium},

	// System prompt attacks
	{ID: "system_injection", Pattern: `system\s*[:>]`, Category: types.CategoryExtraction, Severity: types.ThreatCritical},
	{ID: "prompt_extraction", Pattern: `(reveal|show|tell|output)\s+(me\s+)?(your|the)\s+(system\s+)?prompt`, Category: types.CategoryExtraction, Severity: types.ThreatHigh},
	{ID: "instruction_extraction", Pattern: `what\s+(are|were)\s+your\s+(initial\s+)?instructions?`, Category: types.CategoryExtraction, Severity: types.ThreatMedium},

	// Special model tokens
	{ID: "special_token", Pattern: `<\|[^|]+\|>`, Category: types.CategorySpecialToken, Severity: types.ThreatCritical},
	{ID: "instruction_token", Pattern: `\[INST\]|\[/INST\]`, Category: types.CategorySpecialToken, Severity: types.ThreatCritical},
	{ID: "markdown_injection", Pattern: `###\s*(system|instruction|user|assistant)`, Category: types.CategorySpecialToken, Severity: types.ThreatHigh},
	{ID: "llama_system_token", Pattern: `<<SYS>>|<</SYS>>`, Category: types.CategorySpecialToken, Severity: types.ThreatCritical},

	// Jailbreak indicators
	{ID: "dan_jailbreak", Pattern: `\bDAN\b|do\s+anything\s+now`, Category: types.CategoryJailbreak, Severity: types.ThreatCritical},
	{ID: "dev_mode", Pattern: `developer\s+mode`, Category: types.CategoryJailbreak, Severity: types.ThreatHigh},
	{ID: "explicit_jailbreak", Pattern: `jailbreak|bypass\s+(safety|restrictions?|filters?)`, Category: types.CategoryJailbreak, Severity: types.ThreatCritical},
	{ID: "hypothetical_jailbreak", Pattern: `hypothetically|if\s+you\s+had\s+no\s+rules`, Category: types.CategoryJailbreak, Severity: types.ThreatMedium},
	{ID: "policy_bypass", Pattern: `no\s+(content\s+)?polic(y|ies)`, Category: types.CategoryJailbreak, Severity: types.ThreatHigh},
	{ID: "prompt_override", Pattern: `override\s+(your\s+)?(system\s+)?prompt`, Category: types.CategoryJailbreak, Severity: types.ThreatCritical},
	{ID: "developer_claim", Pattern: `i\s+am\s+(your\s+)?developer`, Category: types.CategoryJailbreak, Severity: types.ThreatHigh},
	{ID: "guideline_bypass", Pattern: `no\s+(safety\s+)?guidelines?`, Category: types.CategoryJailbreak, Severity: types.ThreatHigh},
	{ID: "unrestricted_claim", Pattern: `unrestricted\s+(AI|assistant)`, Category: types.CategoryJailbreak, Severity: types.ThreatMedium},

	// Dangerous keywords
	{ID: "blocked_keyword", Pattern: `\b(bomb|weapon|explosive|malware|virus|ransomware|phishing|ddos|exploit)\b`, Category: types.CategoryKeyword, Severity: types.ThreatMedium},
}
