package catalog

import (
	"fmt"
	"regexp"

	"github.com/promptshield/promptshield/pkg/types"
)

// Rule is a single detection rule in the catalog.
type Rule struct {
	ID       string
	Pattern  string
	Category types.Category
	Severity types.ThreatLevel
}

// CustomRule is an operator-supplied rule decoded from configuration.
type CustomRule struct {
	ID       string `mapstructure:"id"`
	Pattern  string `mapstructure:"pattern"`
	Category string `mapstructure:"category"`
	Severity string `mapstructure:"severity"`
}

// Matcher runs an ordered rule table against a text.
type Matcher interface {
	Match(text string) []types.DetectionMatch
}

type compiledRule struct {
	rule Rule
	re   *regexp.Regexp
}

// Catalog is an immutable, ordered table of compiled detection rules.
// Mutation requires constructing a new Catalog.
type Catalog struct {
	rules []compiledRule
}

// New compiles the default rule table plus any custom rules, preserving
// order (defaults first). Any invalid pattern aborts construction; a partial
// catalog is never returned.
func New(custom ...CustomRule) (*Catalog, error) {
	rules := make([]Rule, 0, len(defaultRules)+len(custom))
	rules = append(rules, defaultRules...)

	for _, c := range custom {
		if c.ID == "" {
			return nil, &types.ConfigurationError{
				Component: "catalog",
				Err:       fmt.Errorf("custom rule is missing an id"),
			}
		}
		if c.Pattern == "" {
			return nil, &types.ConfigurationError{
				Component: "catalog",
				Err:       fmt.Errorf("custom rule %q has an empty pattern", c.ID),
			}
		}
		sev, err := parseSeverity(c.Severity)
		if err != nil {
			return nil, &types.ConfigurationError{
				Component: "catalog",
				Err:       fmt.Errorf("custom rule %q: %w", c.ID, err),
			}
		}
		cat := types.Category(c.Category)
		if cat == "" {
			cat = types.CategoryKeyword
		}
		rules = append(rules, Rule{
			ID:       c.ID,
			Pattern:  c.Pattern,
			Category: cat,
			Severity: sev,
		})
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, &types.ConfigurationError{
				Component: "catalog",
				Err:       fmt.Errorf("invalid pattern for rule %q: %w", r.ID, err),
			}
		}
		compiled = append(compiled, compiledRule{rule: r, re: re})
	}
	return &Catalog{rules: compiled}, nil
}

// MustNew is New for the default table only; the defaults are compile-tested,
// so failure here is a programming error.
func MustNew() *Catalog {
	c, err := New()
	if err != nil {
		panic(err)
	}
	return c
}

// Match attempts every rule in order against text and returns all hits.
// Safe for unbounded concurrent use.
func (c *Catalog) Match(text string) []types.DetectionMatch {
	var matches []types.DetectionMatch
	for _, cr := range c.rules {
		locs := cr.re.FindAllStringIndex(text, -1)
		for _, loc := range locs {
			matches = append(matches, types.DetectionMatch{
				RuleID:   cr.rule.ID,
				Category: cr.rule.Category,
				Severity: cr.rule.Severity,
				Span:     types.Span{Start: loc[0], End: loc[1]},
				Matched:  text[loc[0]:loc[1]],
			})
		}
	}
	return matches
}

// Len returns the number of compiled rules.
func (c *Catalog) Len() int { return len(c.rules) }

// Rules returns a copy of the rule definitions, in table order.
func (c *Catalog) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	for i, cr := range c.rules {
		out[i] = cr.rule
	}
	return out
}

func parseSeverity(s string) (types.ThreatLevel, error) {
	switch s {
	case "low":
		return types.ThreatLow, nil
	case "medium", "":
		return types.ThreatMedium, nil
	case "high":
		return types.ThreatHigh, nil
	case "critical":
		return types.ThreatCritical, nil
	default:
		return types.ThreatNone, fmt.Errorf("unknown severity: %q", s)
	}
}
