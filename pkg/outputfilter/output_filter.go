package outputfilter

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/promptshield/promptshield/pkg/types"
)

// BlockedPlaceholder replaces output that cannot be classified at all.
const BlockedPlaceholder = "[CONTENT_BLOCKED]"

// Config controls filter behavior. Fixed at construction.
type Config struct {
	RedactSensitive bool
}

// Filter classifies and redacts generated text. Pure function of its
// arguments and the immutable detector table: safe for unbounded concurrent
// use.
type Filter struct {
	detectors []detector
	logger    *logrus.Logger
	cfg       Config
}

// New builds a Filter over the built-in detector table.
func New(logger *logrus.Logger, cfg Config) *Filter {
	return &Filter{detectors: defaultDetectors, logger: logger, cfg: cfg}
}

// Apply classifies text and redacts matched spans. The category is assigned
// by fixed precedence HARMFUL > JAILBROKEN > LEAKED > SENSITIVE > SAFE; spans
// from every category are redacted regardless of which category wins. The
// returned error marks a classification failure; the accompanying result is
// already fail-closed and safe to use.
func (f *Filter) Apply(text string) (types.FilterResult, error) {
	return f.ApplyContext(context.Background(), text)
}

// ApplyContext is Apply honoring cancellation between detectors.
func (f *Filter) ApplyContext(ctx context.Context, text string) (types.FilterResult, error) {
	if text == "" {
		return types.FilterResult{FilteredOutput: "", Category: types.OutputSafe}, nil
	}
	if !utf8.ValidString(text) {
		if f.logger != nil {
			f.logger.Error("output is not valid utf-8, blocking")
		}
		return types.FilterResult{
			FilteredOutput: BlockedPlaceholder,
			Category:       types.OutputHarmful,
		}, &types.ClassificationError{Stage: "output_filter", Err: fmt.Errorf("invalid utf-8")}
	}

	type hit struct {
		det  detector
		span types.Span
	}
	var hits []hit
	category := types.OutputSafe

	for _, det := range f.detectors {
		if err := ctx.Err(); err != nil {
			return types.FilterResult{
				FilteredOutput: BlockedPlaceholder,
				Category:       types.OutputHarmful,
			}, &types.ClassificationError{Stage: "output_filter", Err: err}
		}
		locs := det.re.FindAllStringIndex(text, -1)
		for _, loc := range locs {
			matched := text[loc[0]:loc[1]]
			if det.validate != nil && !det.validate(matched) {
				continue
			}
			if det.category > category {
				category = det.category
			}
			hits = append(hits, hit{det: det, span: types.Span{Start: loc[0], End: loc[1]}})
		}
	}

	if len(hits) == 0 {
		return types.FilterResult{FilteredOutput: text, Category: types.OutputSafe}, nil
	}

	if category > types.OutputSafe && f.logger != nil {
		f.logger.WithFields(logrus.Fields{
			"category": category.String(),
			"matches":  len(hits),
		}).Warn("output flagged")
	}

	if !f.cfg.RedactSensitive {
		return types.FilterResult{FilteredOutput: text, Category: category}, nil
	}

	// Rebuild the text once, left to right. Overlapping hits keep the
	// earliest span; bytes outside matched spans are untouched.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].span.Start != hits[j].span.Start {
			return hits[i].span.Start < hits[j].span.Start
		}
		return hits[i].span.End > hits[j].span.End
	})

	var b strings.Builder
	var redactions []types.Redaction
	prev := 0
	for _, h := range hits {
		if h.span.Start < prev {
			continue
		}
		b.WriteString(text[prev:h.span.Start])
		b.WriteString(h.det.placeholder)
		redactions = append(redactions, types.Redaction{
			Detector:    h.det.id,
			Placeholder: h.det.placeholder,
			Span:        h.span,
			Original:    text[h.span.Start:h.span.End],
		})
		prev = h.span.End
	}
	b.WriteString(text[prev:])

	return types.FilterResult{
		FilteredOutput: b.String(),
		Category:       category,
		Redactions:     redactions,
	}, nil
}
