// Package aggregate merges normalized findings from all sources into a
// single ordered, deduplicated report.
package aggregate

import (
	"fmt"
	"sort"

	"github.com/NumeralTiger/AI-PR-Reviewer/internal/diff"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/domain"
)

// InvariantError indicates a finding reached the aggregator in a state
// the normalizer should have prevented. It signals a pipeline defect and
// must not be swallowed.
type InvariantError struct {
	Finding domain.Finding
	Reason  string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	line := 0
	if e.Finding.Line != nil {
		line = *e.Finding.Line
	}
	return fmt.Sprintf("aggregation invariant violated for %s:%d (%s): %s",
		e.Finding.File, line, e.Finding.Source, e.Reason)
}

// Input carries everything the aggregator needs for one run.
type Input struct {
	PRNumber int
	Diff     *diff.ParsedDiff
	Findings []domain.Finding
	Sources  map[domain.Source]domain.SourceStatus
	Metrics  []domain.Metric
}

// Aggregate produces the terminal Report: findings deduplicated, ordered
// by file then line, with aggregate counts and per-source status. Anchored
// advisory findings are re-checked against the diff; one that the
// validator would reject indicates a normalizer bug and is fatal.
func Aggregate(input Input) (domain.Report, error) {
	for _, f := range input.Findings {
		if f.Source == domain.SourceAdvisory && f.Anchored() {
			if input.Diff == nil || !input.Diff.IsCommentable(f.File, *f.Line) {
				return domain.Report{}, &InvariantError{
					Finding: f,
					Reason:  "anchored advisory finding references a line absent from the diff's new side",
				}
			}
		}
	}

	findings := dedupe(input.Findings)
	sortFindings(findings)

	return domain.Report{
		PRNumber: input.PRNumber,
		Findings: findings,
		Counts:   count(findings),
		Sources:  input.Sources,
		Metrics:  input.Metrics,
	}, nil
}

// dedupe collapses findings sharing (file, line, normalized message) or
// (file, line, stable identifier). The survivor is the one with higher
// severity; ties prefer the advisory source for its richer explanation.
func dedupe(findings []domain.Finding) []domain.Finding {
	kept := make([]domain.Finding, 0, len(findings))
	byMessage := make(map[string]int)
	byRule := make(map[string]int)

	keys := func(f domain.Finding) (msgKey, ruleKey string) {
		line := -1
		if f.Line != nil {
			line = *f.Line
		}
		msgKey = fmt.Sprintf("%s|%d|%s", f.File, line, f.NormalizedMessage())
		if f.RuleID != "" {
			ruleKey = fmt.Sprintf("%s|%d|%s", f.File, line, f.RuleID)
		}
		return msgKey, ruleKey
	}

	for _, f := range findings {
		msgKey, ruleKey := keys(f)

		idx, dup := byMessage[msgKey]
		if !dup && ruleKey != "" {
			idx, dup = byRule[ruleKey]
		}

		if !dup {
			byMessage[msgKey] = len(kept)
			if ruleKey != "" {
				byRule[ruleKey] = len(kept)
			}
			kept = append(kept, f)
			continue
		}

		if prefer(f, kept[idx]) {
			kept[idx] = f
		}
		// Both the absorbed finding's keys and the candidate's keys stay
		// mapped to the surviving slot so later duplicates under either
		// key collapse into it.
		byMessage[msgKey] = idx
		if ruleKey != "" {
			byRule[ruleKey] = idx
		}
	}
	return kept
}

// prefer reports whether candidate should replace incumbent among duplicates.
func prefer(candidate, incumbent domain.Finding) bool {
	if candidate.Severity.Rank() != incumbent.Severity.Rank() {
		return candidate.Severity.Rank() > incumbent.Severity.Rank()
	}
	return candidate.Source == domain.SourceAdvisory && incumbent.Source != domain.SourceAdvisory
}

// sortFindings orders by file path ascending, then line ascending with
// file-level findings last, then severity descending, then scanner
// before advisory so output is fully deterministic.
func sortFindings(findings []domain.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Anchored() != b.Anchored() {
			return a.Anchored()
		}
		if a.Anchored() && *a.Line != *b.Line {
			return *a.Line < *b.Line
		}
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if a.Source != b.Source {
			return a.Source == domain.SourceScanner
		}
		return a.Message < b.Message
	})
}

func count(findings []domain.Finding) domain.Counts {
	counts := domain.Counts{
		Total:      len(findings),
		BySeverity: make(map[domain.Severity]int),
		BySource:   make(map[domain.Source]int),
	}
	for _, f := range findings {
		counts.BySeverity[f.Severity]++
		counts.BySource[f.Source]++
	}
	return counts
}
