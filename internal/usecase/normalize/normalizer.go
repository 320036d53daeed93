// Package normalize converts heterogeneous source payloads (advisory
// comments, scanner issues) into the common domain.Finding shape. Both
// entry points are pure functions with no side effects.
package normalize

import (
	"fmt"
	"strings"

	"github.com/NumeralTiger/AI-PR-Reviewer/internal/diff"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/domain"
)

// AdvisoryComment is one record of advisory-service output. The service
// is untrusted: the file may be missing and the line may not exist in
// the reviewed diff.
type AdvisoryComment struct {
	FilePath string `json:"file_path"`
	Line     int    `json:"line"`
	Comment  string `json:"comment"`
	Severity string `json:"severity,omitempty"`
}

// ScannerIssue is one record of static-analysis output.
type ScannerIssue struct {
	File     string
	Line     *int
	RuleID   string
	Severity string
	Message  string
}

// scannerSeverities is the fixed mapping from the scanner's severity
// vocabulary onto the common enumeration.
var scannerSeverities = map[string]domain.Severity{
	"BLOCKER":  domain.SeverityError,
	"CRITICAL": domain.SeverityError,
	"MAJOR":    domain.SeverityWarning,
	"MINOR":    domain.SeverityWarning,
	"INFO":     domain.SeverityInfo,
}

// FromAdvisory converts advisory-service comments into findings. Each
// comment's coordinate is checked against the parsed diff: comments that
// anchor to a real new-side line become line findings; the rest are
// demoted to file-level findings that preserve the claimed line number
// in the message, so information is neither dropped nor mis-anchored.
// Entries with no comment text are discarded as malformed.
func FromAdvisory(parsed *diff.ParsedDiff, comments []AdvisoryComment) []domain.Finding {
	findings := make([]domain.Finding, 0, len(comments))
	for _, c := range comments {
		if strings.TrimSpace(c.Comment) == "" {
			continue
		}

		input := domain.FindingInput{
			Source:   domain.SourceAdvisory,
			File:     c.FilePath,
			Severity: advisorySeverity(c.Severity),
			Message:  c.Comment,
		}

		if parsed != nil && parsed.IsCommentable(c.FilePath, c.Line) {
			input.Line = domain.IntPtr(c.Line)
		} else {
			input.Message = fmt.Sprintf("%s (reported for line %d, which is not part of the reviewed diff)", c.Comment, c.Line)
		}

		findings = append(findings, domain.NewFinding(input))
	}
	return findings
}

// FromScanner converts scanner issues into findings. Scanner line numbers
// may legitimately reference unchanged lines, so they are carried through
// without diff validation.
func FromScanner(issues []ScannerIssue) []domain.Finding {
	findings := make([]domain.Finding, 0, len(issues))
	for _, issue := range issues {
		findings = append(findings, domain.NewFinding(domain.FindingInput{
			Source:   domain.SourceScanner,
			File:     issue.File,
			Line:     issue.Line,
			Severity: ScannerSeverity(issue.Severity),
			Message:  issue.Message,
			RuleID:   issue.RuleID,
		}))
	}
	return findings
}

// ScannerSeverity maps a scanner severity onto the common enumeration.
// The mapping is total: unrecognized values land on warning rather than
// being dropped.
func ScannerSeverity(s string) domain.Severity {
	if sev, ok := scannerSeverities[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return sev
	}
	return domain.SeverityWarning
}

// advisorySeverity interprets the advisory service's optional free-form
// severity field.
func advisorySeverity(s string) domain.Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error", "critical", "high", "blocker":
		return domain.SeverityError
	case "warning", "warn", "medium", "major", "low", "minor":
		return domain.SeverityWarning
	case "info", "information", "note":
		return domain.SeverityInfo
	default:
		// Advisory comments default to warning; the service rarely labels them.
		return domain.SeverityWarning
	}
}
