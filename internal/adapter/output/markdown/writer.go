// Package markdown renders aggregated review reports into Markdown files.
package markdown

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/NumeralTiger/AI-PR-Reviewer/internal/domain"
)

type clock func() string

// Writer renders aggregated reports into Markdown files.
type Writer struct {
	now clock
}

// NewWriter constructs a Markdown writer with a timestamp supplier.
func NewWriter(now clock) *Writer {
	return &Writer{now: now}
}

// Write persists the rendered report to outputDir and returns the path.
func (w *Writer) Write(report domain.Report, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	filename := fmt.Sprintf("review_summary_pr_%d_%s.md", report.PRNumber, w.now())
	path := filepath.Join(outputDir, filename)

	if err := os.WriteFile(path, []byte(Render(report)), 0o644); err != nil {
		return "", fmt.Errorf("write markdown: %w", err)
	}
	return path, nil
}

// Render builds the Markdown body for a report. The same body is used
// for the on-disk artifact and the PR summary comment.
func Render(report domain.Report) string {
	var builder strings.Builder
	caser := cases.Title(language.English)

	builder.WriteString(fmt.Sprintf("# Review Summary for PR #%d\n\n", report.PRNumber))

	builder.WriteString("## Sources\n\n")
	for _, source := range []domain.Source{domain.SourceAdvisory, domain.SourceScanner} {
		status, ok := report.Sources[source]
		if !ok {
			continue
		}
		builder.WriteString(fmt.Sprintf("- %s: %s\n", caser.String(string(source)), status))
	}
	builder.WriteString("\n")

	builder.WriteString("## Totals\n\n")
	builder.WriteString(fmt.Sprintf("- Findings: %d\n", report.Counts.Total))
	for _, severity := range []domain.Severity{domain.SeverityError, domain.SeverityWarning, domain.SeverityInfo} {
		if n := report.Counts.BySeverity[severity]; n > 0 {
			builder.WriteString(fmt.Sprintf("- %s: %d\n", caser.String(string(severity)), n))
		}
	}
	for _, source := range []domain.Source{domain.SourceAdvisory, domain.SourceScanner} {
		if n := report.Counts.BySource[source]; n > 0 {
			builder.WriteString(fmt.Sprintf("- From %s: %d\n", source, n))
		}
	}
	builder.WriteString("\n")

	if len(report.Metrics) > 0 {
		builder.WriteString("## Project Metrics\n\n")
		builder.WriteString("| Metric | Value |\n")
		builder.WriteString("|--------|-------|\n")
		for _, metric := range report.Metrics {
			builder.WriteString(fmt.Sprintf("| %s | %s |\n", metricLabel(caser, metric.Key), metric.Value))
		}
		builder.WriteString("\n")
	}

	if len(report.Findings) == 0 {
		builder.WriteString("No findings reported.\n")
		return builder.String()
	}

	builder.WriteString("## Findings\n\n")
	for _, file := range filesInOrder(report.Findings) {
		builder.WriteString(fmt.Sprintf("### %s\n\n", file))
		for _, finding := range report.Findings {
			if finding.File != file {
				continue
			}
			builder.WriteString(renderFinding(caser, finding))
		}
		builder.WriteString("\n")
	}

	return builder.String()
}

func renderFinding(caser cases.Caser, f domain.Finding) string {
	var b strings.Builder

	location := "file"
	if f.Anchored() {
		location = fmt.Sprintf("line %d", *f.Line)
	}
	b.WriteString(fmt.Sprintf("- **%s** (%s, %s): %s", caser.String(string(f.Severity)), f.Source, location, f.Message))
	if f.RuleID != "" {
		b.WriteString(fmt.Sprintf(" [`%s`]", f.RuleID))
	}
	b.WriteString("\n")
	return b.String()
}

// filesInOrder returns distinct file paths preserving finding order,
// which the aggregator already sorted.
func filesInOrder(findings []domain.Finding) []string {
	seen := make(map[string]bool, len(findings))
	files := make([]string, 0, len(findings))
	for _, f := range findings {
		if !seen[f.File] {
			seen[f.File] = true
			files = append(files, f.File)
		}
	}
	return files
}

func metricLabel(caser cases.Caser, key string) string {
	parts := strings.Split(key, "_")
	for i, part := range parts {
		parts[i] = caser.String(part)
	}
	return strings.Join(parts, " ")
}
