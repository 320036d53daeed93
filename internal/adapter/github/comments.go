package github

import (
	"fmt"
	"strings"

	"github.com/NumeralTiger/AI-PR-Reviewer/internal/diff"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/domain"
)

var severityBadges = map[domain.Severity]string{
	domain.SeverityError:   "🔴 **Error**",
	domain.SeverityWarning: "🟡 **Warning**",
	domain.SeverityInfo:    "🔵 **Info**",
}

var sourceLabels = map[domain.Source]string{
	domain.SourceAdvisory: "review",
	domain.SourceScanner:  "static analysis",
}

// BuildInlineComments converts anchored findings into inline comment
// directives. Every returned directive targets a line the hosting API
// will accept: findings whose coordinates cannot be anchored in the
// parsed diff are skipped so a bad anchor never aborts the whole batch.
func BuildInlineComments(report domain.Report, parsed *diff.ParsedDiff) []domain.InlineComment {
	comments := make([]domain.InlineComment, 0, len(report.Findings))
	for _, f := range report.Findings {
		if !f.Anchored() {
			continue
		}
		if parsed != nil && !parsed.IsCommentable(f.File, *f.Line) {
			continue
		}
		comments = append(comments, domain.InlineComment{
			Path: f.File,
			Line: *f.Line,
			Body: FormatCommentBody(f),
			Side: "RIGHT",
		})
	}
	return comments
}

// FormatCommentBody renders a finding as the markdown body of an
// inline review comment.
func FormatCommentBody(f domain.Finding) string {
	var b strings.Builder

	badge, ok := severityBadges[f.Severity]
	if !ok {
		badge = "🟡 **Warning**"
	}
	b.WriteString(badge)

	if label, ok := sourceLabels[f.Source]; ok {
		fmt.Fprintf(&b, " (%s)", label)
	}
	b.WriteString("\n\n")
	b.WriteString(f.Message)

	if f.RuleID != "" {
		fmt.Fprintf(&b, "\n\nRule: `%s`", f.RuleID)
	}
	return b.String()
}
