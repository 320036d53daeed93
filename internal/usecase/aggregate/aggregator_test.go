package aggregate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NumeralTiger/AI-PR-Reviewer/internal/diff"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/domain"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/usecase/aggregate"
)

const patch = `diff --git a/a.py b/a.py
--- a/a.py
+++ b/a.py
@@ -8,3 +8,6 @@ def main():
 context one
 context two
+added ten
+added eleven
+added twelve
 context three
diff --git a/b.py b/b.py
--- a/b.py
+++ b/b.py
@@ -4,1 +4,2 @@
 kept
+added five
`

func parsedDiff(t *testing.T) *diff.ParsedDiff {
	t.Helper()
	parsed, err := diff.Parse(patch)
	require.NoError(t, err)
	return parsed
}

func advisoryAt(file string, line *int, severity domain.Severity, message string) domain.Finding {
	return domain.NewFinding(domain.FindingInput{
		Source: domain.SourceAdvisory, File: file, Line: line, Severity: severity, Message: message,
	})
}

func scannerAt(file string, line *int, severity domain.Severity, rule, message string) domain.Finding {
	return domain.NewFinding(domain.FindingInput{
		Source: domain.SourceScanner, File: file, Line: line, Severity: severity, RuleID: rule, Message: message,
	})
}

func statuses() map[domain.Source]domain.SourceStatus {
	return map[domain.Source]domain.SourceStatus{
		domain.SourceAdvisory: domain.StatusComplete,
		domain.SourceScanner:  domain.StatusComplete,
	}
}

func TestAggregate_CrossSourceDuplicateCollapses(t *testing.T) {
	findings := []domain.Finding{
		scannerAt("a.py", domain.IntPtr(11), domain.SeverityWarning, "", "shadowed variable"),
		advisoryAt("a.py", domain.IntPtr(11), domain.SeverityWarning, "shadowed variable"),
	}

	report, err := aggregate.Aggregate(aggregate.Input{
		Diff: parsedDiff(t), Findings: findings, Sources: statuses(),
	})
	require.NoError(t, err)

	require.Len(t, report.Findings, 1)
	// Same severity: advisory wins the tie for its fuller explanation.
	assert.Equal(t, domain.SourceAdvisory, report.Findings[0].Source)
}

func TestAggregate_HigherSeverityWinsDuplicate(t *testing.T) {
	findings := []domain.Finding{
		advisoryAt("a.py", domain.IntPtr(10), domain.SeverityInfo, "possible nil deref"),
		scannerAt("a.py", domain.IntPtr(10), domain.SeverityError, "", "Possible nil   deref"),
	}

	report, err := aggregate.Aggregate(aggregate.Input{
		Diff: parsedDiff(t), Findings: findings, Sources: statuses(),
	})
	require.NoError(t, err)

	require.Len(t, report.Findings, 1)
	assert.Equal(t, domain.SeverityError, report.Findings[0].Severity)
	assert.Equal(t, domain.SourceScanner, report.Findings[0].Source)
}

func TestAggregate_RuleIDDuplicate(t *testing.T) {
	findings := []domain.Finding{
		scannerAt("a.py", domain.IntPtr(12), domain.SeverityWarning, "python:S1481", "unused local variable x"),
		scannerAt("a.py", domain.IntPtr(12), domain.SeverityWarning, "python:S1481", "unused local variable 'x'"),
	}

	report, err := aggregate.Aggregate(aggregate.Input{
		Diff: parsedDiff(t), Findings: findings, Sources: statuses(),
	})
	require.NoError(t, err)
	assert.Len(t, report.Findings, 1)
}

func TestAggregate_RuleKeySurvivesCrossSourceAbsorption(t *testing.T) {
	// An advisory tie-winner absorbs a rule-keyed scanner finding; a later
	// scanner finding with the same rule at the same line must still
	// collapse into the survivor.
	findings := []domain.Finding{
		scannerAt("a.py", domain.IntPtr(11), domain.SeverityWarning, "python:S1481", "unused variable"),
		advisoryAt("a.py", domain.IntPtr(11), domain.SeverityWarning, "unused variable"),
		scannerAt("a.py", domain.IntPtr(11), domain.SeverityWarning, "python:S1481", "unused variable renamed text"),
	}

	report, err := aggregate.Aggregate(aggregate.Input{
		Diff: parsedDiff(t), Findings: findings, Sources: statuses(),
	})
	require.NoError(t, err)

	require.Len(t, report.Findings, 1)
	assert.Equal(t, domain.SourceAdvisory, report.Findings[0].Source)
}

func TestAggregate_Idempotent(t *testing.T) {
	base := []domain.Finding{
		advisoryAt("a.py", domain.IntPtr(10), domain.SeverityWarning, "first"),
		scannerAt("a.py", domain.IntPtr(3), domain.SeverityInfo, "r1", "second"),
		advisoryAt("b.py", nil, domain.SeverityError, "third"),
	}

	once, err := aggregate.Aggregate(aggregate.Input{Diff: parsedDiff(t), Findings: base, Sources: statuses()})
	require.NoError(t, err)

	withDup := append(append([]domain.Finding{}, base...), base[0])
	twice, err := aggregate.Aggregate(aggregate.Input{Diff: parsedDiff(t), Findings: withDup, Sources: statuses()})
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestAggregate_Ordering(t *testing.T) {
	findings := []domain.Finding{
		advisoryAt("b.py", nil, domain.SeverityError, "file-level b"),
		advisoryAt("b.py", domain.IntPtr(4), domain.SeverityInfo, "line four"),
		scannerAt("a.py", domain.IntPtr(11), domain.SeverityWarning, "r2", "line eleven scanner"),
		advisoryAt("a.py", domain.IntPtr(11), domain.SeverityWarning, "line eleven advisory"),
		advisoryAt("a.py", domain.IntPtr(10), domain.SeverityInfo, "line ten"),
		advisoryAt("a.py", nil, domain.SeverityWarning, "file-level a"),
	}

	report, err := aggregate.Aggregate(aggregate.Input{Diff: parsedDiff(t), Findings: findings, Sources: statuses()})
	require.NoError(t, err)
	require.Len(t, report.Findings, 6)

	got := make([]string, 0, len(report.Findings))
	for _, f := range report.Findings {
		got = append(got, f.Message)
	}
	assert.Equal(t, []string{
		"line ten",              // a.py:10
		"line eleven scanner",   // a.py:11, scanner before advisory
		"line eleven advisory",  // a.py:11
		"file-level a",          // a.py, unanchored last within file
		"line four",             // b.py:4
		"file-level b",          // b.py, unanchored last
	}, got)
}

func TestAggregate_Counts(t *testing.T) {
	findings := []domain.Finding{
		advisoryAt("a.py", domain.IntPtr(10), domain.SeverityWarning, "w1"),
		scannerAt("a.py", domain.IntPtr(3), domain.SeverityError, "r1", "e1"),
		scannerAt("a.py", nil, domain.SeverityInfo, "r2", "i1"),
	}

	report, err := aggregate.Aggregate(aggregate.Input{Diff: parsedDiff(t), Findings: findings, Sources: statuses()})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Counts.Total)
	assert.Equal(t, 1, report.Counts.BySeverity[domain.SeverityError])
	assert.Equal(t, 1, report.Counts.BySeverity[domain.SeverityWarning])
	assert.Equal(t, 1, report.Counts.BySeverity[domain.SeverityInfo])
	assert.Equal(t, 1, report.Counts.BySource[domain.SourceAdvisory])
	assert.Equal(t, 2, report.Counts.BySource[domain.SourceScanner])
}

func TestAggregate_UnvalidatedAdvisoryLineIsFatal(t *testing.T) {
	// An anchored advisory finding at a line the validator would reject
	// means a normalizer bug; this must not be silently repaired.
	findings := []domain.Finding{
		advisoryAt("a.py", domain.IntPtr(999), domain.SeverityWarning, "fabricated"),
	}

	_, err := aggregate.Aggregate(aggregate.Input{Diff: parsedDiff(t), Findings: findings, Sources: statuses()})
	var invariant *aggregate.InvariantError
	require.ErrorAs(t, err, &invariant)
	assert.Equal(t, "a.py", invariant.Finding.File)
}

func TestAggregate_ScannerLinesOutsideDiffAllowed(t *testing.T) {
	findings := []domain.Finding{
		scannerAt("a.py", domain.IntPtr(999), domain.SeverityWarning, "r1", "old code issue"),
		scannerAt("untouched.py", domain.IntPtr(1), domain.SeverityInfo, "r2", "style"),
	}

	report, err := aggregate.Aggregate(aggregate.Input{Diff: parsedDiff(t), Findings: findings, Sources: statuses()})
	require.NoError(t, err)
	assert.Len(t, report.Findings, 2)
}
