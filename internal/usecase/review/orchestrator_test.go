package review

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NumeralTiger/AI-PR-Reviewer/internal/domain"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/usecase/normalize"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/usecase/request"
)

const orchestratorTestPatch = `diff --git a/a.py b/a.py
--- a/a.py
+++ b/a.py
@@ -10,2 +10,4 @@
 context line
+added line
+another added line
 trailing context
diff --git a/b.py b/b.py
--- a/b.py
+++ b/b.py
@@ -4,1 +4,2 @@
 kept
+added five
`

type fakeAdvisor struct {
	mu         sync.Mutex
	inFlight   int
	maxSeen    int
	comments   map[string][]normalize.AdvisoryComment
	failFiles  map[string]bool
	reviewedIn []string
}

func (f *fakeAdvisor) Review(ctx context.Context, file, diffText string) ([]normalize.AdvisoryComment, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.reviewedIn = append(f.reviewedIn, file)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.failFiles[file] {
		return nil, errors.New("advisory unavailable")
	}
	return f.comments[file], nil
}

type fakeScanner struct {
	runErr      error
	waitErr     error
	issues      []normalize.ScannerIssue
	issuesErr   error
	metrics     []domain.Metric
	metricsErr  error
	runInvoked  bool
	waitInvoked bool
}

func (f *fakeScanner) RunScanner(ctx context.Context) error {
	f.runInvoked = true
	return f.runErr
}

func (f *fakeScanner) WaitForAnalysis(ctx context.Context) (string, error) {
	f.waitInvoked = true
	return "analysis-1", f.waitErr
}

func (f *fakeScanner) FetchIssues(ctx context.Context) ([]normalize.ScannerIssue, error) {
	return f.issues, f.issuesErr
}

func (f *fakeScanner) FetchMeasures(ctx context.Context) ([]domain.Metric, error) {
	return f.metrics, f.metricsErr
}

func charEstimator(text string) int { return len(text) }

func testBuilder() *request.Builder {
	return request.NewBuilder(request.DefaultMaxPayloadTokens, nil, request.WithTokenEstimator(charEstimator))
}

func TestRun_BothSourcesComplete(t *testing.T) {
	advisor := &fakeAdvisor{
		comments: map[string][]normalize.AdvisoryComment{
			"a.py": {{FilePath: "a.py", Line: 11, Comment: "Name this constant.", Severity: "warning"}},
		},
	}
	scanner := &fakeScanner{
		issues: []normalize.ScannerIssue{
			{File: "a.py", Line: domain.IntPtr(11), RuleID: "python:S1481", Severity: "MAJOR", Message: "Remove this unused variable."},
		},
		metrics: []domain.Metric{{Key: "code_smells", Value: "3"}},
	}

	orch := NewOrchestrator(Options{
		Advisor:     advisor,
		Scanner:     scanner,
		Builder:     testBuilder(),
		MaxParallel: 2,
		ExecScanner: true,
	})

	report, parsed, err := orch.Run(context.Background(), 42, orchestratorTestPatch)
	require.NoError(t, err)
	require.NotNil(t, parsed)

	assert.Equal(t, domain.StatusComplete, report.Sources[domain.SourceAdvisory])
	assert.Equal(t, domain.StatusComplete, report.Sources[domain.SourceScanner])
	assert.Equal(t, 2, report.Counts.Total)
	assert.Equal(t, 1, report.Counts.BySource[domain.SourceAdvisory])
	assert.Equal(t, 1, report.Counts.BySource[domain.SourceScanner])
	require.Len(t, report.Metrics, 1)
	assert.True(t, scanner.runInvoked)
	assert.True(t, scanner.waitInvoked)
}

func TestRun_AdvisoryFailsScannerStillReported(t *testing.T) {
	advisor := &fakeAdvisor{
		failFiles: map[string]bool{"a.py": true, "b.py": true},
	}
	scanner := &fakeScanner{
		issues: []normalize.ScannerIssue{
			{File: "b.py", Line: domain.IntPtr(4), RuleID: "python:S100", Severity: "MINOR", Message: "Rename this function."},
		},
	}

	orch := NewOrchestrator(Options{
		Advisor: advisor,
		Scanner: scanner,
		Builder: testBuilder(),
	})

	report, _, err := orch.Run(context.Background(), 42, orchestratorTestPatch)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, report.Sources[domain.SourceAdvisory])
	assert.Equal(t, domain.StatusComplete, report.Sources[domain.SourceScanner])
	require.Equal(t, 1, report.Counts.Total)
	assert.Equal(t, domain.SourceScanner, report.Findings[0].Source)
}

func TestRun_PartialAdvisoryKeepsSuccessfulPayloads(t *testing.T) {
	advisor := &fakeAdvisor{
		comments: map[string][]normalize.AdvisoryComment{
			"a.py": {{FilePath: "a.py", Line: 11, Comment: "Looks suspicious.", Severity: "warning"}},
		},
		failFiles: map[string]bool{"b.py": true},
	}

	orch := NewOrchestrator(Options{
		Advisor: advisor,
		Builder: testBuilder(),
	})

	report, _, err := orch.Run(context.Background(), 42, orchestratorTestPatch)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPartial, report.Sources[domain.SourceAdvisory])
	assert.Equal(t, domain.StatusSkipped, report.Sources[domain.SourceScanner])
	require.Equal(t, 1, report.Counts.Total)
	assert.Equal(t, "a.py", report.Findings[0].File)
}

func TestRun_AllSourcesFailedIsError(t *testing.T) {
	advisor := &fakeAdvisor{
		failFiles: map[string]bool{"a.py": true, "b.py": true},
	}
	scanner := &fakeScanner{waitErr: errors.New("analysis never completed")}

	orch := NewOrchestrator(Options{
		Advisor: advisor,
		Scanner: scanner,
		Builder: testBuilder(),
	})

	_, _, err := orch.Run(context.Background(), 42, orchestratorTestPatch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all finding sources failed")
}

func TestRun_MalformedDiffIsError(t *testing.T) {
	orch := NewOrchestrator(Options{Builder: testBuilder()})

	malformed := "diff --git a/a.py b/a.py\n--- a/a.py\n+++ b/a.py\n@@ -10,3 +10,4 @@\n context line\n+added line\n"
	_, _, err := orch.Run(context.Background(), 42, malformed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse diff")
}

func TestRun_MeasuresFailureDegradesToPartial(t *testing.T) {
	scanner := &fakeScanner{
		issues: []normalize.ScannerIssue{
			{File: "a.py", Line: domain.IntPtr(11), RuleID: "python:S1481", Severity: "MAJOR", Message: "Remove this unused variable."},
		},
		metricsErr: errors.New("measures endpoint unavailable"),
	}

	orch := NewOrchestrator(Options{
		Scanner: scanner,
		Builder: testBuilder(),
	})

	report, _, err := orch.Run(context.Background(), 42, orchestratorTestPatch)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPartial, report.Sources[domain.SourceScanner])
	assert.Equal(t, 1, report.Counts.Total)
	assert.Empty(t, report.Metrics)
}

func TestRun_ScannerNotExecutedWhenDisabled(t *testing.T) {
	scanner := &fakeScanner{}

	orch := NewOrchestrator(Options{
		Scanner:     scanner,
		Builder:     testBuilder(),
		ExecScanner: false,
	})

	_, _, err := orch.Run(context.Background(), 42, orchestratorTestPatch)
	require.NoError(t, err)
	assert.False(t, scanner.runInvoked)
	assert.True(t, scanner.waitInvoked)
}

func TestRun_BoundsParallelAdvisoryRequests(t *testing.T) {
	advisor := &fakeAdvisor{}

	orch := NewOrchestrator(Options{
		Advisor:     advisor,
		Builder:     testBuilder(),
		MaxParallel: 1,
	})

	_, _, err := orch.Run(context.Background(), 42, orchestratorTestPatch)
	require.NoError(t, err)
	assert.LessOrEqual(t, advisor.maxSeen, 1)
	assert.Len(t, advisor.reviewedIn, 2)
}

func TestRun_DuplicateFindingsCollapseAcrossSources(t *testing.T) {
	advisor := &fakeAdvisor{
		comments: map[string][]normalize.AdvisoryComment{
			"a.py": {{FilePath: "a.py", Line: 11, Comment: "Remove this unused variable.", Severity: "warning"}},
		},
	}
	scanner := &fakeScanner{
		issues: []normalize.ScannerIssue{
			{File: "a.py", Line: domain.IntPtr(11), RuleID: "python:S1481", Severity: "MINOR", Message: "Remove this unused variable."},
		},
	}

	orch := NewOrchestrator(Options{
		Advisor: advisor,
		Scanner: scanner,
		Builder: testBuilder(),
	})

	report, _, err := orch.Run(context.Background(), 42, orchestratorTestPatch)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Counts.Total)
}
