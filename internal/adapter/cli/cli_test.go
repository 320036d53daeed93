package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NumeralTiger/AI-PR-Reviewer/internal/adapter/github"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/domain"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/usecase/review"
)

type fakeReviewer struct {
	request review.Request
	result  review.Result
	err     error
	called  bool
}

func (f *fakeReviewer) ReviewPullRequest(ctx context.Context, req review.Request) (review.Result, error) {
	f.called = true
	f.request = req
	return f.result, f.err
}

func execute(t *testing.T, deps Dependencies, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	deps.Args = Arguments{OutWriter: &out, ErrWriter: &out}
	root := NewRootCommand(deps)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionFlag(t *testing.T) {
	out, err := execute(t, Dependencies{Version: "v1.2.3"}, "--version")
	require.ErrorIs(t, err, ErrVersionRequested)
	assert.Contains(t, out, "v1.2.3")
}

func TestReviewCommand_PassesRequest(t *testing.T) {
	reviewer := &fakeReviewer{
		result: review.Result{
			ReportPath: "out/review_summary_pr_42_x.md",
			Findings:   3,
			Sources: map[domain.Source]domain.SourceStatus{
				domain.SourceAdvisory: domain.StatusComplete,
				domain.SourceScanner:  domain.StatusComplete,
			},
		},
	}

	out, err := execute(t, Dependencies{Reviewer: reviewer},
		"review", "--pr-number", "42", "--base", "main", "--head", "feature", "--output", "reports", "--post")
	require.NoError(t, err)

	assert.True(t, reviewer.called)
	assert.Equal(t, 42, reviewer.request.PRNumber)
	assert.Equal(t, "main", reviewer.request.BaseRef)
	assert.Equal(t, "feature", reviewer.request.HeadRef)
	assert.Equal(t, "reports", reviewer.request.OutputDir)
	assert.True(t, reviewer.request.Post)

	assert.Contains(t, out, "review complete: 3 findings")
	assert.Contains(t, out, "report written to out/review_summary_pr_42_x.md")
}

func TestReviewCommand_ReportsDegradedSources(t *testing.T) {
	reviewer := &fakeReviewer{
		result: review.Result{
			Findings: 1,
			Sources: map[domain.Source]domain.SourceStatus{
				domain.SourceAdvisory: domain.StatusFailed,
				domain.SourceScanner:  domain.StatusComplete,
			},
		},
	}

	out, err := execute(t, Dependencies{Reviewer: reviewer}, "review", "--pr-number", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "source advisory: failed")
	assert.NotContains(t, out, "source scanner")
}

func TestReviewCommand_UsesEventPayload(t *testing.T) {
	reviewer := &fakeReviewer{}
	loadEvent := func() (github.PullRequestEvent, error) {
		return github.PullRequestEvent{
			PRNumber: 55,
			BaseSHA:  "abc123",
			HeadSHA:  "def456",
		}, nil
	}

	_, err := execute(t, Dependencies{Reviewer: reviewer, LoadEvent: loadEvent}, "review")
	require.NoError(t, err)

	assert.Equal(t, 55, reviewer.request.PRNumber)
	assert.Equal(t, "abc123", reviewer.request.BaseRef)
	assert.Equal(t, "def456", reviewer.request.HeadRef)
}

func TestReviewCommand_FlagsOverrideEventRefs(t *testing.T) {
	reviewer := &fakeReviewer{}
	loadEvent := func() (github.PullRequestEvent, error) {
		return github.PullRequestEvent{PRNumber: 55, BaseSHA: "abc123", HeadSHA: "def456"}, nil
	}

	_, err := execute(t, Dependencies{Reviewer: reviewer, LoadEvent: loadEvent},
		"review", "--base", "release-1.4")
	require.NoError(t, err)

	assert.Equal(t, 55, reviewer.request.PRNumber)
	assert.Equal(t, "release-1.4", reviewer.request.BaseRef)
	assert.Equal(t, "def456", reviewer.request.HeadRef)
}

func TestReviewCommand_WorkingTreeFlag(t *testing.T) {
	reviewer := &fakeReviewer{}

	_, err := execute(t, Dependencies{Reviewer: reviewer},
		"review", "--pr-number", "9", "--working-tree")
	require.NoError(t, err)
	assert.True(t, reviewer.request.WorkingTree)
}

func TestReviewCommand_WorkingTreeExcludesDiffFile(t *testing.T) {
	reviewer := &fakeReviewer{}

	_, err := execute(t, Dependencies{Reviewer: reviewer},
		"review", "--pr-number", "9", "--working-tree", "--diff-file", "change.diff")
	require.Error(t, err)
	assert.False(t, reviewer.called)
}

func TestReviewCommand_MissingPRNumber(t *testing.T) {
	reviewer := &fakeReviewer{}
	loadEvent := func() (github.PullRequestEvent, error) {
		return github.PullRequestEvent{}, errors.New("GITHUB_EVENT_PATH not set")
	}

	_, err := execute(t, Dependencies{Reviewer: reviewer, LoadEvent: loadEvent}, "review")
	require.Error(t, err)
	assert.False(t, reviewer.called)
}

func TestReviewCommand_ExplicitPRNumberSkipsEventLoader(t *testing.T) {
	reviewer := &fakeReviewer{}
	loadEvent := func() (github.PullRequestEvent, error) {
		t.Fatal("event loader should not be called")
		return github.PullRequestEvent{}, nil
	}

	_, err := execute(t, Dependencies{Reviewer: reviewer, LoadEvent: loadEvent},
		"review", "--pr-number", "9")
	require.NoError(t, err)
	assert.Equal(t, 9, reviewer.request.PRNumber)
}

func TestReviewCommand_PropagatesReviewerError(t *testing.T) {
	reviewer := &fakeReviewer{err: errors.New("all finding sources failed")}

	_, err := execute(t, Dependencies{Reviewer: reviewer}, "review", "--pr-number", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all finding sources failed")
}
