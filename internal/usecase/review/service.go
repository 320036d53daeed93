package review

import (
	"context"
	"fmt"
	"os"

	"github.com/NumeralTiger/AI-PR-Reviewer/internal/diff"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/domain"
)

// DiffProvider produces unified diff text for the repository under
// review. An empty headRef means the checked-out branch.
type DiffProvider interface {
	Diff(ctx context.Context, baseRef, headRef string) (string, error)
	DiffWorkingTree(ctx context.Context, baseRef string) (string, error)
}

// ReportWriter persists a rendered report and returns its path.
type ReportWriter interface {
	Write(report domain.Report, outputDir string) (string, error)
}

// Publisher delivers the report back to the pull request.
type Publisher interface {
	Publish(ctx context.Context, report domain.Report, parsed *diff.ParsedDiff) error
}

// Recorder saves run history.
type Recorder interface {
	Record(ctx context.Context, report domain.Report, baseRef, headRef string) error
}

// Request describes one pull request review.
type Request struct {
	PRNumber int
	BaseRef  string
	HeadRef  string

	// DiffFile, when set, is read instead of asking the diff provider.
	DiffFile string
	// WorkingTree diffs uncommitted changes against BaseRef instead of
	// a committed head.
	WorkingTree bool
	OutputDir   string
	Post        bool
}

// Result summarizes a completed review.
type Result struct {
	ReportPath string
	Findings   int
	Sources    map[domain.Source]domain.SourceStatus
}

// Service runs the full review flow: acquire the diff, execute the
// pipeline, write the report, and optionally publish and record it.
type Service struct {
	orchestrator *Orchestrator
	diffs        DiffProvider
	writer       ReportWriter
	publisher    Publisher
	recorder     Recorder
	logger       Logger
}

// ServiceOptions configures a Service. Publisher and Recorder are
// optional.
type ServiceOptions struct {
	Orchestrator *Orchestrator
	Diffs        DiffProvider
	Writer       ReportWriter
	Publisher    Publisher
	Recorder     Recorder
	Logger       Logger
}

// NewService constructs the review service.
func NewService(opts ServiceOptions) *Service {
	return &Service{
		orchestrator: opts.Orchestrator,
		diffs:        opts.Diffs,
		writer:       opts.Writer,
		publisher:    opts.Publisher,
		recorder:     opts.Recorder,
		logger:       opts.Logger,
	}
}

// ReviewPullRequest executes the pipeline for one pull request.
func (s *Service) ReviewPullRequest(ctx context.Context, req Request) (Result, error) {
	diffText, err := s.loadDiff(ctx, req)
	if err != nil {
		return Result{}, err
	}

	report, parsed, err := s.orchestrator.Run(ctx, req.PRNumber, diffText)
	if err != nil {
		return Result{}, err
	}

	var reportPath string
	if s.writer != nil {
		reportPath, err = s.writer.Write(report, req.OutputDir)
		if err != nil {
			return Result{}, fmt.Errorf("write report: %w", err)
		}
	}

	if req.Post && s.publisher != nil {
		if err := s.publisher.Publish(ctx, report, parsed); err != nil {
			return Result{}, fmt.Errorf("publish report: %w", err)
		}
	}

	// Run history is best effort: a broken database never fails a review.
	if s.recorder != nil {
		if err := s.recorder.Record(ctx, report, req.BaseRef, req.HeadRef); err != nil && s.logger != nil {
			s.logger.LogWarning(ctx, "failed to record run history", map[string]interface{}{
				"prNumber": req.PRNumber,
				"error":    err.Error(),
			})
		}
	}

	return Result{
		ReportPath: reportPath,
		Findings:   report.Counts.Total,
		Sources:    report.Sources,
	}, nil
}

func (s *Service) loadDiff(ctx context.Context, req Request) (string, error) {
	if req.DiffFile != "" {
		data, err := os.ReadFile(req.DiffFile)
		if err != nil {
			return "", fmt.Errorf("read diff file: %w", err)
		}
		return string(data), nil
	}
	if s.diffs == nil {
		return "", fmt.Errorf("no diff source configured; pass --diff-file or set git refs")
	}
	if req.WorkingTree {
		diffText, err := s.diffs.DiffWorkingTree(ctx, req.BaseRef)
		if err != nil {
			return "", fmt.Errorf("compute working tree diff: %w", err)
		}
		return diffText, nil
	}
	diffText, err := s.diffs.Diff(ctx, req.BaseRef, req.HeadRef)
	if err != nil {
		return "", fmt.Errorf("compute diff: %w", err)
	}
	return diffText, nil
}
