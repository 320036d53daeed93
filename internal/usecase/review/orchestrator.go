// Package review orchestrates the diff-to-annotation pipeline: it
// feeds the parsed diff to each finding source, normalizes what comes
// back, and aggregates everything into a single report.
package review

import (
	"context"
	"fmt"
	"sync"

	"github.com/NumeralTiger/AI-PR-Reviewer/internal/diff"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/domain"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/usecase/aggregate"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/usecase/normalize"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/usecase/request"
)

// Advisor produces review comments for one request payload.
type Advisor interface {
	Review(ctx context.Context, file, diffText string) ([]normalize.AdvisoryComment, error)
}

// Scanner exposes the static analysis collaborator.
type Scanner interface {
	RunScanner(ctx context.Context) error
	WaitForAnalysis(ctx context.Context) (string, error)
	FetchIssues(ctx context.Context) ([]normalize.ScannerIssue, error)
	FetchMeasures(ctx context.Context) ([]domain.Metric, error)
}

// Logger provides structured logging for the pipeline.
type Logger interface {
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
	LogError(ctx context.Context, message string, fields map[string]interface{})
}

// Orchestrator runs both finding sources against a pull request diff
// and produces the aggregated report. A nil advisor or scanner marks
// that source as skipped.
type Orchestrator struct {
	advisor     Advisor
	scanner     Scanner
	builder     *request.Builder
	logger      Logger
	maxParallel int

	// execScanner controls whether the scanner binary is invoked
	// before polling, or an already-submitted analysis is assumed.
	execScanner bool
}

// Options configures an Orchestrator.
type Options struct {
	Advisor     Advisor
	Scanner     Scanner
	Builder     *request.Builder
	Logger      Logger
	MaxParallel int
	ExecScanner bool
}

// NewOrchestrator constructs the pipeline orchestrator.
func NewOrchestrator(opts Options) *Orchestrator {
	maxParallel := opts.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 4
	}
	return &Orchestrator{
		advisor:     opts.Advisor,
		scanner:     opts.Scanner,
		builder:     opts.Builder,
		logger:      opts.Logger,
		maxParallel: maxParallel,
		execScanner: opts.ExecScanner,
	}
}

// Run executes the pipeline for one pull request diff. The returned
// parsed diff is the coordinate authority the caller needs for posting
// inline comments. Source failures degrade the report rather than
// aborting; an error is returned only when the diff cannot be parsed,
// every enabled source fails, or aggregation detects an invariant
// violation.
func (o *Orchestrator) Run(ctx context.Context, prNumber int, diffText string) (domain.Report, *diff.ParsedDiff, error) {
	parsed, err := diff.Parse(diffText)
	if err != nil {
		return domain.Report{}, nil, fmt.Errorf("parse diff: %w", err)
	}

	sources := map[domain.Source]domain.SourceStatus{
		domain.SourceAdvisory: domain.StatusSkipped,
		domain.SourceScanner:  domain.StatusSkipped,
	}

	var findings []domain.Finding
	var metrics []domain.Metric

	if o.advisor != nil {
		advisoryFindings, status := o.runAdvisory(ctx, parsed)
		sources[domain.SourceAdvisory] = status
		findings = append(findings, advisoryFindings...)
	}

	if o.scanner != nil {
		scannerFindings, scannerMetrics, status := o.runScanner(ctx)
		sources[domain.SourceScanner] = status
		findings = append(findings, scannerFindings...)
		metrics = scannerMetrics
	}

	if allFailed(sources) {
		return domain.Report{}, nil, fmt.Errorf("all finding sources failed")
	}

	report, err := aggregate.Aggregate(aggregate.Input{
		PRNumber: prNumber,
		Diff:     parsed,
		Findings: findings,
		Sources:  sources,
		Metrics:  metrics,
	})
	if err != nil {
		return domain.Report{}, nil, err
	}

	o.logInfo(ctx, "review pipeline complete", map[string]interface{}{
		"prNumber": prNumber,
		"findings": report.Counts.Total,
	})
	return report, parsed, nil
}

// advisoryResult carries the outcome of one payload review.
type advisoryResult struct {
	comments []normalize.AdvisoryComment
	err      error
}

// runAdvisory fans payloads out to the advisory source with a bounded
// number of in-flight requests. Findings from successful payloads are
// kept even when other payloads fail.
func (o *Orchestrator) runAdvisory(ctx context.Context, parsed *diff.ParsedDiff) ([]domain.Finding, domain.SourceStatus) {
	payloads := o.builder.Build(parsed)
	if len(payloads) == 0 {
		return nil, domain.StatusComplete
	}

	results := make(chan advisoryResult, len(payloads))
	sem := make(chan struct{}, o.maxParallel)

	var wg sync.WaitGroup
	for _, payload := range payloads {
		wg.Add(1)
		go func(p request.Payload) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			comments, err := o.advisor.Review(ctx, p.File, p.DiffText)
			if err != nil {
				err = fmt.Errorf("review %s: %w", p.File, err)
			}
			results <- advisoryResult{comments: comments, err: err}
		}(payload)
	}
	wg.Wait()
	close(results)

	var comments []normalize.AdvisoryComment
	failed := 0
	for result := range results {
		if result.err != nil {
			failed++
			o.logWarning(ctx, "advisory payload failed", map[string]interface{}{
				"error": result.err.Error(),
			})
			continue
		}
		comments = append(comments, result.comments...)
	}

	status := domain.StatusComplete
	switch {
	case failed == len(payloads):
		return nil, domain.StatusFailed
	case failed > 0:
		status = domain.StatusPartial
	}

	return normalize.FromAdvisory(parsed, comments), status
}

// runScanner drives the static analysis source: optionally invoke the
// scanner binary, wait for the analysis to land, then fetch issues and
// project measures. Any step failing marks the source as failed.
func (o *Orchestrator) runScanner(ctx context.Context) ([]domain.Finding, []domain.Metric, domain.SourceStatus) {
	if o.execScanner {
		if err := o.scanner.RunScanner(ctx); err != nil {
			o.logError(ctx, "scanner invocation failed", map[string]interface{}{"error": err.Error()})
			return nil, nil, domain.StatusFailed
		}
	}

	if _, err := o.scanner.WaitForAnalysis(ctx); err != nil {
		o.logError(ctx, "scanner analysis did not complete", map[string]interface{}{"error": err.Error()})
		return nil, nil, domain.StatusFailed
	}

	issues, err := o.scanner.FetchIssues(ctx)
	if err != nil {
		o.logError(ctx, "fetching scanner issues failed", map[string]interface{}{"error": err.Error()})
		return nil, nil, domain.StatusFailed
	}

	findings := normalize.FromScanner(issues)

	// Measures are supplementary. Losing them degrades the report to
	// partial but keeps the issue findings.
	metrics, err := o.scanner.FetchMeasures(ctx)
	if err != nil {
		o.logWarning(ctx, "fetching scanner measures failed", map[string]interface{}{"error": err.Error()})
		return findings, nil, domain.StatusPartial
	}

	return findings, metrics, domain.StatusComplete
}

func allFailed(sources map[domain.Source]domain.SourceStatus) bool {
	enabled := 0
	failed := 0
	for _, status := range sources {
		if status == domain.StatusSkipped {
			continue
		}
		enabled++
		if status == domain.StatusFailed {
			failed++
		}
	}
	return enabled > 0 && failed == enabled
}

func (o *Orchestrator) logInfo(ctx context.Context, message string, fields map[string]interface{}) {
	if o.logger != nil {
		o.logger.LogInfo(ctx, message, fields)
	}
}

func (o *Orchestrator) logWarning(ctx context.Context, message string, fields map[string]interface{}) {
	if o.logger != nil {
		o.logger.LogWarning(ctx, message, fields)
	}
}

func (o *Orchestrator) logError(ctx context.Context, message string, fields map[string]interface{}) {
	if o.logger != nil {
		o.logger.LogError(ctx, message, fields)
	}
}
