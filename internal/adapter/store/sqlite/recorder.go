package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/NumeralTiger/AI-PR-Reviewer/internal/domain"
)

// Recorder adapts the store to the review run history port.
type Recorder struct {
	store      *Store
	repository string
	now        func() time.Time
}

// NewRecorder constructs a recorder for the given repository.
func NewRecorder(store *Store, repository string) *Recorder {
	return &Recorder{
		store:      store,
		repository: repository,
		now:        time.Now,
	}
}

// Record persists one completed pipeline run and its findings.
func (r *Recorder) Record(ctx context.Context, report domain.Report, baseRef, headRef string) error {
	ts := r.now()
	run := Run{
		RunID:      fmt.Sprintf("pr%d-%d", report.PRNumber, ts.UnixNano()),
		PRNumber:   report.PRNumber,
		Repository: r.repository,
		BaseRef:    baseRef,
		HeadRef:    headRef,
		Timestamp:  ts,
		Advisory:   report.Sources[domain.SourceAdvisory],
		Scanner:    report.Sources[domain.SourceScanner],
	}
	return r.store.SaveRun(ctx, run, report.Findings)
}
