package domain

// SourceStatus records how completely a source contributed to a run.
type SourceStatus string

const (
	// StatusComplete means every call for the source succeeded.
	StatusComplete SourceStatus = "complete"
	// StatusPartial means some calls for the source failed after retries.
	StatusPartial SourceStatus = "partial"
	// StatusFailed means no call for the source succeeded.
	StatusFailed SourceStatus = "failed"
	// StatusSkipped means the source was not configured for this run.
	StatusSkipped SourceStatus = "skipped"
)

// Counts holds aggregate finding totals for summary display.
type Counts struct {
	Total      int              `json:"total"`
	BySeverity map[Severity]int `json:"bySeverity"`
	BySource   map[Source]int   `json:"bySource"`
}

// Metric is a project-level measurement reported by the scanner
// (coverage, duplication, and similar), independent of any finding.
type Metric struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Report is the terminal artifact of a review run: findings already
// deduplicated and ordered, plus summary counts and per-source status.
// Renderers format it as-is and never re-derive ordering.
type Report struct {
	PRNumber int                     `json:"prNumber"`
	Findings []Finding               `json:"findings"`
	Counts   Counts                  `json:"counts"`
	Sources  map[Source]SourceStatus `json:"sources"`
	Metrics  []Metric                `json:"metrics,omitempty"`
}

// InlineComment is a directive for the comment-posting collaborator.
// Line always references a valid new-side diff line.
type InlineComment struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Body string `json:"body"`
	Side string `json:"side"`
}
