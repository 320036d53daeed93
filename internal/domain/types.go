package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Source identifies where a finding came from.
type Source string

const (
	SourceAdvisory Source = "advisory"
	SourceScanner  Source = "scanner"
)

// Severity is the common severity vocabulary all sources are mapped onto.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Rank orders severities for comparison; higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// Finding is a normalized unit of review feedback from any source.
// Line is nil for file-level findings that are not anchored to a
// specific new-side diff line.
type Finding struct {
	ID       string   `json:"id"`
	Source   Source   `json:"source"`
	File     string   `json:"file"`
	Line     *int     `json:"line,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	RuleID   string   `json:"ruleId,omitempty"`
}

// FindingInput captures the information required to create a Finding.
type FindingInput struct {
	Source   Source
	File     string
	Line     *int
	Severity Severity
	Message  string
	RuleID   string
}

// NewFinding constructs a Finding with a deterministic ID.
func NewFinding(input FindingInput) Finding {
	return Finding{
		ID:       hashFinding(input),
		Source:   input.Source,
		File:     input.File,
		Line:     input.Line,
		Severity: input.Severity,
		Message:  input.Message,
		RuleID:   input.RuleID,
	}
}

// Anchored reports whether the finding targets a specific new-side line.
func (f Finding) Anchored() bool {
	return f.Line != nil
}

// NormalizedMessage returns the message folded for duplicate comparison:
// lowercased with runs of whitespace collapsed.
func (f Finding) NormalizedMessage() string {
	return strings.Join(strings.Fields(strings.ToLower(f.Message)), " ")
}

// DedupKey returns the identity used for duplicate detection. When a stable
// rule ID is present it wins over message text.
func (f Finding) DedupKey() string {
	line := -1
	if f.Line != nil {
		line = *f.Line
	}
	if f.RuleID != "" {
		return fmt.Sprintf("%s|%d|id:%s", f.File, line, f.RuleID)
	}
	return fmt.Sprintf("%s|%d|msg:%s", f.File, line, f.NormalizedMessage())
}

func hashFinding(input FindingInput) string {
	line := -1
	if input.Line != nil {
		line = *input.Line
	}
	payload := fmt.Sprintf("%s|%s|%d|%s|%s|%s",
		input.Source,
		input.File,
		line,
		input.Severity,
		input.RuleID,
		input.Message,
	)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// IntPtr returns a pointer to the given int value.
func IntPtr(n int) *int {
	return &n
}
