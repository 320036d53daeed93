// Package request turns a parsed diff into bounded advisory-service
// payloads, respecting the service's input-size limit and the
// configured path exclusions.
package request

import (
	"fmt"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/NumeralTiger/AI-PR-Reviewer/internal/adapter/llm"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/diff"
)

// DefaultMaxPayloadTokens bounds a single advisory request when no
// ceiling is configured.
const DefaultMaxPayloadTokens = 6000

// Payload is one advisory-service request. File tags the originating
// file so findings can be reattached to the right path even when the
// service's response omits it.
type Payload struct {
	File     string
	DiffText string
	Tokens   int
}

// TokenEstimator reports the approximate token footprint of a payload.
type TokenEstimator func(text string) int

// Builder splits diffs into advisory payloads.
type Builder struct {
	maxTokens int
	excluded  *ignore.GitIgnore
	estimate  TokenEstimator
}

// Option configures a Builder.
type Option func(*Builder)

// WithTokenEstimator overrides the default tiktoken-based estimator.
func WithTokenEstimator(estimate TokenEstimator) Option {
	return func(b *Builder) {
		b.estimate = estimate
	}
}

// NewBuilder constructs a Builder. excludeGlobs uses gitignore pattern
// syntax; matching files are stripped before any request is built, a
// policy decision made here rather than delegated to the service.
func NewBuilder(maxPayloadTokens int, excludeGlobs []string, opts ...Option) *Builder {
	if maxPayloadTokens <= 0 {
		maxPayloadTokens = DefaultMaxPayloadTokens
	}
	b := &Builder{
		maxTokens: maxPayloadTokens,
		excluded:  ignore.CompileIgnoreLines(excludeGlobs...),
		estimate:  llm.EstimateTokens,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build produces one or more payloads for the parsed diff. Files are
// never mixed within a payload; a file whose diff exceeds the ceiling is
// split at hunk boundaries, never mid-hunk. Binary and excluded files
// produce no payloads.
func (b *Builder) Build(parsed *diff.ParsedDiff) []Payload {
	var payloads []Payload
	for i := range parsed.Files {
		file := &parsed.Files[i]
		if file.Binary || b.excluded.MatchesPath(file.Path) {
			continue
		}
		payloads = append(payloads, b.buildFile(file)...)
	}
	return payloads
}

func (b *Builder) buildFile(file *diff.FileDiff) []Payload {
	header := renderFileHeader(file)

	whole := header + renderHunks(file.Hunks)
	if tokens := b.estimate(whole); tokens <= b.maxTokens {
		return []Payload{{File: file.Path, DiffText: whole, Tokens: tokens}}
	}

	// Over the ceiling: pack hunks greedily into chunks. A single hunk
	// larger than the ceiling still ships alone rather than being cut.
	var payloads []Payload
	var chunk []diff.Hunk
	chunkTokens := b.estimate(header)

	flush := func() {
		if len(chunk) == 0 {
			return
		}
		text := header + renderHunks(chunk)
		payloads = append(payloads, Payload{File: file.Path, DiffText: text, Tokens: b.estimate(text)})
		chunk = nil
		chunkTokens = b.estimate(header)
	}

	for _, hunk := range file.Hunks {
		hunkTokens := b.estimate(renderHunks([]diff.Hunk{hunk}))
		if len(chunk) > 0 && chunkTokens+hunkTokens > b.maxTokens {
			flush()
		}
		chunk = append(chunk, hunk)
		chunkTokens += hunkTokens
	}
	flush()

	return payloads
}

// renderFileHeader reconstructs a minimal unified-diff file header so
// each payload is independently parseable by the service.
func renderFileHeader(file *diff.FileDiff) string {
	gitOld := file.Path
	oldPath, newPath := "a/"+file.Path, "b/"+file.Path
	switch file.Change {
	case diff.ChangeAdded:
		oldPath = "/dev/null"
	case diff.ChangeDeleted:
		newPath = "/dev/null"
	case diff.ChangeRenamed:
		if file.OldPath != "" {
			gitOld = file.OldPath
			oldPath = "a/" + file.OldPath
		}
	}
	return fmt.Sprintf("diff --git a/%s b/%s\n--- %s\n+++ %s\n", gitOld, file.Path, oldPath, newPath)
}

func renderHunks(hunks []diff.Hunk) string {
	var sb strings.Builder
	for _, hunk := range hunks {
		fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@\n", hunk.OldStart, hunk.OldLines, hunk.NewStart, hunk.NewLines)
		for _, line := range hunk.Lines {
			switch line.Kind {
			case diff.LineAdded:
				sb.WriteByte('+')
			case diff.LineRemoved:
				sb.WriteByte('-')
			default:
				sb.WriteByte(' ')
			}
			sb.WriteString(line.Content)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
