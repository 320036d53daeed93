package diff

import (
	"fmt"
	"strconv"
	"strings"
)

// LineKind represents the kind of a line in a diff hunk.
type LineKind int

const (
	// LineContext is an unchanged line (starts with ' ').
	LineContext LineKind = iota
	// LineAdded is an added line (starts with '+').
	LineAdded
	// LineRemoved is a removed line (starts with '-').
	LineRemoved
)

// String returns the lowercase name of the line kind.
func (k LineKind) String() string {
	switch k {
	case LineAdded:
		return "added"
	case LineRemoved:
		return "removed"
	default:
		return "context"
	}
}

// Line is a single line in a diff hunk. OldLine is nil for added lines
// and NewLine is nil for removed lines; context lines carry both.
type Line struct {
	Kind    LineKind
	Content string
	OldLine *int
	NewLine *int
}

// Hunk is a single @@ section of a unified diff.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// ChangeKind classifies the overall change to a file.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeRenamed  ChangeKind = "renamed"
)

// FileDiff holds the ordered hunks for one file. Path is the new-side
// path (old-side for deletions); OldPath is set only for renames.
// Binary files carry no hunks.
type FileDiff struct {
	Path    string
	OldPath string
	Change  ChangeKind
	Binary  bool
	Hunks   []Hunk
}

// ParsedDiff is the complete structured representation of a unified diff.
// It is read-only once built; file paths are unique.
type ParsedDiff struct {
	Files []FileDiff

	byPath map[string]int
}

// MalformedError indicates diff text that violates structural invariants.
// No partial ParsedDiff accompanies it.
type MalformedError struct {
	Path   string
	Reason string
}

// Error implements the error interface.
func (e *MalformedError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed diff: %s", e.Reason)
	}
	return fmt.Sprintf("malformed diff in %s: %s", e.Path, e.Reason)
}

// Parse parses unified diff text, as produced by git diff or plain
// diff -u, into a ParsedDiff. Binary file sections are recorded with
// no hunks. Hunk
// headers whose declared counts disagree with the lines actually
// present yield a *MalformedError.
func Parse(text string) (*ParsedDiff, error) {
	p := &parser{
		result: &ParsedDiff{byPath: make(map[string]int)},
	}

	for _, raw := range strings.Split(text, "\n") {
		if err := p.consume(raw); err != nil {
			return nil, err
		}
	}

	if err := p.finish(); err != nil {
		return nil, err
	}
	return p.result, nil
}

// File returns the FileDiff for the given new-side path.
func (pd *ParsedDiff) File(path string) (*FileDiff, bool) {
	idx, ok := pd.byPath[path]
	if !ok {
		return nil, false
	}
	return &pd.Files[idx], true
}

// parser accumulates one file section at a time, maintaining the old and
// new line cursors for the hunk currently being filled.
type parser struct {
	result *ParsedDiff

	file    *FileDiff
	oldPath string
	newPath string

	hunk      *Hunk
	oldCursor int
	newCursor int
	oldSeen   int
	newSeen   int
}

func (p *parser) consume(raw string) error {
	switch {
	case strings.HasPrefix(raw, "diff --git "):
		if err := p.closeFile(); err != nil {
			return err
		}
		p.file = &FileDiff{Change: ChangeModified}
		gitOld, gitNew := parseGitHeaderPaths(raw)
		p.oldPath, p.newPath = gitOld, gitNew
		return nil

	case p.file == nil && !strings.HasPrefix(raw, "--- "):
		// Preamble before the first file section (or blank trailer).
		return nil

	case strings.HasPrefix(raw, "--- "):
		if p.hunk != nil {
			if !p.hunkComplete() {
				// Inside an unfinished hunk a "--- " line is removed
				// content, not a header.
				return p.consumeBody(raw)
			}
			// Declared counts satisfied: plain diff -u output starts the
			// next file section without a "diff --git" line.
			if err := p.closeFile(); err != nil {
				return err
			}
		}
		if p.file == nil {
			p.file = &FileDiff{Change: ChangeModified}
		}
		p.oldPath = stripPathPrefix(strings.TrimPrefix(raw, "--- "), "a/")
		return nil

	case strings.HasPrefix(raw, "+++ ") && p.hunk == nil:
		p.newPath = stripPathPrefix(strings.TrimPrefix(raw, "+++ "), "b/")
		return nil

	case strings.HasPrefix(raw, "rename from "):
		p.file.Change = ChangeRenamed
		p.file.OldPath = strings.TrimPrefix(raw, "rename from ")
		return nil

	case strings.HasPrefix(raw, "rename to "):
		p.file.Change = ChangeRenamed
		p.newPath = strings.TrimPrefix(raw, "rename to ")
		return nil

	case strings.HasPrefix(raw, "new file mode"):
		p.file.Change = ChangeAdded
		return nil

	case strings.HasPrefix(raw, "deleted file mode"):
		p.file.Change = ChangeDeleted
		return nil

	case strings.HasPrefix(raw, "Binary files ") || raw == "GIT binary patch":
		p.file.Binary = true
		return nil

	case strings.HasPrefix(raw, "@@"):
		if err := p.closeHunk(); err != nil {
			return err
		}
		hunk, err := parseHunkHeader(raw)
		if err != nil {
			return &MalformedError{Path: p.currentPath(), Reason: err.Error()}
		}
		p.hunk = &hunk
		p.oldCursor = hunk.OldStart
		p.newCursor = hunk.NewStart
		p.oldSeen = 0
		p.newSeen = 0
		return nil

	default:
		return p.consumeBody(raw)
	}
}

func (p *parser) consumeBody(raw string) error {
	if p.hunk == nil {
		// Metadata between headers (index lines, mode changes, blank lines).
		return nil
	}

	if raw == "" {
		// A trailing split artifact; real diff body lines always carry a prefix.
		return nil
	}

	switch raw[0] {
	case '\\':
		// "\ No newline at end of file"
		return nil
	case '+':
		line := Line{Kind: LineAdded, Content: raw[1:], NewLine: IntPtr(p.newCursor)}
		p.newCursor++
		p.newSeen++
		p.hunk.Lines = append(p.hunk.Lines, line)
	case '-':
		line := Line{Kind: LineRemoved, Content: raw[1:], OldLine: IntPtr(p.oldCursor)}
		p.oldCursor++
		p.oldSeen++
		p.hunk.Lines = append(p.hunk.Lines, line)
	case ' ':
		line := Line{
			Kind:    LineContext,
			Content: raw[1:],
			OldLine: IntPtr(p.oldCursor),
			NewLine: IntPtr(p.newCursor),
		}
		p.oldCursor++
		p.newCursor++
		p.oldSeen++
		p.newSeen++
		p.hunk.Lines = append(p.hunk.Lines, line)
	default:
		return &MalformedError{
			Path:   p.currentPath(),
			Reason: fmt.Sprintf("unexpected line prefix %q inside hunk", raw[0]),
		}
	}
	return nil
}

// hunkComplete reports whether the open hunk has consumed exactly the
// line counts its header declared.
func (p *parser) hunkComplete() bool {
	return p.hunk != nil && p.oldSeen == p.hunk.OldLines && p.newSeen == p.hunk.NewLines
}

// closeHunk validates the declared counts of the hunk being filled
// against what was actually consumed.
func (p *parser) closeHunk() error {
	if p.hunk == nil {
		return nil
	}
	if p.oldSeen != p.hunk.OldLines || p.newSeen != p.hunk.NewLines {
		return &MalformedError{
			Path: p.currentPath(),
			Reason: fmt.Sprintf("hunk @@ -%d,%d +%d,%d @@ contained %d old and %d new lines",
				p.hunk.OldStart, p.hunk.OldLines, p.hunk.NewStart, p.hunk.NewLines,
				p.oldSeen, p.newSeen),
		}
	}
	p.file.Hunks = append(p.file.Hunks, *p.hunk)
	p.hunk = nil
	return nil
}

func (p *parser) closeFile() error {
	if p.file == nil {
		return nil
	}
	if err := p.closeHunk(); err != nil {
		return err
	}

	p.file.Path = p.resolvePath()
	if !p.file.Binary && len(p.file.Hunks) == 0 {
		return &MalformedError{Path: p.file.Path, Reason: "file section has no hunks"}
	}

	if _, exists := p.result.byPath[p.file.Path]; !exists {
		p.result.byPath[p.file.Path] = len(p.result.Files)
		p.result.Files = append(p.result.Files, *p.file)
	}

	p.file = nil
	p.oldPath = ""
	p.newPath = ""
	return nil
}

func (p *parser) finish() error {
	return p.closeFile()
}

// resolvePath picks the addressable path for the file section: the
// new-side path unless the file was deleted.
func (p *parser) resolvePath() string {
	if p.newPath != "" && p.newPath != "/dev/null" {
		return p.newPath
	}
	if p.oldPath != "" && p.oldPath != "/dev/null" {
		if p.file.Change == ChangeModified {
			p.file.Change = ChangeDeleted
		}
		return p.oldPath
	}
	return ""
}

func (p *parser) currentPath() string {
	if p.newPath != "" && p.newPath != "/dev/null" {
		return p.newPath
	}
	return p.oldPath
}

// parseGitHeaderPaths extracts the a/ and b/ paths from a
// "diff --git a/x b/y" line. Paths with spaces are ambiguous in this
// header; the --- and +++ lines that follow are authoritative.
func parseGitHeaderPaths(raw string) (oldPath, newPath string) {
	rest := strings.TrimPrefix(raw, "diff --git ")
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return "", ""
	}
	return strings.TrimPrefix(fields[0], "a/"), strings.TrimPrefix(fields[1], "b/")
}

// stripPathPrefix removes the git path prefix and any trailing tab-separated
// timestamp some diff producers append.
func stripPathPrefix(path, prefix string) string {
	if idx := strings.IndexByte(path, '\t'); idx >= 0 {
		path = path[:idx]
	}
	if path == "/dev/null" {
		return path
	}
	return strings.TrimPrefix(path, prefix)
}

// parseHunkHeader parses "@@ -oldStart,oldLines +newStart,newLines @@ context".
func parseHunkHeader(raw string) (Hunk, error) {
	parts := strings.SplitN(raw, "@@", 3)
	if len(parts) < 3 {
		return Hunk{}, fmt.Errorf("invalid hunk header %q", raw)
	}

	hunk := Hunk{OldLines: 1, NewLines: 1}
	sawOld, sawNew := false, false
	for _, field := range strings.Fields(strings.TrimSpace(parts[1])) {
		switch {
		case strings.HasPrefix(field, "-"):
			start, count, err := parseRange(strings.TrimPrefix(field, "-"))
			if err != nil {
				return Hunk{}, fmt.Errorf("invalid old range in %q: %w", raw, err)
			}
			hunk.OldStart, hunk.OldLines = start, count
			sawOld = true
		case strings.HasPrefix(field, "+"):
			start, count, err := parseRange(strings.TrimPrefix(field, "+"))
			if err != nil {
				return Hunk{}, fmt.Errorf("invalid new range in %q: %w", raw, err)
			}
			hunk.NewStart, hunk.NewLines = start, count
			sawNew = true
		}
	}
	if !sawOld || !sawNew {
		return Hunk{}, fmt.Errorf("hunk header %q missing range", raw)
	}
	return hunk, nil
}

// parseRange parses "start,count" or the single-line shorthand "start".
func parseRange(s string) (start, count int, err error) {
	count = 1
	if idx := strings.IndexByte(s, ','); idx >= 0 {
		count, err = strconv.Atoi(s[idx+1:])
		if err != nil {
			return 0, 0, err
		}
		s = s[:idx]
	}
	start, err = strconv.Atoi(s)
	if err != nil {
		return 0, 0, err
	}
	return start, count, nil
}

// IntPtr returns a pointer to the given int value.
// Exported for use in tests across packages.
func IntPtr(n int) *int {
	return &n
}
