package diff_test

import (
	"testing"

	"github.com/NumeralTiger/AI-PR-Reviewer/internal/diff"
)

const validatorPatch = `diff --git a/a.py b/a.py
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
@@ -5,2 +5,1 @@
 kept
-dropped
diff --git a/logo.png b/logo.png
Binary files a/logo.png and b/logo.png differ
`

func TestIsCommentable(t *testing.T) {
	parsed, err := diff.Parse(validatorPatch)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	tests := []struct {
		name string
		path string
		line int
		want bool
	}{
		{"added line", "a.py", 11, true},
		{"first added line", "a.py", 10, true},
		{"context line", "a.py", 8, true},
		{"last context line", "a.py", 13, true},
		{"line before hunk", "a.py", 7, false},
		{"line after hunk", "a.py", 14, false},
		{"hallucinated line", "a.py", 999, false},
		{"zero line", "a.py", 0, false},
		{"negative line", "a.py", -3, false},
		{"unknown path", "nope.py", 10, false},
		{"removed-only coordinate", "b.py", 6, false},
		{"context in second file", "b.py", 5, true},
		{"binary file", "logo.png", 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parsed.IsCommentable(tt.path, tt.line); got != tt.want {
				t.Errorf("IsCommentable(%q, %d) = %v, want %v", tt.path, tt.line, got, tt.want)
			}
		})
	}
}

// The validator must agree exactly with the set of new-side line numbers
// present in the parsed model.
func TestIsCommentable_MatchesParsedLines(t *testing.T) {
	parsed, err := diff.Parse(validatorPatch)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	for _, file := range parsed.Files {
		newSide := make(map[int]bool)
		for _, hunk := range file.Hunks {
			for _, line := range hunk.Lines {
				if line.NewLine != nil {
					newSide[*line.NewLine] = true
				}
			}
		}
		for line := 1; line <= 30; line++ {
			if got := parsed.IsCommentable(file.Path, line); got != newSide[line] {
				t.Errorf("%s:%d: IsCommentable=%v, model has line=%v", file.Path, line, got, newSide[line])
			}
		}
	}
}
