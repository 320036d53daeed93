package diff

// IsCommentable reports whether the given (path, line) pair corresponds to
// an added or context line on the new side of the parsed diff. Unknown
// paths and line numbers outside every hunk's new-side span return false;
// advisory output is untrusted, so callers treat a false result as "not
// anchorable" rather than an error.
func (pd *ParsedDiff) IsCommentable(path string, line int) bool {
	if line <= 0 {
		return false
	}
	file, ok := pd.File(path)
	if !ok || file.Binary {
		return false
	}
	for _, hunk := range file.Hunks {
		// New-side span check saves walking hunks that cannot contain the line.
		if line < hunk.NewStart || line >= hunk.NewStart+hunk.NewLines {
			continue
		}
		for _, l := range hunk.Lines {
			if l.NewLine != nil && *l.NewLine == line {
				return true
			}
		}
	}
	return false
}
