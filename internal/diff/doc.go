// Package diff parses unified diff text into an addressable model of
// per-file hunks and line coordinates, and answers whether a given
// (path, line) pair is a legal anchor for an inline review comment.
package diff
