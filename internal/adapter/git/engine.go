// Package git produces unified diff text for a pull request branch,
// backed by go-git with a subprocess fallback for working-tree diffs.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	goGit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	formatdiff "github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Engine computes diffs for a local repository checkout.
type Engine struct {
	repoDir string
}

// NewEngine constructs an engine rooted at the given repository directory.
func NewEngine(repoDir string) *Engine {
	return &Engine{repoDir: repoDir}
}

// Diff returns the unified diff text between two refs. An empty headRef
// defaults to the checked-out branch. The output is the concatenation
// of per-file patches in git's own format, suitable for the diff parser.
func (e *Engine) Diff(ctx context.Context, baseRef, headRef string) (string, error) {
	repo, err := goGit.PlainOpenWithOptions(e.repoDir, &goGit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}

	if headRef == "" {
		branch, err := e.CurrentBranch(ctx)
		if err != nil {
			// Detached HEAD, common in CI checkouts.
			branch = "HEAD"
		}
		headRef = branch
	}

	baseCommit, err := resolveCommit(repo, baseRef)
	if err != nil {
		return "", fmt.Errorf("resolve base ref %q: %w", baseRef, err)
	}
	headCommit, err := resolveCommit(repo, headRef)
	if err != nil {
		return "", fmt.Errorf("resolve head ref %q: %w", headRef, err)
	}

	patch, err := baseCommit.PatchContext(ctx, headCommit)
	if err != nil {
		return "", fmt.Errorf("compute patch: %w", err)
	}

	var buf bytes.Buffer
	encoder := formatdiff.NewUnifiedEncoder(&buf, formatdiff.DefaultContextLines)
	if err := encoder.Encode(patch); err != nil {
		return "", fmt.Errorf("encode patch: %w", err)
	}
	return buf.String(), nil
}

// DiffWorkingTree returns the diff between a base ref and the working
// tree, including uncommitted changes. go-git has no working-tree diff,
// so this shells out to the git binary.
func (e *Engine) DiffWorkingTree(ctx context.Context, baseRef string) (string, error) {
	out, err := e.runGit(ctx, "diff", baseRef)
	if err != nil {
		return "", err
	}
	return out, nil
}

// ResolveSHA resolves a ref to its full commit hash. The posting
// client needs the head SHA as the commit anchor for inline comments.
func (e *Engine) ResolveSHA(ctx context.Context, ref string) (string, error) {
	repo, err := goGit.PlainOpenWithOptions(e.repoDir, &goGit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}
	commit, err := resolveCommit(repo, ref)
	if err != nil {
		return "", fmt.Errorf("resolve ref %q: %w", ref, err)
	}
	return commit.Hash.String(), nil
}

// CurrentBranch returns the name of the checked-out branch.
func (e *Engine) CurrentBranch(ctx context.Context) (string, error) {
	repo, err := goGit.PlainOpenWithOptions(e.repoDir, &goGit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	name := head.Name()
	if name.IsBranch() {
		return name.Short(), nil
	}
	return "", fmt.Errorf("detached HEAD")
}

// resolveCommit tries the ref as given, then as a local branch, then as
// an origin remote branch. CI checkouts often have only the remote ref.
func resolveCommit(repo *goGit.Repository, ref string) (*object.Commit, error) {
	candidates := []string{
		ref,
		fmt.Sprintf("refs/heads/%s", ref),
		fmt.Sprintf("refs/remotes/origin/%s", ref),
	}

	var lastErr error
	for _, candidate := range candidates {
		hash, err := repo.ResolveRevision(plumbing.Revision(candidate))
		if err != nil {
			lastErr = err
			continue
		}
		return repo.CommitObject(*hash)
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("unable to resolve ref %s", ref)
}

func (e *Engine) runGit(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-C", e.repoDir}, args...)
	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("git %v: %w", args, ctx.Err())
		}
		if stderr.Len() > 0 {
			err = fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("git %v: %w", args, err)
	}
	return stdout.String(), nil
}
