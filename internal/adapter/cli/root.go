// Package cli wires the reviewer into a cobra command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/NumeralTiger/AI-PR-Reviewer/internal/adapter/github"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/domain"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/usecase/review"
)

// ErrVersionRequested indicates the user requested the CLI version and no further work should be done.
var ErrVersionRequested = errors.New("version requested")

// PullRequestReviewer defines the dependency required to run the review command.
type PullRequestReviewer interface {
	ReviewPullRequest(ctx context.Context, req review.Request) (review.Result, error)
}

// EventLoader resolves PR coordinates from the CI environment.
type EventLoader func() (github.PullRequestEvent, error)

// Arguments encapsulates IO writers injected from the host process.
type Arguments struct {
	OutWriter io.Writer
	ErrWriter io.Writer
}

// Dependencies captures the collaborators for the CLI.
type Dependencies struct {
	Reviewer      PullRequestReviewer
	LoadEvent     EventLoader
	Args          Arguments
	DefaultOutput string
	DefaultBase   string
	DefaultHead   string
	Version       string
}

// NewRootCommand constructs the root Cobra command.
func NewRootCommand(deps Dependencies) *cobra.Command {
	versionString := deps.Version
	if versionString == "" {
		versionString = "v0.0.0"
	}

	root := &cobra.Command{
		Use:   "prreview",
		Short: "Pull request review pipeline",
	}
	root.SilenceUsage = true
	root.SilenceErrors = true

	outWriter := deps.Args.OutWriter
	if outWriter == nil {
		outWriter = os.Stdout
	}
	errWriter := deps.Args.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	root.SetOut(outWriter)
	root.SetErr(errWriter)

	root.AddCommand(reviewCommand(deps))

	var showVersion bool
	root.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Show version and exit")
	versionHandler := func(cmd *cobra.Command, args []string) error {
		if showVersion {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), versionString)
			return ErrVersionRequested
		}
		return nil
	}
	root.PersistentPreRunE = versionHandler
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if err := versionHandler(cmd, args); err != nil {
			return err
		}
		return cmd.Help()
	}

	return root
}

func reviewCommand(deps Dependencies) *cobra.Command {
	var prNumber int
	var baseRef string
	var headRef string
	var diffFile string
	var workingTree bool
	var outputDir string
	var post bool

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review a pull request and produce an annotated report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			// Fall back to the CI event payload for anything the user
			// did not pass explicitly.
			if prNumber <= 0 && deps.LoadEvent != nil {
				event, err := deps.LoadEvent()
				if err != nil {
					return fmt.Errorf("resolve pull request: pass --pr-number or run under a pull_request workflow: %w", err)
				}
				prNumber = event.PRNumber
				if !cmd.Flags().Changed("base") && event.BaseSHA != "" {
					baseRef = event.BaseSHA
				}
				if !cmd.Flags().Changed("head") && event.HeadSHA != "" {
					headRef = event.HeadSHA
				}
			}
			if prNumber <= 0 {
				return fmt.Errorf("--pr-number must be a positive integer")
			}

			result, err := deps.Reviewer.ReviewPullRequest(ctx, review.Request{
				PRNumber:    prNumber,
				BaseRef:     baseRef,
				HeadRef:     headRef,
				DiffFile:    diffFile,
				WorkingTree: workingTree,
				OutputDir:   outputDir,
				Post:        post,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "review complete: %d findings\n", result.Findings)
			if result.ReportPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "report written to %s\n", result.ReportPath)
			}
			for source, status := range result.Sources {
				if status != domain.StatusComplete {
					fmt.Fprintf(cmd.OutOrStdout(), "source %s: %s\n", source, status)
				}
			}
			return nil
		},
	}

	defaultBase := deps.DefaultBase
	if defaultBase == "" {
		defaultBase = "main"
	}
	defaultOutput := deps.DefaultOutput
	if defaultOutput == "" {
		defaultOutput = "out"
	}

	cmd.Flags().IntVar(&prNumber, "pr-number", 0, "Pull request number (defaults to the CI event payload)")
	cmd.Flags().StringVar(&baseRef, "base", defaultBase, "Base reference to diff against")
	cmd.Flags().StringVar(&headRef, "head", deps.DefaultHead, "Head reference to review (defaults to the checked out branch)")
	cmd.Flags().StringVar(&diffFile, "diff-file", "", "Read the unified diff from a file instead of computing it")
	cmd.Flags().BoolVar(&workingTree, "working-tree", false, "Review uncommitted working tree changes against the base")
	cmd.Flags().StringVar(&outputDir, "output", defaultOutput, "Directory to write review artifacts")
	cmd.Flags().BoolVar(&post, "post", false, "Post findings back to the pull request")
	cmd.MarkFlagsMutuallyExclusive("diff-file", "working-tree")

	return cmd
}
