// Package github implements the code-hosting collaborators: pull-request
// event discovery and inline review comment posting.
package github

import (
	"encoding/json"
	"fmt"
	"os"
)

// PullRequestEvent carries the PR coordinates extracted from the
// webhook event the CI runner exposes.
type PullRequestEvent struct {
	PRNumber     int
	BaseSHA      string
	HeadSHA      string
	RepoFullName string
}

// eventPayload mirrors the fragment of the webhook JSON we consume.
type eventPayload struct {
	PullRequest struct {
		Number int `json:"number"`
		Base   struct {
			SHA string `json:"sha"`
		} `json:"base"`
		Head struct {
			SHA string `json:"sha"`
		} `json:"head"`
	} `json:"pull_request"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// LoadEvent parses a webhook event file into PR coordinates.
func LoadEvent(path string) (PullRequestEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PullRequestEvent{}, fmt.Errorf("read event file: %w", err)
	}

	var payload eventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return PullRequestEvent{}, fmt.Errorf("parse event file %s: %w", path, err)
	}
	if payload.PullRequest.Number == 0 {
		return PullRequestEvent{}, fmt.Errorf("event file %s has no pull_request payload", path)
	}

	return PullRequestEvent{
		PRNumber:     payload.PullRequest.Number,
		BaseSHA:      payload.PullRequest.Base.SHA,
		HeadSHA:      payload.PullRequest.Head.SHA,
		RepoFullName: payload.Repository.FullName,
	}, nil
}

// LoadEventFromEnv reads the event file named by GITHUB_EVENT_PATH,
// which the Actions runner sets for pull_request workflows.
func LoadEventFromEnv() (PullRequestEvent, error) {
	path := os.Getenv("GITHUB_EVENT_PATH")
	if path == "" {
		return PullRequestEvent{}, fmt.Errorf("GITHUB_EVENT_PATH not set in environment")
	}
	return LoadEvent(path)
}
