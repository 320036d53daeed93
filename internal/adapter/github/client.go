package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/NumeralTiger/AI-PR-Reviewer/internal/adapter/httpx"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/domain"
)

const defaultAPIURL = "https://api.github.com"

// Client posts review comments to the hosting API.
type Client struct {
	apiURL     string
	token      string
	repository string
	commitSHA  string
	retry      httpx.RetryConfig
	httpClient *http.Client
	logger     httpx.Logger
}

// NewClient creates a posting client for the given repository
// ("owner/name") and head commit.
func NewClient(token, repository, commitSHA string) *Client {
	return &Client{
		apiURL:     defaultAPIURL,
		token:      token,
		repository: repository,
		commitSHA:  commitSHA,
		retry:      httpx.DefaultRetryConfig(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     httpx.NewDefaultLogger(httpx.LogLevelInfo, httpx.LogFormatHuman, true),
	}
}

// SetAPIURL overrides the API base URL, used for enterprise hosts and tests.
func (c *Client) SetAPIURL(url string) { c.apiURL = url }

// SetRetryConfig overrides the retry policy.
func (c *Client) SetRetryConfig(cfg httpx.RetryConfig) { c.retry = cfg }

// SetLogger overrides the structured logger.
func (c *Client) SetLogger(l httpx.Logger) {
	if l != nil {
		c.logger = l
	}
}

type commentRequest struct {
	Body     string `json:"body"`
	CommitID string `json:"commit_id"`
	Path     string `json:"path"`
	Line     int    `json:"line"`
	Side     string `json:"side"`
}

// PostResult summarizes a posting batch.
type PostResult struct {
	Posted int
	Failed int
}

// PostInlineComments sends each directive as a review comment on the
// pull request. Individual failures are logged and counted rather than
// aborting the batch, so one rejected anchor does not lose the rest.
// An error is returned only when every comment failed.
func (c *Client) PostInlineComments(ctx context.Context, prNumber int, comments []domain.InlineComment) (PostResult, error) {
	var result PostResult
	for _, comment := range comments {
		if err := c.postComment(ctx, prNumber, comment); err != nil {
			result.Failed++
			c.logger.LogWarning(ctx, "failed to post inline comment", map[string]interface{}{
				"path":  comment.Path,
				"line":  comment.Line,
				"error": err.Error(),
			})
			continue
		}
		result.Posted++
	}

	if result.Failed > 0 && result.Posted == 0 {
		return result, fmt.Errorf("all %d inline comments failed to post", result.Failed)
	}
	return result, nil
}

// PostSummaryComment posts the report summary as a regular issue
// comment on the pull request.
func (c *Client) PostSummaryComment(ctx context.Context, prNumber int, body string) error {
	url := fmt.Sprintf("%s/repos/%s/issues/%d/comments", c.apiURL, c.repository, prNumber)
	payload, err := json.Marshal(map[string]string{"body": body})
	if err != nil {
		return fmt.Errorf("marshal summary comment: %w", err)
	}
	return c.post(ctx, url, payload)
}

func (c *Client) postComment(ctx context.Context, prNumber int, comment domain.InlineComment) error {
	url := fmt.Sprintf("%s/repos/%s/pulls/%d/comments", c.apiURL, c.repository, prNumber)
	payload, err := json.Marshal(commentRequest{
		Body:     comment.Body,
		CommitID: c.commitSHA,
		Path:     comment.Path,
		Line:     comment.Line,
		Side:     comment.Side,
	})
	if err != nil {
		return fmt.Errorf("marshal inline comment: %w", err)
	}
	return c.post(ctx, url, payload)
}

func (c *Client) post(ctx context.Context, url string, payload []byte) error {
	operation := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return httpx.NewTimeoutError("github", fmt.Sprintf("request failed: %v", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return statusToError(resp.StatusCode, string(body))
	}
	return httpx.RetryWithBackoff(ctx, operation, c.retry)
}

func statusToError(status int, body string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return httpx.NewAuthenticationError("github", fmt.Sprintf("status %d: %s", status, body))
	case http.StatusNotFound:
		return httpx.NewNotFoundError("github", fmt.Sprintf("status %d: %s", status, body))
	case http.StatusUnprocessableEntity:
		return httpx.NewInvalidRequestError("github", fmt.Sprintf("status %d: %s", status, body))
	case http.StatusTooManyRequests:
		return httpx.NewRateLimitError("github", fmt.Sprintf("status %d: %s", status, body))
	default:
		if status >= 500 {
			return httpx.NewServiceUnavailableError("github", fmt.Sprintf("status %d: %s", status, body))
		}
		return &httpx.Error{
			Type:       httpx.ErrTypeUnknown,
			Message:    fmt.Sprintf("status %d: %s", status, body),
			StatusCode: status,
			Retryable:  false,
			Service:    "github",
		}
	}
}
