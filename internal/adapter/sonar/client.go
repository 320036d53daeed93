// Package sonar implements the static-analysis collaborator: it runs the
// scanner CLI, waits for the server-side analysis to land, and fetches
// the resulting issues and project measures.
package sonar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"github.com/NumeralTiger/AI-PR-Reviewer/internal/adapter/httpx"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/domain"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/usecase/normalize"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultPollAttempts = 30
	issuesPageSize      = 500
)

// defaultMetricKeys are the project measures included in the report's
// metrics table.
var defaultMetricKeys = []string{
	"bugs",
	"code_smells",
	"coverage",
	"duplicated_lines_density",
	"sqale_debt_ratio",
}

// Config holds the collaborator's connection settings.
type Config struct {
	HostURL      string
	Token        string
	ProjectKey   string
	Organization string
	PollInterval time.Duration
	PollAttempts int
}

// Client talks to a SonarQube/SonarCloud server.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retry      httpx.RetryConfig

	// runScanner is swappable in tests; the default execs the scanner CLI.
	runScanner func(ctx context.Context) error
}

// NewClient constructs a scanner client.
func NewClient(cfg Config) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = defaultPollAttempts
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      httpx.DefaultRetryConfig(),
	}
	c.runScanner = c.execScanner
	return c
}

// SetRetryConfig overrides the default retry policy.
func (c *Client) SetRetryConfig(retry httpx.RetryConfig) {
	c.retry = retry
}

// RunScanner invokes the scanner CLI against the working directory.
// The scanner reads sonar-project.properties from the project root.
func (c *Client) RunScanner(ctx context.Context) error {
	return c.runScanner(ctx)
}

func (c *Client) execScanner(ctx context.Context) error {
	args := []string{fmt.Sprintf("-Dsonar.login=%s", c.cfg.Token)}
	if c.cfg.Organization != "" {
		args = append(args, fmt.Sprintf("-Dsonar.organization=%s", c.cfg.Organization))
	}
	cmd := exec.CommandContext(ctx, "sonar-scanner", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("sonar-scanner: %w", ctx.Err())
		}
		if stderr.Len() > 0 {
			err = fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("sonar-scanner: %w", err)
	}
	return nil
}

// WaitForAnalysis polls the analyses endpoint until the server has a
// report for the project, returning the newest analysis key.
func (c *Client) WaitForAnalysis(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("%s/api/project_analyses/search?project=%s",
		strings.TrimRight(c.cfg.HostURL, "/"), url.QueryEscape(c.cfg.ProjectKey))

	for attempt := 0; attempt < c.cfg.PollAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		var resp analysesResponse
		if err := c.getJSON(ctx, endpoint, &resp); err != nil {
			return "", err
		}
		if len(resp.Analyses) > 0 {
			// Latest analysis is first.
			return resp.Analyses[0].Key, nil
		}

		select {
		case <-time.After(c.cfg.PollInterval):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return "", httpx.NewTimeoutError("scanner", fmt.Sprintf(
		"no analysis for project %s after %d polls", c.cfg.ProjectKey, c.cfg.PollAttempts))
}

// FetchIssues retrieves all unresolved issues for the project, paging
// through the API, and converts them to the normalizer's record shape.
func (c *Client) FetchIssues(ctx context.Context) ([]normalize.ScannerIssue, error) {
	base := fmt.Sprintf("%s/api/issues/search?componentKeys=%s&resolved=false&ps=%d",
		strings.TrimRight(c.cfg.HostURL, "/"), url.QueryEscape(c.cfg.ProjectKey), issuesPageSize)

	var issues []normalize.ScannerIssue
	for page := 1; ; page++ {
		var resp issuesResponse
		if err := c.getJSON(ctx, fmt.Sprintf("%s&p=%d", base, page), &resp); err != nil {
			return nil, err
		}

		for _, rec := range resp.Issues {
			issues = append(issues, normalize.ScannerIssue{
				File:     componentPath(rec.Component, c.cfg.ProjectKey),
				Line:     rec.Line,
				RuleID:   rec.Rule,
				Severity: rec.Severity,
				Message:  rec.Message,
			})
		}

		if page*issuesPageSize >= resp.Paging.Total || len(resp.Issues) == 0 {
			break
		}
	}
	return issues, nil
}

// FetchMeasures retrieves the project-level metrics for the report's
// summary table.
func (c *Client) FetchMeasures(ctx context.Context) ([]domain.Metric, error) {
	endpoint := fmt.Sprintf("%s/api/measures/component?component=%s&metricKeys=%s",
		strings.TrimRight(c.cfg.HostURL, "/"),
		url.QueryEscape(c.cfg.ProjectKey),
		strings.Join(defaultMetricKeys, ","))

	var resp measuresResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	metrics := make([]domain.Metric, 0, len(resp.Component.Measures))
	for _, m := range resp.Component.Measures {
		metrics = append(metrics, domain.Metric{Key: m.Metric, Value: m.Value})
	}
	return metrics, nil
}

// getJSON performs an authenticated GET with retry and decodes into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	operation := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		// The server uses basic auth with the token as user and blank password.
		req.SetBasicAuth(c.cfg.Token, "")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return httpx.NewTimeoutError("scanner", "request timed out")
			}
			return httpx.NewTimeoutError("scanner", err.Error())
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return httpx.NewAuthenticationError("scanner", trimBody(body))
		case resp.StatusCode == http.StatusNotFound:
			return httpx.NewNotFoundError("scanner", trimBody(body))
		case resp.StatusCode == http.StatusTooManyRequests:
			return httpx.NewRateLimitError("scanner", trimBody(body))
		case resp.StatusCode >= 500:
			return httpx.NewServiceUnavailableError("scanner", trimBody(body))
		default:
			return httpx.NewInvalidRequestError("scanner", trimBody(body))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
		return nil
	}
	return httpx.RetryWithBackoff(ctx, operation, c.retry)
}

// componentPath strips the "projectKey:" prefix the API prepends to
// file paths.
func componentPath(component, projectKey string) string {
	return strings.TrimPrefix(component, projectKey+":")
}

func trimBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
