package github

import (
	"context"
	"fmt"

	"github.com/NumeralTiger/AI-PR-Reviewer/internal/adapter/output/markdown"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/diff"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/domain"
)

// Publisher posts the aggregated report back to the pull request as
// inline comments, a summary comment, or both.
type Publisher struct {
	client      *Client
	postInline  bool
	postSummary bool
}

// NewPublisher constructs a publisher around a posting client.
func NewPublisher(client *Client, postInline, postSummary bool) *Publisher {
	return &Publisher{
		client:      client,
		postInline:  postInline,
		postSummary: postSummary,
	}
}

// Publish delivers the report. Inline comments are anchored against
// the parsed diff before posting.
func (p *Publisher) Publish(ctx context.Context, report domain.Report, parsed *diff.ParsedDiff) error {
	if p.postInline {
		comments := BuildInlineComments(report, parsed)
		if _, err := p.client.PostInlineComments(ctx, report.PRNumber, comments); err != nil {
			return fmt.Errorf("post inline comments: %w", err)
		}
	}
	if p.postSummary {
		if err := p.client.PostSummaryComment(ctx, report.PRNumber, markdown.Render(report)); err != nil {
			return fmt.Errorf("post summary comment: %w", err)
		}
	}
	return nil
}
