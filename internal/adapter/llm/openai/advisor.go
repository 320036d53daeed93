package openai

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/NumeralTiger/AI-PR-Reviewer/internal/usecase/normalize"
)

const systemPrompt = "You are an AI code reviewer. You will be given a git diff. " +
	"Identify any obvious bugs or anti-patterns. Suggest improvements to variable names, " +
	"docstrings, or missing tests. For each issue, output a JSON array of entries with: " +
	`{"file_path": <path>, "line": <line_number>, "comment": <advice>, "severity": <info|warning|error>}.`

// Advisor requests structured review commentary for diff payloads.
type Advisor struct {
	client *HTTPClient
}

// NewAdvisor constructs an Advisor on top of the given HTTP client.
func NewAdvisor(client *HTTPClient) *Advisor {
	return &Advisor{client: client}
}

// Review sends one diff payload to the advisory service and returns its
// comments. The service may omit file paths in its reply; missing paths
// are reattached from the payload's originating-file tag.
func (a *Advisor) Review(ctx context.Context, file, diffText string) ([]normalize.AdvisoryComment, error) {
	userMsg := "Here is the diff:\n```\n" + diffText + "\n```"

	resp, err := a.client.Call(ctx, systemPrompt, userMsg)
	if err != nil {
		return nil, err
	}

	comments := ParseComments(resp.Text)
	for i := range comments {
		if comments[i].FilePath == "" {
			comments[i].FilePath = file
		}
	}
	return comments, nil
}

// ParseComments extracts advisory comments from the model's reply.
// The reply may be a bare JSON array, an object with a "comments" key,
// or either wrapped in a markdown code fence. Individual malformed
// entries are dropped rather than failing the whole reply.
func ParseComments(text string) []normalize.AdvisoryComment {
	jsonText := extractJSONFromMarkdown(text)
	if jsonText == "" {
		jsonText = strings.TrimSpace(text)
	}

	var rawEntries []json.RawMessage
	if err := json.Unmarshal([]byte(jsonText), &rawEntries); err != nil {
		var wrapper struct {
			Comments []json.RawMessage `json:"comments"`
		}
		if err := json.Unmarshal([]byte(jsonText), &wrapper); err != nil {
			return nil
		}
		rawEntries = wrapper.Comments
	}

	comments := make([]normalize.AdvisoryComment, 0, len(rawEntries))
	for _, raw := range rawEntries {
		var c normalize.AdvisoryComment
		if err := json.Unmarshal(raw, &c); err != nil {
			continue
		}
		comments = append(comments, c)
	}
	return comments
}

// extractJSONFromMarkdown attempts to extract JSON from markdown code blocks.
func extractJSONFromMarkdown(text string) string {
	re := regexp.MustCompile("(?s)```(?:json)?\\s*([\\[{].*?[\\]}])\\s*```")
	matches := re.FindStringSubmatch(text)
	if len(matches) > 1 {
		return matches[1]
	}
	return ""
}
