package mcp

import (
	"fmt"
	"strings"

	"github.com/maraichr/reviewgate/pkg/models"
)

const defaultMaxTokens = 4000

// Verbosity controls how much detail is included per delivery line.
type Verbosity string

const (
	VerbositySummary  Verbosity = "summary"
	VerbosityStandard Verbosity = "standard"
	VerbosityFull     Verbosity = "full"
)

// ParseVerbosity returns a Verbosity from a string, defaulting to standard.
func ParseVerbosity(s string) Verbosity {
	switch strings.ToLower(s) {
	case "summary":
		return VerbositySummary
	case "full":
		return VerbosityFull
	default:
		return VerbosityStandard
	}
}

// ResponseBuilder constructs token-budgeted Markdown responses for MCP tools.
// Tokens are estimated at four bytes each.
type ResponseBuilder struct {
	buf           strings.Builder
	tokenEstimate int
	maxTokens     int
	truncated     bool
	itemCount     int
}

// NewResponseBuilder creates a builder with the given token budget.
// If maxTokens <= 0, defaultMaxTokens is used.
func NewResponseBuilder(maxTokens int) *ResponseBuilder {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &ResponseBuilder{maxTokens: maxTokens}
}

// AddHeader writes a header line. Headers are never dropped.
func (rb *ResponseBuilder) AddHeader(text string) {
	line := text + "\n\n"
	rb.buf.WriteString(line)
	rb.tokenEstimate += len(line) / 4
}

// AddLine writes a single line, returning false if the budget is exceeded.
func (rb *ResponseBuilder) AddLine(text string) bool {
	return rb.add(text + "\n")
}

// AddItem writes a line that counts toward ItemCount.
func (rb *ResponseBuilder) AddItem(text string) bool {
	if !rb.add(text + "\n") {
		return false
	}
	rb.itemCount++
	return true
}

// AddSection writes a section with a heading.
func (rb *ResponseBuilder) AddSection(heading string, content string) bool {
	return rb.add(fmt.Sprintf("### %s\n%s\n\n", heading, content))
}

func (rb *ResponseBuilder) add(text string) bool {
	cost := len(text) / 4
	if rb.tokenEstimate+cost > rb.maxTokens {
		rb.truncated = true
		return false
	}
	rb.buf.WriteString(text)
	rb.tokenEstimate += cost
	return true
}

// Finalize appends a truncation notice and returns the final response text.
func (rb *ResponseBuilder) Finalize(totalCount int) string {
	if rb.truncated || rb.itemCount < totalCount {
		fmt.Fprintf(&rb.buf,
			"\n---\n*Showing %d of %d results (truncated to ~%d tokens). Filter by `status` or increase `max_response_tokens`.*\n",
			rb.itemCount, totalCount, rb.maxTokens)
	}
	return rb.buf.String()
}

func (rb *ResponseBuilder) TokenEstimate() int { return rb.tokenEstimate }

func (rb *ResponseBuilder) IsTruncated() bool { return rb.truncated }

func (rb *ResponseBuilder) ItemCount() int { return rb.itemCount }

// FormatDelivery renders one delivery record as a Markdown list item.
func FormatDelivery(rec models.DeliveryRecord, verbosity Verbosity) string {
	status := string(rec.DeliveryStatus)
	if status == "" {
		status = string(rec.PriorityStatus)
	}

	lines := fmt.Sprintf("L%d", rec.Line)
	if rec.StartLine != nil && *rec.StartLine != rec.Line {
		lines = fmt.Sprintf("L%d-L%d", *rec.StartLine, rec.Line)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "- **%s** `%s:%s`", status, rec.Path, lines)
	if verbosity == VerbositySummary {
		return b.String()
	}
	fmt.Fprintf(&b, " (%s)", rec.Severity)
	if rec.CommentID != "" {
		fmt.Fprintf(&b, " comment `%s`", rec.CommentID)
	}
	if verbosity == VerbosityFull {
		fmt.Fprintf(&b, " | suggestion `%s` | priority %s", rec.SuggestionID, rec.PriorityStatus)
		if rec.Error != "" {
			fmt.Fprintf(&b, " | error: %s", rec.Error)
		}
	}
	return b.String()
}

// FormatSnapshot renders a stored pull request state.
func FormatSnapshot(s models.PullRequestSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** pull request #%d in repository `%s`\n\n", s.Platform, s.Number, s.RepositoryID)
	fmt.Fprintf(&b, "- State: %s", s.State)
	if s.IsDraft {
		b.WriteString(" (draft)")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "- Head: `%s`\n", s.HeadSHA)
	fmt.Fprintf(&b, "- Known commits: %d\n", len(s.CommitSHAs))
	if !s.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, "- Updated: %s\n", s.UpdatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	return b.String()
}
