package models

type DeliveryStatus string

const (
	DeliverySent               DeliveryStatus = "sent"
	DeliveryFailed             DeliveryStatus = "failed"
	DeliveryReplaced           DeliveryStatus = "replaced"
	DeliveryFailedLineMismatch DeliveryStatus = "failed_lines_mismatch"
	DeliveryFailedTransient    DeliveryStatus = "failed_platform_unavailable"
)

// IsFailure reports whether the status records a suggestion that did not
// reach the pull request.
func (s DeliveryStatus) IsFailure() bool {
	return s != DeliverySent && s != DeliveryReplaced
}

type CodeReviewFeedbackData struct {
	CommentID     string `json:"comment_id"`
	ReviewID      string `json:"review_id,omitempty"`
	PullRequestID string `json:"pull_request_id"`
}

// CommentResult records one delivery attempt sequence for one suggestion.
type CommentResult struct {
	Path                   string                  `json:"path"`
	Body                   string                  `json:"body"`
	StartLine              *int                    `json:"start_line,omitempty"`
	Line                   int                     `json:"line"`
	DeliveryStatus         DeliveryStatus          `json:"delivery_status"`
	Suggestion             CodeSuggestion          `json:"suggestion"`
	CodeReviewFeedbackData *CodeReviewFeedbackData `json:"code_review_feedback_data,omitempty"`
	Error                  string                  `json:"error,omitempty"`
}
