package delivery

import (
	"fmt"
	"strings"

	"github.com/maraichr/reviewgate/pkg/models"
)

// SuggestionMarker tags every posted comment with the suggestion id so
// replies and reactions can be traced back.
const SuggestionMarker = "<!-- reviewgate:suggestion:%s -->"

// FormatBody renders a suggestion as a markdown comment.
func FormatBody(s models.CodeSuggestion) string {
	var b strings.Builder

	header := s.Severity.Normalize()
	if s.Label != "" {
		fmt.Fprintf(&b, "**%s** `%s`\n\n", strings.ReplaceAll(s.Label, "_", " "), header)
	} else {
		fmt.Fprintf(&b, "`%s`\n\n", header)
	}

	b.WriteString(strings.TrimSpace(s.SuggestionContent))
	b.WriteString("\n")

	if code := strings.TrimRight(s.ImprovedCode, "\n"); code != "" {
		fmt.Fprintf(&b, "\n```%s\n%s\n```\n", s.Language, code)
	}

	fmt.Fprintf(&b, "\n"+SuggestionMarker+"\n", s.ID)
	return b.String()
}
