package webhook

import (
	"strings"
)

// Command is an instruction addressed to the bot in a comment.
type Command string

const (
	CommandReview Command = "review"
)

var commandAliases = map[string]Command{
	"review":       CommandReview,
	"start-review": CommandReview,
	"re-review":    CommandReview,
}

// ParseCommand finds "<mention> <command>" in body. Matching is
// case-insensitive and the first recognized command wins.
func ParseCommand(body, mention string) (Command, bool) {
	mention = strings.ToLower(strings.TrimSpace(mention))
	if mention == "" {
		return "", false
	}
	fields := strings.Fields(strings.ToLower(body))
	for i, f := range fields {
		if strings.TrimRight(f, ",:") != mention || i+1 >= len(fields) {
			continue
		}
		if cmd, ok := commandAliases[strings.Trim(fields[i+1], ".!,")]; ok {
			return cmd, true
		}
	}
	return "", false
}
