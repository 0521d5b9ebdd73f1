package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maraichr/reviewgate/internal/platform"
)

// StatusMarkerPrefix starts every hidden marker the bot embeds in its own
// status comments.
const StatusMarkerPrefix = "<!-- reviewgate:status:"

// InProgressMarker tags the comment posted when a review starts.
const InProgressMarker = StatusMarkerPrefix + "in-progress -->"

const skippedMarker = StatusMarkerPrefix + "skipped -->"

// HasStatusMarker reports whether body was written by the bot as a status
// notice.
func HasStatusMarker(body string) bool {
	return strings.Contains(body, StatusMarkerPrefix)
}

var skipNotices = map[Reason]string{
	ReasonNoLicense:         "Automated review skipped: the pull request author has no license seat.",
	ReasonBYOKRequired:      "Automated review skipped: this plan requires your own API key to be configured.",
	ReasonPlanLimitExceeded: "Automated review skipped: the monthly review limit for this plan has been reached.",
}

// notifier sends cosmetic status feedback. Errors are logged only.
type notifier struct {
	logger *slog.Logger
}

func (n notifier) react(ctx context.Context, client platform.Client, rc RunContext, reaction platform.Reaction) {
	if client == nil || rc.PullRequest == nil {
		return
	}
	if err := client.AddReaction(ctx, rc.Repository, *rc.PullRequest, reaction); err != nil {
		n.logger.Warn("add reaction failed",
			slog.String("run_id", rc.RunID.String()),
			slog.String("reaction", string(reaction)),
			slog.String("error", err.Error()))
	}
}

func (n notifier) comment(ctx context.Context, client platform.Client, rc RunContext, body string) {
	if client == nil || rc.PullRequest == nil {
		return
	}
	if _, err := client.CreateGeneralComment(ctx, rc.Repository, *rc.PullRequest, body); err != nil {
		n.logger.Warn("status comment failed",
			slog.String("run_id", rc.RunID.String()),
			slog.String("error", err.Error()))
	}
}

// skip sets the skipped status and, when feedback is enabled, tells the
// author why. Either way downstream notification is marked handled.
func (n notifier) skip(ctx context.Context, client platform.Client, rc RunContext, reason Reason, message string) RunContext {
	rc = rc.Skip(reason, message).WithMeta(MetaNotificationHandled, true)
	if !rc.ShowStatusFeedback() {
		return rc
	}
	notice, ok := skipNotices[reason]
	if !ok {
		return rc
	}
	n.react(ctx, client, rc, platform.ReactionSkipped)
	n.comment(ctx, client, rc, fmt.Sprintf("%s\n\n%s\n", notice, skippedMarker))
	return rc
}
