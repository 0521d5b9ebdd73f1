package webhook

import (
	"context"
	"log/slog"

	"github.com/maraichr/reviewgate/internal/queue"
	"github.com/maraichr/reviewgate/pkg/models"
)

// Parser resolves the webhook parser for a platform.
type Parser interface {
	ParseWebhook(eventType string, body []byte) (models.WebhookEvent, error)
}

// ParserFunc returns the parser registered for p.
type ParserFunc func(p models.Platform) (Parser, bool)

// NewMessageHandler returns the queue consumer callback. Messages that can
// never succeed (unknown platform, malformed body) are logged and ACKed;
// dispatch errors are returned so the entry stays pending and is retried
// when the consumer next drains its pending entries.
func NewMessageHandler(parsers ParserFunc, d *Dispatcher, logger *slog.Logger) func(context.Context, queue.WebhookMessage) error {
	return func(ctx context.Context, msg queue.WebhookMessage) error {
		attrs := []any{
			slog.String("message_id", msg.ID.String()),
			slog.String("platform", string(msg.Platform)),
			slog.String("event_type", msg.EventType),
			slog.String("source", msg.Source),
		}
		parser, ok := parsers(msg.Platform)
		if !ok {
			logger.Warn("drop delivery for disabled platform", attrs...)
			return nil
		}
		ev, err := parser.ParseWebhook(msg.EventType, msg.Body)
		if err != nil {
			logger.Warn("drop unparseable delivery", append(attrs, slog.String("error", err.Error()))...)
			return nil
		}
		out, err := d.Dispatch(ctx, ev)
		if err != nil {
			return err
		}
		logger.Debug("delivery processed", append(attrs,
			slog.String("outcome", string(out.Status)),
			slog.String("reason", out.Reason))...)
		return nil
	}
}
