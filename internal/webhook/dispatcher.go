package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maraichr/reviewgate/pkg/models"
)

// Dispatcher selects the handler for an event, drops duplicates and runs
// the handler.
type Dispatcher struct {
	handlers map[models.Platform]Handler
	dedup    DedupStore
	ttl      time.Duration
	logger   *slog.Logger
}

func NewDispatcher(dedup DedupStore, ttl time.Duration, logger *slog.Logger, handlers ...Handler) *Dispatcher {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	d := &Dispatcher{
		handlers: make(map[models.Platform]Handler, len(handlers)),
		dedup:    dedup,
		ttl:      ttl,
		logger:   logger,
	}
	for _, h := range handlers {
		d.handlers[h.Platform()] = h
	}
	return d
}

// Accepts is the cheap pre-filter used before a delivery is queued.
func (d *Dispatcher) Accepts(ev models.WebhookEvent) bool {
	h, ok := d.handlers[ev.Platform]
	return ok && h.CanHandle(ev)
}

func (d *Dispatcher) Dispatch(ctx context.Context, ev models.WebhookEvent) (Outcome, error) {
	h, ok := d.handlers[ev.Platform]
	if !ok {
		return Outcome{}, fmt.Errorf("%s: %w", ev.Platform, ErrUnsupportedPlatform)
	}
	if !h.CanHandle(ev) {
		return Outcome{Status: OutcomeIgnored, Reason: "action " + string(ev.Action) + " not handled"}, nil
	}

	key := DedupKey(ev)
	claimed, err := d.dedup.Claim(ctx, key, d.ttl)
	if err != nil {
		// Store errors fail open.
		d.logger.Warn("dedup store unavailable",
			slog.String("platform", string(ev.Platform)),
			slog.String("error", err.Error()))
		claimed = true
	}
	if !claimed {
		d.logger.Info("duplicate webhook suppressed",
			slog.String("platform", string(ev.Platform)),
			slog.String("repository", ev.Repository.FullName),
			slog.String("action", string(ev.Action)))
		return Outcome{Status: OutcomeDuplicate}, nil
	}

	out, err := h.Execute(ctx, ev)
	if errors.Is(err, ErrIgnored) {
		return Outcome{Status: OutcomeIgnored, Reason: err.Error()}, nil
	}
	if err != nil {
		if rerr := d.dedup.Release(ctx, key); rerr != nil {
			d.logger.Warn("release dedup key",
				slog.String("platform", string(ev.Platform)),
				slog.String("error", rerr.Error()))
		}
		return Outcome{}, fmt.Errorf("handle %s event: %w", ev.Platform, err)
	}

	d.logger.Info("webhook handled",
		slog.String("platform", string(ev.Platform)),
		slog.String("repository", ev.Repository.FullName),
		slog.String("action", string(ev.Action)),
		slog.String("outcome", string(out.Status)),
		slog.String("reason", out.Reason))
	return out, nil
}

// Acceptor applies the dispatch rules without any of the handler
// dependencies. The ingress uses it to drop unhandled events before they
// are queued.
type Acceptor struct {
	handlers map[models.Platform]*PlatformHandler
}

func NewAcceptor(platforms ...models.Platform) *Acceptor {
	a := &Acceptor{handlers: make(map[models.Platform]*PlatformHandler, len(platforms))}
	for _, p := range platforms {
		a.handlers[p] = NewPlatformHandler(p, HandlerDeps{})
	}
	return a
}

func (a *Acceptor) Accepts(ev models.WebhookEvent) bool {
	h, ok := a.handlers[ev.Platform]
	return ok && h.CanHandle(ev)
}
