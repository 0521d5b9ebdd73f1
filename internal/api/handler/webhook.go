package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maraichr/reviewgate/internal/platform"
	"github.com/maraichr/reviewgate/internal/queue"
	"github.com/maraichr/reviewgate/pkg/apierr"
	"github.com/maraichr/reviewgate/pkg/models"
)

// Enqueuer hands accepted deliveries to the workers.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg queue.WebhookMessage) (string, error)
}

// Acceptor pre-filters events before they are queued.
type Acceptor interface {
	Accepts(ev models.WebhookEvent) bool
}

type WebhookHandler struct {
	logger     *slog.Logger
	registry   *platform.Registry
	acceptor   Acceptor
	producer   Enqueuer
	maxPayload int64
}

func NewWebhookHandler(logger *slog.Logger, registry *platform.Registry, acceptor Acceptor, producer Enqueuer, maxPayload int64) *WebhookHandler {
	return &WebhookHandler{
		logger:     logger,
		registry:   registry,
		acceptor:   acceptor,
		producer:   producer,
		maxPayload: maxPayload,
	}
}

// Receive handles POST /webhooks/{platform}. Accepted deliveries are queued
// and answered immediately; filtered ones are answered with "ignored".
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "platform")
	p, err := models.ParsePlatform(name)
	if err != nil {
		writeAPIError(w, h.logger, apierr.UnsupportedPlatform(name))
		return
	}
	adapter, ok := h.registry.Get(p)
	if !ok {
		writeAPIError(w, h.logger, apierr.UnsupportedPlatform(name))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxPayload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeAPIError(w, h.logger, apierr.PayloadTooLarge())
			return
		}
		writeAPIError(w, h.logger, apierr.InvalidRequestBody())
		return
	}

	eventType := adapter.EventType(r.Header, body)
	if eventType == "" {
		writeAPIError(w, h.logger, apierr.MissingEventType("event type"))
		return
	}

	if err := adapter.VerifyWebhook(r.Header, body); err != nil {
		switch {
		case errors.Is(err, platform.ErrMissingSignature):
			writeAPIError(w, h.logger, apierr.MissingSignature("signature"))
		default:
			h.logger.Warn("webhook signature rejected",
				slog.String("platform", string(p)),
				slog.String("error", err.Error()))
			writeAPIError(w, h.logger, apierr.InvalidSignature())
		}
		return
	}

	ev, err := adapter.ParseWebhook(eventType, body)
	if err != nil {
		writeAPIError(w, h.logger, apierr.InvalidRequestBody().WithDetail("reason", err.Error()))
		return
	}
	if !h.acceptor.Accepts(ev) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	id, err := h.producer.Enqueue(r.Context(), queue.WebhookMessage{
		Platform:   p,
		EventType:  eventType,
		DeliveryID: deliveryID(r.Header),
		Body:       body,
		Source:     "webhook",
	})
	if err != nil {
		writeAPIError(w, h.logger, apierr.EnqueueFailed(err))
		return
	}

	h.logger.Info("webhook accepted",
		slog.String("platform", string(p)),
		slog.String("event_type", eventType),
		slog.String("action", string(ev.Action)),
		slog.String("repository", ev.Repository.FullName),
		slog.String("stream_id", id))
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted", "id": id})
}

var deliveryHeaders = []string{"X-GitHub-Delivery", "X-Gitlab-Event-UUID", "X-Request-UUID", "X-Forgejo-Delivery", "X-Gitea-Delivery"}

func deliveryID(h http.Header) string {
	for _, k := range deliveryHeaders {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return ""
}
