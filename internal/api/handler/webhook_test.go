package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/maraichr/reviewgate/internal/platform"
	"github.com/maraichr/reviewgate/internal/queue"
	"github.com/maraichr/reviewgate/pkg/apierr"
	"github.com/maraichr/reviewgate/pkg/models"
)

type fakeAdapter struct {
	platform.Client
	verifyErr error
	parseErr  error
	action    models.Action
}

func (a *fakeAdapter) Platform() models.Platform { return models.PlatformGitHub }

func (a *fakeAdapter) EventType(h http.Header, _ []byte) string { return h.Get("X-GitHub-Event") }

func (a *fakeAdapter) VerifyWebhook(http.Header, []byte) error { return a.verifyErr }

func (a *fakeAdapter) ParseWebhook(eventType string, _ []byte) (models.WebhookEvent, error) {
	if a.parseErr != nil {
		return models.WebhookEvent{}, a.parseErr
	}
	return models.WebhookEvent{
		Platform:    models.PlatformGitHub,
		EventType:   eventType,
		Action:      a.action,
		PullRequest: &models.PullRequest{Number: 1},
	}, nil
}

type acceptOpened struct{}

func (acceptOpened) Accepts(ev models.WebhookEvent) bool { return ev.Action == models.ActionOpened }

type fakeProducer struct {
	msgs []queue.WebhookMessage
	err  error
}

func (p *fakeProducer) Enqueue(_ context.Context, msg queue.WebhookMessage) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.msgs = append(p.msgs, msg)
	return "1-0", nil
}

func serveWebhook(t *testing.T, adapter *fakeAdapter, producer *fakeProducer, platformName string, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	reg := platform.NewRegistry()
	if adapter != nil {
		reg.Register(adapter)
	}
	h := NewWebhookHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), reg, acceptOpened{}, producer, 1024)

	r := chi.NewRouter()
	r.Post("/webhooks/{platform}", h.Receive)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+platformName, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apierr.Code {
	t.Helper()
	var resp apierr.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp.Error.Code
}

var ghHeader = http.Header{"X-Github-Event": []string{"pull_request"}, "X-Github-Delivery": []string{"d-1"}}

func TestWebhookHandler_Accepted(t *testing.T) {
	producer := &fakeProducer{}
	w := serveWebhook(t, &fakeAdapter{action: models.ActionOpened}, producer, "github", `{"action":"opened"}`, ghHeader)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "accepted" {
		t.Errorf("status = %q", body["status"])
	}
	if len(producer.msgs) != 1 {
		t.Fatalf("enqueued %d messages", len(producer.msgs))
	}
	msg := producer.msgs[0]
	if msg.EventType != "pull_request" || msg.DeliveryID != "d-1" || !bytes.Equal(msg.Body, []byte(`{"action":"opened"}`)) {
		t.Errorf("message = %+v", msg)
	}
}

func TestWebhookHandler_Ignored(t *testing.T) {
	producer := &fakeProducer{}
	w := serveWebhook(t, &fakeAdapter{action: models.ActionCommentDeleted}, producer, "github", `{}`, ghHeader)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ignored") {
		t.Errorf("body = %s", w.Body.String())
	}
	if len(producer.msgs) != 0 {
		t.Error("ignored events must not be queued")
	}
}

func TestWebhookHandler_Errors(t *testing.T) {
	tests := []struct {
		name     string
		adapter  *fakeAdapter
		platform string
		body     string
		header   http.Header
		producer *fakeProducer
		status   int
		code     apierr.Code
	}{
		{"unknown platform", &fakeAdapter{}, "svn", `{}`, ghHeader, &fakeProducer{}, http.StatusNotFound, apierr.CodeUnsupportedPlatform},
		{"unregistered platform", &fakeAdapter{}, "gitlab", `{}`, ghHeader, &fakeProducer{}, http.StatusNotFound, apierr.CodeUnsupportedPlatform},
		{"missing event", &fakeAdapter{}, "github", `{}`, http.Header{}, &fakeProducer{}, http.StatusBadRequest, apierr.CodeMissingEventType},
		{"bad signature", &fakeAdapter{verifyErr: platform.ErrInvalidSignature}, "github", `{}`, ghHeader, &fakeProducer{}, http.StatusUnauthorized, apierr.CodeInvalidSignature},
		{"missing signature", &fakeAdapter{verifyErr: platform.ErrMissingSignature}, "github", `{}`, ghHeader, &fakeProducer{}, http.StatusUnauthorized, apierr.CodeMissingSignature},
		{"invalid payload", &fakeAdapter{parseErr: platform.ErrInvalidPayload}, "github", `nope`, ghHeader, &fakeProducer{}, http.StatusBadRequest, apierr.CodeInvalidRequestBody},
		{"too large", &fakeAdapter{}, "github", strings.Repeat("x", 2048), ghHeader, &fakeProducer{}, http.StatusRequestEntityTooLarge, apierr.CodePayloadTooLarge},
		{"queue down", &fakeAdapter{action: models.ActionOpened}, "github", `{}`, ghHeader, &fakeProducer{err: errors.New("valkey down")}, http.StatusServiceUnavailable, apierr.CodeEnqueueFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serveWebhook(t, tt.adapter, tt.producer, tt.platform, tt.body, tt.header)
			if w.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, w.Code)
			}
			if code := decodeError(t, w); code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, code)
			}
		})
	}
}
