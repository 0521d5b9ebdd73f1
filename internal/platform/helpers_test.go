package platform

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/maraichr/reviewgate/pkg/models"
)

func hmacHex(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type stubAdapter struct {
	p models.Platform
}

func (s *stubAdapter) Platform() models.Platform { return s.p }
func (s *stubAdapter) EventType(http.Header, []byte) string { return "" }
func (s *stubAdapter) VerifyWebhook(http.Header, []byte) error { return nil }
func (s *stubAdapter) ParseWebhook(string, []byte) (models.WebhookEvent, error) {
	return models.WebhookEvent{}, nil
}
func (s *stubAdapter) CreateComment(context.Context, CommentRequest) (CommentRef, error) {
	return CommentRef{}, nil
}
func (s *stubAdapter) CreateGeneralComment(context.Context, models.Repository, models.PullRequest, string) (CommentRef, error) {
	return CommentRef{}, nil
}
func (s *stubAdapter) AddReaction(context.Context, models.Repository, models.PullRequest, Reaction) error {
	return nil
}
func (s *stubAdapter) GetCommits(context.Context, models.Repository, models.PullRequest) ([]models.Commit, error) {
	return nil, nil
}
func (s *stubAdapter) GetFiles(context.Context, models.Repository, models.PullRequest) ([]models.FileChange, error) {
	return nil, nil
}
