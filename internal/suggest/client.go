// Package suggest calls the external suggestion generator. The generator is
// opaque: it receives the changed files and returns candidate suggestions.
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/maraichr/reviewgate/pkg/models"
)

const (
	suggestionsPath = "/v1/suggestions"
	maxRetries      = 3
	retryDelay      = 2 * time.Second
	maxResponseSize = 16 << 20
)

// Generator produces candidate suggestions for a pull request.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

type Request struct {
	Tenant      models.OrganizationAndTeamData `json:"tenant"`
	Platform    models.Platform                `json:"platform"`
	Repository  models.Repository              `json:"repository"`
	PullRequest models.PullRequest             `json:"pull_request"`
	Files       []models.FileChange            `json:"files"`
	Config      models.CodeReviewConfig        `json:"config"`
}

// Response carries kept candidates and those the generator already rejected.
type Response struct {
	Suggestions []models.CodeSuggestion `json:"suggestions"`
	Discarded   []models.CodeSuggestion `json:"discarded,omitempty"`
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("suggestion API error (status %d): %s", e.status, e.body)
}

func retryable(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	return se.status == http.StatusTooManyRequests ||
		se.status == http.StatusServiceUnavailable ||
		se.status == http.StatusBadGateway
}

// Client is an HTTP Generator.
type Client struct {
	apiKey     string
	baseURL    string
	http       *http.Client
	retryDelay time.Duration
}

func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: timeout},
		retryDelay: retryDelay,
	}
}

// Generate posts the request, retrying overload responses with a linear
// backoff.
func (c *Client) Generate(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		resp, err := c.doRequest(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable(err) {
			return Response{}, err
		}
	}
	return Response{}, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

func (c *Client) doRequest(ctx context.Context, body []byte) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+suggestionsPath, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Response{}, &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(respBody))}
	}

	var out Response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return Response{}, fmt.Errorf("unmarshal response: %w", err)
	}
	return out, nil
}
