package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/maraichr/reviewgate/pkg/models"
)

const maxErrorBody = 4 << 10

// NewLimiter builds the outbound limiter shared by every call one adapter
// makes. A non-positive rate disables limiting.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// TokenHTTPClient returns an HTTP client that sends token as a Bearer
// credential on every request.
func TokenHTTPClient(token string, timeout time.Duration) *http.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	hc := oauth2.NewClient(context.Background(), ts)
	hc.Timeout = timeout
	return hc
}

// BasicAuthHTTPClient returns an HTTP client using basic authentication.
// Azure DevOps personal access tokens and Bitbucket app passwords use it.
func BasicAuthHTTPClient(username, password string, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &basicAuthTransport{username: username, password: password, base: http.DefaultTransport},
	}
}

type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.SetBasicAuth(t.username, t.password)
	return t.base.RoundTrip(clone)
}

// RESTClient is the JSON-over-HTTP client used by adapters without an SDK.
type RESTClient struct {
	platform models.Platform
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
}

func NewRESTClient(p models.Platform, baseURL string, hc *http.Client, limiter *rate.Limiter) *RESTClient {
	if limiter == nil {
		limiter = NewLimiter(0, 0)
	}
	return &RESTClient{
		platform: p,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     hc,
		limiter:  limiter,
	}
}

// Do sends in as JSON (when non-nil) and decodes the response into out (when
// non-nil). Non-2xx responses become *Error.
func (c *RESTClient) Do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	respBody, err := c.send(ctx, op, method, path, body, "application/json")
	if err != nil {
		return err
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Platform: c.platform, Op: op, Message: "decode response", Err: err}
	}
	return nil
}

// DoRaw performs a GET and returns the raw body, e.g. a unified diff.
func (c *RESTClient) DoRaw(ctx context.Context, op, path string) ([]byte, error) {
	return c.send(ctx, op, http.MethodGet, path, nil, "text/plain")
}

func (c *RESTClient) send(ctx context.Context, op, method, path string, body io.Reader, accept string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &Error{Platform: c.platform, Op: op, Err: err}
	}

	url := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		url = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Accept", accept)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Platform: c.platform, Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Platform: c.platform, Op: op, StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Platform:   c.platform,
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody),
		}
	}
	return respBody, nil
}

// errorMessage pulls a human-readable message out of a JSON error body,
// falling back to the truncated raw body.
func errorMessage(body []byte) string {
	var parsed struct {
		Message any    `json:"message"`
		Error   any    `json:"error"`
		Type    string `json:"typeKey"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		for _, v := range []any{parsed.Message, parsed.Error} {
			switch m := v.(type) {
			case string:
				if m != "" {
					return m
				}
			case map[string]any:
				if s, ok := m["message"].(string); ok && s != "" {
					return s
				}
			case nil:
			default:
				if data, err := json.Marshal(m); err == nil {
					return string(data)
				}
			}
		}
		if parsed.Type != "" {
			return parsed.Type
		}
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return strings.TrimSpace(string(body))
}
