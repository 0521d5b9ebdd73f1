package suggest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maraichr/reviewgate/pkg/models"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/suggestions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("auth header = %q", got)
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if len(req.Files) != 1 || req.Files[0].Filename != "main.go" {
			t.Errorf("files = %+v", req.Files)
		}
		json.NewEncoder(w).Encode(Response{
			Suggestions: []models.CodeSuggestion{{ID: "s1", RelevantFile: "main.go", Severity: models.SeverityHigh}},
		})
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL+"/", time.Second)
	resp, err := c.Generate(context.Background(), Request{Files: []models.FileChange{{Filename: "main.go"}}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(resp.Suggestions) != 1 || resp.Suggestions[0].ID != "s1" {
		t.Errorf("suggestions = %+v", resp.Suggestions)
	}
}

func TestGenerateRetriesOverload(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"suggestions":[]}`))
	}))
	defer srv.Close()

	c := NewClient("", srv.URL, time.Second)
	c.retryDelay = time.Millisecond
	if _, err := c.Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestGenerateDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient("", srv.URL, time.Second)
	c.retryDelay = time.Millisecond
	if _, err := c.Generate(context.Background(), Request{}); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}
