package gitlab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/maraichr/reviewgate/internal/config"
	"github.com/maraichr/reviewgate/internal/platform"
	"github.com/maraichr/reviewgate/pkg/models"
)

var (
	testRepo = models.Repository{ID: "42", Name: "api"}
	testPR   = models.PullRequest{Number: 3}
)

func newTestAdapter(t *testing.T, h http.Handler) *Adapter {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(config.PlatformConfig{BaseURL: srv.URL, Token: "tok", WebhookSecret: "s3cret"}, 5*time.Second, nil)
}

func TestCreateCommentUsesDiffRefs(t *testing.T) {
	var posted map[string]any
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/projects/42/merge_requests/3":
			w.Write([]byte(`{"diff_refs":{"base_sha":"b","head_sha":"h","start_sha":"s"}}`))
		case "/projects/42/merge_requests/3/discussions":
			require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"disc1","notes":[{"id":501}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	ref, err := a.CreateComment(context.Background(), platform.CommentRequest{
		Repository: testRepo, PullRequest: testPR, Path: "main.go", Body: "hi", Line: 8,
	})
	require.NoError(t, err)
	require.Equal(t, "501", ref.ID)
	require.Equal(t, "disc1", ref.ReviewID)

	pos := posted["position"].(map[string]any)
	require.Equal(t, "h", pos["head_sha"])
	require.Equal(t, "text", pos["position_type"])
	require.EqualValues(t, 8, pos["new_line"])
}

func TestCreateCommentLineMismatch(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`{"diff_refs":{}}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"400 Bad request - Note {:line_code=>[\"can't be blank\"]}"}`))
	}))

	_, err := a.CreateComment(context.Background(), platform.CommentRequest{
		Repository: testRepo, PullRequest: testPR, Path: "main.go", Line: 999,
	})
	require.Equal(t, platform.ClassLineMismatch, platform.Classify(err))
}

func TestGetFilesStatuses(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/projects/42/merge_requests/3/diffs", r.URL.Path)
		w.Write([]byte(`[
			{"old_path":"a.go","new_path":"a.go","new_file":true,"diff":"@@ -0,0 +1,2 @@\n+one\n+two\n"},
			{"old_path":"old.go","new_path":"new.go","renamed_file":true,"diff":"@@ -1 +1 @@\n-x\n+y\n"}
		]`))
	}))

	files, err := a.GetFiles(context.Background(), testRepo, testPR)
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Equal(t, models.FileAdded, files[0].Status)
	require.Equal(t, 2, files[0].Additions)
	require.Equal(t, models.FileRenamed, files[1].Status)
	require.Equal(t, "old.go", files[1].PreviousName)
	require.Equal(t, 1, files[1].Deletions)
}

func TestVerifyWebhookToken(t *testing.T) {
	a := New(config.PlatformConfig{WebhookSecret: "s3cret"}, time.Second, nil)

	h := http.Header{}
	require.ErrorIs(t, a.VerifyWebhook(h, nil), platform.ErrMissingSignature)

	h.Set("X-Gitlab-Token", "wrong")
	require.ErrorIs(t, a.VerifyWebhook(h, nil), platform.ErrInvalidSignature)

	h.Set("X-Gitlab-Token", "s3cret")
	require.NoError(t, a.VerifyWebhook(h, nil))
}

func TestParseMergeRequestUpdateWithPush(t *testing.T) {
	a := New(config.PlatformConfig{}, time.Second, nil)
	body := []byte(`{
		"object_kind": "merge_request",
		"user": {"id": 1, "username": "dev"},
		"project": {"id": 42, "name": "api", "path_with_namespace": "acme/api", "namespace": "acme"},
		"object_attributes": {
			"id": 900, "iid": 3, "title": "Feature", "state": "opened", "action": "update",
			"oldrev": "aaa", "source_branch": "feat", "target_branch": "main",
			"updated_at": "2024-03-01 10:00:00 UTC", "last_commit": {"id": "bbb"}
		}
	}`)

	ev, err := a.ParseWebhook("Merge Request Hook", body)
	require.NoError(t, err)
	require.Equal(t, models.ActionSynchronized, ev.Action)
	require.Equal(t, "42", ev.Repository.ID)
	require.Equal(t, "acme", ev.Repository.Owner)
	require.Equal(t, 3, ev.PullRequest.Number)
	require.Equal(t, "bbb", ev.PullRequest.HeadSHA)
	require.Equal(t, 2024, ev.PullRequest.UpdatedAt.Year())
}

func TestParseDraftToReady(t *testing.T) {
	a := New(config.PlatformConfig{}, time.Second, nil)
	body := []byte(`{
		"project": {"id": 1},
		"object_attributes": {"iid": 1, "state": "opened", "action": "update"},
		"changes": {"draft": {"previous": true, "current": false}}
	}`)

	ev, err := a.ParseWebhook("Merge Request Hook", body)
	require.NoError(t, err)
	require.Equal(t, models.ActionReadyForReview, ev.Action)
}

func TestParseNoteOnMergeRequest(t *testing.T) {
	a := New(config.PlatformConfig{}, time.Second, nil)
	body := []byte(`{
		"user": {"id": 2, "username": "rev"},
		"project": {"id": 1},
		"object_attributes": {"id": 77, "note": "@reviewgate review", "noteable_type": "MergeRequest"},
		"merge_request": {"id": 5, "iid": 9, "state": "opened"}
	}`)

	ev, err := a.ParseWebhook("Note Hook", body)
	require.NoError(t, err)
	require.Equal(t, models.ActionCommentCreated, ev.Action)
	require.Equal(t, 9, ev.PullRequest.Number)
	require.Equal(t, "@reviewgate review", ev.Comment.Body)
	require.Equal(t, "rev", ev.Comment.Author.Username)
}

func TestParseNoteOnIssueIgnored(t *testing.T) {
	a := New(config.PlatformConfig{}, time.Second, nil)
	body := []byte(`{"project":{"id":1},"object_attributes":{"note":"x","noteable_type":"Issue"}}`)

	ev, err := a.ParseWebhook("Note Hook", body)
	require.NoError(t, err)
	require.Equal(t, models.ActionUnknown, ev.Action)
}
