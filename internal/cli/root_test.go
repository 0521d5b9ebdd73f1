package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/maraichr/reviewgate/internal/config"
	"github.com/maraichr/reviewgate/pkg/models"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"migrate", "replay", "dedup-key", "version"} {
		if !names[want] {
			t.Errorf("root command missing subcommand %q", want)
		}
	}
}

func TestMigrateSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range migrateCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"up", "down", "version"} {
		if !names[want] {
			t.Errorf("migrate missing subcommand %q", want)
		}
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionOutput(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "reviewctl dev") {
		t.Errorf("got %q", out)
	}
}

const prPayload = `{
	"action": "synchronize",
	"pull_request": {
		"id": 1001, "number": 7, "state": "open",
		"user": {"id": 3, "login": "dev"},
		"head": {"sha": "abc123", "ref": "feature"},
		"base": {"ref": "main"}
	},
	"repository": {"id": 55, "name": "api", "full_name": "acme/api", "owner": {"login": "acme"}},
	"sender": {"id": 3, "login": "dev"}
}`

func writePayload(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pr.json")
	if err := os.WriteFile(path, []byte(prPayload), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDedupKey(t *testing.T) {
	loadConfig = func() (*config.Config, error) {
		return &config.Config{Review: config.ReviewConfig{CallTimeout: time.Second}}, nil
	}
	t.Cleanup(func() { loadConfig = config.Load })

	out, err := run(t, "dedup-key", "--platform", "github", "--event", "pull_request", writePayload(t))
	if err != nil {
		t.Fatalf("dedup-key: %v\n%s", err, out)
	}

	var got dedupKeyOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if !strings.HasPrefix(got.Key, "reviewgate:dedup:") || len(got.Key) != len("reviewgate:dedup:")+64 {
		t.Errorf("key = %q", got.Key)
	}
	if !got.Accepted {
		t.Error("synchronize should be accepted on github")
	}
	if got.Event.Action != models.ActionSynchronized || got.Event.PullRequest == nil || got.Event.PullRequest.Number != 7 {
		t.Errorf("event = %+v", got.Event)
	}
}

func TestReplayMessage(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("platform", "gitea", "")
	cmd.Flags().String("event", "pull_request", "")

	msg, err := replayMessage(cmd, writePayload(t))
	if err != nil {
		t.Fatal(err)
	}
	if msg.Platform != models.PlatformForgejo {
		t.Errorf("platform = %s", msg.Platform)
	}
	if msg.Source != "replay" || msg.EventType != "pull_request" {
		t.Errorf("message = %+v", msg)
	}
	if !json.Valid(msg.Body) {
		t.Error("body should be the raw payload")
	}
}

func TestReplayMessageStdin(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("platform", "github", "")
	cmd.Flags().String("event", "pull_request", "")
	cmd.SetIn(strings.NewReader(prPayload))

	msg, err := replayMessage(cmd, "-")
	if err != nil {
		t.Fatal(err)
	}
	if string(msg.Body) != prPayload {
		t.Error("stdin payload not read")
	}
}

func TestReplayMessageUnknownPlatform(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("platform", "svn", "")
	cmd.Flags().String("event", "x", "")
	if _, err := replayMessage(cmd, "-"); err == nil {
		t.Error("expected error for unknown platform")
	}
}
