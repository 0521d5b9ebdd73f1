package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/maraichr/reviewgate/pkg/models"
)

func TestDecodeEntry(t *testing.T) {
	wm, err := decodeEntry(map[string]string{
		"data": `{"platform":"gitea","event_type":"pull_request","body":{"action":"opened"}}`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if wm.Platform != models.PlatformForgejo {
		t.Errorf("expected alias to normalize to forgejo, got %q", wm.Platform)
	}
	if string(wm.Body) != `{"action":"opened"}` {
		t.Errorf("unexpected body %s", wm.Body)
	}
}

func TestDecodeEntryErrors(t *testing.T) {
	if _, err := decodeEntry(map[string]string{}); !errors.Is(err, errMissingData) {
		t.Errorf("expected errMissingData, got %v", err)
	}
	if _, err := decodeEntry(map[string]string{"data": "{"}); err == nil {
		t.Error("expected unmarshal error")
	}
	if _, err := decodeEntry(map[string]string{"data": `{"platform":"svn"}`}); err == nil {
		t.Error("expected unknown platform error")
	}
}

func TestRedrainDue(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewConsumer(nil, "c1", nil)
	c.now = func() time.Time { return now }
	c.SetRedrainInterval(0)
	if c.redrain != DefaultRedrainInterval {
		t.Fatalf("non-positive interval changed redrain to %v", c.redrain)
	}

	last := now
	now = now.Add(DefaultRedrainInterval - time.Second)
	if c.redrainDue(last) {
		t.Error("redrain due before the interval elapsed")
	}
	now = now.Add(time.Second)
	if !c.redrainDue(last) {
		t.Error("redrain not due once the interval elapsed")
	}
}
