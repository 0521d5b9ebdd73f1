package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/maraichr/reviewgate/pkg/models"
)

const (
	DefaultDedupTTL = 60 * time.Second
	dedupKeyPrefix  = "reviewgate:dedup:"
)

// DedupStore records recently handled deliveries. Claim is an atomic
// check-and-set: it returns true only for the first caller within ttl.
// Release drops a claim so a failed delivery can be retried.
type DedupStore interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// DedupKey identifies an event for duplicate suppression: the platform, the
// pull request and a hash of the fields that distinguish one delivery of
// that pull request from another.
func DedupKey(ev models.WebhookEvent) string {
	prID := ""
	if ev.PullRequest != nil {
		prID = ev.PullRequest.ID
		if prID == "" {
			prID = strconv.Itoa(ev.PullRequest.Number)
		}
	}

	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s", ev.Platform, ev.Repository.ID, prID, eventHash(ev))
	return dedupKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func eventHash(ev models.WebhookEvent) string {
	parts := []string{ev.EventType, string(ev.Action)}
	if pr := ev.PullRequest; pr != nil {
		parts = append(parts, pr.HeadSHA, string(pr.State), strconv.FormatBool(pr.IsDraft))
	}
	if c := ev.Comment; c != nil {
		sum := sha256.Sum256([]byte(c.Body))
		parts = append(parts, c.ID, hex.EncodeToString(sum[:8]))
	}
	return strings.Join(parts, "|")
}

// ValkeyDedupStore keeps keys in Valkey with SET NX PX.
type ValkeyDedupStore struct {
	client valkey.Client
}

func NewValkeyDedupStore(client valkey.Client) *ValkeyDedupStore {
	return &ValkeyDedupStore{client: client}
}

func (s *ValkeyDedupStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	err := s.client.Do(ctx, s.client.B().Set().
		Key(key).Value("1").
		Nx().PxMilliseconds(ttl.Milliseconds()).
		Build()).Error()
	if valkey.IsValkeyNil(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("set dedup key: %w", err)
	}
	return true, nil
}

func (s *ValkeyDedupStore) Release(ctx context.Context, key string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("del dedup key: %w", err)
	}
	return nil
}

// MemoryDedupStore is an in-process DedupStore for single-instance setups
// and tests.
type MemoryDedupStore struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

func NewMemoryDedupStore() *MemoryDedupStore {
	return &MemoryDedupStore{keys: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryDedupStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, exp := range s.keys {
		if !now.Before(exp) {
			delete(s.keys, k)
		}
	}
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = now.Add(ttl)
	return true, nil
}

func (s *MemoryDedupStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}
