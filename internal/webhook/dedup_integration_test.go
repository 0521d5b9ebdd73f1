//go:build integration

package webhook

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

func TestValkeyDedupStore(t *testing.T) {
	addr := os.Getenv("TEST_VALKEY_ADDR")
	if addr == "" {
		t.Skip("TEST_VALKEY_ADDR not set")
	}
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}, DisableCache: true})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	s := NewValkeyDedupStore(client)
	key := dedupKeyPrefix + "test:" + uuid.NewString()
	ctx := context.Background()

	first, err := s.Claim(ctx, key, 200*time.Millisecond)
	if err != nil || !first {
		t.Fatalf("first claim = %v, %v", first, err)
	}
	if second, _ := s.Claim(ctx, key, 200*time.Millisecond); second {
		t.Fatal("second claim within ttl succeeded")
	}
	time.Sleep(300 * time.Millisecond)
	if third, _ := s.Claim(ctx, key, 200*time.Millisecond); !third {
		t.Fatal("claim after ttl failed")
	}
	if err := s.Release(ctx, key); err != nil {
		t.Fatalf("release: %v", err)
	}
	if fourth, _ := s.Claim(ctx, key, 200*time.Millisecond); !fourth {
		t.Fatal("claim after release failed")
	}
}
