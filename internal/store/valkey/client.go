package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/maraichr/reviewgate/internal/config"
)

const pingTimeout = 5 * time.Second

func NewClient(cfg config.ValkeyConfig) (valkey.Client, error) {
	opts := valkey.ClientOption{
		InitAddress:  []string{cfg.Addr},
		ClientName:   "reviewgate",
		DisableCache: true,
		SelectDB:     cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := Ping(ctx, client); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

// Ping is used by readiness checks.
func Ping(ctx context.Context, client valkey.Client) error {
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("ping valkey: %w", err)
	}
	return nil
}
