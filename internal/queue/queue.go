// Package queue moves accepted webhook deliveries from the HTTP ingress to
// the review workers over a Valkey stream.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"github.com/maraichr/reviewgate/pkg/models"
)

const (
	StreamName = "reviewgate:webhooks"
	GroupName  = "reviewgate-workers"

	blockMillis  = 5000
	pendingBatch = 10

	// DefaultRedrainInterval is how often a running consumer re-reads its
	// own pending entries, which holds deliveries whose handler failed.
	DefaultRedrainInterval = 30 * time.Second
)

var errMissingData = errors.New("entry missing data field")

// WebhookMessage is one verified delivery waiting for dispatch.
type WebhookMessage struct {
	ID         uuid.UUID       `json:"id"`
	Platform   models.Platform `json:"platform"`
	EventType  string          `json:"event_type"`
	DeliveryID string          `json:"delivery_id,omitempty"`
	Body       json.RawMessage `json:"body"`
	ReceivedAt time.Time       `json:"received_at"`
	Source     string          `json:"source"` // "webhook" or "replay"
}

// Producer enqueues webhook deliveries to the Valkey stream.
type Producer struct {
	client valkey.Client
	stream string
}

func NewProducer(client valkey.Client) *Producer {
	return &Producer{client: client, stream: StreamName}
}

func (p *Producer) Enqueue(ctx context.Context, msg WebhookMessage) (string, error) {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}

	resp := p.client.Do(ctx, p.client.B().Xadd().
		Key(p.stream).Id("*").
		FieldValue().FieldValue("data", string(data)).
		Build())
	if err := resp.Error(); err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	id, err := resp.ToString()
	if err != nil {
		return "", fmt.Errorf("parse xadd response: %w", err)
	}
	return id, nil
}

// Consumer reads webhook deliveries from the Valkey stream.
type Consumer struct {
	client     valkey.Client
	stream     string
	group      string
	consumerID string
	redrain    time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

func NewConsumer(client valkey.Client, consumerID string, logger *slog.Logger) *Consumer {
	return &Consumer{
		client:     client,
		stream:     StreamName,
		group:      GroupName,
		consumerID: consumerID,
		redrain:    DefaultRedrainInterval,
		now:        time.Now,
		logger:     logger,
	}
}

// SetRedrainInterval changes how often pending entries are retried. A
// non-positive interval keeps the default.
func (c *Consumer) SetRedrainInterval(d time.Duration) {
	if d > 0 {
		c.redrain = d
	}
}

// EnsureGroup creates the consumer group if it doesn't exist.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	resp := c.client.Do(ctx, c.client.B().XgroupCreate().
		Key(c.stream).Group(c.group).Id("0").Mkstream().Build())
	if err := resp.Error(); err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("xgroup create: %w", err)
	}
	return nil
}

// Consume blocks reading deliveries and hands each to handler. Entries are
// ACKed after the handler returns nil, or immediately when undecodable.
// Pending entries, from a previous crash or a failed handler, are drained
// on start and again every redrain interval.
func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, WebhookMessage) error) error {
	c.drainPending(ctx, handler)
	lastDrain := c.now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if c.redrainDue(lastDrain) {
			c.drainPending(ctx, handler)
			lastDrain = c.now()
		}

		resp := c.client.Do(ctx, c.client.B().Xreadgroup().
			Group(c.group, c.consumerID).
			Count(1).Block(blockMillis).
			Streams().Key(c.stream).Id(">").
			Build())

		if err := resp.Error(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// BLOCK timeouts come back as nil replies
			if !valkey.IsValkeyNil(err) {
				c.logger.Warn("xreadgroup failed", slog.String("error", err.Error()))
			}
			continue
		}

		results, err := resp.AsXRead()
		if err != nil {
			continue
		}

		for _, messages := range results {
			for _, msg := range messages {
				c.processMessage(ctx, msg, handler)
			}
		}
	}
}

func (c *Consumer) redrainDue(last time.Time) bool {
	return c.now().Sub(last) >= c.redrain
}

func (c *Consumer) drainPending(ctx context.Context, handler func(context.Context, WebhookMessage) error) {
	resp := c.client.Do(ctx, c.client.B().Xreadgroup().
		Group(c.group, c.consumerID).
		Count(pendingBatch).
		Streams().Key(c.stream).Id("0").
		Build())

	if err := resp.Error(); err != nil {
		c.logger.Warn("drain pending failed", slog.String("error", err.Error()))
		return
	}

	results, err := resp.AsXRead()
	if err != nil {
		return
	}

	for _, messages := range results {
		for _, msg := range messages {
			c.logger.Info("recovering pending delivery", slog.String("id", msg.ID))
			c.processMessage(ctx, msg, handler)
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg valkey.XRangeEntry, handler func(context.Context, WebhookMessage) error) {
	wm, err := decodeEntry(msg.FieldValues)
	if err != nil {
		c.logger.Error("drop undecodable delivery", slog.String("error", err.Error()), slog.String("id", msg.ID))
		c.ack(ctx, msg.ID)
		return
	}

	if err := handler(ctx, wm); err != nil {
		c.logger.Error("handle delivery", slog.String("error", err.Error()),
			slog.String("id", msg.ID),
			slog.String("platform", string(wm.Platform)),
			slog.String("event_type", wm.EventType))
		return
	}
	c.ack(ctx, msg.ID)
}

func decodeEntry(fields map[string]string) (WebhookMessage, error) {
	data, ok := fields["data"]
	if !ok {
		return WebhookMessage{}, errMissingData
	}
	var wm WebhookMessage
	if err := json.Unmarshal([]byte(data), &wm); err != nil {
		return WebhookMessage{}, fmt.Errorf("unmarshal message: %w", err)
	}
	p, err := models.ParsePlatform(string(wm.Platform))
	if err != nil {
		return WebhookMessage{}, err
	}
	wm.Platform = p
	return wm, nil
}

func (c *Consumer) ack(ctx context.Context, msgID string) {
	resp := c.client.Do(ctx, c.client.B().Xack().
		Key(c.stream).Group(c.group).Id(msgID).Build())
	if err := resp.Error(); err != nil {
		c.logger.Error("xack failed", slog.String("error", err.Error()), slog.String("id", msgID))
	}
}
