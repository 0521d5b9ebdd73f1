package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/maraichr/reviewgate/internal/queue"
	vk "github.com/maraichr/reviewgate/internal/store/valkey"
	"github.com/maraichr/reviewgate/pkg/models"
)

var replayCmd = &cobra.Command{
	Use:   "replay <payload.json>",
	Short: "Enqueue a stored webhook payload for the workers",
	Long: `Enqueue a webhook payload as if it had just been received. The
signature is not checked. Use "-" to read the payload from stdin.

Examples:
  reviewctl replay --platform github --event pull_request pr.json
  reviewctl replay --platform gitlab --event "Merge Request Hook" - < mr.json`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringP("platform", "p", "", "source platform (github, gitlab, bitbucket, azure, forgejo)")
	replayCmd.Flags().StringP("event", "e", "", "platform event type, as sent in the event header")
	replayCmd.MarkFlagRequired("platform")
	replayCmd.MarkFlagRequired("event")
}

func runReplay(cmd *cobra.Command, args []string) error {
	msg, err := replayMessage(cmd, args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := vk.NewClient(cfg.Valkey)
	if err != nil {
		return err
	}
	defer client.Close()

	id, err := queue.NewProducer(client).Enqueue(cmd.Context(), msg)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s\n", msg.ID, id)
	return nil
}

func replayMessage(cmd *cobra.Command, path string) (queue.WebhookMessage, error) {
	name, _ := cmd.Flags().GetString("platform")
	p, err := models.ParsePlatform(name)
	if err != nil {
		return queue.WebhookMessage{}, err
	}
	event, _ := cmd.Flags().GetString("event")

	body, err := readPayload(cmd, path)
	if err != nil {
		return queue.WebhookMessage{}, err
	}
	return queue.WebhookMessage{
		ID:         uuid.New(),
		Platform:   p,
		EventType:  event,
		Body:       body,
		ReceivedAt: time.Now().UTC(),
		Source:     "replay",
	}, nil
}

func readPayload(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return body, nil
}
