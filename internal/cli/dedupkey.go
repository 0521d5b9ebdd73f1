package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maraichr/reviewgate/internal/platform/enabled"
	"github.com/maraichr/reviewgate/internal/webhook"
	"github.com/maraichr/reviewgate/pkg/models"
)

var dedupKeyCmd = &cobra.Command{
	Use:   "dedup-key <payload.json>",
	Short: "Normalize a payload and print its dedup key",
	Long: `Parse a webhook payload with the platform adapter and print the
normalized event together with the key the dispatcher deduplicates on.
Two deliveries with the same key inside the dedup window run once.`,
	Args: cobra.ExactArgs(1),
	RunE: runDedupKey,
}

func init() {
	dedupKeyCmd.Flags().StringP("platform", "p", "", "source platform")
	dedupKeyCmd.Flags().StringP("event", "e", "", "platform event type")
	dedupKeyCmd.MarkFlagRequired("platform")
	dedupKeyCmd.MarkFlagRequired("event")
}

type dedupKeyOutput struct {
	Key      string              `json:"key"`
	Accepted bool                `json:"accepted"`
	Event    models.WebhookEvent `json:"event"`
}

func runDedupKey(cmd *cobra.Command, args []string) error {
	msg, err := replayMessage(cmd, args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	adapter, err := enabled.Adapter(cfg, msg.Platform)
	if err != nil {
		return err
	}
	ev, err := adapter.ParseWebhook(msg.EventType, msg.Body)
	if err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(dedupKeyOutput{
		Key:      webhook.DedupKey(ev),
		Accepted: webhook.NewAcceptor(msg.Platform).Accepts(ev),
		Event:    ev,
	})
}
