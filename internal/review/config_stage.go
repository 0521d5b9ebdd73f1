package review

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maraichr/reviewgate/pkg/models"
)

// ResolveConfigStage loads the tenant review policy and publishes the
// status-feedback flag for later stages.
type ResolveConfigStage struct {
	configs        ConfigLoader
	maxSuggestions int
	logger         *slog.Logger
}

func NewResolveConfigStage(configs ConfigLoader, maxSuggestions int, logger *slog.Logger) *ResolveConfigStage {
	return &ResolveConfigStage{configs: configs, maxSuggestions: maxSuggestions, logger: logger}
}

func (s *ResolveConfigStage) Name() string { return "resolve_config" }

func (s *ResolveConfigStage) Execute(ctx context.Context, rc RunContext) (RunContext, error) {
	cfg := models.DefaultCodeReviewConfig(s.maxSuggestions)
	// Structural problems are reported by validation.
	if rc.Tenant.IsZero() || rc.Repository.ID == "" || rc.PullRequest == nil {
		rc.Config = cfg
		return rc, nil
	}

	stored, ok, err := s.configs.LoadCodeReviewConfig(ctx, rc.Tenant, rc.Repository.ID)
	if err != nil {
		return rc, fmt.Errorf("load review config: %w", err)
	}
	if ok {
		cfg = stored
		if cfg.MaxSuggestions <= 0 {
			cfg.MaxSuggestions = s.maxSuggestions
		}
	}
	rc.Config = cfg
	rc = rc.WithMeta(MetaShowStatusFeedback, cfg.StatusFeedbackEnabled())

	forced := rc.Metadata.Bool(MetaForced)
	if !cfg.AutomatedReviewActive && !forced {
		return rc.Skip(ReasonAutomatedReviewDisabled, "automated review is disabled").
			WithMeta(MetaNotificationHandled, true), nil
	}
	if !cfg.AllowsBaseBranch(rc.PullRequest.BaseBranch) && !forced {
		s.logger.Info("base branch not reviewed",
			slog.String("run_id", rc.RunID.String()),
			slog.String("base_branch", rc.PullRequest.BaseBranch))
		return rc.Skip(ReasonBaseBranchNotAllowed, "base branch "+rc.PullRequest.BaseBranch+" is not reviewed").
			WithMeta(MetaNotificationHandled, true), nil
	}
	return rc, nil
}
