// Package enabled builds the platform registry from configuration.
package enabled

import (
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/maraichr/reviewgate/internal/config"
	"github.com/maraichr/reviewgate/internal/platform"
	"github.com/maraichr/reviewgate/internal/platform/azure"
	"github.com/maraichr/reviewgate/internal/platform/bitbucket"
	"github.com/maraichr/reviewgate/internal/platform/forgejo"
	"github.com/maraichr/reviewgate/internal/platform/github"
	"github.com/maraichr/reviewgate/internal/platform/gitlab"
	"github.com/maraichr/reviewgate/pkg/models"
)

// Registry registers an adapter for every platform with a token. Each
// adapter gets its own outbound rate limiter.
func Registry(cfg *config.Config, logger *slog.Logger) (*platform.Registry, error) {
	reg := platform.NewRegistry()
	for _, p := range models.Platforms {
		if !PlatformConfig(cfg, p).Enabled() {
			continue
		}
		a, err := Adapter(cfg, p)
		if err != nil {
			return nil, err
		}
		reg.Register(a)
		logger.Info("platform enabled", slog.String("platform", string(p)))
	}
	if len(reg.All()) == 0 {
		logger.Warn("no platform tokens configured, every webhook will be rejected")
	}
	return reg, nil
}

// Adapter builds the adapter for p whether or not a token is configured.
// Parsing and signature checks work without one.
func Adapter(cfg *config.Config, p models.Platform) (platform.Adapter, error) {
	pc := PlatformConfig(cfg, p)
	timeout := cfg.Review.CallTimeout
	limiter := newLimiter(cfg)

	switch p {
	case models.PlatformGitHub:
		a, err := github.New(pc, timeout, limiter)
		if err != nil {
			return nil, fmt.Errorf("github adapter: %w", err)
		}
		return a, nil
	case models.PlatformGitLab:
		return gitlab.New(pc, timeout, limiter), nil
	case models.PlatformBitbucket:
		return bitbucket.New(pc, timeout, limiter), nil
	case models.PlatformAzure:
		return azure.New(pc, timeout, limiter), nil
	case models.PlatformForgejo:
		return forgejo.New(pc, timeout, limiter), nil
	}
	return nil, fmt.Errorf("unsupported platform %q", p)
}

func newLimiter(cfg *config.Config) *rate.Limiter {
	return platform.NewLimiter(cfg.Review.RateLimitPerSecond, cfg.Review.RateLimitBurst)
}

// BotUsername returns the configured bot account for p.
func BotUsername(cfg *config.Config, p models.Platform) string {
	return PlatformConfig(cfg, p).BotUsername
}

// PlatformConfig returns the configuration block for p.
func PlatformConfig(cfg *config.Config, p models.Platform) config.PlatformConfig {
	switch p {
	case models.PlatformGitHub:
		return cfg.GitHub
	case models.PlatformGitLab:
		return cfg.GitLab
	case models.PlatformBitbucket:
		return cfg.Bitbucket
	case models.PlatformAzure:
		return cfg.Azure
	case models.PlatformForgejo:
		return cfg.Forgejo
	}
	return config.PlatformConfig{}
}
