package review

import (
	"context"

	"github.com/maraichr/reviewgate/internal/license"
	"github.com/maraichr/reviewgate/internal/platform"
	"github.com/maraichr/reviewgate/pkg/models"
)

type ConfigLoader interface {
	LoadCodeReviewConfig(ctx context.Context, tenant models.OrganizationAndTeamData, repositoryID string) (models.CodeReviewConfig, bool, error)
}

type LicenseChecker interface {
	Validate(ctx context.Context, req license.Request) (license.Decision, error)
	AutoAssign(ctx context.Context, req license.Request) (bool, error)
}

type Persister interface {
	AggregateAndSave(ctx context.Context, out models.ReviewOutcome) error
}

// ClientFunc returns the platform client for a run.
type ClientFunc func(models.Platform) (platform.Client, bool)

// FromRegistry looks clients up in a platform registry.
func FromRegistry(r *platform.Registry) ClientFunc {
	return func(p models.Platform) (platform.Client, bool) {
		a, ok := r.Get(p)
		if !ok {
			return nil, false
		}
		return a, true
	}
}
