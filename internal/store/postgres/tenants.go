package postgres

// tenants.go maps platform repositories onto organization/team tenants and
// loads their review configuration.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/maraichr/reviewgate/pkg/models"
)

// ResolveTenant finds the integration for a repository. An integration bound
// to the exact repository wins over one bound to the whole owner
// (organization, group, workspace).
func (q *Queries) ResolveTenant(ctx context.Context, platform models.Platform, repositoryID, owner string) (models.OrganizationAndTeamData, error) {
	var t models.OrganizationAndTeamData
	err := q.db.QueryRow(ctx,
		`SELECT organization_id, team_id
		 FROM integrations
		 WHERE platform = $1
		   AND active
		   AND (repository_id = $2 OR (repository_id = '' AND lower(owner) = lower($3)))
		 ORDER BY (repository_id = $2) DESC
		 LIMIT 1`,
		string(platform), repositoryID, owner).Scan(&t.OrganizationID, &t.TeamID)
	return t, err
}

// UpsertIntegrationParams holds the fields for binding a repository or
// owner to a tenant.
type UpsertIntegrationParams struct {
	Platform       models.Platform
	Owner          string
	RepositoryID   string
	OrganizationID uuid.UUID
	TeamID         uuid.UUID
}

func (q *Queries) UpsertIntegration(ctx context.Context, arg UpsertIntegrationParams) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO integrations (platform, owner, repository_id, organization_id, team_id, active)
		 VALUES ($1, $2, $3, $4, $5, true)
		 ON CONFLICT (platform, owner, repository_id)
		 DO UPDATE SET organization_id = EXCLUDED.organization_id,
		               team_id = EXCLUDED.team_id,
		               active = true`,
		string(arg.Platform), arg.Owner, arg.RepositoryID, arg.OrganizationID, arg.TeamID)
	return err
}

// GetCodeReviewConfig returns the repository-level config when present and
// the team default otherwise.
func (q *Queries) GetCodeReviewConfig(ctx context.Context, tenant models.OrganizationAndTeamData, repositoryID string) (models.CodeReviewConfig, error) {
	var raw []byte
	err := q.db.QueryRow(ctx,
		`SELECT config
		 FROM code_review_configs
		 WHERE organization_id = $1 AND team_id = $2
		   AND (repository_id = $3 OR repository_id = '')
		 ORDER BY (repository_id = $3) DESC
		 LIMIT 1`,
		tenant.OrganizationID, tenant.TeamID, repositoryID).Scan(&raw)
	if err != nil {
		return models.CodeReviewConfig{}, err
	}

	var cfg models.CodeReviewConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return models.CodeReviewConfig{}, fmt.Errorf("decode code review config: %w", err)
	}
	return cfg, nil
}

func (q *Queries) UpsertCodeReviewConfig(ctx context.Context, tenant models.OrganizationAndTeamData, repositoryID string, cfg models.CodeReviewConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode code review config: %w", err)
	}
	_, err = q.db.Exec(ctx,
		`INSERT INTO code_review_configs (organization_id, team_id, repository_id, config)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (organization_id, team_id, repository_id)
		 DO UPDATE SET config = EXCLUDED.config, updated_at = now()`,
		tenant.OrganizationID, tenant.TeamID, repositoryID, raw)
	return err
}
