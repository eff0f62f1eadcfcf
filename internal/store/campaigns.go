package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-studio/internal/model"
)

const campaignSelect = `id, number, name, COALESCE(description, ''), lead_count, status, created_at, updated_at`

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	if err := row.Scan(&c.ID, &c.Number, &c.Name, &c.Description, &c.LeadCount, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) CreateCampaign(ctx context.Context, name, description string) (*model.Campaign, error) {
	c, err := scanCampaign(s.pool.QueryRow(ctx,
		`INSERT INTO campaigns (name, description) VALUES ($1, $2) RETURNING `+campaignSelect,
		name, description,
	))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: create campaign %q", name)
	}
	return c, nil
}

func (s *PostgresStore) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	c, err := scanCampaign(s.pool.QueryRow(ctx,
		`SELECT `+campaignSelect+` FROM campaigns WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "postgres: get campaign %s", id)
	}
	return c, nil
}

func (s *PostgresStore) ListCampaigns(ctx context.Context) ([]model.Campaign, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+campaignSelect+` FROM campaigns ORDER BY number`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list campaigns")
	}
	defer rows.Close()

	var out []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan campaign")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list campaigns iterate")
}

// RefreshLeadCount recomputes the cached lead_count of a campaign.
func (s *PostgresStore) RefreshLeadCount(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE campaigns SET lead_count = (SELECT COUNT(*) FROM leads WHERE campaign_id = $1), updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: refresh lead count %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "postgres: campaign %s", id)
	}
	return nil
}
