package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-studio/internal/model"
)

const (
	personColumns = `lead_number AS "LeadNumber", target_id AS "TargetID",
	first_name AS "firstName", last_name AS "lastName", person_title AS "personTitle",
	person_title_description AS "personTitleDescription", person_summary AS "personSummary",
	person_location AS "personLocation", duration_in_role AS "durationInRole",
	duration_in_company AS "durationInCompany", person_timestamp AS "personTimestamp",
	person_linkedin_url AS "personLinkedinUrl", person_sales_url AS "personSalesUrl"`

	outreachColumns = `lead_number AS "LeadNumber", target_id AS "TargetID",
	first_name_cleaned, last_name_cleaned, email,
	instantly_body1 AS body1, instantly_body2 AS body2,
	instantly_body3 AS body3, instantly_body4 AS body4`
)

// stepView is one processor input shape: the aliased select list and the
// readiness predicate.
type stepView struct {
	columns string
	ready   string
}

// stepViews are the processor input shapes, keyed by view name. Column
// aliases are the names downstream processors already consume.
var stepViews = map[string]stepView{
	"verification": {
		columns: personColumns + `,
	company_name_from_p AS "companyName_fromP", company_linkedin_url_from_p AS "companyLinkedinUrl_fromP",
	company_sales_url_from_p AS "companySalesUrl_fromP"`,
		ready: `step_status->>'export' IN ('true', '1') AND step_status->>'verification' = 'pending'`,
	},
	"compScrap": {
		columns: `lead_number AS "LeadNumber", target_id AS "TargetID",
	first_name AS "firstName", last_name AS "lastName", person_title AS "personTitle",
	email, email_validation, validation_success, first_name_cleaned, last_name_cleaned`,
		ready: `step_status->>'verification' = 'verified' AND step_status->>'compScrap' = 'pending'`,
	},
	"box1": {
		columns: personColumns + `,
	email, email_validation,
	company_name AS "companyName", company_description AS "companyDescription",
	company_tag_line AS "companyTagLine", industry, employee_count AS "employeeCount",
	company_location AS "companyLocation", website, domain, year_founded AS "yearFounded",
	specialties, phone, min_revenue AS "minRevenue", max_revenue AS "maxRevenue",
	growth_6mth AS "growth6Mth", growth_1yr AS "growth1Yr", growth_2yr AS "growth2Yr",
	COALESCE(NULLIF(company_timestamp_sn, ''), company_timestamp_ln) AS "companyTimestamp",
	linkedin_company_url AS "linkedInCompanyUrl",
	sales_navigator_company_url AS "salesNavigatorCompanyUrl"`,
		ready: `step_status->>'compScrap' = 'scraped' AND step_status->>'box1' = 'pending'`,
	},
	"instantly": {
		columns: outreachColumns,
		ready:   `step_status->>'box1' = 'hit' AND step_status->>'instantly' = 'pending'`,
	},
	"instantlyStock": {
		columns: outreachColumns + `,
	company_name, company_description, industry, website`,
		ready: `step_status->>'instantly' = 'stock'`,
	},
}

// StepInputViews lists the view names StepInput accepts.
func StepInputViews() []string {
	return []string{"verification", "compScrap", "box1", "instantly", "instantlyStock"}
}

// StepInput returns the leads currently eligible for a step, shaped for
// that step's processor.
func (s *PostgresStore) StepInput(ctx context.Context, view string, limit int) ([]model.InputRow, error) {
	v, ok := stepViews[view]
	if !ok {
		return nil, eris.Wrapf(model.ErrUnknownStep, "postgres: input view %q", view)
	}
	if limit <= 0 {
		limit = 1000
	}

	query := `SELECT ` + v.columns + ` FROM leads WHERE ` + v.ready + ` ORDER BY lead_number LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: step input %s", view)
	}
	return collectInputRows(rows, view)
}

// StepRows shapes specific leads into a view's column set without applying
// its readiness predicate.
func (s *PostgresStore) StepRows(ctx context.Context, view string, leadNumbers []int64) ([]model.InputRow, error) {
	v, ok := stepViews[view]
	if !ok {
		return nil, eris.Wrapf(model.ErrUnknownStep, "postgres: input view %q", view)
	}
	if len(leadNumbers) == 0 {
		return nil, nil
	}

	query := `SELECT ` + v.columns + ` FROM leads WHERE lead_number = ANY($1) ORDER BY lead_number`
	rows, err := s.pool.Query(ctx, query, leadNumbers)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: step rows %s", view)
	}
	return collectInputRows(rows, view)
}

func collectInputRows(rows pgx.Rows, view string) ([]model.InputRow, error) {
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: collect step input %s", view)
	}

	out := make([]model.InputRow, len(maps))
	for i, m := range maps {
		out[i] = model.InputRow(m)
	}
	return out, nil
}

const funnelQuery = `SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE step_status->>'export' IN ('true', '1') AND step_status->>'verification' = 'pending'),
	COUNT(*) FILTER (WHERE step_status->>'verification' IN ('sent', 'verified', 'failed')),
	COUNT(*) FILTER (WHERE step_status->>'verification' = 'verified'),
	COUNT(*) FILTER (WHERE step_status->>'verification' = 'verified' AND COALESCE(comp_url, '') <> ''),
	COUNT(*) FILTER (WHERE step_status->>'verification' = 'verified' AND step_status->>'compScrap' = 'pending'),
	COUNT(*) FILTER (WHERE step_status->>'compScrap' IN ('sent', 'scraped', 'failed')),
	COUNT(*) FILTER (WHERE step_status->>'compScrap' = 'scraped'),
	COUNT(*) FILTER (WHERE COALESCE(comp_url, '') <> ''),
	COUNT(*) FILTER (WHERE step_status->>'compScrap' = 'scraped' AND step_status->>'box1' = 'pending'),
	COUNT(*) FILTER (WHERE step_status->>'box1' IN ('sent', 'fit', 'drop', 'no_fit', 'hit', 'failed')),
	COUNT(*) FILTER (WHERE step_status->>'box1' = 'drop'),
	COUNT(*) FILTER (WHERE step_status->>'box1' = 'fit'),
	COUNT(*) FILTER (WHERE step_status->>'box1' = 'hit'),
	COUNT(*) FILTER (WHERE storage),
	COUNT(*) FILTER (WHERE step_status->>'box1' = 'hit' AND step_status->>'instantly' = 'pending'),
	COUNT(*) FILTER (WHERE step_status->>'instantly' IN ('sent', 'replied', 'positive_reply', 'converted', 'bounced')),
	COUNT(*) FILTER (WHERE step_status->>'instantly' IN ('replied', 'positive_reply', 'converted')),
	COUNT(*) FILTER (WHERE step_status->>'instantly' IN ('positive_reply', 'converted')),
	COUNT(*) FILTER (WHERE step_status->>'instantly' = 'converted')
FROM leads`

// FunnelCounts computes every funnel count in one pass. An empty campaignID
// counts across all campaigns.
func (s *PostgresStore) FunnelCounts(ctx context.Context, campaignID string) (model.FunnelCounts, error) {
	query := funnelQuery
	var args []any
	if campaignID != "" {
		query += ` WHERE campaign_id = $1`
		args = append(args, campaignID)
	}

	var c model.FunnelCounts
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&c.TotalExport, &c.PendingVerification, &c.SentVerification, &c.Verified,
		&c.VerifiedWithCompURL, &c.PendingCompScrap, &c.SentCompScrap, &c.Scraped,
		&c.TotalWithCompURL, &c.PendingBox1, &c.SentBox1, &c.Drop, &c.Fit, &c.Hit,
		&c.Storage, &c.PendingInstantly, &c.SentInstantly, &c.Replied,
		&c.PositiveReply, &c.Converted,
	)
	if err != nil {
		return model.FunnelCounts{}, eris.Wrap(err, "postgres: funnel counts")
	}
	return c, nil
}
