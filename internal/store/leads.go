package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-studio/internal/db"
	"github.com/sells-group/lead-studio/internal/model"
)

// leadColumns is the select list for model.Lead, in scan order. Text
// payload columns are COALESCEd so they scan into plain strings.
var leadColumns = []string{
	"lead_number", "target_id", "campaign_id", "step_status", "storage",
	"first_name", "last_name", "email", "person_title", "person_location", "person_linkedin_url",
	"company_name", "company_description", "industry", "employee_count", "company_location",
	"website", "linkedin_company_url", "comp_url",
	"email_validation", "validation_success", "first_name_cleaned", "last_name_cleaned",
	"instantly_body1", "instantly_body2", "instantly_body3", "instantly_body4",
	"verification_result", "compscrap_result", "box1_outputs", "box1_result",
	"verification_sent_at", "verification_completed_at",
	"compscrap_sent_at", "compscrap_completed_at",
	"box1_sent_at", "box1_completed_at",
	"instantly_stock_at", "instantly_sent_at",
	"created_at", "updated_at",
}

var leadSelect = func() string {
	exprs := make([]string, len(leadColumns))
	for i, c := range leadColumns {
		switch {
		case c == "target_id" || c == "campaign_id" || model.UpdatableColumn(c) == model.ColumnText:
			exprs[i] = fmt.Sprintf("COALESCE(%s, '') AS %s", c, c)
		default:
			exprs[i] = c
		}
	}
	return strings.Join(exprs, ", ")
}()

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*model.Lead, error) {
	var l model.Lead
	var stepStatus []byte
	err := row.Scan(
		&l.LeadNumber, &l.TargetID, &l.CampaignID, &stepStatus, &l.Storage,
		&l.FirstName, &l.LastName, &l.Email, &l.PersonTitle, &l.PersonLocation, &l.LinkedInURL,
		&l.CompanyName, &l.CompanyDescription, &l.Industry, &l.EmployeeCount, &l.CompanyLocation,
		&l.Website, &l.LinkedInCompanyURL, &l.CompURL,
		&l.EmailValidation, &l.ValidationSuccess, &l.FirstNameCleaned, &l.LastNameCleaned,
		&l.InstantlyBody1, &l.InstantlyBody2, &l.InstantlyBody3, &l.InstantlyBody4,
		&l.VerificationResult, &l.CompScrapResult, &l.Box1Outputs, &l.Box1Result,
		&l.VerificationSentAt, &l.VerificationCompletedAt,
		&l.CompScrapSentAt, &l.CompScrapCompletedAt,
		&l.Box1SentAt, &l.Box1CompletedAt,
		&l.InstantlyStockAt, &l.InstantlySentAt,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.StepStatus = model.NewStepStatus()
	if len(stepStatus) > 0 {
		if err := json.Unmarshal(stepStatus, &l.StepStatus); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal step_status of lead %d", l.LeadNumber)
		}
	}
	return &l, nil
}

func collectLeads(rows pgx.Rows, op string) ([]model.Lead, error) {
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", op)
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrapf(rows.Err(), "postgres: %s iterate", op)
}

// guardClause renders the transition precondition. Step names come from the
// closed model.Step set, so they are inlined; statuses are bound from argIdx.
func guardClause(t model.Transition, argIdx int) (string, []any) {
	var b strings.Builder
	var args []any
	for _, c := range t.Guards() {
		fmt.Fprintf(&b, " AND step_status->>'%s' = $%d", c.Step, argIdx)
		args = append(args, string(c.Status))
		argIdx++
	}
	if t.RequireExport {
		b.WriteString(" AND step_status->>'export' IN ('true', '1')")
	}
	return b.String(), args
}

func transitionSet(t model.Transition) string {
	set := fmt.Sprintf(
		"step_status = jsonb_set(step_status, '{%s}', to_jsonb($2::text))", t.Step)
	if stamp := t.Stamp(); stamp != "" {
		set += ", " + stamp + " = now()"
	}
	return set + ", updated_at = now()"
}

// ApplyTransition moves every listed lead that satisfies the transition guard
// in one statement and returns the leads it changed.
func (s *PostgresStore) ApplyTransition(ctx context.Context, t model.Transition, leadNumbers []int64) ([]model.Lead, error) {
	if len(leadNumbers) == 0 {
		return nil, nil
	}
	guard, guardArgs := guardClause(t, 3)
	query := `UPDATE leads SET ` + transitionSet(t) +
		` WHERE lead_number = ANY($1)` + guard +
		` RETURNING ` + leadSelect
	args := append([]any{leadNumbers, string(t.To)}, guardArgs...)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: transition %s", t.Name)
	}
	return collectLeads(rows, "transition "+t.Name)
}

// ApplyTransitionRow applies the transition to a single lead. It returns
// nil without error when the lead does not satisfy the guard.
func (s *PostgresStore) ApplyTransitionRow(ctx context.Context, t model.Transition, leadNumber int64) (*model.Lead, error) {
	guard, guardArgs := guardClause(t, 3)
	query := `UPDATE leads SET ` + transitionSet(t) +
		` WHERE lead_number = $1` + guard +
		` RETURNING ` + leadSelect
	args := append([]any{leadNumber, string(t.To)}, guardArgs...)

	l, err := scanLead(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: transition %s lead %d", t.Name, leadNumber)
	}
	return l, nil
}

// PatchLead merges patch into step_status, stamps the matching timestamp
// columns and writes the allow-listed fields. Keys outside the allow-list
// are ignored.
func (s *PostgresStore) PatchLead(ctx context.Context, leadNumber int64, patch model.StatusPatch, fields model.Fields) (*model.Lead, error) {
	sets := []string{}
	args := []any{leadNumber}

	if len(patch) > 0 {
		doc, err := json.Marshal(patch)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal status patch")
		}
		args = append(args, doc)
		sets = append(sets, fmt.Sprintf("step_status = COALESCE(step_status, '{}'::jsonb) || $%d::jsonb", len(args)))
		for _, col := range patch.StampColumns() {
			sets = append(sets, col+" = now()")
		}
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		if model.UpdatableColumn(col) != model.ColumnNone {
			cols = append(cols, col)
		}
	}
	sort.Strings(cols)
	for _, col := range cols {
		v, cast, err := columnValue(col, fields[col])
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d%s", col, len(args), cast))
	}

	if len(sets) == 0 {
		return s.GetLead(ctx, leadNumber)
	}
	sets = append(sets, "updated_at = now()")

	query := `UPDATE leads SET ` + strings.Join(sets, ", ") +
		` WHERE lead_number = $1 RETURNING ` + leadSelect
	l, err := scanLead(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, notFound(err, "postgres: patch lead %d", leadNumber)
	}
	return l, nil
}

func columnValue(col string, v any) (any, string, error) {
	if model.UpdatableColumn(col) == model.ColumnJSON {
		if raw, ok := v.(json.RawMessage); ok {
			return []byte(raw), "::jsonb", nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, "", eris.Wrapf(err, "postgres: marshal %s", col)
		}
		return b, "::jsonb", nil
	}
	switch t := v.(type) {
	case nil:
		return nil, "", nil
	case string:
		return t, "", nil
	default:
		return fmt.Sprint(t), "", nil
	}
}

// MarkAsStorage sets the storage flag. Setting it twice is harmless.
func (s *PostgresStore) MarkAsStorage(ctx context.Context, leadNumber int64) (*model.Lead, error) {
	l, err := scanLead(s.pool.QueryRow(ctx,
		`UPDATE leads SET storage = true, updated_at = now() WHERE lead_number = $1 RETURNING `+leadSelect,
		leadNumber,
	))
	if err != nil {
		return nil, notFound(err, "postgres: mark lead %d as storage", leadNumber)
	}
	return l, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, leadNumber int64) (*model.Lead, error) {
	l, err := scanLead(s.pool.QueryRow(ctx,
		`SELECT `+leadSelect+` FROM leads WHERE lead_number = $1`, leadNumber))
	if err != nil {
		return nil, notFound(err, "postgres: get lead %d", leadNumber)
	}
	return l, nil
}

func (s *PostgresStore) GetLeads(ctx context.Context, leadNumbers []int64) ([]model.Lead, error) {
	if len(leadNumbers) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+leadSelect+` FROM leads WHERE lead_number = ANY($1) ORDER BY lead_number`, leadNumbers)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get leads")
	}
	return collectLeads(rows, "get leads")
}

// FindLeadByEmail returns nil when the campaign has no lead with that email.
func (s *PostgresStore) FindLeadByEmail(ctx context.Context, campaignID, email string) (*model.Lead, error) {
	l, err := scanLead(s.pool.QueryRow(ctx,
		`SELECT `+leadSelect+` FROM leads WHERE campaign_id = $1 AND lower(email) = lower($2) LIMIT 1`,
		campaignID, email,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: find lead by email")
	}
	return l, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadSelect + ` FROM leads WHERE true`
	args := []any{}
	argIdx := 1

	if filter.CampaignID != "" {
		query += fmt.Sprintf(` AND campaign_id = $%d`, argIdx)
		args = append(args, filter.CampaignID)
		argIdx++
	}
	query += ` ORDER BY lead_number`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	return collectLeads(rows, "list leads")
}

// statusFilters are the LEAD_INPUT status filters. Unknown filters fall
// back to pending verification without the export gate.
var statusFilters = map[string]string{
	"pending_verification": `step_status->>'verification' = 'pending' AND step_status->>'export' IN ('true', '1')`,
	"pending_compscrap":    `step_status->>'verification' = 'verified' AND step_status->>'compScrap' = 'pending'`,
	"pending_box1":         `step_status->>'compScrap' = 'scraped' AND step_status->>'box1' = 'pending'`,
	"pending_instantly":    `step_status->>'box1' = 'hit' AND step_status->>'instantly' = 'pending'`,
	"all":                  `true`,
}

const defaultStatusFilter = `step_status->>'verification' = 'pending'`

func (s *PostgresStore) LeadsByStatus(ctx context.Context, filter string, limit int) ([]model.Lead, error) {
	where, ok := statusFilters[filter]
	if !ok {
		where = defaultStatusFilter
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+leadSelect+` FROM leads WHERE `+where+` ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: leads by status %s", filter)
	}
	return collectLeads(rows, "leads by status")
}

// MaxLeadNumber returns the highest lead number in a campaign, or 0.
func (s *PostgresStore) MaxLeadNumber(ctx context.Context, campaignID string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(lead_number), 0) FROM leads WHERE campaign_id = $1`, campaignID,
	).Scan(&n)
	return n, eris.Wrapf(err, "postgres: max lead number of campaign %s", campaignID)
}

// insertColumns is the COPY column list: identity and state, then every
// allow-listed text column.
var insertColumns = append(
	[]string{"lead_number", "target_id", "campaign_id", "step_status"},
	model.TextColumns()...,
)

// InsertLeads bulk-loads new leads with COPY inside a transaction.
func (s *PostgresStore) InsertLeads(ctx context.Context, leads []model.NewLead) (int64, error) {
	textCols := insertColumns[4:]
	rows := make([][]any, 0, len(leads))
	for _, l := range leads {
		ss, err := json.Marshal(l.StepStatus)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal step_status of lead %d", l.LeadNumber)
		}
		row := make([]any, 0, len(insertColumns))
		row = append(row, l.LeadNumber, l.TargetID, nullIfEmpty(l.CampaignID), ss)
		for _, col := range textCols {
			v, _, err := columnValue(col, l.Fields[col])
			if err != nil {
				return 0, err
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}

	var n int64
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		n, err = db.CopyFrom(ctx, tx, "leads", insertColumns, rows)
		return err
	})
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert leads")
	}
	return n, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
