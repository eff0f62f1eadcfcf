package leads

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/lead-studio/internal/model"
)

// Record is one externally produced row, already decoded from CSV or JSON.
type Record map[string]any

// Value returns the first non-empty value among keys, stringified.
func (r Record) Value(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case fmt.Stringer:
			s = t.String()
		default:
			s = fmt.Sprint(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// LeadNumber reads the lead key under any of its accepted spellings.
func (r Record) LeadNumber() (int64, bool) {
	raw := r.Value("LeadNumber", "lead_number", "leadNumber")
	if raw == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if f, ferr := strconv.ParseFloat(raw, 64); ferr == nil && f == float64(int64(f)) {
			return int64(f), true
		}
		return 0, false
	}
	return n, true
}

// fields collects present values for column <- aliases pairs.
func (r Record) fields(mapping map[string][]string) model.Fields {
	out := model.Fields{}
	for col, keys := range mapping {
		if v := r.Value(keys...); v != "" {
			out[col] = v
		}
	}
	return out
}

// ImportFailure describes one record that could not be applied.
type ImportFailure struct {
	Row        int    `json:"row"`
	LeadNumber int64  `json:"lead_number,omitempty"`
	Error      string `json:"error"`
}

// ImportResult summarizes a step-output import.
type ImportResult struct {
	Processed int             `json:"processed"`
	NotFound  int             `json:"notFound"`
	Errors    int             `json:"errors"`
	Failures  []ImportFailure `json:"failures,omitempty"`
}

func (r *ImportResult) fail(row int, n int64, msg string) {
	r.Errors++
	r.Failures = append(r.Failures, ImportFailure{Row: row, LeadNumber: n, Error: msg})
}

var verificationFields = map[string][]string{
	"email":              {"email"},
	"email_validation":   {"email_validation"},
	"validation_success": {"validation_success"},
	"first_name_cleaned": {"firstName_cleaned", "first_name_cleaned"},
	"last_name_cleaned":  {"lastName_cleaned", "last_name_cleaned"},
	"comp_url":           {"compUrl", "comp_url"},
}

var compScrapFields = map[string][]string{
	"company_name":                {"companyName", "company_name"},
	"company_description":         {"companyDescription", "company_description"},
	"industry":                    {"industry"},
	"employee_count":              {"employeeCount", "employee_count"},
	"company_location":            {"companyLocation", "company_location"},
	"website":                     {"website"},
	"year_founded":                {"yearFounded", "year_founded"},
	"specialties":                 {"specialties"},
	"phone":                       {"phone"},
	"min_revenue":                 {"minRevenue", "min_revenue"},
	"max_revenue":                 {"maxRevenue", "max_revenue"},
	"growth_6mth":                 {"growth6Mth", "growth_6mth"},
	"growth_1yr":                  {"growth1Yr", "growth_1yr"},
	"growth_2yr":                  {"growth2Yr", "growth_2yr"},
	"linkedin_company_url":        {"linkedInCompanyUrl", "linkedin_company_url"},
	"sales_navigator_company_url": {"salesNavigatorCompanyUrl", "sales_navigator_company_url"},
	"company_timestamp_sn":        {"companyTimestampSN", "company_timestamp_sn"},
	"company_timestamp_ln":        {"companyTimestampLN", "company_timestamp_ln"},
}

var box1BodyFields = map[string][]string{
	"instantly_body1": {"body1", "instantly_body1"},
	"instantly_body2": {"body2", "instantly_body2"},
	"instantly_body3": {"body3", "instantly_body3"},
	"instantly_body4": {"body4", "instantly_body4"},
}

var instantlyFields = map[string][]string{
	"instantly_response":   {"instantly_response", "response"},
	"instantly_conversion": {"instantly_conversion", "conversion"},
}

var instantlyOutcomes = map[model.Status]bool{
	model.StatusReplied: true, model.StatusPositiveReply: true,
	model.StatusConverted: true, model.StatusBounced: true,
}

// outcome is the destination of one step-output record.
type outcome struct {
	status  model.Status
	fields  model.Fields
	storage bool
}

func verificationOutcome(r Record) (outcome, error) {
	status := model.StatusVerified
	switch strings.ToLower(r.Value("validation_success")) {
	case "false", "0":
		status = model.StatusFailed
	}
	return outcome{status: status, fields: r.fields(verificationFields)}, nil
}

func compScrapOutcome(r Record) (outcome, error) {
	status := model.StatusScraped
	if r.Value("compscrap_error", "compScrapError") != "" {
		status = model.StatusFailed
	}
	return outcome{status: status, fields: r.fields(compScrapFields)}, nil
}

func box1Outcome(r Record) (outcome, error) {
	raw := r.Value("status", "Box1Status")
	if raw == "" {
		raw = "fit"
	}
	status := model.Status(strings.ToLower(raw))
	if err := model.ValidateStatus(model.StepBox1, status); err != nil {
		return outcome{}, err
	}
	promptVersion := r.Value("promptVersion", "prompt_version")
	if promptVersion == "" {
		promptVersion = "v1"
	}
	fields := r.fields(box1BodyFields)
	fields["box1_outputs"] = []map[string]string{{
		"promptVersion": promptVersion,
		"userPrompt":    r.Value("userPrompt", "user_prompt"),
		"output":        r.Value("output", "Output"),
		"status":        string(status),
	}}
	return outcome{status: status, fields: fields, storage: status == model.StatusFit}, nil
}

func instantlyOutcome(r Record) (outcome, error) {
	status := model.Status(strings.ToLower(r.Value("status", "instantly_status")))
	if !instantlyOutcomes[status] {
		return outcome{}, eris.Wrapf(model.ErrInvalidStatus, "leads: instantly outcome %q", status)
	}
	return outcome{status: status, fields: r.fields(instantlyFields)}, nil
}

var outcomeRules = map[model.Step]func(Record) (outcome, error){
	model.StepVerification: verificationOutcome,
	model.StepCompScrap:    compScrapOutcome,
	model.StepBox1:         box1Outcome,
	model.StepInstantly:    instantlyOutcome,
}

// ImportStepOutput applies externally produced step results. Records whose
// lead does not exist are skipped and counted in NotFound; records without a
// lead number or with an unusable status are counted as errors. Storage
// errors abort the import.
func (s *Service) ImportStepOutput(ctx context.Context, step model.Step, records []Record) (*ImportResult, error) {
	rule, ok := outcomeRules[step]
	if !ok {
		return nil, eris.Wrapf(model.ErrUnknownStep, "leads: import output for %q", step)
	}

	res := &ImportResult{}
	for i, rec := range records {
		row := i + 1
		n, ok := rec.LeadNumber()
		if !ok {
			res.fail(row, 0, "missing lead number")
			continue
		}

		if _, err := s.store.GetLead(ctx, n); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				res.NotFound++
				zap.L().Debug("leads: import skipped unknown lead", zap.Int64("lead_number", n), zap.String("step", string(step)))
				continue
			}
			return res, eris.Wrapf(err, "leads: import %s row %d", step, row)
		}

		out, err := rule(rec)
		if err != nil {
			res.fail(row, n, err.Error())
			continue
		}
		if _, err := s.UpdateStepStatus(ctx, n, step, out.status, out.fields); err != nil {
			return res, eris.Wrapf(err, "leads: import %s row %d", step, row)
		}
		if out.storage {
			if _, err := s.MarkAsStorage(ctx, []int64{n}); err != nil {
				return res, err
			}
		}
		res.Processed++
	}

	zap.L().Info("leads: step output imported",
		zap.String("step", string(step)),
		zap.Int("processed", res.Processed),
		zap.Int("not_found", res.NotFound),
		zap.Int("errors", res.Errors),
	)
	return res, nil
}

// DuplicateStrategy decides what happens to an imported row whose email
// already exists in the campaign.
type DuplicateStrategy string

const (
	DuplicateSkip   DuplicateStrategy = "skip"
	DuplicateUpdate DuplicateStrategy = "update"
	DuplicateAppend DuplicateStrategy = "append"
)

// ImportOptions tunes ImportLeads normalization.
type ImportOptions struct {
	Duplicates      DuplicateStrategy `json:"dupStrategy"`
	TrimWhitespace  bool              `json:"trimWhitespace"`
	CapitalizeNames bool              `json:"capitalizeNames"`
	LowercaseEmails bool              `json:"lowercaseEmails"`
}

// DefaultImportOptions normalizes everything and skips duplicates.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		Duplicates:      DuplicateSkip,
		TrimWhitespace:  true,
		CapitalizeNames: true,
		LowercaseEmails: true,
	}
}

// LeadImportResult summarizes ImportLeads.
type LeadImportResult struct {
	CampaignID string   `json:"campaign_id"`
	Total      int      `json:"totalRows"`
	Imported   int      `json:"imported"`
	Updated    int      `json:"updated"`
	Skipped    int      `json:"skipped"`
	Errors     int      `json:"errors"`
	Messages   []string `json:"messages,omitempty"`
}

// ImportLeads creates leads from column-mapped records. The campaign is
// created when it does not exist. New leads are numbered after the
// campaign's current maximum and written with one COPY.
func (s *Service) ImportLeads(ctx context.Context, campaignID string, records []map[string]string, opts ImportOptions) (*LeadImportResult, error) {
	if opts.Duplicates == "" {
		opts.Duplicates = DuplicateSkip
	}
	campaign, err := s.ensureCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	maxLead, err := s.store.MaxLeadNumber(ctx, campaign.ID)
	if err != nil {
		return nil, eris.Wrap(err, "leads: import")
	}
	next := NextLeadNumber(campaign.Number, maxLead)

	res := &LeadImportResult{CampaignID: campaign.ID, Total: len(records)}
	seen := map[string]bool{}
	var fresh []model.NewLead

	for i, raw := range records {
		fields := normalize(raw, opts)
		email, _ := fields["email"].(string)
		if email == "" {
			res.Errors++
			res.Messages = append(res.Messages, fmt.Sprintf("row %d: missing email", i+1))
			continue
		}

		dup := seen[strings.ToLower(email)]
		var existing *model.Lead
		if !dup {
			existing, err = s.store.FindLeadByEmail(ctx, campaign.ID, email)
			if err != nil {
				return res, eris.Wrapf(err, "leads: import row %d", i+1)
			}
			dup = existing != nil
		}

		if dup && opts.Duplicates == DuplicateSkip {
			res.Skipped++
			continue
		}
		if dup && opts.Duplicates == DuplicateUpdate {
			if existing == nil {
				// Repeated inside this import; the earlier row wins.
				res.Skipped++
				continue
			}
			if _, err := s.Update(ctx, existing.LeadNumber, fields); err != nil {
				return res, err
			}
			res.Updated++
			continue
		}

		seen[strings.ToLower(email)] = true
		fresh = append(fresh, model.NewLead{
			LeadNumber: next,
			TargetID:   TargetID(fields, time.Now()),
			CampaignID: campaign.ID,
			StepStatus: model.NewStepStatus(),
			Fields:     fields,
		})
		next++
	}

	if len(fresh) > 0 {
		n, err := s.store.InsertLeads(ctx, fresh)
		if err != nil {
			return res, eris.Wrap(err, "leads: import")
		}
		res.Imported = int(n)
	}

	if err := s.store.RefreshLeadCount(ctx, campaign.ID); err != nil {
		zap.L().Warn("leads: refresh campaign lead count", zap.String("campaign_id", campaign.ID), zap.Error(err))
	}

	zap.L().Info("leads: import complete",
		zap.String("campaign_id", campaign.ID),
		zap.Int("imported", res.Imported),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
		zap.Int("errors", res.Errors),
	)
	return res, nil
}

func (s *Service) ensureCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	if id != "" {
		c, err := s.store.GetCampaign(ctx, id)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return nil, eris.Wrap(err, "leads: import")
		}
	}
	zap.L().Info("leads: campaign not found, creating", zap.String("campaign_id", id))
	c, err := s.store.CreateCampaign(ctx, fmt.Sprintf("Campaign %s", id), "Auto-created campaign for import")
	if err != nil {
		return nil, eris.Wrap(err, "leads: import")
	}
	return c, nil
}

// NextLeadNumber returns the next lead number of a campaign given its
// numeric base and current maximum lead number.
func NextLeadNumber(campaignNumber, maxLead int64) int64 {
	base := campaignNumber * 1000
	var seq int64
	if maxLead > base {
		seq = maxLead - base
	}
	return base + seq + 1
}

// TargetID derives the human-readable target slug of a new lead from its
// company name and the import time.
func TargetID(fields model.Fields, now time.Time) string {
	company := "unknown"
	for _, k := range []string{"company_name_from_p", "company_name"} {
		if v, _ := fields[k].(string); v != "" {
			company = v
			break
		}
	}
	var b strings.Builder
	for _, r := range strings.ToLower(company) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == 8 {
				break
			}
		}
	}
	return fmt.Sprintf("TGT-%s-%s", b.String(), strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)))
}

var nameColumns = []string{"first_name", "last_name", "first_name_cleaned", "last_name_cleaned"}

func normalize(raw map[string]string, opts ImportOptions) model.Fields {
	fields := model.Fields{}
	for k, v := range raw {
		if model.UpdatableColumn(k) != model.ColumnText {
			continue
		}
		if opts.TrimWhitespace {
			v = strings.TrimSpace(v)
		}
		if v == "" {
			continue
		}
		fields[k] = v
	}
	if opts.CapitalizeNames {
		caser := cases.Title(language.Und)
		for _, col := range nameColumns {
			if v, ok := fields[col].(string); ok {
				fields[col] = caser.String(v)
			}
		}
	}
	if email, ok := fields["email"].(string); ok && opts.LowercaseEmails {
		fields["email"] = strings.ToLower(strings.TrimSpace(email))
	}
	return fields
}
