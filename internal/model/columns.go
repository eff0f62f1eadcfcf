package model

import "sort"

// textColumns are the lead columns callers may set through Update,
// UpdateStepStatus extras and step-output imports.
var textColumns = map[string]bool{
	"first_name": true, "last_name": true, "person_title": true,
	"person_title_description": true, "person_summary": true, "person_location": true,
	"duration_in_role": true, "duration_in_company": true, "person_timestamp": true,
	"person_linkedin_url": true, "person_sales_url": true,
	"company_name_from_p": true, "company_linkedin_url_from_p": true, "company_sales_url_from_p": true,
	"company_tag_line": true, "domain": true,
	"email": true, "email_validation": true, "validation_success": true,
	"first_name_cleaned": true, "last_name_cleaned": true,
	"company_name": true, "company_description": true, "industry": true,
	"employee_count": true, "company_location": true, "website": true,
	"year_founded": true, "specialties": true, "phone": true,
	"min_revenue": true, "max_revenue": true,
	"growth_6mth": true, "growth_1yr": true, "growth_2yr": true,
	"linkedin_company_url": true, "comp_url": true,
	"company_timestamp_sn": true, "company_timestamp_ln": true,
	"sales_navigator_company_url": true,
	"instantly_body1":             true, "instantly_body2": true, "instantly_body3": true, "instantly_body4": true,
	"instantly_response": true, "instantly_conversion": true,
}

// jsonColumns are JSONB lead columns; values are marshaled before writing.
var jsonColumns = map[string]bool{
	"box1_outputs":        true,
	"verification_result": true,
	"compscrap_result":    true,
	"box1_result":         true,
}

// TextColumns returns the allow-listed text columns in sorted order.
func TextColumns() []string {
	cols := make([]string, 0, len(textColumns))
	for c := range textColumns {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// ColumnKind classifies an updatable lead column.
type ColumnKind int

const (
	ColumnNone ColumnKind = iota
	ColumnText
	ColumnJSON
)

// UpdatableColumn reports whether col may be written by callers and how.
func UpdatableColumn(col string) ColumnKind {
	switch {
	case textColumns[col]:
		return ColumnText
	case jsonColumns[col]:
		return ColumnJSON
	}
	return ColumnNone
}

// Allowed splits fields into the allow-listed subset and the names of the
// rejected keys.
func (f Fields) Allowed() (Fields, []string) {
	kept := make(Fields, len(f))
	var dropped []string
	for k, v := range f {
		if UpdatableColumn(k) == ColumnNone {
			dropped = append(dropped, k)
			continue
		}
		kept[k] = v
	}
	return kept, dropped
}

var sentColumns = map[Step]string{
	StepVerification: "verification_sent_at",
	StepCompScrap:    "compscrap_sent_at",
	StepBox1:         "box1_sent_at",
	StepInstantly:    "instantly_sent_at",
}

// instantly has no completion column.
var completedColumns = map[Step]string{
	StepVerification: "verification_completed_at",
	StepCompScrap:    "compscrap_completed_at",
	StepBox1:         "box1_completed_at",
}

var completionStatuses = map[Status]bool{
	StatusVerified: true, StatusScraped: true,
	StatusFit: true, StatusDrop: true, StatusNoFit: true, StatusHit: true,
	StatusReplied: true, StatusPositiveReply: true, StatusConverted: true, StatusBounced: true,
}

// StampColumn returns the timestamp column a status change stamps, or "".
func StampColumn(step Step, status Status) string {
	switch {
	case status == StatusSent:
		return sentColumns[step]
	case status == StatusStock && step == StepInstantly:
		return "instantly_stock_at"
	case completionStatuses[status]:
		return completedColumns[step]
	}
	return ""
}

// StampColumns returns the distinct timestamp columns a patch stamps.
func (p StatusPatch) StampColumns() []string {
	var cols []string
	for _, step := range Steps {
		status, ok := p[step]
		if !ok {
			continue
		}
		if col := StampColumn(step, status); col != "" {
			cols = append(cols, col)
		}
	}
	return cols
}
