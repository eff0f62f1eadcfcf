package model

import (
	"encoding/json"
	"time"
)

// Lead is a prospect record. StepStatus and Storage carry the pipeline state;
// the remaining columns are payload supplied by imports and step outputs.
type Lead struct {
	LeadNumber int64      `json:"lead_number"`
	TargetID   string     `json:"target_id"`
	CampaignID string     `json:"campaign_id"`
	StepStatus StepStatus `json:"step_status"`
	Storage    bool       `json:"storage"`

	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	PersonTitle    string `json:"person_title"`
	PersonLocation string `json:"person_location"`
	LinkedInURL    string `json:"person_linkedin_url"`

	CompanyName        string `json:"company_name"`
	CompanyDescription string `json:"company_description"`
	Industry           string `json:"industry"`
	EmployeeCount      string `json:"employee_count"`
	CompanyLocation    string `json:"company_location"`
	Website            string `json:"website"`
	LinkedInCompanyURL string `json:"linkedin_company_url"`
	CompURL            string `json:"comp_url"`

	EmailValidation   string `json:"email_validation"`
	ValidationSuccess string `json:"validation_success"`
	FirstNameCleaned  string `json:"first_name_cleaned"`
	LastNameCleaned   string `json:"last_name_cleaned"`

	InstantlyBody1 string `json:"instantly_body1"`
	InstantlyBody2 string `json:"instantly_body2"`
	InstantlyBody3 string `json:"instantly_body3"`
	InstantlyBody4 string `json:"instantly_body4"`

	VerificationResult json.RawMessage `json:"verification_result,omitempty"`
	CompScrapResult    json.RawMessage `json:"compscrap_result,omitempty"`
	Box1Outputs        json.RawMessage `json:"box1_outputs,omitempty"`
	Box1Result         json.RawMessage `json:"box1_result,omitempty"`

	VerificationSentAt      *time.Time `json:"verification_sent_at,omitempty"`
	VerificationCompletedAt *time.Time `json:"verification_completed_at,omitempty"`
	CompScrapSentAt         *time.Time `json:"compscrap_sent_at,omitempty"`
	CompScrapCompletedAt    *time.Time `json:"compscrap_completed_at,omitempty"`
	Box1SentAt              *time.Time `json:"box1_sent_at,omitempty"`
	Box1CompletedAt         *time.Time `json:"box1_completed_at,omitempty"`
	InstantlyStockAt        *time.Time `json:"instantly_stock_at,omitempty"`
	InstantlySentAt         *time.Time `json:"instantly_sent_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Fields is a set of column updates keyed by column name. Values are strings
// for text columns and any JSON-marshalable value for JSONB columns.
type Fields map[string]any

// InputRow is one lead shaped into the column set a step's processor expects.
type InputRow map[string]any

// LeadFilter narrows lead listings.
type LeadFilter struct {
	CampaignID string `json:"campaign_id,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// NewLead is a lead about to be inserted: its identity and initial state plus
// the text payload keyed by column name.
type NewLead struct {
	LeadNumber int64
	TargetID   string
	CampaignID string
	StepStatus StepStatus
	Fields     Fields
}
