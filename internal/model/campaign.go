package model

import "time"

// Campaign groups leads. Number is the numeric base used to derive lead
// numbers (Number*1000 + sequence); ID is the public identifier.
type Campaign struct {
	ID          string    `json:"id"`
	Number      int64     `json:"number"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	LeadCount   int       `json:"lead_count"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
