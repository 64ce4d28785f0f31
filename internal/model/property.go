package model

import "time"

// PropertyStatus is the lifecycle state of a tracked property.
type PropertyStatus string

const (
	PropertyStatusActive   PropertyStatus = "active"
	PropertyStatusInactive PropertyStatus = "inactive"
)

// Property is a tracked real-estate entity. Properties are created on first
// discovery (folder, mailbox match, or metadata row) and never deleted by
// the pipeline; deactivation is an external management action.
type Property struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Status         PropertyStatus `json:"status"`
	Address        string         `json:"address,omitempty"`
	Country        string         `json:"country,omitempty"`
	PurchaseDate   string         `json:"purchase_date,omitempty"`
	PurchasePrice  float64        `json:"purchase_price,omitempty"`
	CurrentValue   float64        `json:"current_value,omitempty"`
	MunicipalTaxID string         `json:"municipal_tax_id,omitempty"`
	SocietyID      string         `json:"society_id,omitempty"`
	ElectricityID  string         `json:"electricity_id,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// PropertyMetadata holds the merge-able columns from the tabular export.
type PropertyMetadata struct {
	MunicipalTaxID string `json:"municipal_tax_id,omitempty"`
	SocietyID      string `json:"society_id,omitempty"`
	ElectricityID  string `json:"electricity_id,omitempty"`
	Notes          string `json:"notes,omitempty"`
}
