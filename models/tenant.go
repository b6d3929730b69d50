package models

import "time"

// Tenant is an agency account as known to the identity provider. The ID is
// the provider's tenant identifier; rows are mirrored on first use.
type Tenant struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	Name      string    `json:"name" gorm:"size:255"`
	PlanKey   string    `json:"plan_key" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
