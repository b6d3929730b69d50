package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Client is a customer of the agency.
type Client struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	TenantID    string    `json:"-" gorm:"size:64;not null;index;uniqueIndex:idx_clients_tenant_company,priority:1"`
	CompanyName string    `json:"company_name" gorm:"size:255;not null;uniqueIndex:idx_clients_tenant_company,priority:2"`
	ContactName string    `json:"contact_name" gorm:"size:255"`
	Email       string    `json:"email" gorm:"size:255"`
	PhoneNumber string    `json:"phone_number" gorm:"size:64"`
	Address     string    `json:"address"`
	City        string    `json:"city" gorm:"size:128"`
	Country     string    `json:"country" gorm:"size:2"`
	Zip         string    `json:"zip" gorm:"size:32"`
	VatID       string    `json:"vat_id" gorm:"size:64"`
	Active      bool      `json:"active" gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (client *Client) BeforeCreate(tx *gorm.DB) (err error) {
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	return
}
