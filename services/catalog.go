package services

import (
	"context"
	"strings"

	ierr "agency-billing-backend/errors"
	"agency-billing-backend/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Clients manages the agency's customers.
type Clients struct {
	Params
}

func NewClients(p Params) *Clients {
	return &Clients{Params: p}
}

// ClientInput is the writable part of a client.
type ClientInput struct {
	CompanyName string
	ContactName string
	Email       string
	PhoneNumber string
	Address     string
	City        string
	Country     string
	Zip         string
	VatID       string
}

func (s *Clients) Create(ctx context.Context, tenantID string, in ClientInput) (*models.Client, error) {
	client := models.Client{
		TenantID:    tenantID,
		CompanyName: strings.TrimSpace(in.CompanyName),
		ContactName: in.ContactName,
		Email:       in.Email,
		PhoneNumber: in.PhoneNumber,
		Address:     in.Address,
		City:        in.City,
		Country:     strings.ToUpper(in.Country),
		Zip:         in.Zip,
		VatID:       in.VatID,
		Active:      true,
	}
	if client.CompanyName == "" {
		return nil, ierr.NewError("client without company name").
			WithHint("Company name is required").
			Mark(ierr.ErrValidation)
	}

	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureUniqueName(tx, tenantID, "", client.CompanyName); err != nil {
			return err
		}
		return dbError(tx.Create(&client).Error, "client")
	})
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (s *Clients) List(ctx context.Context, tenantID string, activeOnly bool) ([]models.Client, error) {
	q := s.conn(ctx).Where("tenant_id = ?", tenantID)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var clients []models.Client
	if err := q.Order("company_name").Find(&clients).Error; err != nil {
		return nil, dbError(err, "clients")
	}
	return clients, nil
}

func (s *Clients) Get(ctx context.Context, tenantID, id string) (*models.Client, error) {
	var client models.Client
	if err := s.conn(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).Take(&client).Error; err != nil {
		return nil, dbError(err, "client")
	}
	return &client, nil
}

// Update applies a partial update built from a pointer DTO (column -> value).
func (s *Clients) Update(ctx context.Context, tenantID, id string, updates map[string]any) (*models.Client, error) {
	var client models.Client
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ? AND id = ?", tenantID, id).Take(&client).Error; err != nil {
			return dbError(err, "client")
		}
		if country, ok := updates["country"].(string); ok {
			updates["country"] = strings.ToUpper(country)
		}
		if name, ok := updates["company_name"].(string); ok {
			if strings.TrimSpace(name) == "" {
				return ierr.NewError("blank company name").
					WithHint("Company name is required").
					Mark(ierr.ErrValidation)
			}
			if err := s.ensureUniqueName(tx, tenantID, id, name); err != nil {
				return err
			}
		}
		if len(updates) > 0 {
			if err := tx.Model(&client).Updates(updates).Error; err != nil {
				return dbError(err, "client")
			}
		}
		return tx.Where("id = ?", id).Take(&client).Error
	})
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (s *Clients) ensureUniqueName(tx *gorm.DB, tenantID, exceptID, name string) error {
	var n int64
	q := tx.Model(&models.Client{}).Where("tenant_id = ? AND company_name = ?", tenantID, name)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return dbError(err, "client")
	}
	if n > 0 {
		return ierr.NewErrorf("client %q already exists", name).
			WithHint("A client with this company name already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	return nil
}

// Catalog manages the agency's price list.
type Catalog struct {
	Params
}

func NewCatalog(p Params) *Catalog {
	return &Catalog{Params: p}
}

// CatalogInput is one price-list entry to create.
type CatalogInput struct {
	Name        string
	Description string
	UnitPrice   decimal.Decimal
	Unit        string
}

// CreateBatch inserts all entries or none.
func (s *Catalog) CreateBatch(ctx context.Context, tenantID string, in []CatalogInput) ([]models.CatalogItem, error) {
	if len(in) == 0 {
		return nil, ierr.NewError("empty batch").
			WithHint("Provide at least one service").
			Mark(ierr.ErrValidation)
	}
	items := make([]models.CatalogItem, len(in))
	for i, it := range in {
		if strings.TrimSpace(it.Name) == "" {
			return nil, ierr.NewErrorf("service %d without name", i).
				WithHintf("Service %d: name is required", i+1).
				Mark(ierr.ErrValidation)
		}
		if it.UnitPrice.IsNegative() {
			return nil, ierr.NewErrorf("service %d negative price", i).
				WithHintf("Service %d: unit price must not be negative", i+1).
				Mark(ierr.ErrValidation)
		}
		items[i] = models.CatalogItem{
			TenantID:    tenantID,
			Name:        strings.TrimSpace(it.Name),
			Description: it.Description,
			UnitPrice:   it.UnitPrice.Round(2),
			Unit:        it.Unit,
			Active:      true,
		}
	}
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return dbError(tx.Create(&items).Error, "service")
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Catalog) List(ctx context.Context, tenantID string, activeOnly bool) ([]models.CatalogItem, error) {
	q := s.conn(ctx).Where("tenant_id = ?", tenantID)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var items []models.CatalogItem
	if err := q.Order("name").Find(&items).Error; err != nil {
		return nil, dbError(err, "services")
	}
	return items, nil
}

func (s *Catalog) Get(ctx context.Context, tenantID, id string) (*models.CatalogItem, error) {
	return s.get(s.conn(ctx), tenantID, id)
}

func (s *Catalog) get(db *gorm.DB, tenantID, id string) (*models.CatalogItem, error) {
	var item models.CatalogItem
	if err := db.Where("tenant_id = ? AND id = ?", tenantID, id).Take(&item).Error; err != nil {
		return nil, dbError(err, "service")
	}
	return &item, nil
}

// Update applies a partial update. Documents already priced keep their prices.
func (s *Catalog) Update(ctx context.Context, tenantID, id string, updates map[string]any) (*models.CatalogItem, error) {
	if price, ok := updates["unit_price"].(decimal.Decimal); ok && price.IsNegative() {
		return nil, ierr.NewError("negative unit price").
			WithHint("Unit price must not be negative").
			Mark(ierr.ErrValidation)
	}
	var item *models.CatalogItem
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.get(tx, tenantID, id)
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := tx.Model(current).Updates(updates).Error; err != nil {
				return dbError(err, "service")
			}
		}
		item, err = s.get(tx, tenantID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}
