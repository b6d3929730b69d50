package database

import (
	"fmt"

	"agency-billing-backend/models"

	"gorm.io/gorm"
)

// Migrate applies (idempotent) schema migrations:
// - AutoMigrate (tables/columns/index tags)
// - on Postgres: cascading foreign keys and CHECK constraints
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Tenant{},
		&models.Client{},
		&models.CatalogItem{},
		&models.Document{},
		&models.DocumentItem{},
		&models.DocumentVersion{},
		&models.Payment{},
		&models.SequenceCounter{},
		&models.IdempotencyKey{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}

	if db.Dialector.Name() != "postgres" {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for _, fk := range foreignKeys {
			if err := tx.Exec(addConstraint(fk.table, fk.name, fk.def)).Error; err != nil {
				return fmt.Errorf("foreign key migration failed on %s: %w", fk.name, err)
			}
		}
		for _, chk := range checks {
			if err := tx.Exec(addConstraint(chk.table, chk.name, chk.def)).Error; err != nil {
				return fmt.Errorf("check constraint migration failed on %s: %w", chk.name, err)
			}
		}
		return nil
	})
}

type constraint struct {
	table, name, def string
}

var foreignKeys = []constraint{
	{"document_items", "fk_document_items_document", "FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE"},
	{"document_versions", "fk_document_versions_document", "FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE"},
	{"payments", "fk_payments_document", "FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE"},
}

var checks = []constraint{
	{"catalog_items", "chk_catalog_items_unit_price_nonneg", "CHECK (unit_price >= 0)"},
	{"document_items", "chk_document_items_quantity_nonneg", "CHECK (quantity >= 0)"},
	{"document_items", "chk_document_items_unit_price_nonneg", "CHECK (unit_price >= 0)"},
	{"documents", "chk_documents_tax_rate_range", "CHECK (tax_rate >= 0 AND tax_rate < 1)"},
	{"documents", "chk_documents_total_sum", "CHECK (total = subtotal + tax_amount)"},
	{"payments", "chk_payments_amount_pos", "CHECK (amount > 0)"},
	{"sequence_counters", "chk_sequence_counters_nonneg", "CHECK (current_value >= 0)"},
}

func addConstraint(table, name, def string) string {
	return fmt.Sprintf(`DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_constraint
		WHERE conrelid = '%[1]s'::regclass
		  AND conname  = '%[2]s'
	) THEN
		ALTER TABLE %[1]s ADD CONSTRAINT %[2]s %[3]s;
	END IF;
END $$;`, table, name, def)
}
