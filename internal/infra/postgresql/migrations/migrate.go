package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/electoral-digital/print-engine/internal/repository"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_certificates",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.CertificateModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_certificates_status_received ON certificates (status, application_received_date_time)`,
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_certificates_source ON certificates (source_type, source_reference)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.CertificateModel{})
			},
		},
		{
			ID: "000002_create_print_requests",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.PrintRequestModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_print_requests_batch_id ON print_requests (batch_id) WHERE batch_id IS NOT NULL`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.PrintRequestModel{})
			},
		},
		{
			ID: "000003_create_print_request_status_events",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.StatusEventModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_status_events_request_sequence ON print_request_status_events (print_request_id, sequence)`,
					`CREATE INDEX IF NOT EXISTS idx_status_events_status_time ON print_request_status_events (status, event_date_time)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.StatusEventModel{})
			},
		},
	})

	return m.Migrate()
}
