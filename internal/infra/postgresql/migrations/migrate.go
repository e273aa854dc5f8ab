package migrations

import (
	"github.com/abd0-omar/newzletter/internal/idempotency"
	"github.com/abd0-omar/newzletter/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_subscriptions",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.SubscriberModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.SubscriberModel{})
			},
		},
		{
			ID: "000002_create_newsletter_issues",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.IssueModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.IssueModel{})
			},
		},
		{
			ID: "000003_create_issue_delivery_queue",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.DeliveryTaskModel{}); err != nil {
					return err
				}
				return tx.Exec(
					`ALTER TABLE issue_delivery_queue
					 ADD CONSTRAINT fk_issue_delivery_queue_issue
					 FOREIGN KEY (newsletter_issue_id) REFERENCES newsletter_issues (id)`,
				).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.DeliveryTaskModel{})
			},
		},
		{
			ID: "000004_create_idempotency",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&idempotency.Record{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&idempotency.Record{})
			},
		},
	})

	return m.Migrate()
}
