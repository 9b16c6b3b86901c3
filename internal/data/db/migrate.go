package db

import (
	"gorm.io/gorm"

	"github.com/yungbote/promptstudy-backend/internal/domain/study"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&study.SubmissionEvent{},
	)
}
