package database

import (
	"github.com/s/learnhub/internal/models"
	"gorm.io/gorm"
)

// AutoMigrate creates missing tables, columns and indexes. It never drops
// anything, so it is safe to run against an existing database on every start.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Course{},
		&models.Enrollment{},
		&models.Module{},
		&models.Lesson{},
		&models.LessonProgress{},
		&models.Quiz{},
		&models.Question{},
		&models.QuizResult{},
		&models.Assignment{},
		&models.Submission{},
		&models.Notification{},
		&models.UserLog{},
	)
}
