package database

import (
	"errors"

	"github.com/s/learnhub/internal/models"
	"gorm.io/gorm"
)

// SeedAdmin creates an approved admin account unless one with this email
// already exists. It reports whether a user was created.
func SeedAdmin(db *gorm.DB, email, password, fullName string) (bool, error) {
	if email == "" || password == "" {
		return false, errors.New("admin email and password are required")
	}

	var existing models.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	if fullName == "" {
		fullName = "System Admin"
	}
	admin := models.User{
		FullName: fullName,
		Email:    email,
		Role:     models.RoleAdmin,
		Status:   models.StatusApproved,
	}
	if err := admin.SetPassword(password); err != nil {
		return false, err
	}
	if err := db.Create(&admin).Error; err != nil {
		return false, err
	}
	return true, nil
}
