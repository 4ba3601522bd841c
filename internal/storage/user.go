package storage

import (
	"errors"

	"github.com/s/learnhub/internal/models"
	"gorm.io/gorm"
)

// GoogleProfile is the subset of the Google userinfo response we keep.
type GoogleProfile struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// SaveGoogleUser finds a user by Google ID, then by email; if found, it links
// and refreshes the profile, otherwise it creates a pending student.
func SaveGoogleUser(db *gorm.DB, p GoogleProfile) (models.User, error) {
	var existing models.User

	result := db.Where("google_id = ?", p.ID).First(&existing)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		result = db.Where("email = ?", p.Email).First(&existing)
	}

	if result.Error == nil {
		// Role and status are managed by an admin and never touched here.
		updates := map[string]interface{}{"google_id": p.ID}
		if existing.ProfileImage == "" && p.Picture != "" {
			updates["profile_image"] = p.Picture
		}
		if err := db.Model(&existing).Updates(updates).Error; err != nil {
			return models.User{}, err
		}
		return existing, nil
	} else if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return models.User{}, result.Error
	}

	googleID := p.ID
	user := models.User{
		FullName:     p.Name,
		Email:        p.Email,
		ProfileImage: p.Picture,
		GoogleID:     &googleID,
		Role:         models.RoleStudent,
		Status:       models.StatusPending,
	}
	if user.FullName == "" {
		user.FullName = "Unknown"
	}
	if err := db.Create(&user).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}
