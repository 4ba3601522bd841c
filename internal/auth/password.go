// Package auth covers sign-in: password credentials, registration and Google OAuth.
package auth

import (
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/s/learnhub/internal/models"
	"github.com/s/learnhub/internal/validation"
)

var (
	ErrInvalidCredentials = errors.New("Invalid email or password.")
	ErrAccountDisabled    = errors.New("Your account has been disabled. Please contact the administrator.")
	ErrAccountPending     = errors.New("Account pending approval. Please wait for an administrator to approve your registration.")
	ErrEmailTaken         = errors.New("Email already registered.")
)

// CheckStatus applies the account status rules to an authenticated user.
// Admins are never blocked by status.
func CheckStatus(u *models.User) error {
	if u.IsAdmin() {
		return nil
	}
	switch u.Status {
	case models.StatusApproved:
		return nil
	case models.StatusDisabled:
		return ErrAccountDisabled
	default:
		return ErrAccountPending
	}
}

// Authenticate checks an email/password pair and the account status.
func Authenticate(db *gorm.DB, email, password string) (*models.User, error) {
	var u models.User
	err := db.Where("email = ?", normalizeEmail(email)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, errors.Wrap(err, "loading user")
	}
	if !u.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	if err := CheckStatus(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

type RegisterInput struct {
	FullName        string `json:"full_name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email"`
	PhoneNumber     string `json:"phone_number" validate:"max=20"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// Register creates a pending student account.
func Register(db *gorm.DB, in RegisterInput) (*models.User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = normalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	u := models.User{
		FullName:    in.FullName,
		Email:       in.Email,
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
		Role:        models.RoleStudent,
		Status:      models.StatusPending,
	}
	if err := u.SetPassword(in.Password); err != nil {
		return nil, errors.Wrap(err, "hashing password")
	}
	if err := db.Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, errors.Wrap(err, "creating user")
	}
	return &u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
