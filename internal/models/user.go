package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	FullName     string    `gorm:"size:100;not null;default:Unknown" json:"full_name"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PhoneNumber  string    `gorm:"size:20" json:"phone_number"`
	PasswordHash string    `gorm:"size:128" json:"-"`
	ProfileImage string    `gorm:"size:300" json:"profile_image"`
	GoogleID     *string   `gorm:"uniqueIndex;size:64" json:"-"`
	Role         string    `gorm:"size:20;not null;default:student" json:"role"`
	Status       string    `gorm:"size:20;not null;default:pending" json:"status"`

	Enrollments []Enrollment `json:"enrollments,omitempty" gorm:"foreignKey:UserID"`
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether pwd matches the stored hash. Accounts without a
// password (Google-only) never match.
func (u *User) CheckPassword(pwd string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(pwd)) == nil
}

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }
