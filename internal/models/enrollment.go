package models

import "time"

// Enrollment links a student to a course whose content they may view.
type Enrollment struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	CourseID  uint      `gorm:"primaryKey;autoIncrement:false;index" json:"course_id"`
	CreatedAt time.Time `json:"created_at"`

	User   *User   `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Course *Course `json:"course,omitempty" gorm:"foreignKey:CourseID"`
}
