package models

import (
	"time"
)

// UserLog keeps the history of a user's actions.
type UserLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	Action    string    `gorm:"size:32" json:"action"`
	Details   string    `gorm:"size:255" json:"details"` // e.g. "Quiz 5: 66%"
	CreatedAt time.Time `json:"created_at"`
}

const (
	ActionLogin       = "login"
	ActionQuizAttempt = "quiz_attempt"
	ActionSubmission  = "submission"
)
