package models

import (
	"time"

	"gorm.io/datatypes"
)

// PassMark is the minimum percentage for a passed quiz attempt.
const PassMark = 70

// Quiz belongs to exactly one lesson.
type Quiz struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Title     string    `gorm:"size:100;not null" json:"title"`
	LessonID  uint      `gorm:"uniqueIndex;not null" json:"lesson_id"`
	CreatedAt time.Time `json:"created_at"`

	Questions []Question `json:"questions,omitempty"`
}

type Question struct {
	ID            uint                        `gorm:"primarykey" json:"id"`
	QuizID        uint                        `gorm:"index;not null" json:"quiz_id"`
	Text          string                      `gorm:"type:text;not null" json:"text"`
	Options       datatypes.JSONSlice[string] `gorm:"not null" json:"options"`
	CorrectOption int                         `gorm:"not null" json:"correct_option"`
}

// Answers maps a question id to the chosen option index.
type Answers map[uint]int

// QuizResult is an append-only record of one attempt, with the submitted
// answers kept verbatim so the attempt can be reviewed later.
type QuizResult struct {
	ID          uint                        `gorm:"primarykey" json:"id"`
	UserID      uint                        `gorm:"index;not null" json:"user_id"`
	QuizID      uint                        `gorm:"index;not null" json:"quiz_id"`
	Score       int                         `gorm:"not null" json:"score"`
	Passed      bool                        `gorm:"not null;default:false" json:"passed"`
	Answers     datatypes.JSONType[Answers] `json:"answers"`
	AttemptedAt time.Time                   `gorm:"index" json:"attempted_at"`
}
