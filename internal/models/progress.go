package models

import "time"

// LessonProgress is unique per (user, lesson).
type LessonProgress struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	UserID      uint       `gorm:"uniqueIndex:unique_user_lesson_progress;not null" json:"user_id"`
	LessonID    uint       `gorm:"uniqueIndex:unique_user_lesson_progress;index;not null" json:"lesson_id"`
	IsCompleted bool       `gorm:"not null;default:false" json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at"`
}
