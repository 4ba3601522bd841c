package models

import "time"

// Notification is shown on the admin dashboard until marked read.
type Notification struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Message   string    `gorm:"size:255;not null" json:"message"`
	IsRead    bool      `gorm:"not null;default:false;index" json:"is_read"`
	Link      string    `gorm:"size:300" json:"link"`
	CreatedAt time.Time `json:"created_at"`
}
