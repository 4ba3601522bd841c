package models

import (
	"time"
)

// Category groups courses in the catalog.
type Category struct {
	ID   uint   `gorm:"primarykey" json:"id"`
	Name string `gorm:"uniqueIndex;size:50;not null" json:"name"`

	Courses []Course `json:"courses,omitempty"`
}

// Course (catalog entry)
type Course struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Title        string    `gorm:"size:100;not null" json:"title"`
	Description  string    `gorm:"type:text;not null" json:"description"`
	ThumbnailURL string    `gorm:"size:200" json:"thumbnail_url"`
	CategoryID   uint      `gorm:"index;not null" json:"category_id"`

	Category *Category `json:"category,omitempty"`
	Modules  []Module  `json:"modules,omitempty"`
}

// Module (ordered section of a course)
type Module struct {
	ID         uint   `gorm:"primarykey" json:"id"`
	Title      string `gorm:"size:100;not null" json:"title"`
	OrderIndex int    `gorm:"not null;default:0" json:"order_index"`
	CourseID   uint   `gorm:"index;not null" json:"course_id"`

	Lessons []Lesson `json:"lessons,omitempty"`
}

// Lesson (ordered inside a module)
type Lesson struct {
	ID         uint   `gorm:"primarykey" json:"id"`
	Title      string `gorm:"size:100;not null" json:"title"`
	VideoURL   string `gorm:"size:200" json:"video_url"`
	Content    string `gorm:"type:text" json:"content"`
	OrderIndex int    `gorm:"not null;default:0" json:"order_index"`
	ModuleID   uint   `gorm:"index;not null" json:"module_id"`

	Quiz       *Quiz       `json:"quiz,omitempty"`
	Assignment *Assignment `json:"assignment,omitempty"`
}

// LessonCount returns the number of lessons across the loaded modules.
func (c *Course) LessonCount() int {
	n := 0
	for _, m := range c.Modules {
		n += len(m.Lessons)
	}
	return n
}

// LessonIDs returns lesson ids of the loaded modules in display order.
func (c *Course) LessonIDs() []uint {
	ids := make([]uint, 0, c.LessonCount())
	for _, m := range c.Modules {
		for _, l := range m.Lessons {
			ids = append(ids, l.ID)
		}
	}
	return ids
}
