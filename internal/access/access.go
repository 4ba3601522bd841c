// Package access answers who may see which course content.
package access

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/s/learnhub/internal/models"
)

var ErrNotFound = errors.New("not found")

type Gate struct {
	DB *gorm.DB
}

func NewGate(db *gorm.DB) *Gate {
	return &Gate{DB: db}
}

// CanAccessCourse reports whether u may view the course content: admins
// always, students only while enrolled.
func (g *Gate) CanAccessCourse(u *models.User, courseID uint) (bool, error) {
	if u == nil {
		return false, nil
	}
	if u.IsAdmin() {
		return true, nil
	}
	var n int64
	err := g.DB.Model(&models.Enrollment{}).
		Where("user_id = ? AND course_id = ?", u.ID, courseID).
		Count(&n).Error
	return n > 0, errors.Wrap(err, "checking enrollment")
}

// CourseIDForLesson resolves the course owning a lesson.
func (g *Gate) CourseIDForLesson(lessonID uint) (uint, error) {
	var ids []uint
	err := g.DB.Model(&models.Lesson{}).
		Joins("JOIN modules ON modules.id = lessons.module_id").
		Where("lessons.id = ?", lessonID).
		Pluck("modules.course_id", &ids).Error
	if err != nil {
		return 0, errors.Wrap(err, "resolving course")
	}
	if len(ids) == 0 {
		return 0, ErrNotFound
	}
	return ids[0], nil
}

// CanAccessLesson combines CourseIDForLesson and CanAccessCourse.
func (g *Gate) CanAccessLesson(u *models.User, lessonID uint) (bool, error) {
	courseID, err := g.CourseIDForLesson(lessonID)
	if err != nil {
		return false, err
	}
	return g.CanAccessCourse(u, courseID)
}

// CanDownloadSubmission allows admins and the submitting student.
func CanDownloadSubmission(u *models.User, sub *models.Submission) bool {
	if u == nil || sub == nil {
		return false
	}
	return u.IsAdmin() || sub.UserID == u.ID
}
