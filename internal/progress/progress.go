// Package progress tracks enrollments and per-lesson completion.
package progress

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/s/learnhub/internal/models"
)

var (
	ErrAlreadyEnrolled = errors.New("student is already enrolled in this course")
	ErrNotEnrolled     = errors.New("student is not enrolled in this course")
	ErrNotFound        = errors.New("not found")
)

// Percent returns floor(100*done/total), or 0 when there is nothing to do.
func Percent(done, total int) int {
	if total <= 0 {
		return 0
	}
	return 100 * done / total
}

// Average returns the truncated mean, 0 for an empty list.
func Average(percents []int) int {
	if len(percents) == 0 {
		return 0
	}
	sum := 0
	for _, p := range percents {
		sum += p
	}
	return sum / len(percents)
}

type Tracker struct {
	DB  *gorm.DB
	now func() time.Time
}

func NewTracker(db *gorm.DB) *Tracker {
	return &Tracker{DB: db, now: time.Now}
}

// CourseProgress is a course with the student's completion.
type CourseProgress struct {
	Course           models.Course `json:"course"`
	TotalLessons     int           `json:"total_lessons"`
	CompletedLessons int           `json:"completed_lessons"`
	Percent          int           `json:"percent"`
}

// Dashboard is the student landing page.
type Dashboard struct {
	Courses            []CourseProgress `json:"courses"`
	AverageProgress    int              `json:"average_progress"`
	PendingAssignments int              `json:"pending_assignments"`
}

func (t *Tracker) lessonIDs(courseID uint) ([]uint, error) {
	var ids []uint
	err := t.DB.Model(&models.Lesson{}).
		Joins("JOIN modules ON modules.id = lessons.module_id").
		Where("modules.course_id = ?", courseID).
		Pluck("lessons.id", &ids).Error
	return ids, err
}

// CompletedLessonIDs returns the lessons of the course the student has completed.
func (t *Tracker) CompletedLessonIDs(userID, courseID uint) ([]uint, error) {
	var ids []uint
	err := t.DB.Model(&models.LessonProgress{}).
		Joins("JOIN lessons ON lessons.id = lesson_progresses.lesson_id").
		Joins("JOIN modules ON modules.id = lessons.module_id").
		Where("modules.course_id = ? AND lesson_progresses.user_id = ? AND lesson_progresses.is_completed = ?", courseID, userID, true).
		Pluck("lesson_progresses.lesson_id", &ids).Error
	return ids, errors.Wrap(err, "loading completed lessons")
}

// CourseProgress computes the student's completion of one course.
func (t *Tracker) CourseProgress(userID uint, course models.Course) (CourseProgress, error) {
	lessons, err := t.lessonIDs(course.ID)
	if err != nil {
		return CourseProgress{}, errors.Wrap(err, "loading course lessons")
	}
	done, err := t.CompletedLessonIDs(userID, course.ID)
	if err != nil {
		return CourseProgress{}, err
	}
	return CourseProgress{
		Course:           course,
		TotalLessons:     len(lessons),
		CompletedLessons: len(done),
		Percent:          Percent(len(done), len(lessons)),
	}, nil
}

// Toggle creates a completed progress row or flips the existing one, and
// returns the new completion state.
func (t *Tracker) Toggle(userID, lessonID uint) (bool, error) {
	var completed bool
	err := t.DB.Transaction(func(tx *gorm.DB) error {
		var lesson models.Lesson
		if err := tx.Select("id").First(&lesson, lessonID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var p models.LessonProgress
		err := tx.Where("user_id = ? AND lesson_id = ?", userID, lessonID).First(&p).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			now := t.now()
			p = models.LessonProgress{UserID: userID, LessonID: lessonID, IsCompleted: true, CompletedAt: &now}
			completed = true
			return tx.Create(&p).Error
		case err != nil:
			return err
		}

		completed = !p.IsCompleted
		var at *time.Time
		if completed {
			now := t.now()
			at = &now
		}
		return tx.Model(&p).Select("is_completed", "completed_at").
			Updates(models.LessonProgress{IsCompleted: completed, CompletedAt: at}).Error
	})
	return completed, errors.Wrap(err, "toggling lesson progress")
}

// EnrolledCourses returns the student's courses newest enrollment first.
func (t *Tracker) EnrolledCourses(userID uint) ([]models.Course, error) {
	var courses []models.Course
	err := t.DB.Joins("JOIN enrollments ON enrollments.course_id = courses.id").
		Where("enrollments.user_id = ?", userID).
		Preload("Category").
		Order("enrollments.created_at desc, courses.id").
		Find(&courses).Error
	return courses, errors.Wrap(err, "loading enrolled courses")
}

func (t *Tracker) Dashboard(userID uint) (*Dashboard, error) {
	courses, err := t.EnrolledCourses(userID)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{Courses: make([]CourseProgress, 0, len(courses))}
	percents := make([]int, 0, len(courses))
	for _, c := range courses {
		cp, err := t.CourseProgress(userID, c)
		if err != nil {
			return nil, err
		}
		d.Courses = append(d.Courses, cp)
		percents = append(percents, cp.Percent)
	}
	d.AverageProgress = Average(percents)

	var pending int64
	err = t.DB.Model(&models.Assignment{}).
		Joins("JOIN lessons ON lessons.id = assignments.lesson_id").
		Joins("JOIN modules ON modules.id = lessons.module_id").
		Joins("JOIN enrollments ON enrollments.course_id = modules.course_id AND enrollments.user_id = ?", userID).
		Where("NOT EXISTS (SELECT 1 FROM submissions WHERE submissions.assignment_id = assignments.id AND submissions.user_id = ?)", userID).
		Count(&pending).Error
	if err != nil {
		return nil, errors.Wrap(err, "counting pending assignments")
	}
	d.PendingAssignments = int(pending)
	return d, nil
}

// Enroll adds the course to the student's enrollments.
func (t *Tracker) Enroll(userID, courseID uint) error {
	err := t.DB.Create(&models.Enrollment{UserID: userID, CourseID: courseID}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyEnrolled
	}
	return errors.Wrap(err, "enrolling student")
}

func (t *Tracker) Unenroll(userID, courseID uint) error {
	res := t.DB.Where("user_id = ? AND course_id = ?", userID, courseID).Delete(&models.Enrollment{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "unenrolling student")
	}
	if res.RowsAffected == 0 {
		return ErrNotEnrolled
	}
	return nil
}

// IsEnrolled reports whether an enrollment row exists for the pair.
func (t *Tracker) IsEnrolled(userID, courseID uint) (bool, error) {
	var n int64
	err := t.DB.Model(&models.Enrollment{}).Where("user_id = ? AND course_id = ?", userID, courseID).Count(&n).Error
	return n > 0, err
}
