// Package assignment implements file-based assignment submission and grading.
package assignment

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/s/learnhub/internal/logger"
	"github.com/s/learnhub/internal/models"
	"github.com/s/learnhub/internal/notify"
	"github.com/s/learnhub/internal/storage"
	"github.com/s/learnhub/internal/validation"
)

var (
	ErrNotFound      = errors.New("assignment not found")
	ErrNoSubmission  = errors.New("submission not found")
	ErrNoLesson      = errors.New("lesson not found")
	ErrAlreadyGraded = errors.New("this assignment has already been graded and cannot be resubmitted")
	ErrNoFile        = errors.New("no file selected")
	ErrFileType      = errors.New("file type not allowed")
	ErrDuplicate     = errors.New("this lesson already has an assignment")
)

// AllowedExtensions lists the upload types accepted for submissions and resources.
var AllowedExtensions = map[string]bool{
	"txt": true, "pdf": true, "png": true, "jpg": true, "jpeg": true,
	"zip": true, "doc": true, "docx": true,
}

// Upload is a client supplied file.
type Upload struct {
	Filename string
	Body     io.Reader
}

func (u *Upload) check() error {
	if u == nil || u.Body == nil || strings.TrimSpace(u.Filename) == "" {
		return ErrNoFile
	}
	if !AllowedExtensions[storage.Ext(u.Filename)] {
		return ErrFileType
	}
	return nil
}

type Service struct {
	DB     *gorm.DB
	Files  storage.FileStore
	Notify *notify.Notifier
	Log    logger.Logger
	now    func() time.Time
}

func NewService(db *gorm.DB, files storage.FileStore, n *notify.Notifier, log logger.Logger) *Service {
	return &Service{DB: db, Files: files, Notify: n, Log: log, now: time.Now}
}

// removeFile deletes a stored file, logging failures.
func (s *Service) removeFile(ref string) {
	if ref == "" {
		return
	}
	if err := s.Files.Remove(ref); err != nil {
		s.Log.Warn(fmt.Sprintf("could not remove file %q", ref), err)
	}
}

func (s *Service) Get(id uint) (*models.Assignment, error) {
	var a models.Assignment
	if err := s.DB.First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "loading assignment")
	}
	return &a, nil
}

func (s *Service) ByLesson(lessonID uint) (*models.Assignment, error) {
	var a models.Assignment
	if err := s.DB.Where("lesson_id = ?", lessonID).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "loading assignment")
	}
	return &a, nil
}

// SubmissionFor returns the student's submission, or nil if there is none.
func (s *Service) SubmissionFor(userID, assignmentID uint) (*models.Submission, error) {
	var sub models.Submission
	err := s.DB.Where("user_id = ? AND assignment_id = ?", userID, assignmentID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "loading submission")
	}
	return &sub, nil
}

// Submission loads one submission with its student.
func (s *Service) Submission(id uint) (*models.Submission, error) {
	var sub models.Submission
	if err := s.DB.Preload("Student").First(&sub, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoSubmission
		}
		return nil, errors.Wrap(err, "loading submission")
	}
	return &sub, nil
}

// Submit stores the student's file for the lesson's assignment. The first
// upload creates the submission, later ones replace its file until it is
// graded.
func (s *Service) Submit(student *models.User, lessonID uint, up *Upload) (*models.Submission, error) {
	if err := up.check(); err != nil {
		return nil, err
	}
	a, err := s.ByLesson(lessonID)
	if err != nil {
		return nil, err
	}
	existing, err := s.SubmissionFor(student.ID, a.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.IsGraded() {
		return nil, ErrAlreadyGraded
	}

	var where struct {
		LessonTitle string
		CourseTitle string
	}
	err = s.DB.Model(&models.Lesson{}).
		Select("lessons.title AS lesson_title, courses.title AS course_title").
		Joins("JOIN modules ON modules.id = lessons.module_id").
		Joins("JOIN courses ON courses.id = modules.course_id").
		Where("lessons.id = ?", lessonID).Scan(&where).Error
	if err != nil {
		return nil, errors.Wrap(err, "loading lesson")
	}

	ref, err := s.Files.Save(storage.FolderAssignments, up.Filename, up.Body)
	if err != nil {
		return nil, errors.Wrap(err, "storing submission file")
	}

	var sub models.Submission
	var replaced string
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND assignment_id = ?", student.ID, a.ID).First(&sub).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			sub = models.Submission{UserID: student.ID, AssignmentID: a.ID, FilePath: ref, SubmittedAt: s.now()}
			if err := tx.Create(&sub).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		case sub.IsGraded():
			return ErrAlreadyGraded
		default:
			replaced = sub.FilePath
			sub.FilePath = ref
			sub.SubmittedAt = s.now()
			if err := tx.Model(&sub).Select("file_path", "submitted_at").Updates(&sub).Error; err != nil {
				return err
			}
		}

		if err := tx.Create(&models.UserLog{
			UserID:  student.ID,
			Action:  models.ActionSubmission,
			Details: fmt.Sprintf("Assignment %d", a.ID),
		}).Error; err != nil {
			return err
		}
		if s.Notify == nil {
			return nil
		}
		return s.Notify.Record(tx,
			fmt.Sprintf("Submission in %s: %s by %s", where.CourseTitle, where.LessonTitle, student.FullName),
			fmt.Sprintf("/api/admin/assignments/%d/submissions", a.ID))
	})
	if err != nil {
		s.removeFile(ref)
		if errors.Is(err, ErrAlreadyGraded) {
			return nil, err
		}
		return nil, errors.Wrap(err, "saving submission")
	}

	s.removeFile(replaced)
	if s.Notify != nil {
		s.Notify.EmailAdmins("New assignment submission",
			fmt.Sprintf("%s (%s) submitted a file for %s: %s.", student.FullName, student.Email, where.CourseTitle, where.LessonTitle))
	}
	return &sub, nil
}

// Grade records the grade and feedback of a submission.
func (s *Service) Grade(submissionID uint, grade int, feedback string) (*models.Submission, error) {
	var sub models.Submission
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sub, submissionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoSubmission
			}
			return err
		}
		var a models.Assignment
		if err := tx.First(&a, sub.AssignmentID).Error; err != nil {
			return err
		}
		if grade < 0 || grade > a.MaxScore {
			return validation.New(
				fmt.Sprintf("grade must be between 0 and %d", a.MaxScore),
				validation.FieldError{Field: "grade", Error: "out of range"},
			)
		}
		sub.Grade = &grade
		sub.Feedback = feedback
		return tx.Model(&sub).Select("grade", "feedback").Updates(&sub).Error
	})
	if err != nil {
		if errors.Is(err, ErrNoSubmission) || validation.Is(err) {
			return nil, err
		}
		return nil, errors.Wrap(err, "grading submission")
	}
	return &sub, nil
}

// Reject deletes the submission so the student can upload again, then
// removes its file.
func (s *Service) Reject(submissionID uint) (*models.Submission, error) {
	var sub models.Submission
	if err := s.DB.First(&sub, submissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoSubmission
		}
		return nil, errors.Wrap(err, "loading submission")
	}
	if err := s.DB.Delete(&sub).Error; err != nil {
		return nil, errors.Wrap(err, "deleting submission")
	}
	s.removeFile(sub.FilePath)
	return &sub, nil
}

// Input is the admin-editable part of an assignment. A zero MaxScore means 100.
type Input struct {
	Instructions string `json:"instructions" validate:"required"`
	MaxScore     int    `json:"max_score" validate:"gte=0,lte=1000"`
}

func (in *Input) normalize() error {
	in.Instructions = strings.TrimSpace(in.Instructions)
	if err := validation.Struct(in); err != nil {
		return err
	}
	if in.MaxScore == 0 {
		in.MaxScore = 100
	}
	return nil
}

func (s *Service) storeResource(resource *Upload) (string, error) {
	if resource == nil {
		return "", nil
	}
	if err := resource.check(); err != nil {
		return "", err
	}
	ref, err := s.Files.Save(storage.FolderResources, resource.Filename, resource.Body)
	return ref, errors.Wrap(err, "storing resource file")
}

// Create adds the lesson's assignment with an optional resource file.
func (s *Service) Create(lessonID uint, in Input, resource *Upload) (*models.Assignment, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	var n int64
	if err := s.DB.Model(&models.Lesson{}).Where("id = ?", lessonID).Count(&n).Error; err != nil {
		return nil, errors.Wrap(err, "loading lesson")
	}
	if n == 0 {
		return nil, ErrNoLesson
	}
	if _, err := s.ByLesson(lessonID); err == nil {
		return nil, ErrDuplicate
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	ref, err := s.storeResource(resource)
	if err != nil {
		return nil, err
	}
	a := models.Assignment{LessonID: lessonID, Instructions: in.Instructions, MaxScore: in.MaxScore, ResourcePath: ref}
	if err := s.DB.Create(&a).Error; err != nil {
		s.removeFile(ref)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicate
		}
		return nil, errors.Wrap(err, "creating assignment")
	}
	return &a, nil
}

// Update edits an assignment; a new resource replaces the previous file.
func (s *Service) Update(id uint, in Input, resource *Upload) (*models.Assignment, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	a, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	ref, err := s.storeResource(resource)
	if err != nil {
		return nil, err
	}

	old := a.ResourcePath
	a.Instructions = in.Instructions
	a.MaxScore = in.MaxScore
	if ref != "" {
		a.ResourcePath = ref
	}
	if err := s.DB.Model(a).Select("instructions", "max_score", "resource_path").Updates(a).Error; err != nil {
		s.removeFile(ref)
		return nil, errors.Wrap(err, "updating assignment")
	}
	if ref != "" {
		s.removeFile(old)
	}
	return a, nil
}

// Delete removes an assignment with its submissions and their files.
func (s *Service) Delete(id uint) error {
	var files []string
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var a models.Assignment
		if err := tx.First(&a, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		var subs []string
		if err := tx.Model(&models.Submission{}).Where("assignment_id = ?", id).Pluck("file_path", &subs).Error; err != nil {
			return err
		}
		if err := tx.Where("assignment_id = ?", id).Delete(&models.Submission{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&a).Error; err != nil {
			return err
		}
		files = append(subs, a.ResourcePath)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return errors.Wrap(err, "deleting assignment")
	}
	for _, f := range files {
		s.removeFile(f)
	}
	return nil
}

// Submissions lists an assignment's submissions, newest first.
func (s *Service) Submissions(assignmentID uint) ([]models.Submission, error) {
	if _, err := s.Get(assignmentID); err != nil {
		return nil, err
	}
	var subs []models.Submission
	err := s.DB.Preload("Student").Where("assignment_id = ?", assignmentID).
		Order("submitted_at desc, id desc").Find(&subs).Error
	return subs, errors.Wrap(err, "loading submissions")
}

// Entry describes an assignment with where it lives in the catalog.
type Entry struct {
	Assignment  models.Assignment  `json:"assignment"`
	LessonTitle string             `json:"lesson_title"`
	CourseID    uint               `json:"course_id"`
	CourseTitle string             `json:"course_title"`
	Submission  *models.Submission `json:"submission,omitempty"`
	Status      string             `json:"status,omitempty"`
	Submitted   int64              `json:"submitted"`
	Ungraded    int64              `json:"ungraded"`
}

type entryRow struct {
	ID           uint
	LessonID     uint
	Instructions string
	MaxScore     int
	ResourcePath string
	CreatedAt    time.Time
	LessonTitle  string
	CourseID     uint
	CourseTitle  string
}

func (r entryRow) entry() Entry {
	return Entry{
		Assignment: models.Assignment{
			ID: r.ID, LessonID: r.LessonID, Instructions: r.Instructions,
			MaxScore: r.MaxScore, ResourcePath: r.ResourcePath, CreatedAt: r.CreatedAt,
		},
		LessonTitle: r.LessonTitle,
		CourseID:    r.CourseID,
		CourseTitle: r.CourseTitle,
	}
}

func (s *Service) entries(scope func(*gorm.DB) *gorm.DB) ([]entryRow, error) {
	var rows []entryRow
	q := s.DB.Model(&models.Assignment{}).
		Select("assignments.id, assignments.lesson_id, assignments.instructions, assignments.max_score, " +
			"assignments.resource_path, assignments.created_at, lessons.title AS lesson_title, " +
			"courses.id AS course_id, courses.title AS course_title").
		Joins("JOIN lessons ON lessons.id = assignments.lesson_id").
		Joins("JOIN modules ON modules.id = lessons.module_id").
		Joins("JOIN courses ON courses.id = modules.course_id")
	err := scope(q).Order("courses.title, modules.order_index, lessons.order_index, assignments.id").Scan(&rows).Error
	return rows, errors.Wrap(err, "listing assignments")
}

// ListAll is the admin overview with submission counts.
func (s *Service) ListAll() ([]Entry, error) {
	rows, err := s.entries(func(q *gorm.DB) *gorm.DB { return q })
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		e := r.entry()
		base := s.DB.Model(&models.Submission{}).Where("assignment_id = ?", r.ID)
		if err := base.Session(&gorm.Session{}).Count(&e.Submitted).Error; err != nil {
			return nil, errors.Wrap(err, "counting submissions")
		}
		if err := base.Session(&gorm.Session{}).Where("grade IS NULL").Count(&e.Ungraded).Error; err != nil {
			return nil, errors.Wrap(err, "counting submissions")
		}
		out = append(out, e)
	}
	return out, nil
}

var statusRank = map[string]int{
	models.SubmissionPending:   0,
	models.SubmissionSubmitted: 1,
	models.SubmissionGraded:    2,
}

// Overview lists the assignments of the student's enrolled courses with
// their status, pending ones first.
func (s *Service) Overview(userID uint) ([]Entry, error) {
	rows, err := s.entries(func(q *gorm.DB) *gorm.DB {
		return q.Joins("JOIN enrollments ON enrollments.course_id = courses.id AND enrollments.user_id = ?", userID)
	})
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		e := r.entry()
		sub, err := s.SubmissionFor(userID, r.ID)
		if err != nil {
			return nil, err
		}
		e.Submission = sub
		e.Status = sub.State()
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return statusRank[out[i].Status] < statusRank[out[j].Status]
	})
	return out, nil
}

// CourseIDForAssignment resolves the course owning an assignment.
func (s *Service) CourseIDForAssignment(assignmentID uint) (uint, error) {
	var ids []uint
	err := s.DB.Model(&models.Assignment{}).
		Joins("JOIN lessons ON lessons.id = assignments.lesson_id").
		Joins("JOIN modules ON modules.id = lessons.module_id").
		Where("assignments.id = ?", assignmentID).
		Pluck("modules.course_id", &ids).Error
	if err != nil {
		return 0, errors.Wrap(err, "resolving course")
	}
	if len(ids) == 0 {
		return 0, ErrNotFound
	}
	return ids[0], nil
}
