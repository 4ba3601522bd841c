package models

import "time"

type Assignment struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	LessonID     uint      `gorm:"uniqueIndex;not null" json:"lesson_id"`
	Instructions string    `gorm:"type:text;not null" json:"instructions"`
	MaxScore     int       `gorm:"not null;default:100" json:"max_score"`
	ResourcePath string    `gorm:"size:300" json:"resource_path"`
	CreatedAt    time.Time `json:"created_at"`

	Submissions []Submission `json:"submissions,omitempty"`
}

// Submission is the single active upload of a student for an assignment.
// A nil Grade means it has not been graded yet.
type Submission struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	UserID       uint      `gorm:"uniqueIndex:idx_submission_user_assignment;not null" json:"user_id"`
	AssignmentID uint      `gorm:"uniqueIndex:idx_submission_user_assignment;index;not null" json:"assignment_id"`
	FilePath     string    `gorm:"size:300;not null" json:"file_path"`
	Grade        *int      `json:"grade"`
	Feedback     string    `gorm:"type:text" json:"feedback"`
	SubmittedAt  time.Time `json:"submitted_at"`

	Student *User `json:"student,omitempty" gorm:"foreignKey:UserID"`
}

func (s *Submission) IsGraded() bool { return s.Grade != nil }

// Submission states shown to students.
const (
	SubmissionPending   = "Pending"
	SubmissionSubmitted = "Submitted"
	SubmissionGraded    = "Graded"
)

// State returns the student-facing status of an assignment given its
// submission, which may be nil.
func (s *Submission) State() string {
	switch {
	case s == nil:
		return SubmissionPending
	case s.IsGraded():
		return SubmissionGraded
	default:
		return SubmissionSubmitted
	}
}
