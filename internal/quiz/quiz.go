package quiz

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/s/learnhub/internal/models"
	"github.com/s/learnhub/internal/validation"
)

var (
	ErrNotFound = errors.New("quiz not found")
	// ErrNoLesson is returned when the target lesson does not exist.
	ErrNoLesson = errors.New("lesson not found")
)

// QuestionInput is one question of an authoring payload.
type QuestionInput struct {
	Text          string   `json:"text" validate:"required"`
	Options       []string `json:"options" validate:"min=2,dive,required"`
	CorrectOption int      `json:"correct_option" validate:"gte=0"`
}

// Input replaces the whole quiz of a lesson.
type Input struct {
	Title     string          `json:"title" validate:"required,max=100"`
	Questions []QuestionInput `json:"questions" validate:"min=1,dive"`
}

// Validate checks the payload; nothing is written when it fails.
func (in Input) Validate() error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	for i, q := range in.Questions {
		if q.CorrectOption >= len(q.Options) {
			return validation.New(
				fmt.Sprintf("question %d: correct option out of range", i+1),
				validation.FieldError{Field: fmt.Sprintf("questions[%d].correct_option", i), Error: "out of range"},
			)
		}
	}
	return nil
}

// Service is the quiz engine.
type Service struct {
	DB  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db, now: time.Now}
}

// ByLesson loads the lesson's quiz with its questions in authoring order.
func (s *Service) ByLesson(lessonID uint) (*models.Quiz, error) {
	var q models.Quiz
	err := s.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("lesson_id = ?", lessonID).First(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "loading quiz")
	}
	return &q, nil
}

// Save creates the lesson's quiz or replaces its title and every question.
// Earlier results are kept.
func (s *Service) Save(lessonID uint, in Input) (*models.Quiz, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var quiz models.Quiz
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Lesson{}).Where("id = ?", lessonID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNoLesson
		}

		err := tx.Where("lesson_id = ?", lessonID).First(&quiz).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			quiz = models.Quiz{Title: in.Title, LessonID: lessonID}
			if err := tx.Create(&quiz).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := tx.Model(&quiz).Update("title", in.Title).Error; err != nil {
				return err
			}
			quiz.Title = in.Title
		}

		if err := tx.Where("quiz_id = ?", quiz.ID).Delete(&models.Question{}).Error; err != nil {
			return err
		}

		questions := make([]models.Question, 0, len(in.Questions))
		for _, q := range in.Questions {
			questions = append(questions, models.Question{
				QuizID:        quiz.ID,
				Text:          q.Text,
				Options:       datatypes.JSONSlice[string](q.Options),
				CorrectOption: q.CorrectOption,
			})
		}
		if err := tx.Create(&questions).Error; err != nil {
			return err
		}
		quiz.Questions = questions
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNoLesson) {
			return nil, err
		}
		return nil, errors.Wrap(err, "saving quiz")
	}
	return &quiz, nil
}

// Delete removes the lesson's quiz together with its questions and results.
func (s *Service) Delete(lessonID uint) error {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var quiz models.Quiz
		if err := tx.Where("lesson_id = ?", lessonID).First(&quiz).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Where("quiz_id = ?", quiz.ID).Delete(&models.QuizResult{}).Error; err != nil {
			return err
		}
		if err := tx.Where("quiz_id = ?", quiz.ID).Delete(&models.Question{}).Error; err != nil {
			return err
		}
		return tx.Delete(&quiz).Error
	})
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return errors.Wrap(err, "deleting quiz")
}

// StudentQuestion is a question without its answer key.
type StudentQuestion struct {
	ID      uint     `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

type StudentQuiz struct {
	ID        uint              `json:"id"`
	Title     string            `json:"title"`
	LessonID  uint              `json:"lesson_id"`
	Questions []StudentQuestion `json:"questions"`
}

// ForStudent returns the lesson's quiz with the correct options stripped.
func (s *Service) ForStudent(lessonID uint) (*StudentQuiz, error) {
	q, err := s.ByLesson(lessonID)
	if err != nil {
		return nil, err
	}
	out := &StudentQuiz{ID: q.ID, Title: q.Title, LessonID: q.LessonID, Questions: make([]StudentQuestion, 0, len(q.Questions))}
	for _, question := range q.Questions {
		out.Questions = append(out.Questions, StudentQuestion{
			ID:      question.ID,
			Text:    question.Text,
			Options: []string(question.Options),
		})
	}
	return out, nil
}

// Submit grades an attempt and appends it to the student's results.
func (s *Service) Submit(userID, lessonID uint, answers models.Answers) (*models.QuizResult, error) {
	q, err := s.ByLesson(lessonID)
	if err != nil {
		return nil, err
	}

	out := Score(q.Questions, answers)
	result := models.QuizResult{
		UserID:      userID,
		QuizID:      q.ID,
		Score:       out.Score,
		Passed:      out.Passed,
		Answers:     datatypes.NewJSONType(out.Transcript),
		AttemptedAt: s.now(),
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&result).Error; err != nil {
			return err
		}
		return tx.Create(&models.UserLog{
			UserID:  userID,
			Action:  models.ActionQuizAttempt,
			Details: fmt.Sprintf("Quiz %d (%s): %d%%", q.ID, q.Title, out.Score),
		}).Error
	})
	if err != nil {
		return nil, errors.Wrap(err, "recording quiz result")
	}
	return &result, nil
}

// Latest returns the most recent attempt, or nil when there is none.
func (s *Service) Latest(userID, quizID uint) (*models.QuizResult, error) {
	var r models.QuizResult
	err := s.DB.Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Order("attempted_at desc, id desc").First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "loading latest result")
	}
	return &r, nil
}

// Result loads a single attempt.
func (s *Service) Result(id uint) (*models.QuizResult, error) {
	var r models.QuizResult
	if err := s.DB.First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "loading result")
	}
	return &r, nil
}

// ReviewItem pairs a current question with the answer given in an attempt.
// Answered is false for questions added after the attempt.
type ReviewItem struct {
	QuestionID    uint     `json:"question_id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correct_option"`
	Answer        int      `json:"answer"`
	Answered      bool     `json:"answered"`
	Correct       bool     `json:"correct"`
}

type Review struct {
	Result *models.QuizResult `json:"result"`
	Quiz   *models.Quiz       `json:"quiz"`
	Items  []ReviewItem       `json:"items"`
}

// Review builds the answer key of an attempt against the quiz as it is now.
// Answers to questions removed since the attempt are skipped.
func (s *Service) Review(result *models.QuizResult) (*Review, error) {
	var q models.Quiz
	err := s.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).First(&q, result.QuizID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "loading quiz")
	}

	given := result.Answers.Data()
	items := make([]ReviewItem, 0, len(q.Questions))
	for _, question := range q.Questions {
		item := ReviewItem{
			QuestionID:    question.ID,
			Text:          question.Text,
			Options:       []string(question.Options),
			CorrectOption: question.CorrectOption,
			Answer:        -1,
		}
		if a, ok := given[question.ID]; ok {
			item.Answer = a
			item.Answered = true
			item.Correct = a == question.CorrectOption
		}
		items = append(items, item)
	}
	return &Review{Result: result, Quiz: &q, Items: items}, nil
}

// Entry is a quiz together with the viewer's latest attempt.
type Entry struct {
	Quiz        models.Quiz        `json:"quiz"`
	LessonTitle string             `json:"lesson_title"`
	CourseID    uint               `json:"course_id"`
	CourseTitle string             `json:"course_title"`
	Latest      *models.QuizResult `json:"latest,omitempty"`
	Attempts    int64              `json:"attempts"`
}

type entryRow struct {
	ID          uint
	Title       string
	LessonID    uint
	CreatedAt   time.Time
	LessonTitle string
	CourseID    uint
	CourseTitle string
}

func (r entryRow) entry() Entry {
	return Entry{
		Quiz:        models.Quiz{ID: r.ID, Title: r.Title, LessonID: r.LessonID, CreatedAt: r.CreatedAt},
		LessonTitle: r.LessonTitle,
		CourseID:    r.CourseID,
		CourseTitle: r.CourseTitle,
	}
}

func (s *Service) entries(scope func(*gorm.DB) *gorm.DB) ([]entryRow, error) {
	var rows []entryRow
	q := s.DB.Model(&models.Quiz{}).
		Select("quizzes.id, quizzes.title, quizzes.lesson_id, quizzes.created_at, lessons.title AS lesson_title, courses.id AS course_id, courses.title AS course_title").
		Joins("JOIN lessons ON lessons.id = quizzes.lesson_id").
		Joins("JOIN modules ON modules.id = lessons.module_id").
		Joins("JOIN courses ON courses.id = modules.course_id")
	err := scope(q).Order("courses.title, modules.order_index, lessons.order_index, quizzes.id").Scan(&rows).Error
	return rows, errors.Wrap(err, "listing quizzes")
}

// ListForStudent returns every quiz of the student's enrolled courses with
// the latest attempt, if any.
func (s *Service) ListForStudent(userID uint) ([]Entry, error) {
	rows, err := s.entries(func(q *gorm.DB) *gorm.DB {
		return q.Joins("JOIN enrollments ON enrollments.course_id = courses.id AND enrollments.user_id = ?", userID)
	})
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		latest, err := s.Latest(userID, r.ID)
		if err != nil {
			return nil, err
		}
		e := r.entry()
		e.Latest = latest
		if err := s.DB.Model(&models.QuizResult{}).Where("user_id = ? AND quiz_id = ?", userID, r.ID).Count(&e.Attempts).Error; err != nil {
			return nil, errors.Wrap(err, "counting attempts")
		}
		out = append(out, e)
	}
	return out, nil
}

// ListAll returns every quiz for the admin overview with its total attempt count.
func (s *Service) ListAll() ([]Entry, error) {
	rows, err := s.entries(func(q *gorm.DB) *gorm.DB { return q })
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		e := r.entry()
		if err := s.DB.Model(&models.QuizResult{}).Where("quiz_id = ?", r.ID).Count(&e.Attempts).Error; err != nil {
			return nil, errors.Wrap(err, "counting attempts")
		}
		out = append(out, e)
	}
	return out, nil
}

// CourseIDForQuiz resolves the course that owns a quiz.
func (s *Service) CourseIDForQuiz(quizID uint) (uint, error) {
	var ids []uint
	err := s.DB.Model(&models.Quiz{}).
		Joins("JOIN lessons ON lessons.id = quizzes.lesson_id").
		Joins("JOIN modules ON modules.id = lessons.module_id").
		Where("quizzes.id = ?", quizID).
		Pluck("modules.course_id", &ids).Error
	if err != nil {
		return 0, errors.Wrap(err, "resolving course")
	}
	if len(ids) == 0 {
		return 0, ErrNotFound
	}
	return ids[0], nil
}
