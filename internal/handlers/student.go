package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/s/learnhub/internal/access"
	"github.com/s/learnhub/internal/models"
	"github.com/s/learnhub/internal/progress"
)

func orderedContent(db *gorm.DB) *gorm.DB {
	return db.Preload("Modules", func(db *gorm.DB) *gorm.DB {
		return db.Order("order_index, id")
	}).Preload("Modules.Lessons", func(db *gorm.DB) *gorm.DB {
		return db.Order("order_index, id")
	})
}

// HandleCatalog lists courses, optionally filtered by category_id or a title search.
func (h *Handler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	q := h.DB.Preload("Category").Order("created_at desc, id desc")
	if c := r.URL.Query().Get("category_id"); c != "" {
		id, err := strconv.ParseUint(c, 10, 64)
		if err != nil {
			JSONError(w, "Invalid category_id", http.StatusBadRequest)
			return
		}
		q = q.Where("category_id = ?", id)
	}
	if s := r.URL.Query().Get("search"); s != "" {
		q = q.Where("LOWER(title) LIKE LOWER(?)", "%"+s+"%")
	}

	var courses []models.Course
	if err := q.Find(&courses).Error; err != nil {
		h.Fail(w, err)
		return
	}
	var categories []models.Category
	if err := h.DB.Order("name").Find(&categories).Error; err != nil {
		h.Fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"courses": courses, "categories": categories})
}

func (h *Handler) HandleStudentDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Progress.Dashboard(CurrentUser(r).ID)
	if err != nil {
		h.Fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, d)
}

// CourseView is the course content page.
type CourseView struct {
	Course             models.Course               `json:"course"`
	Progress           *progress.CourseProgress    `json:"progress,omitempty"`
	CompletedLessonIDs []uint                      `json:"completed_lesson_ids"`
	QuizResults        map[uint]*models.QuizResult `json:"quiz_results"`
	Submissions        map[uint]*models.Submission `json:"submissions"`
	Quizzes            map[uint]uint               `json:"quizzes"`
	Assignments        map[uint]uint               `json:"assignments"`
}

// courseAccess checks the enrollment gate for courseID and answers 403 when it is closed.
func (h *Handler) courseAccess(w http.ResponseWriter, r *http.Request, courseID uint) bool {
	ok, err := h.Gate.CanAccessCourse(CurrentUser(r), courseID)
	if err != nil {
		h.Fail(w, err)
		return false
	}
	if !ok {
		h.AddFlash(w, r, "danger", "You are not enrolled in this course.")
		Forbidden(w)
		return false
	}
	return true
}

// lessonAccess resolves the lesson's course and checks the gate.
func (h *Handler) lessonAccess(w http.ResponseWriter, r *http.Request) (uint, bool) {
	lessonID, err := PathID(r, "id")
	if err != nil {
		h.Fail(w, err)
		return 0, false
	}
	courseID, err := h.Gate.CourseIDForLesson(lessonID)
	if err != nil {
		h.Fail(w, err)
		return 0, false
	}
	return lessonID, h.courseAccess(w, r, courseID)
}

func (h *Handler) HandleCourseView(w http.ResponseWriter, r *http.Request) {
	courseID, err := PathID(r, "id")
	if err != nil {
		h.Fail(w, err)
		return
	}
	var course models.Course
	if err := orderedContent(h.DB.Preload("Category")).First(&course, courseID).Error; err != nil {
		h.Fail(w, err)
		return
	}
	if !h.courseAccess(w, r, course.ID) {
		return
	}

	u := CurrentUser(r)
	view := CourseView{
		Course:      course,
		QuizResults: map[uint]*models.QuizResult{},
		Submissions: map[uint]*models.Submission{},
		Quizzes:     map[uint]uint{},
		Assignments: map[uint]uint{},
	}
	lessonIDs := course.LessonIDs()

	var quizzes []models.Quiz
	if err := h.DB.Where("lesson_id IN ?", lessonIDs).Find(&quizzes).Error; err != nil {
		h.Fail(w, err)
		return
	}
	var assignments []models.Assignment
	if err := h.DB.Where("lesson_id IN ?", lessonIDs).Find(&assignments).Error; err != nil {
		h.Fail(w, err)
		return
	}
	for _, q := range quizzes {
		view.Quizzes[q.LessonID] = q.ID
	}
	for _, a := range assignments {
		view.Assignments[a.LessonID] = a.ID
	}

	if u.IsStudent() {
		cp, err := h.Progress.CourseProgress(u.ID, course)
		if err != nil {
			h.Fail(w, err)
			return
		}
		view.Progress = &cp
		if view.CompletedLessonIDs, err = h.Progress.CompletedLessonIDs(u.ID, course.ID); err != nil {
			h.Fail(w, err)
			return
		}
		for _, q := range quizzes {
			res, err := h.Quizzes.Latest(u.ID, q.ID)
			if err != nil {
				h.Fail(w, err)
				return
			}
			if res != nil {
				view.QuizResults[q.LessonID] = res
			}
		}
		for _, a := range assignments {
			sub, err := h.Assignments.SubmissionFor(u.ID, a.ID)
			if err != nil {
				h.Fail(w, err)
				return
			}
			if sub != nil {
				view.Submissions[a.LessonID] = sub
			}
		}
	}
	if view.CompletedLessonIDs == nil {
		view.CompletedLessonIDs = []uint{}
	}
	WriteJSON(w, http.StatusOK, view)
}

// nextLesson is the next lesson of the module by order, else the first
// lesson of the next module in the course.
func (h *Handler) nextLesson(lesson models.Lesson) (*models.Lesson, error) {
	var next models.Lesson
	err := h.DB.Where("module_id = ? AND order_index > ?", lesson.ModuleID, lesson.OrderIndex).
		Order("order_index, id").First(&next).Error
	if err == nil {
		return &next, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var current models.Module
	if err := h.DB.First(&current, lesson.ModuleID).Error; err != nil {
		return nil, err
	}
	var modules []models.Module
	err = h.DB.Where("course_id = ? AND order_index > ?", current.CourseID, current.OrderIndex).
		Order("order_index, id").Find(&modules).Error
	if err != nil {
		return nil, err
	}
	for _, m := range modules {
		err := h.DB.Where("module_id = ?", m.ID).Order("order_index, id").First(&next).Error
		if err == nil {
			return &next, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// LessonView is the lesson player.
type LessonView struct {
	Lesson      models.Lesson      `json:"lesson"`
	CourseID    uint               `json:"course_id"`
	IsCompleted bool               `json:"is_completed"`
	NextLesson  *models.Lesson     `json:"next_lesson"`
	Quiz        *models.Quiz       `json:"quiz,omitempty"`
	QuizResult  *models.QuizResult `json:"quiz_result,omitempty"`
	Assignment  *models.Assignment `json:"assignment,omitempty"`
	Submission  *models.Submission `json:"submission,omitempty"`
	Status      string             `json:"assignment_status,omitempty"`
}

func (h *Handler) HandleLessonView(w http.ResponseWriter, r *http.Request) {
	lessonID, ok := h.lessonAccess(w, r)
	if !ok {
		return
	}
	u := CurrentUser(r)

	var lesson models.Lesson
	if err := h.DB.First(&lesson, lessonID).Error; err != nil {
		h.Fail(w, err)
		return
	}
	courseID, err := h.Gate.CourseIDForLesson(lessonID)
	if err != nil {
		h.Fail(w, err)
		return
	}
	view := LessonView{Lesson: lesson, CourseID: courseID}

	var p models.LessonProgress
	err = h.DB.Where("user_id = ? AND lesson_id = ?", u.ID, lessonID).First(&p).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		h.Fail(w, err)
		return
	}
	view.IsCompleted = err == nil && p.IsCompleted

	if view.NextLesson, err = h.nextLesson(lesson); err != nil {
		h.Fail(w, err)
		return
	}

	var quizzes []models.Quiz
	if err := h.DB.Where("lesson_id = ?", lessonID).Limit(1).Find(&quizzes).Error; err != nil {
		h.Fail(w, err)
		return
	}
	if len(quizzes) > 0 {
		view.Quiz = &quizzes[0]
		if view.QuizResult, err = h.Quizzes.Latest(u.ID, view.Quiz.ID); err != nil {
			h.Fail(w, err)
			return
		}
	}

	var assignments []models.Assignment
	if err := h.DB.Where("lesson_id = ?", lessonID).Limit(1).Find(&assignments).Error; err != nil {
		h.Fail(w, err)
		return
	}
	if len(assignments) > 0 {
		view.Assignment = &assignments[0]
		if view.Submission, err = h.Assignments.SubmissionFor(u.ID, view.Assignment.ID); err != nil {
			h.Fail(w, err)
			return
		}
		view.Status = view.Submission.State()
	}

	WriteJSON(w, http.StatusOK, view)
}

// HandleToggleComplete flips the lesson's completion for the student.
func (h *Handler) HandleToggleComplete(w http.ResponseWriter, r *http.Request) {
	lessonID, ok := h.lessonAccess(w, r)
	if !ok {
		return
	}
	done, err := h.Progress.Toggle(CurrentUser(r).ID, lessonID)
	if err != nil {
		h.Fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"is_completed": done,
		"message":      "Lesson status updated.",
	})
}

func (h *Handler) HandleTakeQuiz(w http.ResponseWriter, r *http.Request) {
	lessonID, ok := h.lessonAccess(w, r)
	if !ok {
		return
	}
	q, err := h.Quizzes.ForStudent(lessonID)
	if err != nil {
		h.Fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, q)
}

type submitQuizRequest struct {
	// question id -> chosen option index
	Answers map[string]int `json:"answers"`
}

func (h *Handler) HandleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	lessonID, ok := h.lessonAccess(w, r)
	if !ok {
		return
	}
	var req submitQuizRequest
	if err := DecodeJSON(r, &req); err != nil {
		h.Fail(w, err)
		return
	}
	answers := models.Answers{}
	for k, v := range req.Answers {
		id, err := strconv.ParseUint(k, 10, 64)
		if err != nil {
			JSONError(w, fmt.Sprintf("Invalid question id %q", k), http.StatusBadRequest)
			return
		}
		answers[uint(id)] = v
	}

	result, err := h.Quizzes.Submit(CurrentUser(r).ID, lessonID, answers)
	if err != nil {
		h.Fail(w, err)
		return
	}
	review, err := h.Quizzes.Review(result)
	if err != nil {
		h.Fail(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, review)
}

// HandleQuizResult shows the answer key of an attempt to its owner or an admin.
func (h *Handler) HandleQuizResult(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		h.Fail(w, err)
		return
	}
	result, err := h.Quizzes.Result(id)
	if err != nil {
		h.Fail(w, err)
		return
	}
	u := CurrentUser(r)
	if !u.IsAdmin() && result.UserID != u.ID {
		Forbidden(w)
		return
	}
	review, err := h.Quizzes.Review(result)
	if err != nil {
		h.Fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, review)
}

func (h *Handler) HandleUploadAssignment(w http.ResponseWriter, r *http.Request) {
	lessonID, ok := h.lessonAccess(w, r)
	if !ok {
		return
	}
	up, done, err := h.FormFile(w, r, "file")
	if err != nil {
		h.Fail(w, err)
		return
	}
	defer done()

	sub, err := h.Assignments.Submit(CurrentUser(r), lessonID, up)
	if err != nil {
		h.Fail(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"submission": sub,
		"message":    "Assignment submitted successfully!",
	})
}

// HandleDownloadSubmission streams a submission to the admin or its owner.
func (h *Handler) HandleDownloadSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		h.Fail(w, err)
		return
	}
	sub, err := h.Assignments.Submission(id)
	if err != nil {
		h.Fail(w, err)
		return
	}
	if !access.CanDownloadSubmission(CurrentUser(r), sub) {
		Forbidden(w)
		return
	}
	h.ServeStored(w, r, sub.FilePath, "/")
}

// HandleDownloadResource streams an assignment's resource file to users who
// can access its course.
func (h *Handler) HandleDownloadResource(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		h.Fail(w, err)
		return
	}
	a, err := h.Assignments.Get(id)
	if err != nil {
		h.Fail(w, err)
		return
	}
	courseID, err := h.Assignments.CourseIDForAssignment(a.ID)
	if err != nil {
		h.Fail(w, err)
		return
	}
	if !h.courseAccess(w, r, courseID) {
		return
	}
	if a.ResourcePath == "" {
		JSONError(w, "This assignment has no resource file", http.StatusNotFound)
		return
	}
	h.ServeStored(w, r, a.ResourcePath, backPath(r))
}

// HandleMyQuizzes lists the quizzes of the student's courses with the latest attempt.
func (h *Handler) HandleMyQuizzes(w http.ResponseWriter, r *http.Request) {
	list, err := h.Quizzes.ListForStudent(CurrentUser(r).ID)
	if err != nil {
		h.Fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"quizzes": list})
}

// HandleMyAssignments lists the student's assignments, pending first.
func (h *Handler) HandleMyAssignments(w http.ResponseWriter, r *http.Request) {
	list, err := h.Assignments.Overview(CurrentUser(r).ID)
	if err != nil {
		h.Fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"assignments": list})
}
