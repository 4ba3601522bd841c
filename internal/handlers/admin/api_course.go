package admin

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/s/learnhub/internal/assignment"
	"github.com/s/learnhub/internal/handlers"
	"github.com/s/learnhub/internal/models"
	"github.com/s/learnhub/internal/quiz"
	"github.com/s/learnhub/internal/storage"
	"github.com/s/learnhub/internal/validation"
)

// ==========================================
// Categories
// ==========================================

type categoryInput struct {
	Name string `json:"name" validate:"required,max=50"`
}

// HandleCategoriesAPI serves GET (list) and POST (create).
func (s *Service) HandleCategoriesAPI(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var categories []models.Category
		if err := s.DB.Order("name").Find(&categories).Error; err != nil {
			s.Fail(w, err)
			return
		}
		handlers.WriteJSON(w, http.StatusOK, categories)
	case http.MethodPost:
		s.createCategory(w, r)
	default:
		handlers.JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Service) createCategory(w http.ResponseWriter, r *http.Request) {
	var in categoryInput
	if err := handlers.DecodeJSON(r, &in); err != nil {
		s.Fail(w, err)
		return
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		s.Fail(w, validation.New("Category name is required.", validation.FieldError{Field: "name", Error: "is required"}))
		return
	}

	c := models.Category{Name: in.Name}
	err := s.DB.Create(&c).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		handlers.JSONError(w, fmt.Sprintf("Category %q already exists.", in.Name), http.StatusConflict)
		return
	}
	if err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusCreated, c)
}

func (s *Service) DeleteCategoryAPI(w http.ResponseWriter, r *http.Request) {
	id, err := handlers.PathID(r, "id")
	if err != nil {
		s.Fail(w, err)
		return
	}
	if err := s.Cascade.DeleteCategory(id); err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Category and all its courses were successfully deleted.",
	})
}

// ==========================================
// Courses
// ==========================================

type courseInput struct {
	Title        string `json:"title" validate:"required,max=100"`
	Description  string `json:"description" validate:"required"`
	CategoryID   uint   `json:"category_id" validate:"required"`
	ThumbnailURL string `json:"thumbnail_url" validate:"omitempty,max=200"`
}

func (s *Service) readCourseInput(r *http.Request) (courseInput, error) {
	var in courseInput
	if err := handlers.DecodeJSON(r, &in); err != nil {
		return in, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := validation.Struct(in); err != nil {
		return in, err
	}
	var n int64
	if err := s.DB.Model(&models.Category{}).Where("id = ?", in.CategoryID).Count(&n).Error; err != nil {
		return in, err
	}
	if n == 0 {
		return in, validation.New("Unknown category.", validation.FieldError{Field: "category_id", Error: "does not exist"})
	}
	return in, nil
}

// HandleCoursesAPI serves GET (list) and POST (create).
func (s *Service) HandleCoursesAPI(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var courses []models.Course
		if err := s.DB.Preload("Category").Order("created_at desc, id desc").Find(&courses).Error; err != nil {
			s.Fail(w, err)
			return
		}
		handlers.WriteJSON(w, http.StatusOK, courses)
	case http.MethodPost:
		s.createCourse(w, r)
	default:
		handlers.JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleCourseByIDAPI serves GET (content tree), PUT and DELETE.
func (s *Service) HandleCourseByIDAPI(w http.ResponseWriter, r *http.Request) {
	id, err := handlers.PathID(r, "id")
	if err != nil {
		s.Fail(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getCourseByID(w, id)
	case http.MethodPut:
		s.updateCourse(w, r, id)
	case http.MethodDelete:
		s.deleteCourse(w, id)
	default:
		handlers.JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Service) createCourse(w http.ResponseWriter, r *http.Request) {
	in, err := s.readCourseInput(r)
	if err != nil {
		s.Fail(w, err)
		return
	}
	course := models.Course{
		Title:        in.Title,
		Description:  in.Description,
		CategoryID:   in.CategoryID,
		ThumbnailURL: in.ThumbnailURL,
	}
	if err := s.DB.Create(&course).Error; err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusCreated, course)
}

func (s *Service) getCourseByID(w http.ResponseWriter, id uint) {
	var course models.Course
	err := s.DB.Preload("Category").
		Preload("Modules", func(db *gorm.DB) *gorm.DB { return db.Order("order_index, id") }).
		Preload("Modules.Lessons", func(db *gorm.DB) *gorm.DB { return db.Order("order_index, id") }).
		Preload("Modules.Lessons.Quiz").
		Preload("Modules.Lessons.Assignment").
		First(&course, id).Error
	if err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, course)
}

func (s *Service) updateCourse(w http.ResponseWriter, r *http.Request, id uint) {
	var course models.Course
	if err := s.DB.First(&course, id).Error; err != nil {
		s.Fail(w, err)
		return
	}
	in, err := s.readCourseInput(r)
	if err != nil {
		s.Fail(w, err)
		return
	}

	old := course.ThumbnailURL
	course.Title = in.Title
	course.Description = in.Description
	course.CategoryID = in.CategoryID
	if in.ThumbnailURL != "" {
		course.ThumbnailURL = in.ThumbnailURL
	}
	if err := s.DB.Model(&course).Select("title", "description", "category_id", "thumbnail_url").Updates(&course).Error; err != nil {
		s.Fail(w, err)
		return
	}
	if course.ThumbnailURL != old {
		s.removeFile(old)
	}
	handlers.WriteJSON(w, http.StatusOK, course)
}

func (s *Service) deleteCourse(w http.ResponseWriter, id uint) {
	if err := s.Cascade.DeleteCourse(id); err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]string{"message": "Course was successfully deleted."})
}

var imageExtensions = map[string]bool{"png": true, "jpg": true, "jpeg": true, "gif": true, "webp": true}

// UploadThumbnailAPI stores a multipart "thumbnail" image for the course.
func (s *Service) UploadThumbnailAPI(w http.ResponseWriter, r *http.Request) {
	id, err := handlers.PathID(r, "id")
	if err != nil {
		s.Fail(w, err)
		return
	}
	var course models.Course
	if err := s.DB.First(&course, id).Error; err != nil {
		s.Fail(w, err)
		return
	}

	up, done, err := s.FormFile(w, r, "thumbnail")
	if err != nil {
		s.Fail(w, err)
		return
	}
	defer done()
	if up == nil || up.Filename == "" {
		s.Fail(w, assignment.ErrNoFile)
		return
	}
	if !imageExtensions[storage.Ext(up.Filename)] {
		s.Fail(w, assignment.ErrFileType)
		return
	}

	ref, err := s.Files.Save(storage.FolderThumbnails, up.Filename, up.Body)
	if err != nil {
		s.Fail(w, err)
		return
	}
	old := course.ThumbnailURL
	if err := s.DB.Model(&course).Update("thumbnail_url", ref).Error; err != nil {
		s.removeFile(ref)
		s.Fail(w, err)
		return
	}
	course.ThumbnailURL = ref
	s.removeFile(old)
	handlers.WriteJSON(w, http.StatusOK, course)
}

func (s *Service) removeFile(ref string) {
	if err := s.Files.Remove(ref); err != nil {
		s.Log.Warn(fmt.Sprintf("could not remove file %q", ref), err)
	}
}

// ==========================================
// Modules
// ==========================================

type moduleInput struct {
	Title string `json:"title" validate:"required,max=100"`
}

func readModuleInput(r *http.Request) (moduleInput, error) {
	var in moduleInput
	if err := handlers.DecodeJSON(r, &in); err != nil {
		return in, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := validation.Struct(in); err != nil {
		return in, validation.New("Module title required", validation.FieldError{Field: "title", Error: "is required"})
	}
	return in, nil
}

// CreateModuleAPI appends a module to the course.
func (s *Service) CreateModuleAPI(w http.ResponseWriter, r *http.Request) {
	courseID, err := handlers.PathID(r, "id")
	if err != nil {
		s.Fail(w, err)
		return
	}
	in, err := readModuleInput(r)
	if err != nil {
		s.Fail(w, err)
		return
	}

	var module models.Module
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.Course{}, courseID).Error; err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.Module{}).Where("course_id = ?", courseID).Count(&count).Error; err != nil {
			return err
		}
		module = models.Module{Title: in.Title, CourseID: courseID, OrderIndex: int(count)}
		return tx.Create(&module).Error
	})
	if err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusCreated, module)
}

func (s *Service) UpdateModuleAPI(w http.ResponseWriter, r *http.Request) {
	id, err := handlers.PathID(r, "id")
	if err != nil {
		s.Fail(w, err)
		return
	}
	var module models.Module
	if err := s.DB.First(&module, id).Error; err != nil {
		s.Fail(w, err)
		return
	}
	in, err := readModuleInput(r)
	if err != nil {
		s.Fail(w, err)
		return
	}
	if err := s.DB.Model(&module).Update("title", in.Title).Error; err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, module)
}

func (s *Service) DeleteModuleAPI(w http.ResponseWriter, r *http.Request) {
	id, err := handlers.PathID(r, "id")
	if err != nil {
		s.Fail(w, err)
		return
	}
	if err := s.Cascade.DeleteModule(id); err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]string{"message": "Module deleted successfully."})
}

// ==========================================
// Lessons
// ==========================================

type lessonInput struct {
	Title    string `json:"title" validate:"required,max=100"`
	VideoURL string `json:"video_url" validate:"omitempty,max=200"`
	Content  string `json:"content"`
}

func readLessonInput(r *http.Request) (lessonInput, error) {
	var in lessonInput
	if err := handlers.DecodeJSON(r, &in); err != nil {
		return in, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.VideoURL = strings.TrimSpace(in.VideoURL)
	return in, validation.Struct(in)
}

// appendLesson adds a lesson at the end of the module inside tx.
func appendLesson(tx *gorm.DB, moduleID uint, title, videoURL, content string) (*models.Lesson, error) {
	if err := tx.First(&models.Module{}, moduleID).Error; err != nil {
		return nil, err
	}
	var count int64
	if err := tx.Model(&models.Lesson{}).Where("module_id = ?", moduleID).Count(&count).Error; err != nil {
		return nil, err
	}
	lesson := models.Lesson{
		Title:      title,
		VideoURL:   videoURL,
		Content:    content,
		ModuleID:   moduleID,
		OrderIndex: int(count),
	}
	return &lesson, tx.Create(&lesson).Error
}

func (s *Service) CreateLessonAPI(w http.ResponseWriter, r *http.Request) {
	moduleID, err := handlers.PathID(r, "id")
	if err != nil {
		s.Fail(w, err)
		return
	}
	in, err := readLessonInput(r)
	if err != nil {
		s.Fail(w, err)
		return
	}

	var lesson *models.Lesson
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		lesson, err = appendLesson(tx, moduleID, in.Title, in.VideoURL, in.Content)
		return err
	})
	if err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusCreated, lesson)
}

type quickAddInput struct {
	Title string `json:"title" validate:"required,max=100"`
	Type  string `json:"type" validate:"required,oneof=quiz assignment"`
}

// QuickAddAPI creates a lesson meant to hold a quiz or an assignment. An
// assignment lesson gets a placeholder assignment to be edited later; a quiz
// lesson is returned so the quiz editor can be opened on it.
func (s *Service) QuickAddAPI(w http.ResponseWriter, r *http.Request) {
	moduleID, err := handlers.PathID(r, "id")
	if err != nil {
		s.Fail(w, err)
		return
	}
	var in quickAddInput
	if err := handlers.DecodeJSON(r, &in); err != nil {
		s.Fail(w, err)
		return
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := validation.Struct(in); err != nil {
		s.Fail(w, err)
		return
	}

	var (
		lesson *models.Lesson
		shell  *models.Assignment
	)
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		if lesson, err = appendLesson(tx, moduleID, in.Title, "", ""); err != nil {
			return err
		}
		if in.Type != "assignment" {
			return nil
		}
		shell = &models.Assignment{LessonID: lesson.ID, Instructions: "Pending setup...", MaxScore: 100}
		return tx.Create(shell).Error
	})
	if err != nil {
		s.Fail(w, err)
		return
	}

	resp := map[string]interface{}{
		"lesson":  lesson,
		"message": fmt.Sprintf("New %s created. Please edit details.", in.Type),
	}
	if shell != nil {
		resp["assignment"] = shell
	} else {
		resp["edit_url"] = fmt.Sprintf("/api/admin/lessons/%d/quiz", lesson.ID)
	}
	handlers.WriteJSON(w, http.StatusCreated, resp)
}

func (s *Service) GetLessonAPI(w http.ResponseWriter, r *http.Request) {
	id, err := handlers.PathID(r, "id")
	if err != nil {
		s.Fail(w, err)
		return
	}
	var lesson models.Lesson
	if err := s.DB.Preload("Quiz.Questions").Preload("Assignment").First(&lesson, id).Error; err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, lesson)
}

func (s *Service) UpdateLessonAPI(w http.ResponseWriter, r *http.Request) {
	id, err := handlers.PathID(r, "id")
	if err != nil {
		s.Fail(w, err)
		return
	}
	var lesson models.Lesson
	if err := s.DB.First(&lesson, id).Error; err != nil {
		s.Fail(w, err)
		return
	}
	in, err := readLessonInput(r)
	if err != nil {
		s.Fail(w, err)
		return
	}
	lesson.Title = in.Title
	lesson.VideoURL = in.VideoURL
	lesson.Content = in.Content
	if err := s.DB.Model(&lesson).Select("title", "video_url", "content").Updates(&lesson).Error; err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, lesson)
}

func (s *Service) DeleteLessonAPI(w http.ResponseWriter, r *http.Request) {
	id, err := handlers.PathID(r, "id")
	if err != nil {
		s.Fail(w, err)
		return
	}
	if err := s.Cascade.DeleteLesson(id); err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]string{"message": "Lesson deleted successfully."})
}

// ==========================================
// Quizzes
// ==========================================

// HandleLessonQuizAPI serves GET (editor), PUT (replace) and DELETE for the
// lesson's quiz.
func (s *Service) HandleLessonQuizAPI(w http.ResponseWriter, r *http.Request) {
	lessonID, err := handlers.PathID(r, "id")
	if err != nil {
		s.Fail(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		q, err := s.Quizzes.ByLesson(lessonID)
		if err != nil {
			s.Fail(w, err)
			return
		}
		handlers.WriteJSON(w, http.StatusOK, q)
	case http.MethodPut:
		var in quiz.Input
		if err := handlers.DecodeJSON(r, &in); err != nil {
			s.Fail(w, err)
			return
		}
		q, err := s.Quizzes.Save(lessonID, in)
		if err != nil {
			s.Fail(w, err)
			return
		}
		handlers.WriteJSON(w, http.StatusOK, q)
	case http.MethodDelete:
		if err := s.Quizzes.Delete(lessonID); err != nil {
			s.Fail(w, err)
			return
		}
		handlers.WriteJSON(w, http.StatusOK, map[string]string{"message": "Quiz deleted successfully."})
	default:
		handlers.JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Service) GetQuizzesAPI(w http.ResponseWriter, r *http.Request) {
	list, err := s.Quizzes.ListAll()
	if err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{"quizzes": list})
}

// ==========================================
// Assignments
// ==========================================

// readAssignmentInput accepts either a multipart form with an optional
// "resource" file or a JSON body. The cleanup must be called once the
// resource has been stored.
func (s *Service) readAssignmentInput(w http.ResponseWriter, r *http.Request) (assignment.Input, *assignment.Upload, func(), error) {
	var in assignment.Input
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		up, done, err := s.FormFile(w, r, "resource")
		if err != nil {
			return in, nil, done, err
		}
		in.Instructions = r.FormValue("instructions")
		if v := strings.TrimSpace(r.FormValue("max_score")); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				done()
				return in, nil, func() {}, validation.New("Max score must be a number.",
					validation.FieldError{Field: "max_score", Error: "must be a number"})
			}
			in.MaxScore = n
		}
		if up != nil && up.Filename == "" {
			up = nil
		}
		return in, up, done, nil
	}
	err := handlers.DecodeJSON(r, &in)
	return in, nil, func() {}, err
}

func (s *Service) CreateAssignmentAPI(w http.ResponseWriter, r *http.Request) {
	lessonID, err := handlers.PathID(r, "id")
	if err != nil {
		s.Fail(w, err)
		return
	}
	in, resource, done, err := s.readAssignmentInput(w, r)
	defer done()
	if err != nil {
		s.Fail(w, err)
		return
	}
	a, err := s.Assignments.Create(lessonID, in, resource)
	if err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusCreated, a)
}

// HandleAssignmentAPI serves PUT and DELETE for one assignment.
func (s *Service) HandleAssignmentAPI(w http.ResponseWriter, r *http.Request) {
	id, err := handlers.PathID(r, "id")
	if err != nil {
		s.Fail(w, err)
		return
	}

	switch r.Method {
	case http.MethodPut:
		in, resource, done, err := s.readAssignmentInput(w, r)
		defer done()
		if err != nil {
			s.Fail(w, err)
			return
		}
		a, err := s.Assignments.Update(id, in, resource)
		if err != nil {
			s.Fail(w, err)
			return
		}
		handlers.WriteJSON(w, http.StatusOK, a)
	case http.MethodDelete:
		if err := s.Assignments.Delete(id); err != nil {
			s.Fail(w, err)
			return
		}
		handlers.WriteJSON(w, http.StatusOK, map[string]string{"message": "Assignment removed."})
	default:
		handlers.JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Service) GetAssignmentsAPI(w http.ResponseWriter, r *http.Request) {
	list, err := s.Assignments.ListAll()
	if err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{"assignments": list})
}

func (s *Service) GetSubmissionsAPI(w http.ResponseWriter, r *http.Request) {
	id, err := handlers.PathID(r, "id")
	if err != nil {
		s.Fail(w, err)
		return
	}
	a, err := s.Assignments.Get(id)
	if err != nil {
		s.Fail(w, err)
		return
	}
	subs, err := s.Assignments.Submissions(id)
	if err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{"assignment": a, "submissions": subs})
}

type gradeInput struct {
	Grade    *int   `json:"grade" validate:"required"`
	Feedback string `json:"feedback"`
}

func (s *Service) GradeSubmissionAPI(w http.ResponseWriter, r *http.Request) {
	id, err := handlers.PathID(r, "id")
	if err != nil {
		s.Fail(w, err)
		return
	}
	var in gradeInput
	if err := handlers.DecodeJSON(r, &in); err != nil {
		s.Fail(w, err)
		return
	}
	if err := validation.Struct(in); err != nil {
		s.Fail(w, err)
		return
	}
	sub, err := s.Assignments.Grade(id, *in.Grade, strings.TrimSpace(in.Feedback))
	if err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"submission": sub,
		"message":    "Grade updated successfully.",
	})
}

// RejectSubmissionAPI deletes a submission and its file so the student can
// upload again.
func (s *Service) RejectSubmissionAPI(w http.ResponseWriter, r *http.Request) {
	id, err := handlers.PathID(r, "id")
	if err != nil {
		s.Fail(w, err)
		return
	}
	if _, err := s.Assignments.Reject(id); err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Submission rejected. The student can upload a new file.",
	})
}
