package admin

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/s/learnhub/internal/handlers"
	"github.com/s/learnhub/internal/models"
	"github.com/s/learnhub/internal/progress"
	"github.com/s/learnhub/internal/validation"
)

// Service holds the admin endpoints.
type Service struct {
	handlers.Handler
}

type DashboardStats struct {
	TotalStudents       int64                 `json:"total_students"`
	PendingRequests     int64                 `json:"pending_requests"`
	ActiveStudents      int64                 `json:"active_students"`
	TotalCourses        int64                 `json:"total_courses"`
	UnreadNotifications int64                 `json:"unread_notifications"`
	Notifications       []models.Notification `json:"notifications"`
}

func (s *Service) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	var st DashboardStats
	students := func() *gorm.DB { return s.DB.Model(&models.User{}).Where("role = ?", models.RoleStudent) }

	if err := students().Count(&st.TotalStudents).Error; err != nil {
		s.Fail(w, err)
		return
	}
	if err := students().Where("status = ?", models.StatusPending).Count(&st.PendingRequests).Error; err != nil {
		s.Fail(w, err)
		return
	}
	if err := students().Where("status = ?", models.StatusApproved).Count(&st.ActiveStudents).Error; err != nil {
		s.Fail(w, err)
		return
	}
	if err := s.DB.Model(&models.Course{}).Count(&st.TotalCourses).Error; err != nil {
		s.Fail(w, err)
		return
	}
	var err error
	if st.UnreadNotifications, err = s.Notifier.UnreadCount(); err != nil {
		s.Fail(w, err)
		return
	}
	if st.Notifications, err = s.Notifier.Unread(0); err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, st)
}

func (s *Service) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.Notifier.Unread(limit)
	if err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{"notifications": list})
}

func (s *Service) MarkNotificationReadAPI(w http.ResponseWriter, r *http.Request) {
	id, err := handlers.PathID(r, "id")
	if err != nil {
		s.Fail(w, err)
		return
	}
	found, err := s.Notifier.MarkRead(id)
	if err != nil {
		s.Fail(w, err)
		return
	}
	if !found {
		handlers.JSONError(w, "Notification not found", http.StatusNotFound)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GetStudentsAPI lists students filtered by status and a name/email search,
// newest first and paginated.
func (s *Service) GetStudentsAPI(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, _ := strconv.Atoi(query.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit < 1 {
		limit = 20
	}

	db := s.DB.Model(&models.User{}).Where("role = ?", models.RoleStudent)
	if status := query.Get("status"); status != "" && status != "all" {
		db = db.Where("status = ?", status)
	}
	if search := strings.ToLower(strings.TrimSpace(query.Get("search"))); search != "" {
		like := "%" + search + "%"
		db = db.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		s.Fail(w, err)
		return
	}

	var students []models.User
	err := db.Preload("Enrollments.Course").
		Order("created_at desc, id desc").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&students).Error
	if err != nil {
		s.Fail(w, err)
		return
	}

	counts := map[string]int64{}
	var rows []struct {
		Status string
		N      int64
	}
	err = s.DB.Model(&models.User{}).Select("status, COUNT(*) AS n").
		Where("role = ?", models.RoleStudent).Group("status").Scan(&rows).Error
	if err != nil {
		s.Fail(w, err)
		return
	}
	for _, row := range rows {
		counts[row.Status] = row.N
	}

	handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data":   students,
		"total":  total,
		"page":   page,
		"pages":  int(math.Ceil(float64(total) / float64(limit))),
		"counts": counts,
	})
}

// student loads {id} and makes sure it is a student account.
func (s *Service) student(r *http.Request) (*models.User, error) {
	id, err := handlers.PathID(r, "id")
	if err != nil {
		return nil, err
	}
	var u models.User
	err = s.DB.Where("role = ?", models.RoleStudent).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, handlers.ErrNotFound
	}
	return &u, err
}

func (s *Service) setStatus(w http.ResponseWriter, r *http.Request, status func(current string) string, message func(u *models.User) string) {
	u, err := s.student(r)
	if err != nil {
		s.Fail(w, err)
		return
	}
	u.Status = status(u.Status)
	if err := s.DB.Model(u).Update("status", u.Status).Error; err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  u.Status,
		"message": message(u),
	})
}

func (s *Service) ApproveStudentAPI(w http.ResponseWriter, r *http.Request) {
	s.setStatus(w, r,
		func(string) string { return models.StatusApproved },
		func(u *models.User) string { return fmt.Sprintf("Student %s approved!", u.FullName) })
}

func (s *Service) RejectStudentAPI(w http.ResponseWriter, r *http.Request) {
	s.setStatus(w, r,
		func(string) string { return models.StatusRejected },
		func(u *models.User) string { return fmt.Sprintf("Student %s rejected.", u.FullName) })
}

// ToggleStudentAPI disables an approved account and activates any other.
func (s *Service) ToggleStudentAPI(w http.ResponseWriter, r *http.Request) {
	s.setStatus(w, r, models.ToggledStatus, func(u *models.User) string {
		if u.Status == models.StatusDisabled {
			return "Account disabled"
		}
		return "Account activated"
	})
}

type passwordRequest struct {
	Password string `json:"password" validate:"required,min=6"`
}

func (s *Service) SetStudentPasswordAPI(w http.ResponseWriter, r *http.Request) {
	u, err := s.student(r)
	if err != nil {
		s.Fail(w, err)
		return
	}
	var req passwordRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		s.Fail(w, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		s.Fail(w, err)
		return
	}
	if err := u.SetPassword(req.Password); err != nil {
		s.Fail(w, err)
		return
	}
	if err := s.DB.Model(u).Update("password_hash", u.PasswordHash).Error; err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Password updated for %s", u.FullName),
	})
}

type enrollRequest struct {
	CourseID uint `json:"course_id" validate:"required"`
}

func (s *Service) EnrollStudentAPI(w http.ResponseWriter, r *http.Request) {
	u, err := s.student(r)
	if err != nil {
		s.Fail(w, err)
		return
	}
	var req enrollRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		s.Fail(w, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		s.Fail(w, err)
		return
	}
	var course models.Course
	if err := s.DB.First(&course, req.CourseID).Error; err != nil {
		s.Fail(w, err)
		return
	}

	err = s.Progress.Enroll(u.ID, course.ID)
	if errors.Is(err, progress.ErrAlreadyEnrolled) {
		handlers.JSONError(w, "Student already enrolled.", http.StatusConflict)
		return
	}
	if err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusCreated, map[string]string{
		"message": fmt.Sprintf("Enrolled %s in %s", u.FullName, course.Title),
	})
}

func (s *Service) UnenrollStudentAPI(w http.ResponseWriter, r *http.Request) {
	u, err := s.student(r)
	if err != nil {
		s.Fail(w, err)
		return
	}
	courseID, err := handlers.PathID(r, "course_id")
	if err != nil {
		s.Fail(w, err)
		return
	}
	var course models.Course
	if err := s.DB.First(&course, courseID).Error; err != nil {
		s.Fail(w, err)
		return
	}

	err = s.Progress.Unenroll(u.ID, course.ID)
	if errors.Is(err, progress.ErrNotEnrolled) {
		handlers.JSONError(w, "Student was not enrolled in this course.", http.StatusConflict)
		return
	}
	if err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Removed %s from %s", u.FullName, course.Title),
	})
}

// GetStudentActivityAPI returns the student's recent activity log and
// per-course progress.
func (s *Service) GetStudentActivityAPI(w http.ResponseWriter, r *http.Request) {
	u, err := s.student(r)
	if err != nil {
		s.Fail(w, err)
		return
	}
	var logs []models.UserLog
	if err := s.DB.Where("user_id = ?", u.ID).Order("created_at desc, id desc").Limit(100).Find(&logs).Error; err != nil {
		s.Fail(w, err)
		return
	}
	d, err := s.Progress.Dashboard(u.ID)
	if err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"student":  u,
		"logs":     logs,
		"progress": d,
	})
}
