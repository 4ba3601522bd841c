// Package router wires every HTTP endpoint onto a gorilla/mux router.
package router

import (
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"github.com/s/learnhub/internal/handlers"
	"github.com/s/learnhub/internal/handlers/admin"
	"github.com/s/learnhub/internal/handlers/personal"
	"github.com/s/learnhub/internal/middleware"
	"github.com/s/learnhub/internal/models"
	"github.com/s/learnhub/internal/storage"
)

// Options tweak the router for the environment it runs in.
type Options struct {
	StaticDir  string      // served under /static/ when set
	UploadDir  string      // avatars and thumbnails served under /uploads/ when set
	CORSOrigin string      // CORS disabled when empty
	AccessLog  *log.Logger // one line per request when set
}

// publicUploads are the upload folders anyone may fetch. Submissions and
// assignment resources stay behind their handlers.
var publicUploads = []string{storage.FolderAvatars, storage.FolderThumbnails}

// noListing hides directory indexes.
func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func New(h *handlers.Handler, opts Options) http.Handler {
	adminService := &admin.Service{Handler: *h}
	personalService := &personal.Service{Handler: *h}

	adminOnly := middleware.RequiredRole(h, models.RoleAdmin)
	studentOnly := middleware.RequiredRole(h, models.RoleStudent)
	signedIn := middleware.RequiredRole(h)

	r := mux.NewRouter()
	if opts.AccessLog != nil {
		r.Use(middleware.Logging(opts.AccessLog))
	}

	if opts.StaticDir != "" {
		r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}
	if opts.UploadDir != "" {
		for _, folder := range publicUploads {
			prefix := "/uploads/" + folder + "/"
			files := http.FileServer(http.Dir(filepath.Join(opts.UploadDir, folder)))
			r.PathPrefix(prefix).Methods("GET", "HEAD").Handler(noListing(http.StripPrefix(prefix, files)))
		}
	}

	// --- public ---
	r.HandleFunc("/", h.HandleMain).Methods("GET")
	r.HandleFunc("/login", h.HandleLogin).Methods("POST")
	r.HandleFunc("/register", h.HandleRegister).Methods("POST")
	r.HandleFunc("/logout", h.HandleLogout).Methods("GET", "POST")
	r.HandleFunc("/auth/google/login", h.HandleGoogleLogin).Methods("GET")
	r.HandleFunc("/auth/google/callback", h.HandleGoogleCallback).Methods("GET")
	r.HandleFunc("/api/notices", h.HandleNotices).Methods("GET")
	r.HandleFunc("/api/catalog", h.HandleCatalog).Methods("GET")

	// --- student ---
	r.HandleFunc("/api/dashboard", studentOnly(h.HandleStudentDashboard)).Methods("GET")
	r.HandleFunc("/api/profile", studentOnly(personalService.HandleProfile)).Methods("GET", "POST")
	r.HandleFunc("/api/quizzes", studentOnly(h.HandleMyQuizzes)).Methods("GET")
	r.HandleFunc("/api/assignments", studentOnly(h.HandleMyAssignments)).Methods("GET")
	r.HandleFunc("/api/lessons/{id:[0-9]+}/complete", studentOnly(h.HandleToggleComplete)).Methods("POST")
	r.HandleFunc("/api/lessons/{id:[0-9]+}/quiz", studentOnly(h.HandleSubmitQuiz)).Methods("POST")
	r.HandleFunc("/api/lessons/{id:[0-9]+}/assignment", studentOnly(h.HandleUploadAssignment)).Methods("POST")

	// --- course content (admin or enrolled) ---
	r.HandleFunc("/api/courses/{id:[0-9]+}", signedIn(h.HandleCourseView)).Methods("GET")
	r.HandleFunc("/api/lessons/{id:[0-9]+}", signedIn(h.HandleLessonView)).Methods("GET")
	r.HandleFunc("/api/lessons/{id:[0-9]+}/quiz", signedIn(h.HandleTakeQuiz)).Methods("GET")
	r.HandleFunc("/api/quiz-results/{id:[0-9]+}", signedIn(h.HandleQuizResult)).Methods("GET")
	r.HandleFunc("/api/assignments/{id:[0-9]+}/resource", signedIn(h.HandleDownloadResource)).Methods("GET")
	r.HandleFunc("/api/submissions/{id:[0-9]+}/file", signedIn(h.HandleDownloadSubmission)).Methods("GET")

	// --- admin ---
	a := r.PathPrefix("/api/admin").Subrouter()
	a.HandleFunc("/dashboard", adminOnly(adminService.HandleDashboard)).Methods("GET")
	a.HandleFunc("/notifications", adminOnly(adminService.HandleNotifications)).Methods("GET")
	a.HandleFunc("/notifications/{id:[0-9]+}/read", adminOnly(adminService.MarkNotificationReadAPI)).Methods("POST")

	a.HandleFunc("/students", adminOnly(adminService.GetStudentsAPI)).Methods("GET")
	a.HandleFunc("/students/{id:[0-9]+}/approve", adminOnly(adminService.ApproveStudentAPI)).Methods("POST")
	a.HandleFunc("/students/{id:[0-9]+}/reject", adminOnly(adminService.RejectStudentAPI)).Methods("POST")
	a.HandleFunc("/students/{id:[0-9]+}/toggle", adminOnly(adminService.ToggleStudentAPI)).Methods("POST")
	a.HandleFunc("/students/{id:[0-9]+}/password", adminOnly(adminService.SetStudentPasswordAPI)).Methods("POST")
	a.HandleFunc("/students/{id:[0-9]+}/enrollments", adminOnly(adminService.EnrollStudentAPI)).Methods("POST")
	a.HandleFunc("/students/{id:[0-9]+}/enrollments/{course_id:[0-9]+}", adminOnly(adminService.UnenrollStudentAPI)).Methods("DELETE")
	a.HandleFunc("/students/{id:[0-9]+}/activity", adminOnly(adminService.GetStudentActivityAPI)).Methods("GET")

	a.HandleFunc("/categories", adminOnly(adminService.HandleCategoriesAPI)).Methods("GET", "POST")
	a.HandleFunc("/categories/{id:[0-9]+}", adminOnly(adminService.DeleteCategoryAPI)).Methods("DELETE")

	a.HandleFunc("/courses", adminOnly(adminService.HandleCoursesAPI)).Methods("GET", "POST")
	a.HandleFunc("/courses/{id:[0-9]+}", adminOnly(adminService.HandleCourseByIDAPI)).Methods("GET", "PUT", "DELETE")
	a.HandleFunc("/courses/{id:[0-9]+}/thumbnail", adminOnly(adminService.UploadThumbnailAPI)).Methods("POST")
	a.HandleFunc("/courses/{id:[0-9]+}/modules", adminOnly(adminService.CreateModuleAPI)).Methods("POST")

	a.HandleFunc("/modules/{id:[0-9]+}", adminOnly(adminService.UpdateModuleAPI)).Methods("PUT")
	a.HandleFunc("/modules/{id:[0-9]+}", adminOnly(adminService.DeleteModuleAPI)).Methods("DELETE")
	a.HandleFunc("/modules/{id:[0-9]+}/lessons", adminOnly(adminService.CreateLessonAPI)).Methods("POST")
	a.HandleFunc("/modules/{id:[0-9]+}/quick-add", adminOnly(adminService.QuickAddAPI)).Methods("POST")

	a.HandleFunc("/lessons/{id:[0-9]+}", adminOnly(adminService.GetLessonAPI)).Methods("GET")
	a.HandleFunc("/lessons/{id:[0-9]+}", adminOnly(adminService.UpdateLessonAPI)).Methods("PUT")
	a.HandleFunc("/lessons/{id:[0-9]+}", adminOnly(adminService.DeleteLessonAPI)).Methods("DELETE")
	a.HandleFunc("/lessons/{id:[0-9]+}/quiz", adminOnly(adminService.HandleLessonQuizAPI)).Methods("GET", "PUT", "DELETE")
	a.HandleFunc("/lessons/{id:[0-9]+}/assignment", adminOnly(adminService.CreateAssignmentAPI)).Methods("POST")
	a.HandleFunc("/quizzes", adminOnly(adminService.GetQuizzesAPI)).Methods("GET")

	a.HandleFunc("/assignments", adminOnly(adminService.GetAssignmentsAPI)).Methods("GET")
	a.HandleFunc("/assignments/{id:[0-9]+}", adminOnly(adminService.HandleAssignmentAPI)).Methods("PUT", "DELETE")
	a.HandleFunc("/assignments/{id:[0-9]+}/submissions", adminOnly(adminService.GetSubmissionsAPI)).Methods("GET")
	a.HandleFunc("/submissions/{id:[0-9]+}/grade", adminOnly(adminService.GradeSubmissionAPI)).Methods("POST")
	a.HandleFunc("/submissions/{id:[0-9]+}", adminOnly(adminService.RejectSubmissionAPI)).Methods("DELETE")

	if opts.CORSOrigin == "" {
		return r
	}
	return middleware.CORS(opts.CORSOrigin)(r)
}
