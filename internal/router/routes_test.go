package router_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/securecookie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/s/learnhub/internal/config"
	"github.com/s/learnhub/internal/handlers"
	"github.com/s/learnhub/internal/logger"
	"github.com/s/learnhub/internal/models"
	"github.com/s/learnhub/internal/notify"
	"github.com/s/learnhub/internal/router"
	"github.com/s/learnhub/internal/storage"
	"github.com/s/learnhub/internal/testutil"
)

type app struct {
	t      *testing.T
	db     *gorm.DB
	store  *storage.LocalStore
	mailer *notify.ConsoleMailer
	srv    *httptest.Server
}

func newApp(t *testing.T) *app {
	db := testutil.OpenDB(t)
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{AppName: "LearnHub", MaxUploadMB: 1}
	sessionStore := handlers.NewCookieStore(securecookie.GenerateRandomKey(32), false)
	mailer := notify.NewConsoleMailer(logger.Discard())
	h := handlers.NewHandler(db, sessionStore, nil, cfg, logger.Discard(), store, mailer)

	srv := httptest.NewServer(router.New(h, router.Options{UploadDir: store.Root}))
	t.Cleanup(srv.Close)
	return &app{t: t, db: db, store: store, mailer: mailer, srv: srv}
}

// client is a browser-like session against the test server. Redirects are
// returned, not followed.
type client struct {
	a    *app
	http *http.Client
}

func (a *app) client() *client {
	jar, err := cookiejar.New(nil)
	require.NoError(a.t, err)
	return &client{a: a, http: &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

type response struct {
	Code     int
	Location string
	Body     []byte
}

func (r response) JSON(t *testing.T) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(r.Body, &m), string(r.Body))
	return m
}

func (c *client) send(req *http.Request) response {
	c.a.t.Helper()
	res, err := c.http.Do(req)
	require.NoError(c.a.t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(c.a.t, err)
	return response{Code: res.StatusCode, Location: res.Header.Get("Location"), Body: body}
}

func (c *client) do(method, path string, payload interface{}) response {
	c.a.t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(c.a.t, err)
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.a.srv.URL+path, body)
	require.NoError(c.a.t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

func (c *client) upload(path, field, filename, content string, fields map[string]string) response {
	c.a.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(c.a.t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(c.a.t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(c.a.t, err)
	}
	require.NoError(c.a.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, c.a.srv.URL+path, &buf)
	require.NoError(c.a.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(req)
}

func (a *app) login(email string) *client {
	a.t.Helper()
	c := a.client()
	res := c.do(http.MethodPost, "/login", map[string]string{"email": email, "password": "secret123"})
	require.Equal(a.t, http.StatusOK, res.Code, string(res.Body))
	return c
}

func id(v uint) string { return fmt.Sprint(v) }

func TestLogin(t *testing.T) {
	a := newApp(t)
	testutil.CreateUser(t, a.db, "pending@example.com", models.RoleStudent, models.StatusPending)
	testutil.CreateUser(t, a.db, "off@example.com", models.RoleStudent, models.StatusDisabled)
	testutil.Student(t, a.db, "ok@example.com")
	testutil.Admin(t, a.db, "admin@example.com")

	tests := []struct {
		email, password string
		code            int
		contains        string
	}{
		{"nobody@example.com", "secret123", http.StatusUnauthorized, "Invalid"},
		{"ok@example.com", "wrong", http.StatusUnauthorized, "Invalid"},
		{"pending@example.com", "secret123", http.StatusForbidden, "pending"},
		{"off@example.com", "secret123", http.StatusForbidden, "disabled"},
		{"OK@example.com ", "secret123", http.StatusOK, "/api/dashboard"},
		{"admin@example.com", "secret123", http.StatusOK, "/api/admin/dashboard"},
	}
	for _, tc := range tests {
		t.Run(tc.email, func(t *testing.T) {
			res := a.client().do(http.MethodPost, "/login", map[string]string{"email": tc.email, "password": tc.password})
			assert.Equal(t, tc.code, res.Code)
			assert.Contains(t, string(res.Body), tc.contains)
		})
	}
	assert.EqualValues(t, 2, testutil.Count(t, a.db, &models.UserLog{}, "action = ?", models.ActionLogin))
}

func TestRegisterCreatesPendingStudent(t *testing.T) {
	a := newApp(t)
	c := a.client()

	res := c.do(http.MethodPost, "/register", map[string]string{
		"full_name":        "New Student",
		"email":            "new@example.com",
		"password":         "secret123",
		"confirm_password": "secret123",
	})
	require.Equal(t, http.StatusCreated, res.Code, string(res.Body))

	var u models.User
	require.NoError(t, a.db.Where("email = ?", "new@example.com").First(&u).Error)
	assert.Equal(t, models.RoleStudent, u.Role)
	assert.Equal(t, models.StatusPending, u.Status)

	res = c.do(http.MethodPost, "/register", map[string]string{
		"full_name":        "Again",
		"email":            "new@example.com",
		"password":         "secret123",
		"confirm_password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, res.Code)
}

func TestRoleGates(t *testing.T) {
	a := newApp(t)
	testutil.Student(t, a.db, "s@example.com")
	testutil.Admin(t, a.db, "admin@example.com")

	res := a.client().do(http.MethodGet, "/api/admin/dashboard", nil)
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/", res.Location)

	student := a.login("s@example.com")
	assert.Equal(t, http.StatusForbidden, student.do(http.MethodGet, "/api/admin/dashboard", nil).Code)
	assert.Equal(t, http.StatusOK, student.do(http.MethodGet, "/api/dashboard", nil).Code)

	admin := a.login("admin@example.com")
	assert.Equal(t, http.StatusOK, admin.do(http.MethodGet, "/api/admin/dashboard", nil).Code)
	assert.Equal(t, http.StatusForbidden, admin.do(http.MethodGet, "/api/dashboard", nil).Code)

	student.do(http.MethodGet, "/logout", nil)
	res = student.do(http.MethodGet, "/api/dashboard", nil)
	assert.Equal(t, http.StatusSeeOther, res.Code)
}

func TestDisabledStudentIsSignedOut(t *testing.T) {
	a := newApp(t)
	s := testutil.Student(t, a.db, "s@example.com")
	testutil.Admin(t, a.db, "admin@example.com")
	student := a.login("s@example.com")
	admin := a.login("admin@example.com")

	res := admin.do(http.MethodPost, "/api/admin/students/"+id(s.ID)+"/toggle", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, models.StatusDisabled, res.JSON(t)["status"])

	res = student.do(http.MethodGet, "/api/dashboard", nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Contains(t, string(res.Body), "disabled")

	res = admin.do(http.MethodPost, "/api/admin/students/"+id(s.ID)+"/toggle", nil)
	assert.Equal(t, models.StatusApproved, res.JSON(t)["status"])
	assert.Equal(t, http.StatusOK, a.login("s@example.com").do(http.MethodGet, "/api/dashboard", nil).Code)
}

func TestAdminDashboardStats(t *testing.T) {
	a := newApp(t)
	testutil.Student(t, a.db, "a@example.com")
	testutil.CreateUser(t, a.db, "p1@example.com", models.RoleStudent, models.StatusPending)
	testutil.CreateUser(t, a.db, "p2@example.com", models.RoleStudent, models.StatusPending)
	testutil.Admin(t, a.db, "admin@example.com")
	testutil.Course(t, a.db, "Go", 1)
	require.NoError(t, a.db.Create(&models.Notification{Message: "hello"}).Error)
	require.NoError(t, a.db.Create(&models.Notification{Message: "seen", IsRead: true}).Error)

	admin := a.login("admin@example.com")
	stats := admin.do(http.MethodGet, "/api/admin/dashboard", nil).JSON(t)
	assert.EqualValues(t, 3, stats["total_students"])
	assert.EqualValues(t, 2, stats["pending_requests"])
	assert.EqualValues(t, 1, stats["active_students"])
	assert.EqualValues(t, 1, stats["total_courses"])
	assert.EqualValues(t, 1, stats["unread_notifications"])

	var n models.Notification
	require.NoError(t, a.db.Where("message = ?", "hello").First(&n).Error)
	assert.Equal(t, http.StatusOK, admin.do(http.MethodPost, "/api/admin/notifications/"+id(n.ID)+"/read", nil).Code)
	assert.Equal(t, http.StatusNotFound, admin.do(http.MethodPost, "/api/admin/notifications/9999/read", nil).Code)
	stats = admin.do(http.MethodGet, "/api/admin/dashboard", nil).JSON(t)
	assert.EqualValues(t, 0, stats["unread_notifications"])
}

func TestStudentListFiltersAndPaginates(t *testing.T) {
	a := newApp(t)
	for i := 0; i < 3; i++ {
		testutil.CreateUser(t, a.db, fmt.Sprintf("pending%d@example.com", i), models.RoleStudent, models.StatusPending)
	}
	testutil.Student(t, a.db, "alice@example.com")
	testutil.Admin(t, a.db, "admin@example.com")
	admin := a.login("admin@example.com")

	body := admin.do(http.MethodGet, "/api/admin/students?status=pending&limit=2&page=2", nil).JSON(t)
	assert.EqualValues(t, 3, body["total"])
	assert.EqualValues(t, 2, body["pages"])
	assert.Len(t, body["data"], 1)
	assert.EqualValues(t, 1, body["counts"].(map[string]interface{})[models.StatusApproved])

	body = admin.do(http.MethodGet, "/api/admin/students?search=ALICE", nil).JSON(t)
	assert.EqualValues(t, 1, body["total"])
}

func TestEnrollmentGate(t *testing.T) {
	a := newApp(t)
	s := testutil.Student(t, a.db, "s@example.com")
	testutil.Admin(t, a.db, "admin@example.com")
	course := testutil.Course(t, a.db, "Go", 2)
	lesson := course.Modules[0].Lessons[0]

	student := a.login("s@example.com")
	assert.Equal(t, http.StatusForbidden, student.do(http.MethodGet, "/api/courses/"+id(course.ID), nil).Code)
	assert.Equal(t, http.StatusForbidden, student.do(http.MethodGet, "/api/lessons/"+id(lesson.ID), nil).Code)
	assert.Equal(t, http.StatusForbidden, student.do(http.MethodPost, "/api/lessons/"+id(lesson.ID)+"/complete", nil).Code)

	admin := a.login("admin@example.com")
	assert.Equal(t, http.StatusOK, admin.do(http.MethodGet, "/api/courses/"+id(course.ID), nil).Code)

	res := admin.do(http.MethodPost, "/api/admin/students/"+id(s.ID)+"/enrollments", map[string]uint{"course_id": course.ID})
	require.Equal(t, http.StatusCreated, res.Code, string(res.Body))
	res = admin.do(http.MethodPost, "/api/admin/students/"+id(s.ID)+"/enrollments", map[string]uint{"course_id": course.ID})
	assert.Equal(t, http.StatusConflict, res.Code)

	res = student.do(http.MethodPost, "/api/lessons/"+id(lesson.ID)+"/complete", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, true, res.JSON(t)["is_completed"])

	view := student.do(http.MethodGet, "/api/courses/"+id(course.ID), nil).JSON(t)
	assert.EqualValues(t, 50, view["progress"].(map[string]interface{})["percent"])
	assert.Equal(t, []interface{}{float64(lesson.ID)}, view["completed_lesson_ids"])

	res = admin.do(http.MethodDelete, "/api/admin/students/"+id(s.ID)+"/enrollments/"+id(course.ID), nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, http.StatusForbidden, student.do(http.MethodGet, "/api/courses/"+id(course.ID), nil).Code)
	res = admin.do(http.MethodDelete, "/api/admin/students/"+id(s.ID)+"/enrollments/"+id(course.ID), nil)
	assert.Equal(t, http.StatusConflict, res.Code)
}

func TestLessonPlayerNextLesson(t *testing.T) {
	a := newApp(t)
	s := testutil.Student(t, a.db, "s@example.com")
	course := testutil.Course(t, a.db, "Go", 2, 0, 1)
	testutil.Enroll(t, a.db, s.ID, course.ID)
	student := a.login("s@example.com")

	first := course.Modules[0].Lessons[0]
	second := course.Modules[0].Lessons[1]
	last := course.Modules[2].Lessons[0]

	next := func(l models.Lesson) interface{} {
		view := student.do(http.MethodGet, "/api/lessons/"+id(l.ID), nil).JSON(t)
		if view["next_lesson"] == nil {
			return nil
		}
		return view["next_lesson"].(map[string]interface{})["id"]
	}
	assert.EqualValues(t, second.ID, next(first))
	assert.EqualValues(t, last.ID, next(second), "empty modules are skipped")
	assert.Nil(t, next(last))
}

func TestQuizFlow(t *testing.T) {
	a := newApp(t)
	s := testutil.Student(t, a.db, "s@example.com")
	testutil.Student(t, a.db, "other@example.com")
	testutil.Admin(t, a.db, "admin@example.com")
	course := testutil.Course(t, a.db, "Go", 1)
	lesson := course.Modules[0].Lessons[0]
	testutil.Enroll(t, a.db, s.ID, course.ID)

	admin := a.login("admin@example.com")
	res := admin.do(http.MethodPut, "/api/admin/lessons/"+id(lesson.ID)+"/quiz", map[string]interface{}{
		"title": "Basics",
		"questions": []map[string]interface{}{
			{"text": "a", "options": []string{"x", "y", "z"}, "correct_option": 0},
			{"text": "b", "options": []string{"x", "y", "z"}, "correct_option": 1},
			{"text": "c", "options": []string{"x", "y", "z"}, "correct_option": 2},
		},
	})
	require.Equal(t, http.StatusOK, res.Code, string(res.Body))

	res = admin.do(http.MethodPut, "/api/admin/lessons/"+id(lesson.ID)+"/quiz", map[string]interface{}{
		"title":     "Broken",
		"questions": []map[string]interface{}{{"text": "a", "options": []string{"x", "y"}, "correct_option": 5}},
	})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	student := a.login("s@example.com")
	taken := student.do(http.MethodGet, "/api/lessons/"+id(lesson.ID)+"/quiz", nil)
	require.Equal(t, http.StatusOK, taken.Code)
	assert.NotContains(t, string(taken.Body), "correct_option")

	var questions []models.Question
	require.NoError(t, a.db.Order("id").Find(&questions).Error)
	answers := map[string]int{}
	for i, q := range questions {
		answers[id(q.ID)] = []int{0, 1, 1}[i]
	}

	res = student.do(http.MethodPost, "/api/lessons/"+id(lesson.ID)+"/quiz", map[string]interface{}{"answers": answers})
	require.Equal(t, http.StatusCreated, res.Code, string(res.Body))
	result := res.JSON(t)["result"].(map[string]interface{})
	assert.EqualValues(t, 66, result["score"])
	assert.Equal(t, false, result["passed"])

	resultID := uint(result["id"].(float64))
	assert.Equal(t, http.StatusOK, student.do(http.MethodGet, "/api/quiz-results/"+id(resultID), nil).Code)
	assert.Equal(t, http.StatusOK, admin.do(http.MethodGet, "/api/quiz-results/"+id(resultID), nil).Code)
	other := a.login("other@example.com")
	assert.Equal(t, http.StatusForbidden, other.do(http.MethodGet, "/api/quiz-results/"+id(resultID), nil).Code)

	list := student.do(http.MethodGet, "/api/quizzes", nil).JSON(t)["quizzes"].([]interface{})
	require.Len(t, list, 1)
	assert.EqualValues(t, 66, list[0].(map[string]interface{})["latest"].(map[string]interface{})["score"])
}

func TestAssignmentFlow(t *testing.T) {
	a := newApp(t)
	s := testutil.Student(t, a.db, "s@example.com")
	testutil.Admin(t, a.db, "admin@example.com")
	course := testutil.Course(t, a.db, "Go", 1)
	lesson := course.Modules[0].Lessons[0]
	testutil.Enroll(t, a.db, s.ID, course.ID)

	admin := a.login("admin@example.com")
	res := admin.upload("/api/admin/lessons/"+id(lesson.ID)+"/assignment", "resource", "brief.txt", "read me",
		map[string]string{"instructions": "Write a parser", "max_score": "50"})
	require.Equal(t, http.StatusCreated, res.Code, string(res.Body))
	assignmentID := uint(res.JSON(t)["id"].(float64))

	student := a.login("s@example.com")
	res = student.do(http.MethodGet, "/api/assignments/"+id(assignmentID)+"/resource", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "read me", string(res.Body))

	res = student.upload("/api/lessons/"+id(lesson.ID)+"/assignment", "file", "evil.exe", "x", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	res = student.upload("/api/lessons/"+id(lesson.ID)+"/assignment", "file", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = student.upload("/api/lessons/"+id(lesson.ID)+"/assignment", "file", "answer.txt", "v1", nil)
	require.Equal(t, http.StatusCreated, res.Code, string(res.Body))
	subID := uint(res.JSON(t)["submission"].(map[string]interface{})["id"].(float64))
	assert.EqualValues(t, 1, testutil.Count(t, a.db, &models.Notification{}))
	assert.Len(t, a.mailer.Sent(), 1)

	res = admin.do(http.MethodGet, "/api/submissions/"+id(subID)+"/file", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "v1", string(res.Body))

	res = admin.do(http.MethodPost, "/api/admin/submissions/"+id(subID)+"/grade", map[string]interface{}{"grade": 51})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	res = admin.do(http.MethodPost, "/api/admin/submissions/"+id(subID)+"/grade", map[string]interface{}{"grade": 45, "feedback": "good"})
	require.Equal(t, http.StatusOK, res.Code, string(res.Body))

	res = student.upload("/api/lessons/"+id(lesson.ID)+"/assignment", "file", "answer.txt", "v2", nil)
	assert.Equal(t, http.StatusConflict, res.Code)

	overview := student.do(http.MethodGet, "/api/assignments", nil).JSON(t)["assignments"].([]interface{})
	require.Len(t, overview, 1)
	assert.Equal(t, models.SubmissionGraded, overview[0].(map[string]interface{})["status"])

	res = admin.do(http.MethodDelete, "/api/admin/submissions/"+id(subID), nil)
	require.Equal(t, http.StatusOK, res.Code)
	res = student.upload("/api/lessons/"+id(lesson.ID)+"/assignment", "file", "answer.txt", "v3", nil)
	assert.Equal(t, http.StatusCreated, res.Code)
}

func TestSubmissionDownloadRules(t *testing.T) {
	a := newApp(t)
	owner := testutil.Student(t, a.db, "s@example.com")
	testutil.Student(t, a.db, "other@example.com")
	course := testutil.Course(t, a.db, "Go", 1)
	testutil.Enroll(t, a.db, owner.ID, course.ID)

	asg := models.Assignment{LessonID: course.Modules[0].Lessons[0].ID, Instructions: "x", MaxScore: 100}
	require.NoError(t, a.db.Create(&asg).Error)
	sub := models.Submission{UserID: owner.ID, AssignmentID: asg.ID, FilePath: "assignments/gone.txt"}
	require.NoError(t, a.db.Create(&sub).Error)

	other := a.login("other@example.com")
	assert.Equal(t, http.StatusForbidden, other.do(http.MethodGet, "/api/submissions/"+id(sub.ID)+"/file", nil).Code)

	student := a.login("s@example.com")
	res := student.do(http.MethodGet, "/api/submissions/"+id(sub.ID)+"/file", nil)
	assert.Equal(t, http.StatusSeeOther, res.Code)

	notices := student.do(http.MethodGet, "/api/notices", nil).JSON(t)["notices"].([]interface{})
	require.Len(t, notices, 1)
	assert.Equal(t, "File not found on server.", notices[0].(map[string]interface{})["message"])
	assert.Empty(t, student.do(http.MethodGet, "/api/notices", nil).JSON(t)["notices"])

	require.NoError(t, a.db.Model(&sub).Update("file_path", "https://files.example.com/a.txt").Error)
	res = student.do(http.MethodGet, "/api/submissions/"+id(sub.ID)+"/file", nil)
	assert.Equal(t, http.StatusFound, res.Code)
	assert.Equal(t, "https://files.example.com/a.txt", res.Location)
}

func TestContentManagement(t *testing.T) {
	a := newApp(t)
	testutil.Admin(t, a.db, "admin@example.com")
	admin := a.login("admin@example.com")

	res := admin.do(http.MethodPost, "/api/admin/categories", map[string]string{"name": "Programming"})
	require.Equal(t, http.StatusCreated, res.Code, string(res.Body))
	categoryID := uint(res.JSON(t)["id"].(float64))
	assert.Equal(t, http.StatusConflict, admin.do(http.MethodPost, "/api/admin/categories", map[string]string{"name": "Programming"}).Code)
	assert.Equal(t, http.StatusBadRequest, admin.do(http.MethodPost, "/api/admin/categories", map[string]string{"name": " "}).Code)

	res = admin.do(http.MethodPost, "/api/admin/courses", map[string]interface{}{"title": "Go", "description": "d", "category_id": 999})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	res = admin.do(http.MethodPost, "/api/admin/courses", map[string]interface{}{"title": "Go", "description": "d", "category_id": categoryID})
	require.Equal(t, http.StatusCreated, res.Code, string(res.Body))
	courseID := uint(res.JSON(t)["id"].(float64))

	res = admin.upload("/api/admin/courses/"+id(courseID)+"/thumbnail", "thumbnail", "cover.png", "png", nil)
	require.Equal(t, http.StatusOK, res.Code, string(res.Body))
	assert.True(t, strings.HasPrefix(res.JSON(t)["thumbnail_url"].(string), storage.FolderThumbnails+"/"))

	var moduleIDs []uint
	for _, title := range []string{"Intro", "Advanced"} {
		res = admin.do(http.MethodPost, "/api/admin/courses/"+id(courseID)+"/modules", map[string]string{"title": title})
		require.Equal(t, http.StatusCreated, res.Code, string(res.Body))
		m := res.JSON(t)
		assert.EqualValues(t, len(moduleIDs), m["order_index"])
		moduleIDs = append(moduleIDs, uint(m["id"].(float64)))
	}

	res = admin.do(http.MethodPost, "/api/admin/modules/"+id(moduleIDs[0])+"/lessons", map[string]string{"title": "Hello", "video_url": "https://v.example.com/1"})
	require.Equal(t, http.StatusCreated, res.Code, string(res.Body))
	assert.EqualValues(t, 0, res.JSON(t)["order_index"])

	res = admin.do(http.MethodPost, "/api/admin/modules/"+id(moduleIDs[0])+"/quick-add", map[string]string{"title": "Homework", "type": "assignment"})
	require.Equal(t, http.StatusCreated, res.Code, string(res.Body))
	body := res.JSON(t)
	assert.EqualValues(t, 1, body["lesson"].(map[string]interface{})["order_index"])
	assert.Equal(t, "Pending setup...", body["assignment"].(map[string]interface{})["instructions"])
	assert.EqualValues(t, 100, body["assignment"].(map[string]interface{})["max_score"])

	res = admin.do(http.MethodPost, "/api/admin/modules/"+id(moduleIDs[1])+"/quick-add", map[string]string{"title": "Check", "type": "quiz"})
	require.Equal(t, http.StatusCreated, res.Code)
	assert.Nil(t, res.JSON(t)["assignment"])
	assert.Equal(t, http.StatusBadRequest,
		admin.do(http.MethodPost, "/api/admin/modules/"+id(moduleIDs[1])+"/quick-add", map[string]string{"title": "X", "type": "video"}).Code)

	tree := admin.do(http.MethodGet, "/api/admin/courses/"+id(courseID), nil).JSON(t)
	modules := tree["modules"].([]interface{})
	require.Len(t, modules, 2)
	assert.Len(t, modules[0].(map[string]interface{})["lessons"], 2)

	res = admin.do(http.MethodDelete, "/api/admin/categories/"+id(categoryID), nil)
	require.Equal(t, http.StatusOK, res.Code, string(res.Body))
	for _, model := range []interface{}{&models.Course{}, &models.Module{}, &models.Lesson{}, &models.Assignment{}} {
		assert.Zero(t, testutil.Count(t, a.db, model))
	}
	assert.Equal(t, http.StatusNotFound, admin.do(http.MethodDelete, "/api/admin/categories/"+id(categoryID), nil).Code)
}

func TestProfileUpdate(t *testing.T) {
	a := newApp(t)
	testutil.Student(t, a.db, "s@example.com")
	student := a.login("s@example.com")

	res := student.upload("/api/profile", "profile_image", "", "", map[string]string{
		"current_password": "wrong", "new_password": "newpass1", "confirm_password": "newpass1",
	})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = student.upload("/api/profile", "profile_image", "me.png", "img", map[string]string{
		"current_password": "secret123", "new_password": "newpass1", "confirm_password": "newpass1",
	})
	require.Equal(t, http.StatusOK, res.Code, string(res.Body))
	assert.True(t, strings.HasPrefix(res.JSON(t)["user"].(map[string]interface{})["profile_image"].(string), storage.FolderAvatars+"/"))

	fresh := a.client()
	assert.Equal(t, http.StatusUnauthorized,
		fresh.do(http.MethodPost, "/login", map[string]string{"email": "s@example.com", "password": "secret123"}).Code)
	assert.Equal(t, http.StatusOK,
		fresh.do(http.MethodPost, "/login", map[string]string{"email": "s@example.com", "password": "newpass1"}).Code)
}

func TestUploadedImagesAreServed(t *testing.T) {
	a := newApp(t)
	testutil.Admin(t, a.db, "admin@example.com")
	admin := a.login("admin@example.com")
	course := testutil.Course(t, a.db, "Go", 1)

	res := admin.upload("/api/admin/courses/"+id(course.ID)+"/thumbnail", "thumbnail", "cover.png", "png-bytes", nil)
	require.Equal(t, http.StatusOK, res.Code, string(res.Body))
	ref := res.JSON(t)["thumbnail_url"].(string)

	anon := a.client()
	res = anon.do(http.MethodGet, "/uploads/"+ref, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "png-bytes", string(res.Body))

	assert.Equal(t, http.StatusNotFound, anon.do(http.MethodGet, "/uploads/"+storage.FolderThumbnails+"/", nil).Code)

	private := filepath.Join(a.store.Root, storage.FolderAssignments, "essay.txt")
	require.NoError(t, os.WriteFile(private, []byte("secret"), 0o644))
	assert.Equal(t, http.StatusNotFound, anon.do(http.MethodGet, "/uploads/"+storage.FolderAssignments+"/essay.txt", nil).Code)
}

func TestMissingResourceRedirectStaysOnSite(t *testing.T) {
	a := newApp(t)
	s := testutil.Student(t, a.db, "s@example.com")
	course := testutil.Course(t, a.db, "Go", 1)
	testutil.Enroll(t, a.db, s.ID, course.ID)
	assignment := models.Assignment{LessonID: course.Modules[0].Lessons[0].ID, Instructions: "Read", MaxScore: 10,
		ResourcePath: storage.FolderResources + "/gone.pdf"}
	require.NoError(t, a.db.Create(&assignment).Error)
	student := a.login("s@example.com")

	tests := []struct {
		referer  string
		location string
	}{
		{"", "/"},
		{"https://evil.example.com/phish", "/"},
		{a.srv.URL + "/api/lessons/" + id(assignment.LessonID), "/api/lessons/" + id(assignment.LessonID)},
	}
	for _, tc := range tests {
		req, err := http.NewRequest(http.MethodGet, a.srv.URL+"/api/assignments/"+id(assignment.ID)+"/resource", nil)
		require.NoError(t, err)
		if tc.referer != "" {
			req.Header.Set("Referer", tc.referer)
		}
		res := student.send(req)
		assert.Equal(t, http.StatusSeeOther, res.Code, tc.referer)
		assert.Equal(t, tc.location, res.Location, tc.referer)
	}
}
