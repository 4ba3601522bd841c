package handlers

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/s/learnhub/internal/access"
	"github.com/s/learnhub/internal/assignment"
	"github.com/s/learnhub/internal/auth"
	"github.com/s/learnhub/internal/cascade"
	"github.com/s/learnhub/internal/config"
	"github.com/s/learnhub/internal/logger"
	"github.com/s/learnhub/internal/models"
	"github.com/s/learnhub/internal/notify"
	"github.com/s/learnhub/internal/progress"
	"github.com/s/learnhub/internal/quiz"
	"github.com/s/learnhub/internal/storage"
	"github.com/s/learnhub/internal/validation"
)

const sessionName = "session"

// Notice is a one-shot message kept in the session until the client reads it.
type Notice struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

func init() {
	gob.Register(Notice{})
}

// Handler is the application context shared by every HTTP handler.
type Handler struct {
	DB     *gorm.DB
	Store  *sessions.CookieStore
	Config *oauth2.Config // nil when Google sign-in is not configured
	App    *config.Config
	Log    logger.Logger
	Files  storage.FileStore

	Gate        *access.Gate
	Progress    *progress.Tracker
	Quizzes     *quiz.Service
	Assignments *assignment.Service
	Cascade     *cascade.Deleter
	Notifier    *notify.Notifier
}

func NewHandler(db *gorm.DB, store *sessions.CookieStore, oauthConfig *oauth2.Config, app *config.Config,
	log logger.Logger, files storage.FileStore, mailer notify.Mailer) *Handler {
	notifier := notify.NewNotifier(db, mailer, log)
	return &Handler{
		DB:          db,
		Store:       store,
		Config:      oauthConfig,
		App:         app,
		Log:         log,
		Files:       files,
		Gate:        access.NewGate(db),
		Progress:    progress.NewTracker(db),
		Quizzes:     quiz.NewService(db),
		Assignments: assignment.NewService(db, files, notifier, log),
		Cascade:     cascade.NewDeleter(db, files, log),
		Notifier:    notifier,
	}
}

// NewCookieStore builds the session store. Cookies are Lax and HttpOnly;
// Secure only when the site is served over HTTPS.
func NewCookieStore(key []byte, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// --- request user ---

type ctxKey int

const userKey ctxKey = 0

// WithUser stores the authenticated user on the request context.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// CurrentUser returns the user loaded by the auth middleware, or nil.
func CurrentUser(r *http.Request) *models.User {
	u, _ := r.Context().Value(userKey).(*models.User)
	return u
}

func (h *Handler) GetAuthenticatedUserID(r *http.Request) (uint, bool) {
	session, _ := h.Store.Get(r, sessionName)
	userID, ok := session.Values["user_id"].(uint)
	return userID, ok && userID != 0
}

// SessionUser loads the user of the current session, or nil when nobody is
// signed in or the account no longer exists.
func (h *Handler) SessionUser(r *http.Request) (*models.User, error) {
	if u := CurrentUser(r); u != nil {
		return u, nil
	}
	userID, ok := h.GetAuthenticatedUserID(r)
	if !ok {
		return nil, nil
	}
	var u models.User
	err := h.DB.First(&u, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, u *models.User) error {
	session, _ := h.Store.Get(r, sessionName)
	session.Values["user_id"] = u.ID
	session.Values["role"] = u.Role
	if err := session.Save(r, w); err != nil {
		return errors.Wrap(err, "saving session")
	}
	if err := h.DB.Create(&models.UserLog{UserID: u.ID, Action: models.ActionLogin, Details: "Signed in"}).Error; err != nil {
		h.Log.Warn("could not record login", err)
	}
	return nil
}

// ClearSession signs the current user out.
func (h *Handler) ClearSession(w http.ResponseWriter, r *http.Request) {
	session, _ := h.Store.Get(r, sessionName)
	delete(session.Values, "user_id")
	delete(session.Values, "role")
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		h.Log.Warn("could not clear session", err)
	}
}

// AddFlash queues a notice for the next GET /api/notices.
func (h *Handler) AddFlash(w http.ResponseWriter, r *http.Request, category, message string) {
	session, _ := h.Store.Get(r, sessionName)
	session.AddFlash(Notice{Category: category, Message: message})
	if err := session.Save(r, w); err != nil {
		h.Log.Warn("could not save flash", err)
	}
}

// HandleNotices drains the session's pending notices.
func (h *Handler) HandleNotices(w http.ResponseWriter, r *http.Request) {
	session, _ := h.Store.Get(r, sessionName)
	notices := make([]Notice, 0)
	for _, f := range session.Flashes() {
		if n, ok := f.(Notice); ok {
			notices = append(notices, n)
		}
	}
	if err := session.Save(r, w); err != nil {
		h.Log.Warn("could not save session", err)
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"notices": notices})
}

// HandleMain describes the service and who is signed in.
func (h *Handler) HandleMain(w http.ResponseWriter, r *http.Request) {
	u, err := h.SessionUser(r)
	if err != nil {
		h.Fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"app":            h.App.AppName,
		"user":           u,
		"google_enabled": h.Config != nil,
	})
}

// --- JSON helpers ---

func WriteJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func JSONError(w http.ResponseWriter, message string, code int) {
	WriteJSON(w, code, map[string]string{"error": message})
}

// DecodeJSON reads the request body into v.
func DecodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return validation.New("Invalid JSON payload")
	}
	return nil
}

// PathID parses a numeric route variable.
func PathID(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil || id == 0 {
		return 0, validation.New("Invalid " + name)
	}
	return uint(id), nil
}

// ErrNotFound is returned by handlers for missing resources of their own.
var ErrNotFound = errors.New("not found")

var notFound = []error{
	ErrNotFound, gorm.ErrRecordNotFound,
	quiz.ErrNotFound, quiz.ErrNoLesson,
	assignment.ErrNotFound, assignment.ErrNoSubmission, assignment.ErrNoLesson,
	cascade.ErrNotFound, access.ErrNotFound, progress.ErrNotFound,
}

var conflicts = []error{
	gorm.ErrDuplicatedKey,
	assignment.ErrAlreadyGraded, assignment.ErrDuplicate,
	progress.ErrAlreadyEnrolled, progress.ErrNotEnrolled,
	auth.ErrEmailTaken,
}

var badRequests = []error{assignment.ErrNoFile, assignment.ErrFileType}

func matches(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// Fail writes the response for err. Unexpected errors are logged and
// reported with a generic message.
func (h *Handler) Fail(w http.ResponseWriter, err error) {
	var ve *validation.Error
	switch {
	case errors.As(err, &ve):
		WriteJSON(w, http.StatusBadRequest, map[string]interface{}{"error": ve.Message, "fields": ve.Fields})
	case matches(err, notFound):
		JSONError(w, capitalize(errors.Cause(err).Error()), http.StatusNotFound)
	case matches(err, conflicts):
		msg := errors.Cause(err).Error()
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			msg = "Already exists"
		}
		JSONError(w, capitalize(msg), http.StatusConflict)
	case matches(err, badRequests):
		JSONError(w, capitalize(errors.Cause(err).Error()), http.StatusBadRequest)
	default:
		h.Log.Error("request failed", err)
		JSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

// Forbidden reports an authorization failure.
func Forbidden(w http.ResponseWriter) {
	JSONError(w, "Access denied", http.StatusForbidden)
}

// --- uploads and downloads ---

// FormFile reads an optional multipart file. The returned cleanup must be
// called once the upload has been consumed.
func (h *Handler) FormFile(w http.ResponseWriter, r *http.Request, field string) (*assignment.Upload, func(), error) {
	noop := func() {}
	if r.MultipartForm == nil {
		r.Body = http.MaxBytesReader(w, r.Body, h.App.MaxUploadBytes()+1<<20)
	}
	if err := r.ParseMultipartForm(h.App.MaxUploadBytes()); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, noop, nil
		}
		return nil, noop, validation.New("Upload too large or malformed")
	}
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, validation.New("Could not read uploaded file")
	}
	return &assignment.Upload{Filename: header.Filename, Body: file}, func() { _ = file.Close() }, nil
}

// backPath returns the referring page when it is on this host, else "/".
func backPath(r *http.Request) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || (ref.Host != "" && ref.Host != r.Host) {
		return "/"
	}
	if !strings.HasPrefix(ref.Path, "/") || strings.HasPrefix(ref.Path, "//") {
		return "/"
	}
	return ref.RequestURI()
}

// ServeStored sends a stored file. Remote references are redirected to; a
// missing local file becomes a notice and a redirect to fallback.
func (h *Handler) ServeStored(w http.ResponseWriter, r *http.Request, ref, fallback string) {
	if storage.IsRemote(ref) {
		http.Redirect(w, r, ref, http.StatusFound)
		return
	}
	f, err := h.Files.Open(ref)
	if ref == "" || errors.Is(err, storage.ErrFileNotFound) {
		h.AddFlash(w, r, "danger", "File not found on server.")
		http.Redirect(w, r, fallback, http.StatusSeeOther)
		return
	}
	if err != nil {
		h.Fail(w, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.Fail(w, err)
		return
	}
	w.Header().Set("Content-Disposition", "attachment; filename=\""+storage.SecureFilename(info.Name())+"\"")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
