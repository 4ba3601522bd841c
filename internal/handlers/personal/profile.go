package personal

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/s/learnhub/internal/handlers"
	"github.com/s/learnhub/internal/models"
	"github.com/s/learnhub/internal/storage"
	"github.com/s/learnhub/internal/validation"
)

type Service struct {
	handlers.Handler
}

var avatarExtensions = map[string]bool{"png": true, "jpg": true, "jpeg": true, "gif": true}

// HandleProfile serves GET (account and enrolled courses) and POST (avatar
// and password change) for the signed-in student.
func (s *Service) HandleProfile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getProfile(w, r)
	case http.MethodPost:
		s.updateProfile(w, r)
	default:
		handlers.JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Service) getProfile(w http.ResponseWriter, r *http.Request) {
	u := handlers.CurrentUser(r)
	courses, err := s.Progress.EnrolledCourses(u.ID)
	if err != nil {
		s.Fail(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{"user": u, "courses": courses})
}

type passwordChange struct {
	Current string
	New     string
	Confirm string
}

// apply checks the change against u and sets the new hash. An empty current
// or new password means no change was requested.
func (p passwordChange) apply(u *models.User) (bool, error) {
	if p.Current == "" || p.New == "" {
		return false, nil
	}
	if !u.CheckPassword(p.Current) {
		return false, validation.New("Current password incorrect.",
			validation.FieldError{Field: "current_password", Error: "is incorrect"})
	}
	if p.New != p.Confirm {
		return false, validation.New("New passwords do not match.",
			validation.FieldError{Field: "confirm_password", Error: "must match new_password"})
	}
	if len(p.New) < 6 {
		return false, validation.New("New password is too short.",
			validation.FieldError{Field: "new_password", Error: "must be at least 6 characters"})
	}
	return true, u.SetPassword(p.New)
}

func (s *Service) updateProfile(w http.ResponseWriter, r *http.Request) {
	u := *handlers.CurrentUser(r)

	up, done, err := s.FormFile(w, r, "profile_image")
	if err != nil {
		s.Fail(w, err)
		return
	}
	defer done()

	pc := passwordChange{
		Current: r.FormValue("current_password"),
		New:     r.FormValue("new_password"),
		Confirm: r.FormValue("confirm_password"),
	}
	passwordChanged, err := pc.apply(&u)
	if err != nil {
		s.Fail(w, err)
		return
	}

	var messages []string
	oldImage := u.ProfileImage
	if up != nil && up.Filename != "" {
		if !avatarExtensions[storage.Ext(up.Filename)] {
			s.Fail(w, validation.New("Profile image must be a png, jpg or gif file.",
				validation.FieldError{Field: "profile_image", Error: "unsupported file type"}))
			return
		}
		ref, err := s.Files.Save(storage.FolderAvatars, up.Filename, up.Body)
		if err != nil {
			s.Fail(w, errors.Wrap(err, "saving avatar"))
			return
		}
		u.ProfileImage = ref
		messages = append(messages, "Profile image updated!")
	}
	if passwordChanged {
		messages = append(messages, "Password changed successfully!")
	}

	err = s.DB.Model(&u).Select("profile_image", "password_hash").
		Updates(map[string]interface{}{"profile_image": u.ProfileImage, "password_hash": u.PasswordHash}).Error
	if err != nil {
		if u.ProfileImage != oldImage {
			_ = s.Files.Remove(u.ProfileImage)
		}
		s.Fail(w, err)
		return
	}
	if u.ProfileImage != oldImage && oldImage != "" && !storage.IsRemote(oldImage) {
		if err := s.Files.Remove(oldImage); err != nil {
			s.Log.Warn(fmt.Sprintf("could not remove old avatar %q", oldImage), err)
		}
	}

	if len(messages) == 0 {
		messages = append(messages, "Nothing to update.")
	}
	for _, m := range messages {
		s.AddFlash(w, r, "success", m)
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user":    u,
		"message": strings.Join(messages, " "),
	})
}
