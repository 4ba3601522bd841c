package handlers

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/s/learnhub/internal/auth"
	"github.com/s/learnhub/internal/models"
	"github.com/s/learnhub/internal/storage"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// landing is where a freshly signed-in user should go.
func landing(u *models.User) string {
	if u.IsAdmin() {
		return "/api/admin/dashboard"
	}
	return "/api/dashboard"
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := DecodeJSON(r, &req); err != nil {
		h.Fail(w, err)
		return
	}

	u, err := auth.Authenticate(h.DB, req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		JSONError(w, err.Error(), http.StatusUnauthorized)
		return
	case errors.Is(err, auth.ErrAccountDisabled), errors.Is(err, auth.ErrAccountPending):
		JSONError(w, err.Error(), http.StatusForbidden)
		return
	case err != nil:
		h.Fail(w, err)
		return
	}

	if err := h.login(w, r, u); err != nil {
		h.Fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"user": u, "redirect": landing(u)})
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := DecodeJSON(r, &in); err != nil {
		h.Fail(w, err)
		return
	}
	u, err := auth.Register(h.DB, in)
	if err != nil {
		h.Fail(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"user":    u,
		"message": "Registration successful! Please wait for admin approval.",
	})
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.ClearSession(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.Config == nil {
		JSONError(w, "Google sign-in is not configured", http.StatusNotFound)
		return
	}
	state := auth.NewState()
	session, _ := h.Store.Get(r, sessionName)
	session.Values["oauth_state"] = state
	if err := session.Save(r, w); err != nil {
		h.Fail(w, err)
		return
	}
	http.Redirect(w, r, h.Config.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func (h *Handler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.Config == nil {
		JSONError(w, "Google sign-in is not configured", http.StatusNotFound)
		return
	}

	session, _ := h.Store.Get(r, sessionName)
	expected, _ := session.Values["oauth_state"].(string)
	delete(session.Values, "oauth_state")
	if expected == "" || r.URL.Query().Get("state") != expected {
		JSONError(w, "Invalid state", http.StatusUnauthorized)
		return
	}

	profile, err := auth.FetchGoogleProfile(r.Context(), h.Config, r.URL.Query().Get("code"))
	if err != nil {
		h.Log.Warn("google sign-in failed", err)
		JSONError(w, "Google sign-in failed", http.StatusBadRequest)
		return
	}

	u, err := storage.SaveGoogleUser(h.DB, profile)
	if err != nil {
		h.Fail(w, err)
		return
	}
	if err := auth.CheckStatus(&u); err != nil {
		_ = session.Save(r, w)
		h.AddFlash(w, r, "warning", err.Error())
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err := h.login(w, r, &u); err != nil {
		h.Fail(w, err)
		return
	}
	http.Redirect(w, r, landing(&u), http.StatusSeeOther)
}
