package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/s/learnhub/internal/storage"
)

// GoogleUserInfoURL is the profile endpoint queried after the code exchange.
var GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

func InitGoogleOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// NewState returns a random OAuth state value to be kept in the session.
func NewState() string {
	return base64.RawURLEncoding.EncodeToString(securecookie.GenerateRandomKey(24))
}

// FetchGoogleProfile exchanges the callback code and loads the user's profile.
func FetchGoogleProfile(ctx context.Context, cfg *oauth2.Config, code string) (storage.GoogleProfile, error) {
	var p storage.GoogleProfile

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return p, errors.Wrap(err, "exchanging oauth code")
	}

	resp, err := cfg.Client(ctx, token).Get(GoogleUserInfoURL)
	if err != nil {
		return p, errors.Wrap(err, "fetching google profile")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return p, errors.Errorf("fetching google profile: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return p, errors.Wrap(err, "decoding google profile")
	}
	if p.ID == "" || p.Email == "" {
		return p, errors.New("google profile without id or email")
	}
	return p, nil
}
