package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	c := fromViper(newViper())
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "sqlite://learnhub.db", c.DatabaseURL)
	assert.Equal(t, "uploads", c.UploadDir)
	assert.EqualValues(t, 16<<20, c.MaxUploadBytes())
	assert.False(t, c.GoogleEnabled())
	assert.False(t, c.IsProduction())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("ENV", "Production")
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/app")
	t.Setenv("MAX_UPLOAD_MB", "2")
	t.Setenv("SECURE_COOKIES", "true")
	t.Setenv("BASE_URL", "https://learn.example.com/")
	t.Setenv("GOOGLE_CLIENT_ID", "id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")
	t.Setenv("GOOGLE_REDIRECT_URL", "https://learn.example.com/auth/google/callback")

	c := fromViper(newViper())
	assert.True(t, c.IsProduction())
	assert.Equal(t, "9000", c.Port)
	assert.Equal(t, "postgresql://u:p@db:5432/app", c.DatabaseURL)
	assert.EqualValues(t, 2<<20, c.MaxUploadBytes())
	assert.True(t, c.SecureCookies)
	assert.Equal(t, "https://learn.example.com", c.BaseURL)
	assert.True(t, c.GoogleEnabled())
}
