package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the environment-driven application configuration.
type Config struct {
	Env     string
	AppName string
	BaseURL string
	Port    string

	SecretKey     string
	SecureCookies bool

	DatabaseURL string

	UploadDir   string
	MaxUploadMB int64

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	RollbarToken   string
	SendgridAPIKey string
	FromEmail      string

	SeedAdminEmail    string
	SeedAdminPassword string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetDefault("ENV", "dev")
	v.SetDefault("APP_NAME", "LearnHub")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("PORT", "8080")
	v.SetDefault("SECRET_KEY", "")
	v.SetDefault("SECURE_COOKIES", false)
	v.SetDefault("DATABASE_URL", "sqlite://learnhub.db")
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("MAX_UPLOAD_MB", 16)
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_REDIRECT_URL", "")
	v.SetDefault("ROLLBAR_TOKEN", "")
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("FROM_EMAIL", "noreply@localhost")
	v.SetDefault("SEED_ADMIN_EMAIL", "")
	v.SetDefault("SEED_ADMIN_PASSWORD", "")
	v.AutomaticEnv()
	return v
}

// Load reads .env (if present) and the process environment.
func Load(dotEnvFiles ...string) *Config {
	if err := godotenv.Load(dotEnvFiles...); err != nil && !os.IsNotExist(err) {
		log.Printf("config: could not load .env: %v", err)
	}
	return fromViper(newViper())
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Env:                strings.ToLower(v.GetString("ENV")),
		AppName:            v.GetString("APP_NAME"),
		BaseURL:            strings.TrimRight(v.GetString("BASE_URL"), "/"),
		Port:               v.GetString("PORT"),
		SecretKey:          v.GetString("SECRET_KEY"),
		SecureCookies:      v.GetBool("SECURE_COOKIES"),
		DatabaseURL:        normalizeDatabaseURL(v.GetString("DATABASE_URL")),
		UploadDir:          v.GetString("UPLOAD_DIR"),
		MaxUploadMB:        v.GetInt64("MAX_UPLOAD_MB"),
		GoogleClientID:     v.GetString("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  v.GetString("GOOGLE_REDIRECT_URL"),
		RollbarToken:       v.GetString("ROLLBAR_TOKEN"),
		SendgridAPIKey:     v.GetString("SENDGRID_API_KEY"),
		FromEmail:          v.GetString("FROM_EMAIL"),
		SeedAdminEmail:     v.GetString("SEED_ADMIN_EMAIL"),
		SeedAdminPassword:  v.GetString("SEED_ADMIN_PASSWORD"),
	}
}

// normalizeDatabaseURL rewrites the legacy postgres:// scheme some hosts hand out.
func normalizeDatabaseURL(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") {
		return "postgresql://" + strings.TrimPrefix(dsn, "postgres://")
	}
	return dsn
}

func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

func (c *Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
