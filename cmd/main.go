package main

import (
	stdlog "log"
	"net/http"
	"net/mail"
	"os"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/s/learnhub/internal/auth"
	"github.com/s/learnhub/internal/config"
	"github.com/s/learnhub/internal/database"
	"github.com/s/learnhub/internal/handlers"
	"github.com/s/learnhub/internal/logger"
	"github.com/s/learnhub/internal/notify"
	"github.com/s/learnhub/internal/router"
	"github.com/s/learnhub/internal/storage"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg := config.Load()
	log := logger.New(cfg.RollbarToken, cfg.Env, version)
	if c, ok := log.(interface{ Close() }); ok {
		defer c.Close()
	}

	// database
	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("could not connect to database", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal("migration failed", err)
	}
	if cfg.SeedAdminEmail != "" {
		created, err := database.SeedAdmin(db, cfg.SeedAdminEmail, cfg.SeedAdminPassword, "")
		if err != nil {
			log.Error("could not seed admin", err)
		} else if created {
			log.Info("admin account created", cfg.SeedAdminEmail)
		}
	}

	// Google sign-in is optional
	var oauthConfig *oauth2.Config
	if cfg.GoogleEnabled() {
		oauthConfig = auth.InitGoogleOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	} else {
		log.Info("GOOGLE_* not set, Google sign-in disabled")
	}

	// sessions
	sessionKey := []byte(cfg.SecretKey)
	if len(sessionKey) == 0 {
		sessionKey = securecookie.GenerateRandomKey(32)
		log.Warn("SECRET_KEY not set, using a random key; sessions will not survive a restart")
	}
	store := handlers.NewCookieStore(sessionKey, cfg.SecureCookies)

	files, err := storage.NewLocalStore(cfg.UploadDir)
	if err != nil {
		log.Fatal("could not prepare upload directory", err)
	}

	var mailer notify.Mailer = notify.NewConsoleMailer(log)
	if cfg.SendgridAPIKey != "" {
		from, err := mail.ParseAddress(cfg.FromEmail)
		if err != nil {
			log.Fatal("invalid FROM_EMAIL", err)
		}
		mailer = notify.NewSendgridMailer(cfg.SendgridAPIKey, *from, cfg.AppName)
	}

	h := handlers.NewHandler(db, store, oauthConfig, cfg, log, files, mailer)

	corsOrigin := "*"
	if cfg.IsProduction() {
		corsOrigin = cfg.BaseURL
	}
	routes := router.New(h, router.Options{
		StaticDir:  "./static",
		UploadDir:  cfg.UploadDir,
		CORSOrigin: corsOrigin,
		AccessLog:  stdlog.New(os.Stdout, "", stdlog.LstdFlags),
	})
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      routes,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info("server started", "http://localhost:"+cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server stopped", err)
	}
}
