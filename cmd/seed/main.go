// Command seed migrates the schema and creates the admin account.
//
//	go run ./cmd/seed -email admin@example.com -password secret
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/s/learnhub/internal/config"
	"github.com/s/learnhub/internal/database"
	"github.com/s/learnhub/internal/logger"
)

func main() {
	cfg := config.Load()

	email := flag.String("email", cfg.SeedAdminEmail, "admin email (defaults to SEED_ADMIN_EMAIL)")
	password := flag.String("password", cfg.SeedAdminPassword, "admin password (defaults to SEED_ADMIN_PASSWORD)")
	name := flag.String("name", "System Admin", "admin full name")
	dsn := flag.String("db", cfg.DatabaseURL, "database URL (defaults to DATABASE_URL)")
	flag.Parse()

	log := logger.New("", cfg.Env, "seed")

	db, err := database.Connect(*dsn, log)
	if err != nil {
		log.Fatal("could not connect to database", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal("migration failed", err)
	}

	created, err := database.SeedAdmin(db, *email, *password, *name)
	if err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		flag.Usage()
		os.Exit(2)
	}
	if created {
		fmt.Printf("Admin user created: %s\n", *email)
		return
	}
	fmt.Printf("Admin user already exists: %s\n", *email)
}
