package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/reimbursement-portal-api/internal/repository"
	"github.com/noah-isme/reimbursement-portal-api/internal/service"
	"github.com/noah-isme/reimbursement-portal-api/pkg/config"
	"github.com/noah-isme/reimbursement-portal-api/pkg/database"
	"github.com/noah-isme/reimbursement-portal-api/pkg/logger"
)

// create-admin provisions or resets the portal administrator account.
func main() {
	email := flag.String("email", "admin@cu.ac.in", "admin email")
	password := flag.String("password", os.Getenv("ADMIN_PASSWORD"), "admin password (defaults to $ADMIN_PASSWORD)")
	name := flag.String("name", "Admin", "admin display name")
	migrate := flag.Bool("migrate", false, "apply the schema before creating the account")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if *password == "" {
		logr.Fatal("an admin password is required: pass -password or set ADMIN_PASSWORD")
	}

	db, err := database.NewPostgres(context.Background(), cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if *migrate || cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logr.Fatal("failed to migrate schema", zap.Error(err))
		}
	}

	auth := service.NewAuthService(repository.NewUserRepository(db), nil, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	admin, err := auth.EnsureAdmin(ctx, *email, *password, *name)
	if err != nil {
		logr.Fatal("failed to provision admin", zap.Error(err))
	}
	logr.Info("admin account ready", zap.String("user_id", admin.ID), zap.String("email", admin.Email))
}
