package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/taskrewards/server/internal/admin"
	"github.com/taskrewards/server/internal/auth"
	"github.com/taskrewards/server/internal/claims"
	"github.com/taskrewards/server/internal/config"
	"github.com/taskrewards/server/internal/db"
	httpserver "github.com/taskrewards/server/internal/http"
	"github.com/taskrewards/server/internal/http/handlers"
	"github.com/taskrewards/server/internal/ledger"
	"github.com/taskrewards/server/internal/referral"
	"github.com/taskrewards/server/internal/repo"
	"github.com/taskrewards/server/internal/reward"
	"github.com/taskrewards/server/internal/violation"
)

// stores bundles one implementation of every repository.
type stores struct {
	users      repo.UserRepo
	tasks      repo.TaskRepo
	referrals  repo.ReferralRepo
	violations repo.ViolationRepo
	adminLogs  repo.AdminLogRepo
}

func main() {
	// Load .env from CWD or server/ so it works from repo root or server/ (env vars override)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("server/.env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var st stores
	if cfg.DevMode && cfg.DatabaseURL == "" {
		log.Println("DEV_MODE: using in-memory store, state is lost on restart")
		mem := repo.NewMemory()
		st = stores{
			users:      mem.Users(),
			tasks:      mem.Tasks(),
			referrals:  mem.Referrals(),
			violations: mem.Violations(),
			adminLogs:  mem.AdminLogs(),
		}
	} else {
		database, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer database.Close()

		if err := db.Migrate(database); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}

		st = stores{
			users:      repo.NewPgUserRepo(database),
			tasks:      repo.NewPgTaskRepo(database),
			referrals:  repo.NewPgReferralRepo(database),
			violations: repo.NewPgViolationRepo(database),
			adminLogs:  repo.NewPgAdminLogRepo(database),
		}
	}

	// Wire services; a nil clock means time.Now everywhere.
	violationReporter := violation.NewReporter(st.users, st.violations, nil)
	referralService := referral.NewService(st.users, st.referrals, violationReporter, nil)
	sessionService := auth.NewSessionService(cfg.JWTSecret, nil)
	accountService := auth.NewAccountService(st.users, sessionService, referralService, violationReporter, nil)
	limiter := ledger.NewLimiter(st.tasks, nil)
	signer := claims.NewSigner(cfg.ClaimSecret, nil)
	verifier := claims.NewVerifier(cfg.ClaimSecret, nil)
	engine := reward.NewEngine(st.users, st.tasks, verifier, limiter, violationReporter, referralService, nil)
	adminService := admin.NewService(st.users, st.adminLogs, cfg.AdminSecret, nil)

	authHandler := handlers.NewAuthHandler(accountService)
	rewardsHandler := handlers.NewRewardsHandler(signer, engine, limiter, referralService, violationReporter)
	adminHandler := handlers.NewAdminHandler(adminService)

	router := httpserver.NewRouter(authHandler, rewardsHandler, adminHandler, sessionService, st.users)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
