package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/thefutureseer/BlissfulBond/internal/bootstrap"
	"github.com/thefutureseer/BlissfulBond/internal/config"
	"github.com/thefutureseer/BlissfulBond/internal/database"
	"github.com/thefutureseer/BlissfulBond/internal/handler"
	"github.com/thefutureseer/BlissfulBond/internal/middleware"
	"github.com/thefutureseer/BlissfulBond/internal/queue"
	"github.com/thefutureseer/BlissfulBond/internal/repository"
	"github.com/thefutureseer/BlissfulBond/internal/router"
	"github.com/thefutureseer/BlissfulBond/internal/service"
	"github.com/thefutureseer/BlissfulBond/internal/session"
)

func main() {
	cfg := config.Load() // Load environment config (.env honored)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient() // nil disables rate limiting
	if rdb == nil {
		log.Printf("redis unavailable, rate limiting disabled")
	}

	users := repository.NewUserRepo(db)
	sessionRepo := repository.NewSessionRepo(db)
	sessions := session.NewManager(sessionRepo,
		cfg.SessionSecret, cfg.SessionTTL, cfg.CookieSecure)
	resetSvc := service.NewPasswordResetService(users, cfg.ResetTokenTTL, cfg.BcryptCost)

	gate := bootstrap.NewGate()
	e := echo.New()
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	router.RegisterRoutes(e, gate)
	router.RegisterAuth(e,
		handler.NewAuthHandler(cfg, users, sessions),
		handler.NewPasswordResetHandler(resetSvc, sessions),
		sessions, gate, limiter)

	// Janitor: expired session rows are invisible to lookups already, this
	// just keeps the table from growing without bound.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if n, err := sessionRepo.DeleteExpired(ctx); err != nil {
				log.Printf("session janitor: %v", err)
			} else if n > 0 {
				log.Printf("session janitor: purged %d expired sessions", n)
			}
			cancel()
		}
	}()

	// Mail worker: consumes reset events and renders the magic-link email.
	go func() {
		if err := queue.StartResetMailConsumer(cfg.BaseURL); err != nil {
			log.Printf("reset-mail consumer stopped: %v", err)
		}
	}()

	// Apply schema and provision the couple accounts, then open the gate.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(ctx, db); err != nil {
		cancel()
		log.Fatalf("migrate: %v", err)
	}
	if err := bootstrap.SeedCouple(ctx, users, cfg); err != nil {
		cancel()
		log.Fatalf("seed: %v", err)
	}
	cancel()
	gate.MarkReady()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
