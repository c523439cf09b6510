package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomid "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/craft-community/internal/config"
	"github.com/iliyamo/craft-community/internal/database"
	"github.com/iliyamo/craft-community/internal/handler"
	"github.com/iliyamo/craft-community/internal/middleware"
	"github.com/iliyamo/craft-community/internal/queue"
	"github.com/iliyamo/craft-community/internal/repository"
	"github.com/iliyamo/craft-community/internal/router"
	"github.com/iliyamo/craft-community/internal/service"
)

func main() {
	// .env is a development convenience; in production the variables come
	// from the environment and the file is absent.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	users := repository.NewUserRepo(db)
	sessions := repository.NewSessionRepo(db)
	attempts := repository.NewLoginAttemptRepo(db)
	gameTokens := repository.NewGameTokenRepo(db)
	gameSessions := repository.NewGameSessionRepo(db)
	apiTokens := repository.NewApiTokenRepo(db)
	apps := repository.NewApplicationRepo(db)
	trustApps := repository.NewTrustApplicationRepo(db)
	rep := repository.NewReputationRepo(db)
	stats := repository.NewPlayerStatsRepo(db)

	mailer := service.NewMailer()
	events := service.Publisher{}

	h := router.Handlers{
		Auth:  handler.NewAuthHandler(cfg, users, sessions, attempts, mailer),
		Apps:  handler.NewApplicationHandler(cfg, apps, mailer, events),
		Trust: handler.NewTrustLevelHandler(users, trustApps, stats, rep, events),
		Rep:   handler.NewReputationHandler(users, rep),
		Game:  handler.NewGameHandler(cfg, users, apps, gameTokens, gameSessions, stats),
		Admin: handler.NewAdminHandler(cfg, users, sessions, stats, apiTokens, events),
	}

	a := router.Auth{
		Session:  middleware.SessionAuth(sessions, users),
		ApiToken: middleware.ApiTokenAuth(apiTokens, users, cfg.JWTSecret),
	}
	rlCfg := config.LoadRateLimitConfig()
	if rlCfg.Enabled {
		if rdb := config.NewRedisClient(); rdb != nil {
			a.RateLimit = middleware.NewTokenBucket(rlCfg, rdb)
		} else {
			log.Println("rate limiter disabled: redis unavailable")
		}
	}

	// Moderation event consumer tails the broker and appends to
	// logs/moderation.log. The server is fully functional without it.
	go func() {
		if err := queue.StartModerationConsumer(); err != nil {
			log.Printf("moderation consumer stopped: %v", err)
		}
	}()

	// Hourly sweep of expired game sessions so the plugin's session checks
	// stay cheap even when servers never log players out.
	go func() {
		for range time.Tick(time.Hour) {
			n, err := gameSessions.DeactivateExpired(context.Background())
			if err != nil {
				log.Printf("game session sweep: %v", err)
			} else if n > 0 {
				log.Printf("game session sweep: deactivated %d", n)
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomid.Recover())
	e.Use(echomid.Logger())
	router.Register(e, h, a)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
