package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/cueclub/table-service/internal/broadcast"
	"github.com/cueclub/table-service/internal/config"
	"github.com/cueclub/table-service/internal/database"
	"github.com/cueclub/table-service/internal/handler"
	"github.com/cueclub/table-service/internal/middleware"
	"github.com/cueclub/table-service/internal/play"
	"github.com/cueclub/table-service/internal/queue"
	"github.com/cueclub/table-service/internal/repository"
	"github.com/cueclub/table-service/internal/router"
	queue_publisher "github.com/cueclub/table-service/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	tables := repository.NewTableRepo(db)
	sessions := repository.NewSessionRepo(db)
	settings := repository.NewSettingsRepo(db)
	audits := repository.NewAuditRepo(db)
	users := repository.NewUserRepo(db)
	store := repository.NewStore(tables, sessions)

	machine := play.NewMachine(store, audits, settings)
	publisher := queue_publisher.NewPublisher()
	defer publisher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := broadcast.New(store, machine, publisher, cfg.BroadcastInterval, nil)
	go sched.Run(ctx)

	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true

	// Redis is optional. Without it staff routes simply run uncached
	// and unthrottled.
	var staffExtras []echo.MiddlewareFunc
	if rdb := config.NewRedisClient(); rdb != nil {
		staffExtras = append(staffExtras,
			middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
			middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
		)
	}

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(users, cfg.JWTSecret, cfg.AccessTTLMin), cfg.JWTSecret)
	router.RegisterStaff(e, handler.NewTableHandler(machine, tables, sessions), cfg.JWTSecret, staffExtras...)
	router.RegisterAdmin(e, handler.NewAdminHandler(tables, settings), cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
