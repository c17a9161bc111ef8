package main

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/contested-app/contested/internal/config"
	"github.com/contested-app/contested/internal/database"
	"github.com/contested-app/contested/internal/handler"
	"github.com/contested-app/contested/internal/queue"
	"github.com/contested-app/contested/internal/repository"
	"github.com/contested-app/contested/internal/router"
	queue_publisher "github.com/contested-app/contested/internal/service"
	"github.com/contested-app/contested/internal/storage"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional; a nil client disables wizard sessions, rate
	// limiting and response caching.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; wizard sessions, rate limiting and caching disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	athletes := repository.NewAthleteProfileRepo(db)
	businesses := repository.NewBusinessProfileRepo(db)
	feedback := repository.NewFeedbackRepo(db)
	subs := repository.NewSubscriptionRepo(db)

	var scratch *repository.ScratchRepo
	if rdb != nil {
		scratch = repository.NewScratchRepo(rdb, time.Duration(cfg.ScratchTTLHrs)*time.Hour)
	}

	images := storage.NewImageStore(cfg)

	h := router.Handlers{
		Auth:         handler.NewAuthHandler(cfg, users, tokens),
		Profile:      handler.NewProfileHandler(users, athletes, businesses, images),
		Session:      handler.NewSessionHandler(scratch),
		Feedback:     handler.NewFeedbackHandler(feedback),
		Subscription: handler.NewSubscriptionHandler(subs),
		Admin:        handler.NewAdminHandler(users),
	}

	// Background consumer logs onboarding events; it reconnects on its own
	// and never takes the API down.
	go func() {
		if err := queue.StartOnboardingConsumer(queue_publisher.BrokerURL()); err != nil {
			log.Printf("onboarding consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.Register(e, cfg, h, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
