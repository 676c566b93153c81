package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/xbinlabs/mining-rental/internal/config"
	"github.com/xbinlabs/mining-rental/internal/database"
	"github.com/xbinlabs/mining-rental/internal/handler"
	"github.com/xbinlabs/mining-rental/internal/logging"
	"github.com/xbinlabs/mining-rental/internal/mailer"
	"github.com/xbinlabs/mining-rental/internal/middleware"
	"github.com/xbinlabs/mining-rental/internal/queue"
	"github.com/xbinlabs/mining-rental/internal/repository"
	"github.com/xbinlabs/mining-rental/internal/router"
	"github.com/xbinlabs/mining-rental/internal/service"
	"github.com/xbinlabs/mining-rental/internal/storage"
	"github.com/xbinlabs/mining-rental/internal/validator"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env always wins

	cfg := config.Load()
	log := logging.New(cfg.Env)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn().Msg("redis unavailable, cache and rate limiting disabled")
	}

	// Repositories
	users := repository.NewUserRepo(db)
	machines := repository.NewMachineRepo(db)
	bookings := repository.NewBookingRepo(db)
	messages := repository.NewMessageRepo(db)
	wallets := repository.NewWalletRepo(db)
	contacts := repository.NewContactRepo(db)
	legal := repository.NewLegalRepo(db)

	// Booking events go to RabbitMQ; failures are logged, never fatal.
	publish := func(ctx context.Context, ev queue.BookingEvent) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = queue.PublishBookingEvent(ctx, log, ev)
	}
	bookingSvc := service.NewBookingService(bookings, machines, messages, log, publish)

	var store *storage.S3Store
	if cfg.S3Bucket != "" {
		store, err = storage.NewS3Store(cfg.S3Endpoint, cfg.S3Region, cfg.S3Bucket, cfg.S3AccessKey, cfg.S3SecretKey)
		if err != nil {
			log.Warn().Err(err).Msg("object storage unavailable, image uploads disabled")
		}
	}

	mail := mailer.New(cfg.EmailAPIKey, cfg.EmailFrom, cfg.FrontendURL)

	h := router.Handlers{
		Auth:     handler.NewAuthHandler(cfg, users, wallets, mail, log),
		Users:    handler.NewUserHandler(cfg, users),
		Machines: handler.NewMachineHandler(machines, store, log),
		Bookings: handler.NewBookingUserHandler(bookingSvc),
		Admin:    handler.NewBookingAdminHandler(bookingSvc),
		Wallets:  handler.NewWalletHandler(wallets),
		Contact:  handler.NewContactHandler(contacts),
		Legal:    handler.NewLegalHandler(legal),
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = validator.New()
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(middleware.RequestLogger(log))

	mw := router.Middlewares{
		Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
	}
	router.Register(e, h, mw, cfg.JWTSecret)

	// Background consumer mirrors booking events into logs/booking.log.
	go queue.StartBookingConsumer(log)

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("server starting")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
	log.Info().Msg("server stopped")
}
