package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/student-stay/internal/approval"
	"github.com/iliyamo/student-stay/internal/catalog"
	"github.com/iliyamo/student-stay/internal/config"
	"github.com/iliyamo/student-stay/internal/database"
	"github.com/iliyamo/student-stay/internal/federated"
	"github.com/iliyamo/student-stay/internal/files"
	"github.com/iliyamo/student-stay/internal/handler"
	"github.com/iliyamo/student-stay/internal/kv"
	"github.com/iliyamo/student-stay/internal/middleware"
	"github.com/iliyamo/student-stay/internal/otp"
	"github.com/iliyamo/student-stay/internal/queue"
	"github.com/iliyamo/student-stay/internal/repository"
	"github.com/iliyamo/student-stay/internal/router"
	"github.com/iliyamo/student-stay/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: .env: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database: migrate: %v", err)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Fatal("redis: unavailable; phone verification cannot run without it")
	}
	defer rdb.Close()

	cat, err := loadCatalog(cfg.CatalogFile)
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}

	publisher := service.NewPublisher(cfg.RabbitURL, !cfg.IsProd())
	if cfg.RabbitURL != "" {
		go func() {
			if err := queue.StartConsumer(ctx, cfg.RabbitURL, cfg.EventLogDir); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("event-consumer: stopped: %v", err)
			}
		}()
	}

	records := repository.NewRecordRepo(db)
	accounts := service.NewAccountService(
		repository.NewAccountRepo(db),
		repository.NewTokenRepo(db),
		otp.NewStore(rdb, cfg.OTP.TTL, cfg.OTP.VerificationTTL, cfg.OTP.MaxAttempts),
		federated.NewGoogle(cfg.GoogleUserinfoURL),
		publisher,
		service.AccountConfig{
			JWTSecret:      cfg.JWTSecret,
			AccessTTLMin:   cfg.AccessTTLMin,
			RefreshTTLDays: cfg.RefreshTTLDays,
			BcryptCost:     cfg.BcryptCost,
			AdminEmails:    cfg.AdminEmails,
		},
	)

	cacheCfg := config.LoadCacheConfig()
	purge := func(ctx context.Context) { middleware.PurgeCache(ctx, rdb, cacheCfg.Prefix) }

	h := router.Handlers{
		Health:   &handler.HealthHandler{DB: db, Redis: rdb},
		Auth:     handler.NewAuthHandler(accounts),
		Me:       handler.NewMeHandler(accounts, cat, kv.NewRedisStore(rdb, cfg.FilterTTL)),
		Catalog:  handler.NewCatalogHandler(cat),
		Listings: handler.NewListingHandler(approval.New(records, publisher, nil), purge),
		Inquiry:  handler.NewInquiryHandler(records, cat, publisher),
		Blog:     handler.NewBlogHandler(records, purge),
	}
	if mc, err := files.Connect(ctx, cfg.MongoURI); err != nil {
		log.Printf("files: mongo unavailable, uploads disabled: %v", err)
	} else {
		defer func() { _ = mc.Disconnect(context.Background()) }()
		h.Uploads = handler.NewUploadHandler(files.NewStore(mc, cfg.MongoDB, cfg.PublicBaseURL))
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Use(echomw.BodyLimit("6M"))
	router.Register(e, h, router.Middleware{
		RateLimit:           middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		OTPRateLimit:        middleware.NewTokenBucket(config.LoadOTPRateLimitConfig(), rdb),
		OTPConfirmRateLimit: middleware.NewTokenBucket(config.LoadOTPConfirmRateLimitConfig(), rdb),
		Cache:               middleware.NewRedisCache(cacheCfg, rdb),
	}, cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path != "" {
		return catalog.LoadFile(path)
	}
	return catalog.Default()
}
