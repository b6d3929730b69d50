package main

import (
	"os"

	"agency-billing-backend/config"
	"agency-billing-backend/database"
	"agency-billing-backend/ledger"
	"agency-billing-backend/logger"
	"agency-billing-backend/middlewares"
	"agency-billing-backend/routes"
	"agency-billing-backend/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(logger.Config{
		ServiceName: "agency-billing",
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT secret not configured (set JWT_SECRET_KEY or JWT_SECRET)")
	}
	if cfg.StripeWebhookSecret == "" {
		log.Warn("STRIPE_WEBHOOK_SECRET not set; online payment webhooks will be rejected")
	}

	// ---- Database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("database connect failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("database migration failed", zap.Error(err))
	}

	svc := services.New(services.Params{
		DB: db,
		Prefixes: ledger.Prefixes{
			ledger.KindInvoice:  cfg.InvoicePrefix,
			ledger.KindProposal: cfg.ProposalPrefix,
		},
	}, cfg.StripeWebhookSecret)

	// ---- Fiber app with global error handler + body limit
	app := fiber.New(fiber.Config{
		ErrorHandler: middlewares.ErrorHandler,
		BodyLimit:    cfg.BodyLimitBytes,
	})
	app.Use(recover.New())
	app.Use(logger.FiberMiddleware(log))

	// ---- CORS
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowCredentials: false, // using Bearer tokens, not cookies
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key, X-Request-ID",
	}))

	// ---- Global rate limiter (applies to all routes; tune via env)
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitMax,
		Expiration: cfg.RateLimitWindow,
	}))

	routes.Register(app, routes.Options{
		DB:        db,
		Services:  svc,
		JWTSecret: cfg.JWTSecret,
	})

	log.Info("API server starting", zap.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}
