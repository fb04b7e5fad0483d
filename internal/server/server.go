// Package server contains the HTTP handlers for the moderation API.
package server

import (
	"context"
	"time"

	"promptguard/internal/bootstrap"
	"promptguard/internal/config"
	"promptguard/internal/featureflags"
	"promptguard/internal/filter"
	"promptguard/internal/ledger"
	"promptguard/internal/middleware"
	"promptguard/internal/moderation"
	"promptguard/internal/policy"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config            *config.Config
	db                *gorm.DB
	redis             *redis.Client
	promMiddleware    *fiberprometheus.FiberPrometheus
	ledger            ledger.Ledger
	moderationService *moderation.Service
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, redisClient, err := bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{
		SeedDemoData: cfg.DevSeedDemoData,
	})
	if err != nil {
		return nil, err
	}

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	middleware.InitMiddleware(cfg)

	lex, err := filter.NewLexicon(filter.DefaultConfig())
	if err != nil {
		return nil, err
	}
	matcher := filter.NewMatcher(lex)

	engine := policy.NewEngine(lex.CriticalTerms(), lex.HighTerms(), policy.Thresholds{
		WindowHours:     cfg.ModerationWindowHours,
		HighRepeat:      cfg.ModerationHighRepeat,
		MediumRepeat:    cfg.ModerationMediumRepeat,
		MediumTermCount: cfg.ModerationTermCount,
		HardCeiling:     cfg.ModerationHardCeiling,
	})

	store := ledger.NewStore(db)

	svc := moderation.NewService(matcher, engine, store, redisClient,
		cfg.ModerationContentCap,
		time.Duration(cfg.HistoryCacheTTLSeconds)*time.Second,
	)
	svc.UseFlags(featureflags.NewManager(cfg.FeatureFlags))

	return &Server{
		config:            cfg,
		db:                db,
		redis:             redisClient,
		promMiddleware:    middleware.InitMetrics("promptguard-api"),
		ledger:            store,
		moderationService: svc,
	}, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Tracing before logging so request logs carry the trace ID
	app.Use(middleware.TracingMiddleware())

	// Context middleware to propagate request ID and caller subject
	app.Use(middleware.ContextMiddleware())

	// Prometheus metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS runs before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (300 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Promptguard Metrics Dashboard",
	}))

	// Moderation routes: called by the storefront before accepting a
	// generation request and after a positive match.
	mod := api.Group("/moderation", middleware.AuthRequired)
	mod.Post("/check", middleware.RateLimit(
		s.redis, 60, time.Minute, "moderation_check"), s.CheckContent)
	mod.Post("/check-full", middleware.RateLimit(
		s.redis, 60, time.Minute, "moderation_check_full"), s.CheckFullContent)
	mod.Get("/users/:id/history", s.GetUserHistory)
	mod.Post("/violations", middleware.RateLimit(
		s.redis, 30, time.Minute, "moderation_record"), s.RecordViolation)

	// Admin audit routes
	admin := api.Group("/admin", middleware.AuthRequired, middleware.AdminRequired)
	admin.Get("/violations", s.ListViolations)
	admin.Get("/users/:id/violations", s.GetUserViolations)
}

// LivenessCheck reports process liveness.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// ReadinessCheck reports whether the server can reach its database.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded",
			"error":  "database unreachable",
		})
	}

	return c.JSON(fiber.Map{"status": "ok"})
}
