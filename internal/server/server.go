// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"log"
	"time"

	"reviewdeck/internal/cache"
	"reviewdeck/internal/config"
	"reviewdeck/internal/middleware"
	"reviewdeck/internal/models"
	"reviewdeck/internal/notifications"
	"reviewdeck/internal/session"
	"reviewdeck/internal/stats"
	"reviewdeck/internal/upstream"
	"reviewdeck/internal/worklist"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	upstream       *upstream.Client
	resolver       *worklist.Resolver
	sessions       *session.Manager
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	relay          *stats.Relay
	poller         *stats.Poller
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	// Initialize Redis
	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	client := upstream.New(cfg.UpstreamAPIURL, cfg.UpstreamTimeout())
	return NewServerWithDeps(cfg, client, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes the upstream
// client and Redis.
func NewServerWithDeps(cfg *config.Config, client *upstream.Client, redisClient *redis.Client) (*Server, error) {
	// Initialize Prometheus metrics
	prom := middleware.InitMetrics("reviewdeck-api")

	resolver := worklist.NewResolver(client, client)
	sessions := session.NewManager(resolver, client, client,
		cfg.AutosaveDebounce(), cfg.SessionTTL(), cfg.AutosaveMaxRetries)

	server := &Server{
		config:         cfg,
		redis:          redisClient,
		promMiddleware: prom,
		upstream:       client,
		resolver:       resolver,
		sessions:       sessions,
	}

	// Initialize notifier and stats hub if Redis is available
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
		server.hub = notifications.NewHub()
		server.relay = stats.NewRelay(cfg.UpstreamWSURL, server.notifier)
		server.poller = stats.NewPoller(client, server.notifier, cfg.StatsPollInterval())
	}

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and Operator
	app.Use(middleware.ContextMiddleware())

	// OpenTelemetry spans per request
	app.Use(middleware.TracingMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit
	// (e.g. limiter) so browser clients still receive CORS headers on error
	// responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (300 requests per minute per IP; autosave and
	// navigation make review traffic chattier than a typical CRUD API)
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

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Reviewdeck Metrics Dashboard",
	}))

	// Browse proxies (read-only, cached)
	api.Get("/categories", s.GetCategories)
	api.Get("/profiles/with-review-stats", s.GetProfilesWithReviewStats)
	api.Get("/posts/with-review-status", s.GetPostsWithReviewStatus)

	// Protected routes
	protected := api.Group("", middleware.AuthRequired)

	// Session routes. Specific /:id/:action routes before generic /:id.
	sessions := protected.Group("/sessions")
	sessions.Post("/", s.CreateSession)
	sessions.Patch("/:id/draft", s.PatchDraft)
	sessions.Post("/:id/next", s.NextPost)
	sessions.Post("/:id/prev", s.PrevPost)
	sessions.Post("/:id/flush", s.FlushDraft)
	sessions.Post("/:id/clip", s.SetClipping)
	sessions.Get("/:id", s.GetSession)
	sessions.Delete("/:id", s.DeleteSession)

	// Scrape backlog routes
	queue := protected.Group("/queue")
	queue.Post("/", s.EnqueueProfile)
	queue.Get("/", s.GetQueue)
	queue.Delete("/clear-pending", s.ClearPendingQueue)
	queue.Delete("/:id", s.RemoveQueueItem)

	scrape := protected.Group("/scrape")
	scrape.Post("/trigger", middleware.RateLimit(
		s.redis, 5, time.Minute, "scrape_trigger"), s.TriggerScrape)
	scrape.Get("/jobs", s.GetScrapeJobs)
	scrape.Get("/status/:jobId", s.GetScrapeStatus)

	// Stats feed
	app.Get("/ws/stats", middleware.WebSocketAuthRequired, s.upgradeRequired, s.WebSocketStatsHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Upstream reachability is
// required; Redis only degrades caching and the stats feed, so it is
// reported but not fatal.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	upstreamStatus := "healthy"
	if err := s.upstream.Ping(ctx); err != nil {
		upstreamStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "degraded"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if upstreamStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"upstream": upstreamStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := fiber.New(fiber.Config{
		AppName: "Reviewdeck API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	// Wire the stats pipeline if Redis is available
	if s.notifier != nil {
		if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
			log.Printf("failed to start stats hub wiring: %v", err)
		}
		go s.relay.Run(s.shutdownCtx)
		if err := s.poller.Start(s.shutdownCtx); err != nil {
			log.Printf("failed to start stats poller: %v", err)
		}
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the relay and subscribers
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	// Shutdown the HTTP/WS server
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if s.poller != nil {
		s.poller.Stop()
	}

	// Close WebSocket connections gracefully
	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			log.Printf("error shutting down stats hub: %v", err)
		}
	}

	// Close every live session, flushing dirty drafts
	if s.sessions != nil {
		s.sessions.Close(ctx)
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
