package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/skustudio/api/internal/auth"
	"github.com/skustudio/api/internal/client"
	"github.com/skustudio/api/internal/config"
	"github.com/skustudio/api/internal/handler"
	"github.com/skustudio/api/internal/middleware"
	"github.com/skustudio/api/internal/service"
	"github.com/skustudio/api/internal/store"
	"github.com/skustudio/api/internal/worker"
	ws "github.com/skustudio/api/internal/websocket"
)

// @title          SKU Studio API
// @version        1.0
// @description    Backend API for SKU Studio — batch product image generation for e-commerce sellers.
// @host           localhost:8000
// @BasePath       /
// @schemes        http https
// @securityDefinitions.apikey BearerAuth
// @in             header
// @name           Authorization
// @description    Enter your bearer token in the format **Bearer &lt;token&gt;**
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection. Without Redis the service still runs: jobs
	// execute in-process and rate limiting fails open.
	ctx := context.Background()
	redisAvailable := true
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available, running jobs in-process: %v", err)
		redisAvailable = false
	}

	var asynqClient *asynq.Client
	if redisAvailable {
		asynqClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer asynqClient.Close()
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()

	// Initialize external clients
	llmClient := client.NewLLMClient(&cfg.LLM)
	imagegenClient := client.NewImageGenClient(&cfg.ImageGen)
	fetcher := client.NewImageFetcher(time.Duration(cfg.Batch.FetchTimeout) * time.Second)

	// Initialize R2 client (optional - continues if not configured)
	var r2Client *client.R2Client
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		var err error
		r2Client, err = client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 client not initialized: %v", err)
		}
	} else {
		log.Println("Info: R2 storage not configured, outputs stay local only")
	}

	// Initialize OIDC JWKS verifier (optional - falls back to legacy JWT)
	var jwksVerifier *auth.JWKSVerifier
	if cfg.OIDC.Issuer != "" {
		var err error
		jwksVerifier, err = auth.NewJWKSVerifier(&cfg.OIDC)
		if err != nil {
			log.Printf("Warning: JWKS verifier not initialized: %v", err)
		} else {
			defer jwksVerifier.Close()
		}
	}

	// Initialize job store and recover persisted jobs
	jobStore := store.New(cfg.Batch.OutputRoot, cfg.Batch.ReloadLimit)
	loaded, interrupted, err := jobStore.Load()
	if err != nil {
		log.Fatalf("Failed to load persisted jobs: %v", err)
	}
	if loaded > 0 {
		log.Printf("Recovered %d jobs from %s (%d interrupted)", loaded, cfg.Batch.OutputRoot, interrupted)
	}

	// Initialize runner and services
	var storage client.StorageClient
	if r2Client != nil {
		storage = r2Client
	}
	runner := worker.NewRunner(jobStore, imagegenClient, llmClient, fetcher, storage, hub, cfg.Batch.MaxConcurrent)

	batchService := service.NewBatchService(jobStore, asynqClient, runner)
	sheetService := service.NewSheetService()
	copyService := service.NewCopyService(llmClient)

	// Initialize handlers
	batchHandler := handler.NewBatchHandler(batchService, sheetService, validate)
	sheetHandler := handler.NewSheetHandler(sheetService, batchService)
	copyHandler := handler.NewCopyHandler(copyService, validate)

	// Initialize auth handler for ForwardAuth verification
	var tokenVerifier auth.TokenVerifier
	if jwksVerifier != nil {
		tokenVerifier = jwksVerifier
	}
	authHandler := handler.NewAuthHandler(tokenVerifier, cfg.JWT.Secret)

	// Initialize middleware (with fallback support)
	var apiAuthMiddleware fiber.Handler
	if cfg.Gateway.Enabled {
		// Behind Traefik: auth is handled by ForwardAuth, read X-User-* headers
		log.Println("Info: Gateway mode enabled — using header-based auth")
		apiAuthMiddleware = middleware.GatewayAuthMiddleware()
	} else {
		// Direct mode: auth is handled by the backend itself
		var authMiddleware *middleware.AuthMiddleware
		if jwksVerifier != nil && cfg.JWT.Secret != "" {
			authMiddleware = middleware.NewAuthMiddlewareWithFallback(jwksVerifier, cfg.JWT.Secret)
		} else if jwksVerifier != nil {
			authMiddleware = middleware.NewAuthMiddleware(jwksVerifier)
		} else {
			authMiddleware = middleware.NewLegacyAuthMiddleware(cfg.JWT.Secret)
		}
		apiAuthMiddleware = authMiddleware.Authenticate()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    50 * 1024 * 1024, // 50MB
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"llm":      llmClient.IsConfigured(),
				"imagegen": imagegenClient.IsConfigured(),
				"r2":       r2Client != nil,
				"redis":    redisAvailable,
				"auth":     jwksVerifier != nil || cfg.JWT.Secret != "",
			},
		})
	})

	// ForwardAuth verification endpoint (internal, called by Traefik)
	app.Get("/auth/verify", authHandler.Verify)

	// API routes
	api := app.Group("/api", apiAuthMiddleware)

	// Batch routes
	batch := api.Group("/batch")
	batch.Post("/create", rateLimiter.BatchLimit(cfg.RateLimit.BatchPerHour), batchHandler.Create)
	batch.Post("/start/:jobId", batchHandler.Start)
	batch.Get("/status/:jobId", batchHandler.Status)
	batch.Get("/list", batchHandler.List)
	batch.Post("/cancel/:jobId", batchHandler.Cancel)
	batch.Get("/download/:jobId", rateLimiter.DownloadLimit(cfg.RateLimit.DownloadPerHour), batchHandler.Download)
	batch.Get("/report/:jobId", batchHandler.Report)

	// Sheet routes
	sheet := api.Group("/sheet", rateLimiter.SheetLimit(cfg.RateLimit.SheetPerHour))
	sheet.Post("/parse", sheetHandler.Parse)
	sheet.Post("/create", sheetHandler.Create)
	sheet.Get("/template", sheetHandler.Template)

	// Copy routes
	copyGroup := api.Group("/copy", rateLimiter.CopyLimit(cfg.RateLimit.CopyPerMin))
	copyGroup.Post("/rewrite", copyHandler.Rewrite)
	copyGroup.Post("/translate", copyHandler.Translate)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Start Asynq worker server when Redis is up
	if redisAvailable {
		go startWorkerServer(cfg, runner)
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, runner *worker.Runner) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// One asynq worker per job; the runner fans items out itself.
			Concurrency: 2,
			Queues: map[string]int{
				worker.QueueBatch: 1,
			},
			LogLevel: asynqLogLevel,
		},
	)

	batchWorker := worker.NewBatchWorker(runner)

	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TypeBatchProcess, batchWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
