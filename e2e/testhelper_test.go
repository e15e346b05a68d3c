package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
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

const testJWTSecret = "test-secret-for-e2e"

// testApp holds all components needed for testing
type testApp struct {
	app   *fiber.App
	store *store.Store
}

// setupApp creates a Fiber app identical to main.go but with unconfigured
// external clients and no Redis. Jobs run in-process with placeholder
// output, copy endpoints use mock fallbacks, and rate limiting fails open.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	// Points at nothing; the limiter fails open when Redis is down.
	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:1",
	})
	t.Cleanup(func() { redisClient.Close() })

	validate := validator.New()
	hub := ws.NewHub()

	// External clients — all unconfigured so services use mock fallbacks
	llmClient := client.NewLLMClient(&config.LLMConfig{})
	imagegenClient := client.NewImageGenClient(&config.ImageGenConfig{})
	fetcher := client.NewImageFetcher(0)

	// Job store over a per-test output root
	jobStore := store.New(t.TempDir(), 0)

	// nil asynq client → jobs dispatch on in-process goroutines
	runner := worker.NewRunner(jobStore, imagegenClient, llmClient, fetcher, nil, hub, 2)
	batchService := service.NewBatchService(jobStore, nil, runner)
	sheetService := service.NewSheetService()
	copyService := service.NewCopyService(llmClient)

	// Handlers
	batchHandler := handler.NewBatchHandler(batchService, sheetService, validate)
	sheetHandler := handler.NewSheetHandler(sheetService, batchService)
	copyHandler := handler.NewCopyHandler(copyService, validate)

	// Auth handler (for /auth/verify)
	authHandler := handler.NewAuthHandler(nil, testJWTSecret)

	// Auth middleware — legacy HMAC only
	authMiddleware := middleware.NewLegacyAuthMiddleware(testJWTSecret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024,
	})

	// Base routes
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": 1234567890})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"llm":      false,
				"imagegen": false,
				"r2":       false,
				"redis":    false,
				"auth":     true,
			},
		})
	})
	app.Get("/auth/verify", authHandler.Verify)

	// API routes (authenticated)
	api := app.Group("/api", authMiddleware.Authenticate())

	// Use very high rate limits so tests don't get blocked
	batch := api.Group("/batch")
	batch.Post("/create", rateLimiter.BatchLimit(10000), batchHandler.Create)
	batch.Post("/start/:jobId", batchHandler.Start)
	batch.Get("/status/:jobId", batchHandler.Status)
	batch.Get("/list", batchHandler.List)
	batch.Post("/cancel/:jobId", batchHandler.Cancel)
	batch.Get("/download/:jobId", rateLimiter.DownloadLimit(10000), batchHandler.Download)
	batch.Get("/report/:jobId", batchHandler.Report)

	sheet := api.Group("/sheet", rateLimiter.SheetLimit(10000))
	sheet.Post("/parse", sheetHandler.Parse)
	sheet.Post("/create", sheetHandler.Create)
	sheet.Get("/template", sheetHandler.Template)

	copyGroup := api.Group("/copy", rateLimiter.CopyLimit(10000))
	copyGroup.Post("/rewrite", copyHandler.Rewrite)
	copyGroup.Post("/translate", copyHandler.Translate)

	return &testApp{app: app, store: jobStore}
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	claims := auth.LegacyClaims{
		UserID: "test-user-123",
		Email:  "test@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "skustudio-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
