package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	LLM       LLMConfig
	ImageGen  ImageGenConfig
	R2        R2Config
	OIDC      OIDCConfig
	Batch     BatchConfig
	Gateway   GatewayConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	CopyPerMin      int
	BatchPerHour    int
	SheetPerHour    int
	DownloadPerHour int
}

type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type ImageGenConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int // seconds
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type OIDCConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

// BatchConfig controls the batch job subsystem.
type BatchConfig struct {
	OutputRoot    string
	MaxConcurrent int
	ReloadLimit   int
	FetchTimeout  int // seconds
}

type GatewayConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("LLM_API_KEY")
	readSecret("IMAGEGEN_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("OIDC_CLIENT_ID")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("ratelimit.copy_per_min", "RATELIMIT_COPY_PER_MIN")
	_ = viper.BindEnv("ratelimit.batch_per_hour", "RATELIMIT_BATCH_PER_HOUR")
	_ = viper.BindEnv("ratelimit.sheet_per_hour", "RATELIMIT_SHEET_PER_HOUR")
	_ = viper.BindEnv("ratelimit.download_per_hour", "RATELIMIT_DOWNLOAD_PER_HOUR")
	_ = viper.BindEnv("llm.api_key", "LLM_API_KEY")
	_ = viper.BindEnv("llm.base_url", "LLM_BASE_URL")
	_ = viper.BindEnv("llm.model", "LLM_MODEL")
	_ = viper.BindEnv("imagegen.api_key", "IMAGEGEN_API_KEY")
	_ = viper.BindEnv("imagegen.base_url", "IMAGEGEN_BASE_URL")
	_ = viper.BindEnv("imagegen.model", "IMAGEGEN_MODEL")
	_ = viper.BindEnv("imagegen.timeout", "IMAGEGEN_TIMEOUT")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("oidc.domain", "OIDC_DOMAIN")
	_ = viper.BindEnv("oidc.client_id", "OIDC_CLIENT_ID")
	_ = viper.BindEnv("oidc.issuer", "OIDC_ISSUER")
	_ = viper.BindEnv("batch.output_root", "BATCH_OUTPUT_ROOT")
	_ = viper.BindEnv("batch.max_concurrent", "BATCH_MAX_CONCURRENT")
	_ = viper.BindEnv("batch.reload_limit", "BATCH_RELOAD_LIMIT")
	_ = viper.BindEnv("batch.fetch_timeout", "BATCH_FETCH_TIMEOUT")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.copy_per_min", 30)
	viper.SetDefault("ratelimit.batch_per_hour", 10)
	viper.SetDefault("ratelimit.sheet_per_hour", 30)
	viper.SetDefault("ratelimit.download_per_hour", 60)

	// LLM defaults (OpenAI-compatible chat completions endpoint)
	viper.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("llm.model", "llama-3.3-70b-versatile")

	// Image generation defaults
	viper.SetDefault("imagegen.base_url", "https://api.openai.com/v1")
	viper.SetDefault("imagegen.model", "gpt-image-1")
	viper.SetDefault("imagegen.timeout", 120)

	// Batch defaults
	viper.SetDefault("batch.output_root", "./data/outputs")
	viper.SetDefault("batch.max_concurrent", 3)
	viper.SetDefault("batch.reload_limit", 200)
	viper.SetDefault("batch.fetch_timeout", 30)

	// Gateway defaults
	viper.SetDefault("gateway.enabled", false)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			CopyPerMin:      viper.GetInt("ratelimit.copy_per_min"),
			BatchPerHour:    viper.GetInt("ratelimit.batch_per_hour"),
			SheetPerHour:    viper.GetInt("ratelimit.sheet_per_hour"),
			DownloadPerHour: viper.GetInt("ratelimit.download_per_hour"),
		},
		LLM: LLMConfig{
			APIKey:  viper.GetString("llm.api_key"),
			BaseURL: viper.GetString("llm.base_url"),
			Model:   viper.GetString("llm.model"),
		},
		ImageGen: ImageGenConfig{
			APIKey:  viper.GetString("imagegen.api_key"),
			BaseURL: viper.GetString("imagegen.base_url"),
			Model:   viper.GetString("imagegen.model"),
			Timeout: viper.GetInt("imagegen.timeout"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		OIDC: OIDCConfig{
			Domain:   viper.GetString("oidc.domain"),
			ClientID: viper.GetString("oidc.client_id"),
			Issuer:   viper.GetString("oidc.issuer"),
		},
		Batch: BatchConfig{
			OutputRoot:    viper.GetString("batch.output_root"),
			MaxConcurrent: viper.GetInt("batch.max_concurrent"),
			ReloadLimit:   viper.GetInt("batch.reload_limit"),
			FetchTimeout:  viper.GetInt("batch.fetch_timeout"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
	}

	return cfg, nil
}
