package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Integration names accepted by DemoMode.
const (
	IntegrationNutrition = "nutrition"
	IntegrationFitness   = "fitness"
	IntegrationChat      = "chat"
	IntegrationDatabase  = "database"
	IntegrationCache     = "cache"
	IntegrationDocuments = "documents"
	IntegrationStorage   = "storage"
)

// Integrations lists every integration in display order.
var Integrations = []string{
	IntegrationDatabase,
	IntegrationDocuments,
	IntegrationCache,
	IntegrationStorage,
	IntegrationNutrition,
	IntegrationFitness,
	IntegrationChat,
}

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	MongoURL      string `mapstructure:"MONGO_URL"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	MinioEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket    string `mapstructure:"MINIO_BUCKET"`
	MinioUseSSL    bool   `mapstructure:"MINIO_USE_SSL"`

	AuthIssuer    string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL   string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience  string        `mapstructure:"AUTH_AUDIENCE"`
	JWTSigningKey string        `mapstructure:"JWT_SIGNING_KEY"`
	TokenTTL      time.Duration `mapstructure:"TOKEN_TTL"`

	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	ChatRateLimit  int           `mapstructure:"CHAT_RATE_LIMIT"`
	ChatRateWindow time.Duration `mapstructure:"CHAT_RATE_WINDOW"`

	BodyLimit      string        `mapstructure:"BODY_LIMIT"`
	UploadLimit    string        `mapstructure:"UPLOAD_LIMIT"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	AnomalyThreshold float64 `mapstructure:"ANOMALY_THRESHOLD"`

	NutritionAppID   string `mapstructure:"NUTRITION_APP_ID"`
	NutritionAppKey  string `mapstructure:"NUTRITION_APP_KEY"`
	NutritionBaseURL string `mapstructure:"NUTRITION_BASE_URL"`

	FitnessClientID     string `mapstructure:"FITNESS_CLIENT_ID"`
	FitnessClientSecret string `mapstructure:"FITNESS_CLIENT_SECRET"`
	FitnessRedirectURL  string `mapstructure:"FITNESS_REDIRECT_URL"`
	FitnessBaseURL      string `mapstructure:"FITNESS_BASE_URL"`
	FitnessAuthURL      string `mapstructure:"FITNESS_AUTH_URL"`
	FitnessTokenURL     string `mapstructure:"FITNESS_TOKEN_URL"`

	ChatAPIKey  string `mapstructure:"CHAT_API_KEY"`
	ChatModel   string `mapstructure:"CHAT_MODEL"`
	ChatBaseURL string `mapstructure:"CHAT_BASE_URL"`

	MockSeed int64 `mapstructure:"MOCK_SEED"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "SQLITE_PATH", "REDIS_URL",
	"MONGO_URL", "MONGO_DATABASE",
	"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_BUCKET", "MINIO_USE_SSL",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "JWT_SIGNING_KEY", "TOKEN_TTL",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "CHAT_RATE_LIMIT", "CHAT_RATE_WINDOW",
	"BODY_LIMIT", "UPLOAD_LIMIT", "REQUEST_TIMEOUT",
	"ANOMALY_THRESHOLD",
	"NUTRITION_APP_ID", "NUTRITION_APP_KEY", "NUTRITION_BASE_URL",
	"FITNESS_CLIENT_ID", "FITNESS_CLIENT_SECRET", "FITNESS_REDIRECT_URL", "FITNESS_BASE_URL",
	"FITNESS_AUTH_URL", "FITNESS_TOKEN_URL",
	"CHAT_API_KEY", "CHAT_MODEL", "CHAT_BASE_URL",
	"MOCK_SEED",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("SQLITE_PATH", "./data/healthhub.db")
	v.SetDefault("MONGO_DATABASE", "healthhub")
	v.SetDefault("MINIO_BUCKET", "healthhub")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("CHAT_RATE_LIMIT", 10)
	v.SetDefault("CHAT_RATE_WINDOW", "1m")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("UPLOAD_LIMIT", "10M")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("ANOMALY_THRESHOLD", 2.0)
	v.SetDefault("NUTRITION_BASE_URL", "https://trackapi.nutritionix.com")
	v.SetDefault("FITNESS_BASE_URL", "https://api.fitbit.com")
	v.SetDefault("FITNESS_AUTH_URL", "https://www.fitbit.com/oauth2/authorize")
	v.SetDefault("FITNESS_TOKEN_URL", "https://api.fitbit.com/oauth2/token")
	v.SetDefault("CHAT_MODEL", "gpt-4o-mini")
	v.SetDefault("CHAT_BASE_URL", "https://api.openai.com")
	v.SetDefault("MOCK_SEED", 42)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = nil
	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// DemoMode reports whether integration has no credentials configured, in
// which case the server substitutes local or mock implementations.
func (c *Config) DemoMode(integration string) bool {
	switch integration {
	case IntegrationNutrition:
		return c.NutritionAppID == "" || c.NutritionAppKey == ""
	case IntegrationFitness:
		return c.FitnessClientID == "" || c.FitnessClientSecret == ""
	case IntegrationChat:
		return c.ChatAPIKey == ""
	case IntegrationDatabase:
		return c.DatabaseURL == ""
	case IntegrationCache:
		return c.RedisURL == ""
	case IntegrationDocuments:
		return c.MongoURL == ""
	case IntegrationStorage:
		return c.MinioEndpoint == "" || c.MinioAccessKey == ""
	default:
		return true
	}
}

// IntegrationModes maps every integration to "live" or "demo".
func (c *Config) IntegrationModes() map[string]string {
	out := make(map[string]string, len(Integrations))
	for _, name := range Integrations {
		if c.DemoMode(name) {
			out[name] = "demo"
		} else {
			out[name] = "live"
		}
	}
	return out
}

// Warnings lists non-fatal configuration issues worth logging at startup.
func (c *Config) Warnings() []string {
	var w []string
	if c.IsDev() {
		w = append(w, "development mode: unauthenticated requests run as the demo user with admin access")
	}
	for _, name := range Integrations {
		if c.DemoMode(name) {
			w = append(w, fmt.Sprintf("%s integration not configured, using demo fallback", name))
		}
	}
	return w
}

// Validate checks cross-field consistency. Outside development some token
// verification must be configured.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthIssuer == "" && c.JWTSigningKey == "" {
		return fmt.Errorf("AUTH_ISSUER or JWT_SIGNING_KEY must be set when ENV=%q", c.Env)
	}
	if c.JWTSigningKey != "" && len(c.JWTSigningKey) < 32 {
		return fmt.Errorf("JWT_SIGNING_KEY must be at least 32 bytes, got %d", len(c.JWTSigningKey))
	}
	if c.AnomalyThreshold <= 0 {
		return fmt.Errorf("ANOMALY_THRESHOLD must be positive, got %v", c.AnomalyThreshold)
	}
	if c.ChatRateLimit <= 0 {
		return fmt.Errorf("CHAT_RATE_LIMIT must be positive, got %d", c.ChatRateLimit)
	}
	if c.ChatRateWindow <= 0 {
		return fmt.Errorf("CHAT_RATE_WINDOW must be positive, got %v", c.ChatRateWindow)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %v", c.RequestTimeout)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.FitnessClientID != "" && c.FitnessRedirectURL == "" {
		return fmt.Errorf("FITNESS_REDIRECT_URL is required when FITNESS_CLIENT_ID is set")
	}
	return nil
}
