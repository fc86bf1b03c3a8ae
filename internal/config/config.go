package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Product sources the chat resolver can read from and write to
const (
	ProductSourcePostgres = "postgres"
	ProductSourceAPI      = "api"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Chat      ChatConfig
	Backend   BackendConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

// DSN returns the pgx connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.Schema)
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

type JWTConfig struct {
	Secret       string
	AccessExpiry int // in minutes
}

type ChatConfig struct {
	ThinkDelay    time.Duration // pause before the assistant answers
	ProductSource string        // postgres or api
	SessionIdle   time.Duration // conversations idle this long are evicted
	SweepInterval time.Duration
}

// BackendConfig points at the external product API used when
// ProductSource is "api"
type BackendConfig struct {
	URL             string
	AccessToken     string
	RefreshToken    string
	CredentialsPath string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Load reads .env from the working directory, then the environment
func Load() *Config {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_ACCESS_EXPIRY", 15)
	v.SetDefault("CHAT_THINK_DELAY", "1s")
	v.SetDefault("CHAT_PRODUCT_SOURCE", ProductSourcePostgres)
	v.SetDefault("CHAT_SESSION_IDLE", "24h")
	v.SetDefault("CHAT_SWEEP_INTERVAL", "10m")
	v.SetDefault("BACKEND_URL", "http://localhost:8000")
	v.SetDefault("RATE_LIMIT_REQUESTS", 30)
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")

	if err := v.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			LogLevel:       v.GetString("LOG_LEVEL"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Database: v.GetString("DB_DATABASE"),
			Schema:   v.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:       v.GetString("JWT_SECRET"),
			AccessExpiry: v.GetInt("JWT_ACCESS_EXPIRY"),
		},
		Chat: ChatConfig{
			ThinkDelay:    v.GetDuration("CHAT_THINK_DELAY"),
			ProductSource: strings.ToLower(v.GetString("CHAT_PRODUCT_SOURCE")),
			SessionIdle:   v.GetDuration("CHAT_SESSION_IDLE"),
			SweepInterval: v.GetDuration("CHAT_SWEEP_INTERVAL"),
		},
		Backend: BackendConfig{
			URL:             v.GetString("BACKEND_URL"),
			AccessToken:     v.GetString("BACKEND_ACCESS_TOKEN"),
			RefreshToken:    v.GetString("BACKEND_REFRESH_TOKEN"),
			CredentialsPath: v.GetString("BACKEND_CREDENTIALS_PATH"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   v.GetDuration("RATE_LIMIT_WINDOW"),
		},
	}
}

// Validate reports settings the server cannot start with
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.Chat.ProductSource {
	case ProductSourcePostgres, ProductSourceAPI:
	default:
		errs = append(errs, fmt.Errorf("CHAT_PRODUCT_SOURCE must be %q or %q, got %q",
			ProductSourcePostgres, ProductSourceAPI, c.Chat.ProductSource))
	}
	if c.Chat.ThinkDelay < 0 {
		errs = append(errs, errors.New("CHAT_THINK_DELAY must not be negative"))
	}
	if c.Chat.SessionIdle <= 0 || c.Chat.SweepInterval <= 0 {
		errs = append(errs, errors.New("CHAT_SESSION_IDLE and CHAT_SWEEP_INTERVAL must be positive"))
	}
	if c.RateLimit.Requests < 1 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive"))
	}

	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
