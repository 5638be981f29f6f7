package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Encryption EncryptionConfig
	Gateway    GatewayConfig
	Engine     EngineConfig
	CORS       CORSConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host string
	Port string
	Env  string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Prefix   string
	// "redis" persists state, "memory" keeps everything in-process
	Storage string
}

// JWTConfig holds JWT token configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpire time.Duration
}

// EncryptionConfig holds encryption configuration for exchange credentials
type EncryptionConfig struct {
	Key string
}

// GatewayConfig holds trading gateway configuration
type GatewayConfig struct {
	APIURL       string
	Timeout      time.Duration
	RateLimitRPS float64
	// Extra venues queried for multi-venue quotes, name -> base URL
	Venues map[string]string
}

// EngineConfig holds bot orchestration configuration
type EngineConfig struct {
	TickInterval           time.Duration
	MarketDataTimeout      time.Duration
	MarketCacheTTL         time.Duration
	ProbeTimeout           time.Duration
	ProbeMaxAttempts       int
	ConnectionSyncInterval time.Duration
	SyncConcurrency        int
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Prefix:   getEnv("REDIS_PREFIX", "botdeck"),
			Storage:  getEnv("STORAGE_DRIVER", "redis"),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpire: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRE_MINUTES", 15)) * time.Minute,
		},
		Encryption: EncryptionConfig{
			Key: getEnv("ENCRYPTION_KEY", ""),
		},
		Gateway: GatewayConfig{
			APIURL:       getEnv("GATEWAY_API_URL", "http://localhost:9000"),
			Timeout:      getEnvAsDuration("GATEWAY_TIMEOUT", 10*time.Second),
			RateLimitRPS: getEnvAsFloat("GATEWAY_RATE_LIMIT_RPS", 10),
			Venues:       getEnvAsMap("GATEWAY_VENUES"),
		},
		Engine: EngineConfig{
			TickInterval:           getEnvAsDuration("ENGINE_TICK_INTERVAL", 30*time.Second),
			MarketDataTimeout:      getEnvAsDuration("MARKET_DATA_TIMEOUT", 3*time.Second),
			MarketCacheTTL:         getEnvAsDuration("MARKET_CACHE_TTL", 5*time.Second),
			ProbeTimeout:           getEnvAsDuration("PROBE_TIMEOUT", 5*time.Second),
			ProbeMaxAttempts:       getEnvAsInt("PROBE_MAX_ATTEMPTS", 1),
			ConnectionSyncInterval: getEnvAsDuration("CONNECTION_SYNC_INTERVAL", 0),
			SyncConcurrency:        getEnvAsInt("SYNC_CONCURRENCY", 4),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}, ","),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 60),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Encryption.Key == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}

	if len(c.Encryption.Key) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes")
	}

	if c.Redis.Storage != "redis" && c.Redis.Storage != "memory" {
		return fmt.Errorf("STORAGE_DRIVER must be redis or memory, got %q", c.Redis.Storage)
	}

	if c.Engine.TickInterval <= 0 {
		return fmt.Errorf("ENGINE_TICK_INTERVAL must be positive")
	}
	if c.Engine.MarketDataTimeout <= 0 || c.Engine.ProbeTimeout <= 0 {
		return fmt.Errorf("MARKET_DATA_TIMEOUT and PROBE_TIMEOUT must be positive")
	}
	if c.Engine.ProbeMaxAttempts < 1 {
		return fmt.Errorf("PROBE_MAX_ATTEMPTS must be at least 1")
	}
	if c.Engine.ConnectionSyncInterval < 0 {
		return fmt.Errorf("CONNECTION_SYNC_INTERVAL must not be negative")
	}
	if c.Engine.SyncConcurrency < 1 {
		c.Engine.SyncConcurrency = 1
	}

	return nil
}

// Address returns the full server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Address returns the full Redis address
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDevelopment returns true if running in development mode
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("30s") or a bare number of seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string, separator string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, separator)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnvAsMap parses "name=value,name=value". Malformed entries are skipped.
func getEnvAsMap(key string) map[string]string {
	out := make(map[string]string)
	for _, pair := range getEnvAsSlice(key, nil, ",") {
		name, value, ok := strings.Cut(pair, "=")
		name, value = strings.TrimSpace(name), strings.TrimSpace(value)
		if !ok || name == "" || value == "" {
			continue
		}
		out[name] = value
	}
	return out
}
