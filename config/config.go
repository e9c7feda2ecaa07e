// config/config.go
package config

import (
	"os"
	"strconv"

	"github.com/go-redis/redis/v8"
)

type Config struct {
	Environment string
	Port        string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string

	// Dispatch Settings
	DispatchRadiusMeters  int
	DispatchMaxCandidates int

	// Sweep Settings
	EmergencyTimeoutSeconds int // pending emergencies older than this get expired
	SweepIntervalSeconds    int
	RetentionHours          int

	// App Settings
	RateLimitRequest int
	RateLimitWindow  int // minutes
}

func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "mongodb://localhost:27017/lifeline"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:   getEnv("JWT_SECRET", "your-super-secret-jwt-key"),

		// Dispatch
		DispatchRadiusMeters:  getEnvAsInt("DISPATCH_RADIUS_METERS", 10000),
		DispatchMaxCandidates: getEnvAsInt("DISPATCH_MAX_CANDIDATES", 10),

		// Sweeps
		EmergencyTimeoutSeconds: getEnvAsInt("EMERGENCY_TIMEOUT_SECONDS", 120),
		SweepIntervalSeconds:    getEnvAsInt("SWEEP_INTERVAL_SECONDS", 30),
		RetentionHours:          getEnvAsInt("RETENTION_HOURS", 24),

		// App Settings
		RateLimitRequest: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:  getEnvAsInt("RATE_LIMIT_WINDOW_MINUTES", 1),
	}
}

func InitRedis(cfg *Config) *redis.Client {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		// Fallback to default config
		opt = &redis.Options{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
		}
	}

	client := redis.NewClient(opt)
	return client
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
