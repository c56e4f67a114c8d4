package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the navigation engine.
type Config struct {
	// Directions backend
	DirectionsBaseURL string

	// Route cache
	RouteCachePath string
	RouteCacheTTL  time.Duration

	// Tracking thresholds
	OnRouteToleranceMeters float64
	OffRouteMinSamples     int
	OffRouteMinDuration    time.Duration
	ArrivalToleranceMeters float64
	MaxAccuracyMeters      float64

	// Rerouting
	RerouteDebounce time.Duration
	RerouteTimeout  time.Duration

	// Proximity prompts
	PinRadiusMeters float64
	PromptCooldown  time.Duration
	PromptTimeout   time.Duration

	// Location stream
	LocationStaleAfter time.Duration

	// Pin store (Redis mirror)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// HTTP gateway
	Port string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		DirectionsBaseURL: getEnv("DIRECTIONS_BASE_URL", "https://router.project-osrm.org"),

		RouteCachePath: getEnv("ROUTE_CACHE_PATH", "/data/routecache.db"),
		RouteCacheTTL:  time.Duration(getEnvInt("ROUTE_CACHE_TTL_MINUTES", 10)) * time.Minute,

		OnRouteToleranceMeters: getEnvFloat("ON_ROUTE_TOLERANCE_M", 30),
		OffRouteMinSamples:     getEnvInt("OFF_ROUTE_MIN_SAMPLES", 2),
		OffRouteMinDuration:    time.Duration(getEnvInt("OFF_ROUTE_MIN_SECONDS", 5)) * time.Second,
		ArrivalToleranceMeters: getEnvFloat("ARRIVAL_TOLERANCE_M", 20),
		MaxAccuracyMeters:      getEnvFloat("MAX_ACCURACY_M", 50),

		RerouteDebounce: time.Duration(getEnvInt("REROUTE_DEBOUNCE_MS", 1000)) * time.Millisecond,
		RerouteTimeout:  time.Duration(getEnvInt("REROUTE_TIMEOUT_SECONDS", 20)) * time.Second,

		PinRadiusMeters: getEnvFloat("PIN_RADIUS_M", 50),
		PromptCooldown:  time.Duration(getEnvInt("PROMPT_COOLDOWN_MINUTES", 5)) * time.Minute,
		PromptTimeout:   time.Duration(getEnvInt("PROMPT_TIMEOUT_SECONDS", 30)) * time.Second,

		LocationStaleAfter: time.Duration(getEnvInt("LOCATION_STALE_SECONDS", 10)) * time.Second,

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		Port: getEnv("PORT", "8080"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
