package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultFallbackSpeedMps is 35 km/h.
const DefaultFallbackSpeedMps = 35.0 / 3.6

type Config struct {
	Port string

	DBDriver    string
	DatabaseURL string
	SeedPath    string

	RoutingBaseURL   string
	RoutingProfile   string
	RoutingTimeout   time.Duration
	FallbackSpeedMps float64

	RouteCache     string
	RouteCacheTTL  time.Duration
	RouteCacheSize int
	RedisURL       string

	NATSURL           string
	NATSSubjectPrefix string

	SuggestConcurrency int
	CORSOrigins        []string
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:              Get("PORT", "8080"),
		DBDriver:          Get("DB_DRIVER", "sqlite"),
		SeedPath:          os.Getenv("SEED_PATH"),
		RoutingBaseURL:    strings.TrimRight(Get("ROUTING_BASE_URL", "http://localhost:5000"), "/"),
		RoutingProfile:    Get("ROUTING_PROFILE", "driving"),
		RouteCache:        strings.ToLower(Get("ROUTE_CACHE", "memory")),
		RedisURL:          Get("REDIS_URL", "redis://localhost:6379/0"),
		NATSURL:           os.Getenv("NATS_URL"),
		NATSSubjectPrefix: Get("NATS_SUBJECT_PREFIX", "fleet"),
	}

	switch cfg.DBDriver {
	case "pgx":
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when DB_DRIVER=pgx")
		}
	case "sqlite":
		cfg.DatabaseURL = Get("DB_PATH", "data/dispatch.db")
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER: %q (want pgx or sqlite)", cfg.DBDriver)
	}

	switch cfg.RouteCache {
	case "none", "memory", "redis", "sql":
	default:
		return nil, fmt.Errorf("invalid ROUTE_CACHE: %q (want none, memory, redis or sql)", cfg.RouteCache)
	}

	var err error
	if cfg.RoutingTimeout, err = getDuration("ROUTING_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RouteCacheTTL, err = getDuration("ROUTE_CACHE_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RouteCacheSize, err = getPositiveInt("ROUTE_CACHE_SIZE", 10000); err != nil {
		return nil, err
	}
	if cfg.SuggestConcurrency, err = getPositiveInt("SUGGEST_CONCURRENCY", 8); err != nil {
		return nil, err
	}

	cfg.FallbackSpeedMps = DefaultFallbackSpeedMps
	if v := os.Getenv("FALLBACK_SPEED_MPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid FALLBACK_SPEED_MPS: %q", v)
		}
		cfg.FallbackSpeedMps = f
	}

	for _, o := range strings.Split(Get("CORS_ORIGINS", "http://localhost:5173"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	return cfg, nil
}

// Get returns the environment value for key, or fallback when unset.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func getPositiveInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}
