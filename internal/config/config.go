package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the MovieMetric server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	TMDB      TMDBConfig
	Search    SearchConfig
	Analytics AnalyticsConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type TMDBConfig struct {
	BaseURL          string
	APIKey           string
	Timeout          time.Duration
	RequestsPerSec   float64
	PagesPerEndpoint int
}

type SearchConfig struct {
	URL       string
	MasterKey string
	Index     string
}

// AnalyticsConfig enumerates every tunable of the compute pipeline.
type AnalyticsConfig struct {
	TrendingTopN           int
	TrendingPopularityMin  float64
	UnderratedRatingMin    float64
	UnderratedVoteCountMax int
	RecommendationTopK     int
	RecommendationMinScore float64
	CacheTTL               time.Duration
}

type SchedulerConfig struct {
	Enabled               bool
	IngestInterval        time.Duration
	ComputeInterval       time.Duration
	SearchRebuildInterval time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("MOVIEMETRIC_PORT", 8080),
			Env:  envString("MOVIEMETRIC_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		TMDB: TMDBConfig{
			BaseURL:          envString("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
			APIKey:           os.Getenv("TMDB_API_KEY"),
			Timeout:          envDuration("TMDB_TIMEOUT", 30*time.Second),
			RequestsPerSec:   envFloat("TMDB_REQUESTS_PER_SEC", 2.0),
			PagesPerEndpoint: envInt("TMDB_PAGES_PER_ENDPOINT", 10),
		},
		Search: SearchConfig{
			URL:       envString("MEILI_URL", "http://localhost:7700"),
			MasterKey: os.Getenv("MEILI_MASTER_KEY"),
			Index:     envString("MEILI_INDEX", "movies"),
		},
		Analytics: AnalyticsConfig{
			TrendingTopN:           envInt("ANALYTICS_TRENDING_TOP_N", 100),
			TrendingPopularityMin:  envFloat("ANALYTICS_TRENDING_POPULARITY_MIN", 50.0),
			UnderratedRatingMin:    envFloat("ANALYTICS_UNDERRATED_RATING_MIN", 7.5),
			UnderratedVoteCountMax: envInt("ANALYTICS_UNDERRATED_VOTE_COUNT_MAX", 1000),
			RecommendationTopK:     envInt("ANALYTICS_RECOMMENDATION_TOP_K", 10),
			RecommendationMinScore: envFloat("ANALYTICS_RECOMMENDATION_MIN_SCORE", 0.3),
			CacheTTL:               envDuration("ANALYTICS_CACHE_TTL", time.Hour),
		},
		Scheduler: SchedulerConfig{
			Enabled:               envBool("SCHEDULER_ENABLED", true),
			IngestInterval:        envDuration("SCHEDULER_INGEST_INTERVAL", 24*time.Hour),
			ComputeInterval:       envDuration("SCHEDULER_COMPUTE_INTERVAL", 24*time.Hour),
			SearchRebuildInterval: envDuration("SCHEDULER_SEARCH_REBUILD_INTERVAL", 7*24*time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.TMDB.APIKey == "" {
		return fmt.Errorf("TMDB_API_KEY is required")
	}
	if !strings.HasPrefix(c.TMDB.BaseURL, "http://") && !strings.HasPrefix(c.TMDB.BaseURL, "https://") {
		return fmt.Errorf("TMDB_BASE_URL must start with http:// or https://, got %q", c.TMDB.BaseURL)
	}

	if c.Analytics.TrendingTopN <= 0 {
		return fmt.Errorf("ANALYTICS_TRENDING_TOP_N must be positive, got %d", c.Analytics.TrendingTopN)
	}
	if c.Analytics.RecommendationTopK <= 0 {
		return fmt.Errorf("ANALYTICS_RECOMMENDATION_TOP_K must be positive, got %d", c.Analytics.RecommendationTopK)
	}
	if c.Analytics.UnderratedRatingMin < 0 || c.Analytics.UnderratedRatingMin > 10 {
		return fmt.Errorf("ANALYTICS_UNDERRATED_RATING_MIN must be in [0, 10], got %v", c.Analytics.UnderratedRatingMin)
	}
	if c.Analytics.CacheTTL <= 0 {
		return fmt.Errorf("ANALYTICS_CACHE_TTL must be positive")
	}

	if c.TMDB.PagesPerEndpoint <= 0 {
		return fmt.Errorf("TMDB_PAGES_PER_ENDPOINT must be positive, got %d", c.TMDB.PagesPerEndpoint)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
