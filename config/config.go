// Package config loads application settings from a .env file and environment variables.
// Environment variables always take precedence over .env file values.
package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	// PostgreSQL – either set DatabaseURL directly, or the individual fields.
	DatabaseURL string
	DBUser      string
	DBPass      string
	DBHost      string
	DBPort      string
	DBName      string
	DBSSLMode   string

	// JWT signing secret (required in production).
	JWTSecret string

	// Server
	Debug      bool
	Port       string
	TLSDomains []string

	// Scraping holds the outbound-fetch policy for the origin site.
	Scraping ScrapingConfig
}

// ScrapingConfig limits how the service hits the origin site.
type ScrapingConfig struct {
	BaseURL       string
	UserAgent     string
	RequestDelay  time.Duration
	MaxRetries    int
	MaxConcurrent int
	Timeout       time.Duration
}

// Load reads configuration from a .env file (if present) and then from
// environment variables. Environment variables always win.
func Load() *Config {
	v := newViper()

	// Defaults
	v.SetDefault("DB_USER", "padraic")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "keibadata")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("PORT", ":9100")
	v.SetDefault("TLS_DOMAINS", "keibadata.app,www.keibadata.app")
	v.SetDefault("DEBUG", false)

	v.SetDefault("SCRAPING_BASE_URL", "https://db.netkeiba.com")
	v.SetDefault("SCRAPING_USER_AGENT", "Mozilla/5.0 (compatible; keibadata/1.0)")
	v.SetDefault("SCRAPING_REQUEST_DELAY", 1.5)
	v.SetDefault("SCRAPING_MAX_RETRIES", 3)
	v.SetDefault("SCRAPING_MAX_CONCURRENT", 5)
	v.SetDefault("SCRAPING_TIMEOUT_SECONDS", 30)

	cfg := &Config{
		DatabaseURL: v.GetString("DATABASE_URL"),
		DBUser:      v.GetString("DB_USER"),
		DBPass:      v.GetString("DB_PASS"),
		DBHost:      v.GetString("DB_HOST"),
		DBPort:      v.GetString("DB_PORT"),
		DBName:      v.GetString("DB_NAME"),
		DBSSLMode:   v.GetString("DB_SSLMODE"),
		JWTSecret:   v.GetString("JWT_SECRET"),
		Debug:       v.GetBool("DEBUG"),
		Port:        v.GetString("PORT"),
		TLSDomains:  splitTrimmed(v.GetString("TLS_DOMAINS")),
		Scraping: ScrapingConfig{
			BaseURL:       strings.TrimRight(v.GetString("SCRAPING_BASE_URL"), "/"),
			UserAgent:     v.GetString("SCRAPING_USER_AGENT"),
			RequestDelay:  time.Duration(v.GetFloat64("SCRAPING_REQUEST_DELAY") * float64(time.Second)),
			MaxRetries:    v.GetInt("SCRAPING_MAX_RETRIES"),
			MaxConcurrent: v.GetInt("SCRAPING_MAX_CONCURRENT"),
			Timeout:       time.Duration(v.GetInt("SCRAPING_TIMEOUT_SECONDS")) * time.Second,
		},
	}

	cfg.validate()
	return cfg
}

// PostgresDSN returns the full PostgreSQL connection string.
// DATABASE_URL takes precedence over individual fields.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser,
		c.DBPass,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

// JWTKey returns the JWT signing key as a byte slice.
func (c *Config) JWTKey() []byte {
	return []byte(c.JWTSecret)
}

func (c *Config) validate() {
	if c.DatabaseURL == "" && c.DBPass == "" {
		log.Fatal("config: DATABASE_URL or DB_PASS must be set")
	}
	if c.JWTSecret == "" {
		log.Fatal("config: JWT_SECRET must be set")
	}
	if c.Scraping.MaxConcurrent < 1 {
		log.Fatal("config: SCRAPING_MAX_CONCURRENT must be at least 1")
	}
}

func newViper() *viper.Viper {
	// Silently load .env – OK if the file doesn't exist (production uses real env vars).
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, using environment variables only")
	}

	v := viper.New()
	v.AutomaticEnv()
	return v
}

func splitTrimmed(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
