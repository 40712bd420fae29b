package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything the service reads from the environment.
type Config struct {
	Port           string        `env:"PORT" envDefault:"5200"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	AllowedOrigins string        `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`
	APIToken       string        `env:"LEDGER_API_TOKEN"`
	CatalogPath    string        `env:"QUEST_CATALOG_PATH"`
	StoreTimeout   time.Duration `env:"LEDGER_STORE_TIMEOUT" envDefault:"3s"`
	HealthInterval time.Duration `env:"HEALTH_PROBE_INTERVAL" envDefault:"30s"`

	SnapshotInterval time.Duration `env:"SNAPSHOT_INTERVAL" envDefault:"24h"`
	R2               R2Config
}

// R2Config is the Cloudflare R2 bucket ledger snapshots are exported to
type R2Config struct {
	AccountID       string `env:"CLOUDFLARE_ACCOUNT_ID"`
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	Bucket          string `env:"R2_BUCKET_NAME"`
}

// Enabled reports whether enough R2 settings are present to export snapshots.
func (r R2Config) Enabled() bool {
	return r.AccountID != "" && r.AccessKeyID != "" && r.AccessKeySecret != "" && r.Bucket != ""
}

// Load reads .env (if any) and parses the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}
	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.StoreTimeout <= 0 {
		return nil, fmt.Errorf("LEDGER_STORE_TIMEOUT must be positive, got %s", cfg.StoreTimeout)
	}
	return &cfg, nil
}

// Origins returns ALLOWED_ORIGINS with whitespace trimmed, joined the way fiber's CORS config wants.
func (c *Config) Origins() string {
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}
