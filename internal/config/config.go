package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// devSigningKey is used outside production when SIGNING_KEY is unset.
const devSigningKey = "radpilot-development-signing-key"

type Config struct {
	Port             string        `mapstructure:"PORT"`
	Env              string        `mapstructure:"ENV"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32         `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
	RadiologistID    string        `mapstructure:"RADIOLOGIST_ID"`
	RadiologistName  string        `mapstructure:"RADIOLOGIST_NAME"`
	SigningKey       string        `mapstructure:"SIGNING_KEY"`
	ReportBaseURL    string        `mapstructure:"REPORT_BASE_URL"`
	KafkaBrokers     []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic       string        `mapstructure:"KAFKA_TOPIC"`
	PreviewCacheSize int           `mapstructure:"PREVIEW_CACHE_SIZE"`
	SeedDemoData     bool          `mapstructure:"SEED_DEMO_DATA"`
	RateLimitRPS     float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst   int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit        string        `mapstructure:"BODY_LIMIT"`
	UploadLimit      string        `mapstructure:"UPLOAD_LIMIT"`
	TLSEnabled       bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile      string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile       string        `mapstructure:"TLS_KEY_FILE"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "CORS_ORIGINS",
	"RADIOLOGIST_ID", "RADIOLOGIST_NAME", "SIGNING_KEY", "REPORT_BASE_URL",
	"KAFKA_BROKERS", "KAFKA_TOPIC", "PREVIEW_CACHE_SIZE", "SEED_DEMO_DATA",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT", "BODY_LIMIT", "UPLOAD_LIMIT",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
}

// Load reads configuration from an optional .env file and the environment.
// DATABASE_URL is optional; without it the server keeps everything in memory.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RADIOLOGIST_ID", "1")
	v.SetDefault("RADIOLOGIST_NAME", "Dr. Sarah Chen")
	v.SetDefault("REPORT_BASE_URL", "http://localhost:8000")
	v.SetDefault("KAFKA_TOPIC", "radpilot.reports")
	v.SetDefault("PREVIEW_CACHE_SIZE", 256)
	v.SetDefault("SEED_DEMO_DATA", false)
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("UPLOAD_LIMIT", "100M")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// A missing .env file is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers, v.GetString("KAFKA_BROKERS"))
	cfg.ReportBaseURL = strings.TrimRight(cfg.ReportBaseURL, "/")

	if cfg.SigningKey == "" && !cfg.IsProduction() {
		cfg.SigningKey = devSigningKey
		log.Println("WARNING: SIGNING_KEY is not set; finalized reports are signed with a development key.")
	}

	return cfg, nil
}

func splitList(parsed []string, raw string) []string {
	if len(parsed) == 1 && strings.Contains(parsed[0], ",") {
		parsed = nil
	}
	if parsed == nil && raw != "" {
		parsed = strings.Split(raw, ",")
	}
	var out []string
	for _, s := range parsed {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UsePostgres reports whether a database is configured.
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// UseKafka reports whether finalized-report events go to Kafka.
func (c *Config) UseKafka() bool {
	return len(c.KafkaBrokers) > 0
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.IsProduction() && (c.SigningKey == "" || c.SigningKey == devSigningKey) {
		return fmt.Errorf("SIGNING_KEY is required in production")
	}
	if c.PreviewCacheSize < 1 {
		return fmt.Errorf("PREVIEW_CACHE_SIZE must be at least 1, got %d", c.PreviewCacheSize)
	}
	if c.RadiologistID == "" {
		return fmt.Errorf("RADIOLOGIST_ID must not be empty")
	}
	if c.UseKafka() && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}
	return nil
}
