// Package config reads process settings from the environment and the
// proctoring policy from an optional YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mcdev12/mockdrive/go/internal/assessment/orchestrator"
	"github.com/mcdev12/mockdrive/go/internal/assessment/proctor"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Database holds Postgres connection settings.
type Database struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

// DSN returns the Postgres connection URL.
func (c Database) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// Redis selects the timer anchor store. An empty Addr falls back to Badger.
type Redis struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

type Judge0 struct {
	BaseURL   string
	APIKey    string
	RateLimit float64 // requests per second
	Timeout   time.Duration
}

type Gemini struct {
	APIKey string
	Model  string
}

// Config is the full process configuration.
type Config struct {
	Port        string
	LogLevel    zerolog.Level
	PolicyPath  string
	BadgerPath  string
	NATSURL     string
	CORSOrigins []string

	OutboxFallbackInterval time.Duration
	OutboxHealthPort       string

	Database Database
	Redis    Redis
	Judge0   Judge0
	Gemini   Gemini
	Policy   Policy
}

// Policy is the proctoring and timing policy, optionally loaded from YAML.
type Policy struct {
	MaxWarnings      int                 `yaml:"max_warnings"`
	JudgeParallelism int                 `yaml:"judge_parallelism"`
	Machine          orchestrator.Config `yaml:"machine"`
	Proctor          proctor.Config      `yaml:"proctor"`
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxWarnings:      3,
		JudgeParallelism: 4,
		Machine:          orchestrator.DefaultConfig(),
		Proctor:          proctor.DefaultConfig(),
	}
}

// Load reads the environment. .env loading is left to main.
func Load() (*Config, error) {
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    level,
		PolicyPath:  getEnv("POLICY_PATH", ""),
		BadgerPath:  getEnv("BADGER_PATH", "./data/timers"),
		NATSURL:     getEnv("NATS_URL", ""),
		CORSOrigins: []string{getEnv("CORS_ORIGIN", "http://localhost:3000")},

		OutboxFallbackInterval: getEnvAsDuration("OUTBOX_FALLBACK_INTERVAL", 30*time.Second),
		OutboxHealthPort:       getEnv("OUTBOX_HEALTH_PORT", "8081"),
		Database: Database{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Database: getEnv("DB_NAME", "mockdrive"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 10)),
		},
		Redis: Redis{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "mockdrive:"),
			TTL:       getEnvAsDuration("REDIS_TTL", 24*time.Hour),
		},
		Judge0: Judge0{
			BaseURL:   getEnv("JUDGE0_URL", "https://judge0-ce.p.rapidapi.com"),
			APIKey:    getEnv("JUDGE0_API_KEY", ""),
			RateLimit: getEnvAsFloat("JUDGE0_RATE_LIMIT", 5),
			Timeout:   getEnvAsDuration("JUDGE0_TIMEOUT", 30*time.Second),
		},
		Gemini: Gemini{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		Policy: DefaultPolicy(),
	}

	if cfg.PolicyPath != "" {
		p, err := LoadPolicy(cfg.PolicyPath)
		if err != nil {
			return nil, err
		}
		cfg.Policy = *p
	}
	cfg.Policy.Machine.LenientVerdict = getEnvAsBool("LENIENT_VERDICT", cfg.Policy.Machine.LenientVerdict)
	return cfg, nil
}

// LoadPolicy reads a YAML policy file over the defaults.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	p := DefaultPolicy()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}
	return &p, nil
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
