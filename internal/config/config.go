package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Questions QuestionsConfig `yaml:"questions"`
	Quiz      QuizConfig      `yaml:"quiz"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Events    EventsConfig    `yaml:"events"`
}

type ServerConfig struct {
	Port     string `yaml:"port" validate:"omitempty,numeric"`
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" validate:"omitempty,hostname_port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0,lte=15"`
	TTL      string `yaml:"ttl" validate:"duration"`
}

type PostgresConfig struct {
	URL string `yaml:"url" validate:"omitempty,url"`
}

// SQLiteConfig points at the device-local exposure database. Empty disables it.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type QuestionsConfig struct {
	CacheTTL       string `yaml:"cache_ttl" validate:"duration"`
	FetchTimeout   string `yaml:"fetch_timeout" validate:"duration"`
	PerCategoryCap int    `yaml:"per_category_cap" validate:"gte=0"`
}

type QuizConfig struct {
	QuestionTimeout    string   `yaml:"question_timeout" validate:"duration"`
	ResumeGrace        string   `yaml:"resume_grace" validate:"duration"`
	FallbackCategories []string `yaml:"fallback_categories" validate:"dive,required"`
}

type LedgerConfig struct {
	MaxRetries     int    `yaml:"max_retries" validate:"gte=0,lte=50"`
	InitialBackoff string `yaml:"initial_backoff" validate:"duration"`
	MaxBackoff     string `yaml:"max_backoff" validate:"duration"`
}

type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url" validate:"omitempty,url"`
	Exchange string `yaml:"exchange"`
}

// Default returns a config that runs fully in memory.
func Default() Config {
	return Config{
		Server:    ServerConfig{Port: "8080", LogLevel: "info"},
		Redis:     RedisConfig{TTL: "10m"},
		Questions: QuestionsConfig{CacheTTL: "10m", FetchTimeout: "5s", PerCategoryCap: 200},
		Quiz:      QuizConfig{QuestionTimeout: "20s", ResumeGrace: "30s"},
		Ledger:    LedgerConfig{MaxRetries: 5, InitialBackoff: "10ms", MaxBackoff: "250ms"},
	}
}

// Load reads YAML config from path on top of Default and validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		raw := fl.Field().String()
		if raw == "" {
			return true
		}
		d, err := time.ParseDuration(raw)
		return err == nil && d >= 0
	})
	return v
}

// Validate checks field formats and ranges.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Duration parses a duration string or returns the fallback if empty.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
