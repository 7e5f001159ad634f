package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from the "500ms" / "1h"
// YAML form.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// DBConfig holds the PostgreSQL connection settings.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// RedisConfig holds the fallback-cache settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MQConfig holds the message broker settings.
type MQConfig struct {
	URL string `yaml:"url"`
}

// ServerConfig holds the HTTP server settings (metrics + health only).
type ServerConfig struct {
	Port string `yaml:"port"`
}

// AgentConfig points at the external scoring/summarization service.
type AgentConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
}

// CalendarConfig points at the external calendar service.
type CalendarConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
}

// DashboardConfig holds the sync-engine tuning knobs.
type DashboardConfig struct {
	// MonthlyGoal is the revenue target used for the estimate fallback
	// when no folders carry a price.
	MonthlyGoal float64 `yaml:"monthly_goal"`
	// LifecycleInterval is how often the rollover check runs.
	LifecycleInterval Duration `yaml:"lifecycle_interval"`
	// InvalidationDebounce coalesces bursts of change notifications
	// into a single refetch.
	InvalidationDebounce Duration `yaml:"invalidation_debounce"`
	// OutboxFlushBatch caps how many local-only mutations are replayed
	// per successful remote round trip.
	OutboxFlushBatch int `yaml:"outbox_flush_batch"`
}

// Config is the root configuration for the dashboard daemon.
type Config struct {
	DB        DBConfig        `yaml:"db"`
	Redis     RedisConfig     `yaml:"redis"`
	MQ        MQConfig        `yaml:"mq"`
	Server    ServerConfig    `yaml:"server"`
	Agent     AgentConfig     `yaml:"agent"`
	Calendar  CalendarConfig  `yaml:"calendar"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// Load reads config/base.yaml, overlays the environment-specific file if
// present, then applies environment variable overrides.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = "config"
	}

	cfg := defaults()

	if err := loadYAMLFile(configDir+"/base.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to load base.yaml: %w", err)
	}

	env := GetEnv("CONFIG_ENV", "local")
	if env != "" && env != "base" {
		envFile := fmt.Sprintf("%s/%s.yaml", configDir, env)
		if _, err := os.Stat(envFile); err == nil {
			if err := loadYAMLFile(envFile, cfg); err != nil {
				return nil, fmt.Errorf("failed to load %s.yaml: %w", env, err)
			}
		}
	}

	OverrideFromEnv(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		Agent:  AgentConfig{Timeout: Duration(5 * time.Second)},
		Calendar: CalendarConfig{
			Timeout: Duration(10 * time.Second),
		},
		Dashboard: DashboardConfig{
			MonthlyGoal:          10000,
			LifecycleInterval:    Duration(time.Hour),
			InvalidationDebounce: Duration(500 * time.Millisecond),
			OutboxFlushBatch:     100,
		},
	}
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// OverrideFromEnv applies environment variable overrides on top of the
// file-based configuration. Environment always wins.
func OverrideFromEnv(cfg *Config) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DB.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.DB.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DB.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DB.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.DB.Name = name
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.MQ.URL = url
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Server.Port = port
	}
	if url := os.Getenv("AGENT_BASE_URL"); url != "" {
		cfg.Agent.BaseURL = url
	}
	if url := os.Getenv("CALENDAR_BASE_URL"); url != "" {
		cfg.Calendar.BaseURL = url
	}
	if goal := os.Getenv("MONTHLY_GOAL"); goal != "" {
		if g, err := strconv.ParseFloat(goal, 64); err == nil {
			cfg.Dashboard.MonthlyGoal = g
		}
	}
}

// GetEnv returns the environment variable value or a default.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
