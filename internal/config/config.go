package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		Issuer    string `yaml:"issuer"`
	} `yaml:"auth"`
	AI struct {
		Endpoint string `yaml:"endpoint"`
		APIKey   string `yaml:"api_key"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"ai"`
	Session struct {
		DefaultQuestionTime string `yaml:"default_question_time"`
		ResultsDelay        string `yaml:"results_delay"`
		SpeedFloorPercent   int    `yaml:"speed_floor_percent"`
		IdleTTL             string `yaml:"idle_ttl"`
	} `yaml:"session"`
	Gamification struct {
		LevelBase int    `yaml:"level_base"`
		LevelStep int    `yaml:"level_step"`
		Timezone  string `yaml:"timezone"`
	} `yaml:"gamification"`
	Sweeper struct {
		Schedule      string `yaml:"schedule"`
		AttemptGrace  string `yaml:"attempt_grace"`
		MaxAttemptAge string `yaml:"max_attempt_age"`
	} `yaml:"sweeper"`
}

// Load reads YAML config from path. Secrets may come from the environment instead:
// JWT_SECRET, AI_API_KEY, DATABASE_URL and REDIS_ADDR override the file.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("AI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
}

// Location resolves the gamification timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	if c.Gamification.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Gamification.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
