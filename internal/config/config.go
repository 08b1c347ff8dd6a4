package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"gte=0,lte=15"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Questions struct {
		File         string `yaml:"file"`
		TTL          string `yaml:"ttl"`
		RecentWindow int    `yaml:"recent_window" validate:"gte=0"`
	} `yaml:"questions"`
	Game struct {
		DefaultTimeout string `yaml:"default_timeout"`
		DailyTimeout   string `yaml:"daily_timeout"`
		WeeklyTimeout  string `yaml:"weekly_timeout"`
		MaxSessionAge  string `yaml:"max_session_age"`
		StoreTimeout   string `yaml:"store_timeout"`
	} `yaml:"game"`
	Leaderboard struct {
		Timezone     string `yaml:"timezone" validate:"omitempty,timezone"`
		DefaultLimit int    `yaml:"default_limit" validate:"gte=0,lte=100"`
	} `yaml:"leaderboard"`
	Jobs struct {
		SweepSchedule  string   `yaml:"sweep_schedule"`
		WeeklySchedule string   `yaml:"weekly_schedule"`
		AnnounceTo     []string `yaml:"announce_channels"`
	} `yaml:"jobs"`
	Log struct {
		Mode string `yaml:"mode" validate:"omitempty,oneof=dev development prod production"`
	} `yaml:"log"`
	Admins []string `yaml:"admins"`
}

// Load reads YAML config from path, then applies .env and environment overrides.
// A missing file is not an error; defaults and environment still apply.
func Load(path string) (Config, error) {
	cfg := Config{}
	_ = godotenv.Load()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("QUESTIONS_FILE"); v != "" {
		c.Questions.File = v
	}
	if v := os.Getenv("TRIVIA_TIMEZONE"); v != "" {
		c.Leaderboard.Timezone = v
	}
	if v := os.Getenv("LOG_MODE"); v != "" {
		c.Log.Mode = v
	}
}

func (c *Config) applyDefaults() {
	if c.Game.DefaultTimeout == "" {
		c.Game.DefaultTimeout = "30s"
	}
	if c.Game.DailyTimeout == "" {
		c.Game.DailyTimeout = "45s"
	}
	if c.Game.WeeklyTimeout == "" {
		c.Game.WeeklyTimeout = "60s"
	}
	if c.Game.MaxSessionAge == "" {
		c.Game.MaxSessionAge = "5m"
	}
	if c.Game.StoreTimeout == "" {
		c.Game.StoreTimeout = "3s"
	}
	if c.Leaderboard.Timezone == "" {
		c.Leaderboard.Timezone = "UTC"
	}
	if c.Leaderboard.DefaultLimit == 0 {
		c.Leaderboard.DefaultLimit = 10
	}
	if c.Questions.RecentWindow == 0 {
		c.Questions.RecentWindow = 20
	}
	if c.Jobs.SweepSchedule == "" {
		c.Jobs.SweepSchedule = "@every 5m"
	}
	if c.Jobs.WeeklySchedule == "" {
		c.Jobs.WeeklySchedule = "0 9 * * MON"
	}
	if c.Log.Mode == "" {
		c.Log.Mode = "dev"
	}
}

// Location resolves the leaderboard/challenge reference timezone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Leaderboard.Timezone)
}

// IsAdmin reports whether the user id is listed under admins.
func (c Config) IsAdmin(userID string) bool {
	for _, id := range c.Admins {
		if id == userID {
			return true
		}
	}
	return false
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
