package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"kahyeet/internal/domain"
)

type Config struct {
	Server struct {
		Listen string `yaml:"listen"` // game TCP port
		Admin  string `yaml:"admin"`  // admin HTTP port
	} `yaml:"server"`
	Game struct {
		QuestionsFile string          `yaml:"questions_file"`
		QuestionSet   string          `yaml:"question_set"`
		ScoresFile    string          `yaml:"scores_file"`
		Settings      domain.Settings `yaml:",inline"`
		QuestionsTTL  string          `yaml:"questions_ttl"`
	} `yaml:"game"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
}

// Load reads YAML config from path and applies defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Game.QuestionSet == "" {
		cfg.Game.QuestionSet = "default"
	}
	if cfg.Game.ScoresFile == "" {
		cfg.Game.ScoresFile = "scores.txt"
	}
	if cfg.Game.Settings.TimerSeconds <= 0 {
		cfg.Game.Settings.TimerSeconds = 20
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty or
// invalid.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
