package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort          = "8080"
	DefaultQuizDuration  = 10 * time.Minute
	DefaultGrace         = 30 * time.Second
	DefaultSweepInterval = 15 * time.Second
	DefaultCacheTTL      = 10 * time.Minute
	DefaultTokenTTL      = 12 * time.Hour
)

type Config struct {
	Server struct {
		Port         string   `yaml:"port"`
		ReadTimeout  string   `yaml:"read_timeout"`
		WriteTimeout string   `yaml:"write_timeout"`
		CORSOrigins  []string `yaml:"cors_origins"`
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
		TTL            string `yaml:"ttl"`
		Duration       string `yaml:"duration"`
		Grace          string `yaml:"grace"`
		SweepInterval  string `yaml:"sweep_interval"`
		ShuffleOptions bool   `yaml:"shuffle_options"`
		QuestionsFile  string `yaml:"questions_file"`
	} `yaml:"quiz"`
	Admin struct {
		PasswordHash string `yaml:"password_hash"`
		JWTSecret    string `yaml:"jwt_secret"`
		TokenTTL     string `yaml:"token_ttl"`
	} `yaml:"admin"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads YAML config from path. A missing file yields an empty config so the
// service can run from environment variables alone.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// ApplyEnv overrides file values with the environment. lookup is os.LookupEnv outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("PORT", &c.Server.Port)
	set("DATABASE_URL", &c.Postgres.URL)
	set("REDIS_ADDR", &c.Redis.Addr)
	set("REDIS_PASSWORD", &c.Redis.Password)
	set("QUIZ_DURATION", &c.Quiz.Duration)
	set("QUESTIONS_FILE", &c.Quiz.QuestionsFile)
	set("ADMIN_PASSWORD_HASH", &c.Admin.PasswordHash)
	set("JWT_SECRET", &c.Admin.JWTSecret)
	set("LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup("REDIS_DB"); ok {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	if v, ok := lookup("SHUFFLE_OPTIONS"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Quiz.ShuffleOptions = b
		}
	}
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

func (c Config) QuizDuration() time.Duration {
	return TTLDuration(c.Quiz.Duration, DefaultQuizDuration)
}

func (c Config) Grace() time.Duration {
	return TTLDuration(c.Quiz.Grace, DefaultGrace)
}

func (c Config) SweepInterval() time.Duration {
	return TTLDuration(c.Quiz.SweepInterval, DefaultSweepInterval)
}

// QuestionTTL is how long the question bank stays cached before it is reloaded.
func (c Config) QuestionTTL() time.Duration {
	return TTLDuration(c.Quiz.TTL, DefaultCacheTTL)
}

func (c Config) TokenTTL() time.Duration {
	return TTLDuration(c.Admin.TokenTTL, DefaultTokenTTL)
}

// ListenPort prefers the flag, then the config, then DefaultPort.
func (c Config) ListenPort(flag string) string {
	if flag != "" {
		return flag
	}
	if c.Server.Port != "" {
		return c.Server.Port
	}
	return DefaultPort
}
