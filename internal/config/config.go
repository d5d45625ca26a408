// Package config loads checkup-bot settings from defaults, an optional YAML
// file, a .env file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the runtime configuration.
type Config struct {
	BotToken string `yaml:"bot_token"`

	// OperatorID is the single chat identity that receives submissions and
	// may run reports. Zero disables operator delivery.
	OperatorID int64 `yaml:"operator_id"`

	UploadDir string `yaml:"upload_dir"`
	DBPath    string `yaml:"db_path"`

	// HTTPAddr enables the operator HTTP API when non-empty.
	HTTPAddr string `yaml:"http_addr"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	// SendTimeout bounds every Bot API request except the update long poll.
	SendTimeout  time.Duration `yaml:"send_timeout"`
	StoreTimeout time.Duration `yaml:"store_timeout"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
}

// Default returns the compiled-in defaults.
func Default() *Config {
	return &Config{
		UploadDir:    "./uploads",
		DBPath:       "./requests.db",
		LogLevel:     "info",
		LogFormat:    "text",
		FetchTimeout: 30 * time.Second,
		SendTimeout:  15 * time.Second,
		StoreTimeout: 10 * time.Second,
		SessionTTL:   24 * time.Hour,
	}
}

// Load builds a Config. path may be empty, in which case only defaults,
// .env and the environment are consulted.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings required to run the bot.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return errors.New("config: BOT_TOKEN is required")
	}
	if c.OperatorID < 0 {
		return fmt.Errorf("config: operator id must not be negative, got %d", c.OperatorID)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	setString(lookup, "BOT_TOKEN", &c.BotToken)
	setString(lookup, "UPLOAD_DIR", &c.UploadDir)
	setString(lookup, "DB_PATH", &c.DBPath)
	setString(lookup, "HTTP_ADDR", &c.HTTPAddr)
	setString(lookup, "LOG_LEVEL", &c.LogLevel)
	setString(lookup, "LOG_FORMAT", &c.LogFormat)

	if v, ok := lookup("ADMIN_CHAT_ID"); ok && v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: ADMIN_CHAT_ID: %w", err)
		}
		c.OperatorID = id
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"FETCH_TIMEOUT", &c.FetchTimeout},
		{"SEND_TIMEOUT", &c.SendTimeout},
		{"STORE_TIMEOUT", &c.StoreTimeout},
		{"SESSION_TTL", &c.SessionTTL},
	}
	for _, d := range durations {
		v, ok := lookup(d.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

func setString(lookup lookupFunc, key string, dst *string) {
	if v, ok := lookup(key); ok && v != "" {
		*dst = v
	}
}
