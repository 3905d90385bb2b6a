package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds the bot configuration, read from the environment
type Config struct {
	DiscordToken    string `env:"DISCORD_TOKEN"`
	GuildID         string `env:"GUILD_ID"`
	ReviewChannelID string `env:"REVIEW_CHANNEL_ID"`
	HelperRoleID    string `env:"HELPER_ROLE_ID"`
	OwnerID         string `env:"OWNER_ID"`

	OpenAIToken string  `env:"OPENAI_API_KEY"`
	MaxTokens   int     `env:"MAX_TOKENS" envDefault:"150"`
	Temperature float64 `env:"TEMPERATURE" envDefault:"0.7"`

	DBPath         string `env:"DB_PATH" envDefault:"data/board.db"`
	CatalogPath    string `env:"CATALOG_PATH"`
	BackgroundPath string `env:"MAP_BACKGROUND"`
	HTTPAddr       string `env:"HTTP_ADDR" envDefault:":8080"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	StoreTimeout       time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	StoreRetries       int           `env:"STORE_RETRIES" envDefault:"3"`
	ResetConfirmWindow time.Duration `env:"RESET_CONFIRM_WINDOW" envDefault:"2m"`
	MapCacheTTL        time.Duration `env:"MAP_CACHE_TTL" envDefault:"10m"`
}

// LoadDotenv loads the given .env files into the environment. Missing files
// are skipped; variables already set win.
func LoadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("error loading %s: %w", f, err)
		}
	}
	return nil
}

// Load parses the environment into a Config
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values every command needs
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.StoreRetries < 1 {
		return fmt.Errorf("STORE_RETRIES must be at least 1")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	if c.ResetConfirmWindow <= 0 {
		return fmt.Errorf("RESET_CONFIRM_WINDOW must be positive")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json")
	}
	return nil
}

// ValidateBot additionally checks what the Discord bot needs
func (c *Config) ValidateBot() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN is required")
	}
	if c.ReviewChannelID == "" {
		return fmt.Errorf("REVIEW_CHANNEL_ID is required")
	}
	if c.HelperRoleID == "" {
		return fmt.Errorf("HELPER_ROLE_ID is required")
	}
	if c.OwnerID == "" {
		return fmt.Errorf("OWNER_ID is required")
	}
	return nil
}

// SetupLogging applies the level and format to the standard logrus logger
func (c *Config) SetupLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	if strings.EqualFold(c.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
