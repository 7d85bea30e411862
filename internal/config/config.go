package config

import (
	"fmt"
	"log"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime settings, populated from the environment.
type Config struct {
	DiscordToken          string   `env:"DISCORD_TOKEN,required"`
	DiscordAppID          string   `env:"DISCORD_APP_ID,required"`
	StoragePath           string   `env:"STORAGE_PATH" envDefault:"datastore.json"`
	MediaProxy            string   `env:"MEDIA_PROXY"`
	InitSlashCommands     bool     `env:"INIT_SLASH_COMMANDS" envDefault:"true"`
	DiscordGuildBlacklist []string `env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`
}

// New loads .env (if present) and parses the environment into a Config.
// Missing required variables are an error; the bot cannot run without them.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[INFO] No .env file found, using system environment variables")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}
