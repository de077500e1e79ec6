package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// DefaultFactionRoles is the ordered list of faction role names used when FACTION_ROLES is unset.
// Order matters: a member holding several faction roles counts for the first one.
var DefaultFactionRoles = []string{
	"Laughing Meeks",
	"Unicorns",
	"Special Activities Directive",
}

// Config holds all configuration for our application
type Config struct {
	DiscordToken string
	GuildID      string

	StoreDriver   string
	DatabaseDSN   string
	MongoURI      string
	MongoDatabase string
	RedisURL      string

	HealthAddr string

	FactionRoles []string

	DailyResetHourUTC    int
	WeeklyRefreshHourUTC int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// .env file is optional, continue with environment variables
	}

	config := &Config{
		DiscordToken:         os.Getenv("DISCORD_TOKEN"),
		GuildID:              os.Getenv("GUILD_ID"),
		StoreDriver:          strings.ToLower(getEnvOrDefault("STORE_DRIVER", DriverPostgres)),
		DatabaseDSN:          os.Getenv("DATABASE_DSN"),
		MongoURI:             os.Getenv("MONGO_URI"),
		MongoDatabase:        getEnvOrDefault("MONGO_DATABASE", "discordBotDB"),
		RedisURL:             os.Getenv("REDIS_URL"),
		HealthAddr:           healthAddr(),
		FactionRoles:         getEnvAsListOrDefault("FACTION_ROLES", DefaultFactionRoles),
		DailyResetHourUTC:    getEnvAsIntOrDefault("DAILY_RESET_HOUR_UTC", 12),
		WeeklyRefreshHourUTC: getEnvAsIntOrDefault("WEEKLY_REFRESH_HOUR_UTC", 0),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that required settings for the selected drivers are present
func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return &ConfigError{Field: "DISCORD_TOKEN", Message: "DISCORD_TOKEN is required"}
	}

	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseDSN == "" {
			return &ConfigError{Field: "DATABASE_DSN", Message: "DATABASE_DSN is required"}
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return &ConfigError{Field: "MONGO_URI", Message: "MONGO_URI is required when STORE_DRIVER=mongo"}
		}
	case DriverMemory:
	default:
		return &ConfigError{Field: "STORE_DRIVER", Message: "STORE_DRIVER must be one of postgres, mongo, memory"}
	}

	if len(c.FactionRoles) == 0 {
		return &ConfigError{Field: "FACTION_ROLES", Message: "FACTION_ROLES must name at least one role"}
	}

	if c.DailyResetHourUTC < 0 || c.DailyResetHourUTC > 23 {
		return &ConfigError{Field: "DAILY_RESET_HOUR_UTC", Message: "DAILY_RESET_HOUR_UTC must be between 0 and 23"}
	}
	if c.WeeklyRefreshHourUTC < 0 || c.WeeklyRefreshHourUTC > 23 {
		return &ConfigError{Field: "WEEKLY_REFRESH_HOUR_UTC", Message: "WEEKLY_REFRESH_HOUR_UTC must be between 0 and 23"}
	}

	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// healthAddr prefers HEALTH_ADDR and falls back to PORT as used by most hosting platforms
func healthAddr() string {
	if addr, ok := os.LookupEnv("HEALTH_ADDR"); ok {
		return addr
	}
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":5000"
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return append([]string(nil), defaultVal...)
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
