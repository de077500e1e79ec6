package config

import (
	"errors"
	"os"
	"reflect"
	"testing"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "VC_TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "VC_TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				t.Setenv(tc.key, tc.envValue)
			}

			result := getEnvOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "VC_TEST_INT_1", "42", 10, 42},
		{"uses default for empty", "VC_TEST_INT_2", "", 10, 10},
		{"uses default for non-numeric", "VC_TEST_INT_3", "abc", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				t.Setenv(tc.key, tc.envValue)
			}

			result := getEnvAsIntOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsListOrDefault(t *testing.T) {
	t.Setenv("VC_TEST_LIST", " Red Team , ,Blue Team,Green ")

	got := getEnvAsListOrDefault("VC_TEST_LIST", []string{"x"})
	want := []string{"Red Team", "Blue Team", "Green"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	got = getEnvAsListOrDefault("VC_TEST_LIST_UNSET", []string{"a", "b"})
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Expected default list, got %v", got)
	}
}

func TestHealthAddr(t *testing.T) {
	os.Unsetenv("HEALTH_ADDR")
	t.Setenv("PORT", "8081")
	if got := healthAddr(); got != ":8081" {
		t.Errorf("Expected :8081 from PORT, got %q", got)
	}

	t.Setenv("HEALTH_ADDR", "")
	if got := healthAddr(); got != "" {
		t.Errorf("Expected explicit empty HEALTH_ADDR to disable, got %q", got)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			DiscordToken:         "token",
			StoreDriver:          DriverPostgres,
			DatabaseDSN:          "postgres://localhost/bot",
			FactionRoles:         DefaultFactionRoles,
			DailyResetHourUTC:    12,
			WeeklyRefreshHourUTC: 0,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid postgres", func(c *Config) {}, ""},
		{"missing token", func(c *Config) { c.DiscordToken = "" }, "DISCORD_TOKEN"},
		{"missing dsn", func(c *Config) { c.DatabaseDSN = "" }, "DATABASE_DSN"},
		{"mongo without uri", func(c *Config) { c.StoreDriver = DriverMongo }, "MONGO_URI"},
		{"mongo with uri", func(c *Config) { c.StoreDriver = DriverMongo; c.MongoURI = "mongodb://localhost" }, ""},
		{"memory needs nothing", func(c *Config) { c.StoreDriver = DriverMemory; c.DatabaseDSN = "" }, ""},
		{"unknown driver", func(c *Config) { c.StoreDriver = "sqlite" }, "STORE_DRIVER"},
		{"no factions", func(c *Config) { c.FactionRoles = nil }, "FACTION_ROLES"},
		{"bad reset hour", func(c *Config) { c.DailyResetHourUTC = 24 }, "DAILY_RESET_HOUR_UTC"},
		{"bad refresh hour", func(c *Config) { c.WeeklyRefreshHourUTC = -1 }, "WEEKLY_REFRESH_HOUR_UTC"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}

			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Expected ConfigError, got %v", err)
			}
			if ce.Field != tc.field {
				t.Errorf("Expected field %s, got %s", tc.field, ce.Field)
			}
		})
	}
}
