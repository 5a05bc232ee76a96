package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultBaseURL is the backend address used when nothing is configured.
const DefaultBaseURL = "http://backend:8000/api/"

// Config holds application configuration.
type Config struct {
	API        APIConfig
	Log        LogConfig
	Journal    JournalConfig
	DevServer  DevServerConfig
	Migrations MigrationsConfig
}

// APIConfig holds the backend connection settings. It is read-only after Load.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig holds logrus settings.
type LogConfig struct {
	Level string
	Path  string
}

// JournalConfig holds the local activity journal location.
type JournalConfig struct {
	Path string
}

// DevServerConfig holds settings for the development backend.
type DevServerConfig struct {
	Addr           string
	DatabasePath   string   `mapstructure:"database_path"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	Broker         string
}

// MigrationsConfig points at the SQL migration files. An empty path uses the embedded set.
type MigrationsConfig struct {
	Path string
}

// Load reads configuration from .env, file and env. Env var overrides use prefix
// CALIFICACIONES_; the base URL also honours CALIFICACIONES_API_URL.
func Load() (Config, error) {
	// a missing .env is the normal case
	_ = godotenv.Load()

	v := viper.New()

	home := os.Getenv("HOME")
	v.SetDefault("api.base_url", DefaultBaseURL)
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", filepath.Join(home, ".local", "state", "calificaciones", "calificaciones.log"))
	v.SetDefault("journal.path", filepath.Join(home, ".local", "share", "calificaciones", "journal.db"))
	v.SetDefault("devserver.addr", ":8000")
	v.SetDefault("devserver.database_path", "calificaciones-dev.db")
	v.SetDefault("devserver.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("devserver.broker", "Default Broker")
	v.SetDefault("migrations.path", "")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("CALIFICACIONES_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(home, ".config", "calificaciones"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("CALIFICACIONES")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.BindEnv("api.base_url", "CALIFICACIONES_API_URL", "CALIFICACIONES_API_BASE_URL"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if strings.TrimSpace(c.API.BaseURL) == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	return c, nil
}
