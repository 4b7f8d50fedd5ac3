package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported values for DATABASE_DRIVER.
const (
	DriverMongoDB  = "mongodb"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds process configuration read from the environment.
type Config struct {
	Port           string
	DatabaseDriver string
	DatabaseURL    string
	DatabaseName   string
	RabbitMQURL    string
	LogLevel       string
	LogFormat      string
	ViewsDir       string
	PublicDir      string
}

// Addr returns the listen address, e.g. ":3000".
func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// Load reads an optional .env file, then the environment. Variables that are
// already set take precedence over the file.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromViper(viper.New())
}

// FromViper applies defaults and environment bindings to v and builds a Config.
func FromViper(v *viper.Viper) (Config, error) {
	v.SetDefault("PORT", "3000")
	v.SetDefault("DATABASE_DRIVER", DriverMongoDB)
	v.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	v.SetDefault("DATABASE_NAME", "exercisetracker")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("VIEWS_DIR", "views")
	v.SetDefault("PUBLIC_DIR", "public")
	v.AutomaticEnv()
	// BindEnv only errors without a key.
	_ = v.BindEnv("DATABASE_URL", "DATABASE_URL", "MONGO_URI")

	cfg := Config{
		Port:           v.GetString("PORT"),
		DatabaseDriver: strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		DatabaseName:   v.GetString("DATABASE_NAME"),
		RabbitMQURL:    v.GetString("RABBITMQ_URL"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		LogFormat:      strings.ToLower(v.GetString("LOG_FORMAT")),
		ViewsDir:       v.GetString("VIEWS_DIR"),
		PublicDir:      v.GetString("PUBLIC_DIR"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverMongoDB, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if strings.TrimPrefix(c.Port, ":") == "" {
		return fmt.Errorf("PORT is required")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}
