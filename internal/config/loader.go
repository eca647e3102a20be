package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/sporelab/reportql/internal/db"
)

// EngineConfig tunes query execution and result caching.
type EngineConfig struct {
	QueryTimeout    time.Duration
	CacheTTL        time.Duration
	JanitorSchedule string
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port           int
	AllowedOrigins []string
	ExportSecret   string
}

// Config is the full server configuration.
type Config struct {
	Database db.Config
	Engine   EngineConfig
	Server   ServerConfig
}

// DefaultConfig returns the configuration used when no config file or
// environment overrides are present.
func DefaultConfig() Config {
	return Config{
		Database: db.DefaultConfig(),
		Engine: EngineConfig{
			QueryTimeout:    10 * time.Second,
			CacheTTL:        time.Hour,
			JanitorSchedule: "@every 5m",
		},
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:3000"},
			ExportSecret:   "dev-export-secret",
		},
	}
}

// Load reads config.yaml from configPath, falling back to defaults plus
// environment overrides (REPORTQL_DATABASE_HOST and so on).
func Load(configPath string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("REPORTQL")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.port")
	v.BindEnv("server.export_secret")

	if err := v.ReadInConfig(); err != nil {
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}

	if v.IsSet("engine.query_timeout") {
		cfg.Engine.QueryTimeout = v.GetDuration("engine.query_timeout")
	}
	if v.IsSet("engine.cache_ttl") {
		cfg.Engine.CacheTTL = v.GetDuration("engine.cache_ttl")
	}
	if v.IsSet("engine.janitor_schedule") {
		cfg.Engine.JanitorSchedule = v.GetString("engine.janitor_schedule")
	}

	if v.IsSet("server.port") {
		cfg.Server.Port = v.GetInt("server.port")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("server.export_secret") {
		cfg.Server.ExportSecret = v.GetString("server.export_secret")
	}

	return cfg, nil
}
