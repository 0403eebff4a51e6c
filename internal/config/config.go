// Package config loads orderdesk settings from config.yaml and ORDERDESK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rpattn/orderdesk/internal/db"
	"github.com/rpattn/orderdesk/internal/dispatch"
	"github.com/rpattn/orderdesk/internal/notify"
	"github.com/rpattn/orderdesk/internal/orders"
	"github.com/rpattn/orderdesk/internal/routing"

	"github.com/spf13/viper"
)

// Source kinds.
const (
	SourceXLSX     = "xlsx"
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
)

// Mapping modes.
const (
	MappingNamed      = "named"
	MappingPositional = "positional"
)

// EnvPrefix prefixes every environment override, e.g. ORDERDESK_SOURCE_PATH.
const EnvPrefix = "ORDERDESK"

type Config struct {
	Server    ServerConfig            `mapstructure:"server"`
	Source    SourceConfig            `mapstructure:"source"`
	Database  db.Config               `mapstructure:"database"`
	SQLite    SQLiteConfig            `mapstructure:"sqlite"`
	SMTP      notify.SMTPConfig       `mapstructure:"smtp"`
	Chat      notify.WebhookConfig    `mapstructure:"chat"`
	Dispatch  dispatch.Config         `mapstructure:"dispatch"`
	Suppliers []routing.Rule          `mapstructure:"suppliers"`
	Templates []notify.TemplateConfig `mapstructure:"templates"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

type SourceConfig struct {
	Kind           string              `mapstructure:"kind"`
	Path           string              `mapstructure:"path"`
	Worksheet      string              `mapstructure:"worksheet"`
	Table          string              `mapstructure:"table"`
	Mapping        string              `mapstructure:"mapping"`
	Headers        map[string][]string `mapstructure:"headers"`
	LogColumn      string              `mapstructure:"log_column"`
	CacheTTL       time.Duration       `mapstructure:"cache_ttl"`
	SortDescending bool                `mapstructure:"sort_descending"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// DefaultConfig returns the settings used when neither file nor environment override them.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   60 * time.Second,
		},
		Source: SourceConfig{
			Kind:     SourceXLSX,
			Path:     "orders.xlsx",
			Mapping:  MappingNamed,
			CacheTTL: orders.DefaultCacheTTL,
		},
		Database: db.DefaultConfig(),
		SQLite:   SQLiteConfig{Path: "data/orderdesk.db"},
		SMTP:     notify.SMTPConfig{Port: 587, Timeout: 30 * time.Second},
		Chat:     notify.WebhookConfig{Timeout: 30 * time.Second},
		Dispatch: dispatch.Config{BulkThreshold: orders.DefaultBulkThreshold, TimeZone: "Asia/Jerusalem"},
	}
}

// Load reads config.yaml from configPath (a directory or a file path) and applies environment
// overrides. A missing config file is not an error.
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if ext := filepath.Ext(configPath); ext == ".yaml" || ext == ".yml" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if configPath == "" {
			configPath = "."
		}
		v.AddConfigPath(configPath)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)

	v.SetDefault("source.kind", d.Source.Kind)
	v.SetDefault("source.path", d.Source.Path)
	v.SetDefault("source.worksheet", d.Source.Worksheet)
	v.SetDefault("source.table", d.Source.Table)
	v.SetDefault("source.mapping", d.Source.Mapping)
	v.SetDefault("source.log_column", d.Source.LogColumn)
	v.SetDefault("source.cache_ttl", d.Source.CacheTTL)
	v.SetDefault("source.sort_descending", d.Source.SortDescending)

	v.SetDefault("database.host", d.Database.Host)
	v.SetDefault("database.port", d.Database.Port)
	v.SetDefault("database.user", d.Database.User)
	v.SetDefault("database.password", d.Database.Password)
	v.SetDefault("database.dbname", d.Database.DBName)
	v.SetDefault("database.sslmode", d.Database.SSLMode)
	v.SetDefault("database.max_conns", d.Database.MaxConns)

	v.SetDefault("sqlite.path", d.SQLite.Path)

	v.SetDefault("smtp.host", d.SMTP.Host)
	v.SetDefault("smtp.port", d.SMTP.Port)
	v.SetDefault("smtp.username", d.SMTP.Username)
	v.SetDefault("smtp.password", d.SMTP.Password)
	v.SetDefault("smtp.from", d.SMTP.From)
	v.SetDefault("smtp.timeout", d.SMTP.Timeout)

	v.SetDefault("chat.url", d.Chat.URL)
	v.SetDefault("chat.token", d.Chat.Token)
	v.SetDefault("chat.timeout", d.Chat.Timeout)

	v.SetDefault("dispatch.bulk_threshold", d.Dispatch.BulkThreshold)
	v.SetDefault("dispatch.time_zone", d.Dispatch.TimeZone)
	v.SetDefault("dispatch.courier_email", d.Dispatch.CourierEmail)
	v.SetDefault("dispatch.installer_email", d.Dispatch.InstallerEmail)
}

// Validate checks settings that would otherwise fail late.
func (c Config) Validate() error {
	switch c.Source.Kind {
	case SourceXLSX, SourceCSV:
		if strings.TrimSpace(c.Source.Path) == "" {
			return fmt.Errorf("source.path is required for %s sources", c.Source.Kind)
		}
	case SourcePostgres, SourceSQLite:
	default:
		return fmt.Errorf("unknown source.kind %q", c.Source.Kind)
	}
	switch c.Source.Mapping {
	case MappingNamed, MappingPositional:
	default:
		return fmt.Errorf("unknown source.mapping %q", c.Source.Mapping)
	}
	if c.Dispatch.BulkThreshold < 0 {
		return fmt.Errorf("dispatch.bulk_threshold must not be negative")
	}
	return nil
}

// OrderMapping builds the column mapping of the configured source.
func (c Config) OrderMapping() orders.Mapping {
	if c.Source.Mapping == MappingPositional {
		return orders.LegacyPositional()
	}
	overrides := make(map[orders.Field][]string, len(c.Source.Headers))
	for field, aliases := range c.Source.Headers {
		overrides[orders.Field(strings.ToLower(field))] = aliases
	}
	return orders.NamedMapping(overrides)
}
