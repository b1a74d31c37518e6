// Package config loads service configuration. Values are layered: built-in
// defaults, then an optional YAML file, then GIFTX_* environment variables,
// then command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "GIFTX_"

// minSecretLength is the shortest accepted session secret in bytes.
const minSecretLength = 32

// Archive drivers.
const (
	ArchiveNone     = "none"
	ArchivePostgres = "postgres"
	ArchiveSQLite   = "sqlite"
)

// Config is the full service configuration.
type Config struct {
	HTTP      HTTP      `yaml:"http" envPrefix:"HTTP_"`
	Log       Log       `yaml:"log" envPrefix:"LOG_"`
	Session   Session   `yaml:"session" envPrefix:"SESSION_"`
	Draw      Draw      `yaml:"draw" envPrefix:"DRAW_"`
	Archive   Archive   `yaml:"archive" envPrefix:"ARCHIVE_"`
	Database  Database  `yaml:"database" envPrefix:"DB_"`
	Telemetry Telemetry `yaml:"telemetry" envPrefix:"OTEL_"`
}

// HTTP holds listener settings.
type HTTP struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	PublicURL       string        `yaml:"public_url" env:"PUBLIC_URL"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	AllowedOrigin   string        `yaml:"allowed_origin" env:"ALLOWED_ORIGIN"`
}

// Log selects the slog handler.
type Log struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Session configures participant cookies. An empty secret makes the server
// generate one at startup, which invalidates cookies on restart.
type Session struct {
	Secret string        `yaml:"secret" env:"SECRET"`
	TTL    time.Duration `yaml:"ttl" env:"TTL"`
	Secure bool          `yaml:"secure" env:"SECURE"`
}

// Draw tunes the derangement engine.
type Draw struct {
	MaxAttempts int `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
}

// Archive selects where closed-event summaries are written.
type Archive struct {
	Driver     string `yaml:"driver" env:"DRIVER"`
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH"`
}

// Database holds PostgreSQL settings for the postgres archive.
type Database struct {
	Host            string        `yaml:"host" env:"HOST"`
	Port            string        `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"sslmode" env:"SSLMODE"`
	MaxConns        int32         `yaml:"max_conns" env:"MAX_CONNS"`
	MinConns        int32         `yaml:"min_conns" env:"MIN_CONNS"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"MAX_CONN_LIFETIME"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"MAX_CONN_IDLE_TIME"`
	ConnectAttempts int           `yaml:"connect_attempts" env:"CONNECT_ATTEMPTS"`
	ConnectBackoff  time.Duration `yaml:"connect_backoff" env:"CONNECT_BACKOFF"`
}

// Telemetry configures OpenTelemetry export. Tracing stays off while
// Endpoint is empty.
type Telemetry struct {
	Endpoint    string `yaml:"endpoint" env:"ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP: HTTP{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigin:   "*",
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
		Session: Session{
			TTL: 30 * 24 * time.Hour,
		},
		Draw: Draw{
			MaxAttempts: 1000,
		},
		Archive: Archive{
			Driver:     ArchiveNone,
			SQLitePath: "giftx-archive.db",
		},
		Database: Database{
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Password:        "postgres",
			Name:            "giftexchange",
			SSLMode:         "disable",
			MaxConns:        20,
			MinConns:        2,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			ConnectAttempts: 5,
			ConnectBackoff:  2 * time.Second,
		},
		Telemetry: Telemetry{
			ServiceName: "gift-exchange",
		},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// --config, the environment and the remaining flags in args.
func Load(args []string) (Config, error) {
	fs := pflag.NewFlagSet("giftx", pflag.ContinueOnError)
	path := fs.StringP("config", "c", "", "path to a YAML config file")
	addr := fs.String("addr", "", "HTTP listen address")
	level := fs.String("log-level", "", "log level (debug, info, warn, error)")
	archive := fs.String("archive", "", "archive driver (none, postgres, sqlite)")
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}

	cfg := Default()
	if *path != "" {
		if err := cfg.mergeFile(*path); err != nil {
			return Config{}, err
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}
	if *level != "" {
		cfg.Log.Level = *level
	}
	if *archive != "" {
		cfg.Archive.Driver = *archive
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return errors.New("http.addr is required")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	if c.Session.Secret != "" && len(c.Session.Secret) < minSecretLength {
		return fmt.Errorf("session.secret must be at least %d bytes", minSecretLength)
	}
	if c.Draw.MaxAttempts < 1 {
		return errors.New("draw.max_attempts must be positive")
	}
	switch c.Archive.Driver {
	case ArchiveNone, ArchivePostgres:
	case ArchiveSQLite:
		if c.Archive.SQLitePath == "" {
			return errors.New("archive.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown archive driver %q", c.Archive.Driver)
	}
	return nil
}

// SlogLevel parses the configured level.
func (l Log) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// DSN builds a libpq-compatible connection string.
func (d Database) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}
