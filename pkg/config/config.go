// Package config loads folio's config.toml from the .folio directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	// FileName is the config file inside the .folio directory.
	FileName = "config.toml"

	EnvBaseURL            = "FOLIO_API_BASE_URL"
	EnvTimeout            = "FOLIO_API_TIMEOUT"
	EnvEnvironment        = "FOLIO_ENV"
	EnvCredentialsBackend = "FOLIO_CREDENTIALS_BACKEND"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

const (
	defaultBaseURL     = "http://localhost:8080/api"
	defaultTimeout     = 30 * time.Second
	defaultMaxRetries  = 3
	defaultBackoffBase = time.Second
	defaultEnvironment = "development"
	defaultSQLitePath  = "credentials.db"
	defaultKafkaTopic  = "folio.session"
	defaultClientID    = "folio"
)

// Config is the parsed config.toml.
type Config struct {
	Environment string            `toml:"environment" validate:"oneof=development production test"`
	API         APIConfig         `toml:"api"`
	Credentials CredentialsConfig `toml:"credentials"`
	Events      EventsConfig      `toml:"events"`
}

type APIConfig struct {
	BaseURL     string        `toml:"base_url" validate:"required,http_url"`
	Timeout     time.Duration `toml:"timeout" validate:"gte=0"`
	MaxRetries  int           `toml:"max_retries" validate:"gte=-1,lte=10"`
	BackoffBase time.Duration `toml:"backoff_base" validate:"gte=0"`
}

type CredentialsConfig struct {
	Backend string `toml:"backend" validate:"oneof=file sqlite memory"`
	// SQLitePath is resolved against the .folio directory when relative.
	SQLitePath string `toml:"sqlite_path"`
}

type EventsConfig struct {
	KafkaBrokers []string `toml:"kafka_brokers" validate:"dive,hostname_port"`
	KafkaTopic   string   `toml:"kafka_topic" validate:"required_with=KafkaBrokers"`
	ClientID     string   `toml:"client_id"`
}

// Default returns the config used when no file exists.
func Default() *Config {
	return &Config{
		Environment: defaultEnvironment,
		API: APIConfig{
			BaseURL:     defaultBaseURL,
			Timeout:     defaultTimeout,
			MaxRetries:  defaultMaxRetries,
			BackoffBase: defaultBackoffBase,
		},
		Credentials: CredentialsConfig{
			Backend:    BackendFile,
			SQLitePath: defaultSQLitePath,
		},
		Events: EventsConfig{
			KafkaTopic: defaultKafkaTopic,
			ClientID:   defaultClientID,
		},
	}
}

// Load reads config.toml from dir, layers environment overrides on top and
// validates the result. A missing file, or an empty dir, yields the defaults.
func Load(dir string) (*Config, error) {
	cfg := Default()

	if dir != "" {
		path := filepath.Join(dir, FileName)
		if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.normalize(dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Save writes c to dir/config.toml.
func (c *Config) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode config: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBaseURL); ok && strings.TrimSpace(v) != "" {
		c.API.BaseURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvTimeout); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvTimeout, err)
		}
		c.API.Timeout = d
	}
	if v, ok := lookup(EnvEnvironment); ok && strings.TrimSpace(v) != "" {
		c.Environment = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvCredentialsBackend); ok && strings.TrimSpace(v) != "" {
		c.Credentials.Backend = strings.TrimSpace(v)
	}
	return nil
}

func (c *Config) normalize(dir string) {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	if c.Environment == "" {
		c.Environment = defaultEnvironment
	}
	c.Credentials.Backend = strings.ToLower(strings.TrimSpace(c.Credentials.Backend))
	if c.Credentials.Backend == "" {
		c.Credentials.Backend = BackendFile
	}
	if c.Credentials.SQLitePath == "" {
		c.Credentials.SQLitePath = defaultSQLitePath
	}
	if dir != "" && !filepath.IsAbs(c.Credentials.SQLitePath) {
		c.Credentials.SQLitePath = filepath.Join(dir, c.Credentials.SQLitePath)
	}
	if c.Events.KafkaTopic == "" {
		c.Events.KafkaTopic = defaultKafkaTopic
	}
	if c.Events.ClientID == "" {
		c.Events.ClientID = defaultClientID
	}
}
