// Package config holds settings shared by the mbedtools commands. Values come
// from an optional YAML file, then the environment; command-line flags are
// applied on top by the cmd package.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ARMmbed/mbedtools/internal/boards"
)

const (
	EnvAPIToken     = "MBED_API_AUTH_TOKEN"
	EnvDatabaseMode = "MBED_DATABASE_MODE"
	EnvAPIURL       = "MBED_API_URL"
	EnvSnapshotPath = "MBED_BOARD_SNAPSHOT"
	EnvBaudrate     = "MBED_BAUDRATE"
)

type Config struct {
	DatabaseMode boards.Mode   `yaml:"database_mode"`
	APIToken     string        `yaml:"api_token"`
	APIURL       string        `yaml:"api_url"`
	SnapshotPath string        `yaml:"board_snapshot"`
	Baudrate     int           `yaml:"baudrate"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	ResetSettle  time.Duration `yaml:"reset_settle"`
	SyncRetries  int           `yaml:"sync_retries"`
	LogLevel     string        `yaml:"log_level"`
}

func Default() Config {
	return Config{
		DatabaseMode: boards.ModeAuto,
		APIURL:       boards.DefaultAPIURL,
		Baudrate:     9600,
		ReadTimeout:  time.Second,
		ResetSettle:  2 * time.Second,
		SyncRetries:  5,
	}
}

// Load returns Default overlaid with the YAML file at path (when non-empty)
// and then with the process environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from environment variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAPIToken); ok {
		c.APIToken = v
	}

	if v, ok := lookup(EnvDatabaseMode); ok {
		c.DatabaseMode = boards.Mode(v)
	}

	if v, ok := lookup(EnvAPIURL); ok && v != "" {
		c.APIURL = v
	}

	if v, ok := lookup(EnvSnapshotPath); ok {
		c.SnapshotPath = v
	}

	if v, ok := lookup(EnvBaudrate); ok && v != "" {
		baud, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvBaudrate, v, err)
		}
		c.Baudrate = baud
	}

	return nil
}

// Validate normalises the database mode and checks numeric settings.
func (c *Config) Validate() error {
	mode, err := boards.ParseMode(string(c.DatabaseMode))
	if err != nil {
		return fmt.Errorf("%s: %w", EnvDatabaseMode, err)
	}
	c.DatabaseMode = mode

	if c.Baudrate <= 0 {
		return fmt.Errorf("baudrate must be positive, got %d", c.Baudrate)
	}

	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be positive, got %s", c.ReadTimeout)
	}

	if c.ResetSettle < 0 {
		return fmt.Errorf("reset_settle must not be negative, got %s", c.ResetSettle)
	}

	return nil
}
