package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	envConfigPath     = "ARWEAVE_CHECKER_CONFIG"
	envCollectorURL   = "ARWEAVE_CHECKER_COLLECTOR_URL"
	envDirectoryURL   = "ARWEAVE_CHECKER_DIRECTORY_URL"
	envLogLevel       = "ARWEAVE_CHECKER_LOG_LEVEL"
	envMonitoringAddr = "ARWEAVE_CHECKER_MONITORING_ADDR"
)

// DefaultTxIDs are known-valid transactions used for retrieval probes.
var DefaultTxIDs = []string{
	"sHqUBKFeS42-CMCvNqPR31yEP63qSJG3ImshfwzJJF8",
	"vexijI_Ij0GfvWW1wvewlz255_v1Ni7dk9LuQdbi6yw",
	"797MuCtgdgiDrglJWczz2lMZkFkXInC88Htqv-JuOUQ",
	"XO6w3W8dYZnioq-phAbq8SG1Px5kci_j3RmcChS05VY",
	"s2aJ5tzVEcSxITsq2G5cZnAhBDplCSkARJEOuNMZ31o",
}

type Config struct {
	Directory  DirectoryConfig  `yaml:"directory"`
	Collector  CollectorConfig  `yaml:"collector"`
	Probe      ProbeConfig      `yaml:"probe"`
	Run        RunConfig        `yaml:"run"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Log        LogConfig        `yaml:"log"`
}

type DirectoryConfig struct {
	URL             string        `yaml:"url" validate:"required,url"`
	Origin          string        `yaml:"origin" validate:"omitempty,url"`
	Network         string        `yaml:"network" validate:"required"`
	RefreshInterval time.Duration `yaml:"refresh_interval" validate:"gt=0"`
	RequestTimeout  time.Duration `yaml:"request_timeout" validate:"gt=0"`
	PagesPerSecond  float64       `yaml:"pages_per_second" validate:"gt=0"`
	MaxPages        int           `yaml:"max_pages" validate:"gt=0"`
}

type CollectorConfig struct {
	URL            string        `yaml:"url" validate:"required,url"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`
}

type ProbeConfig struct {
	PingTimeout     time.Duration `yaml:"ping_timeout" validate:"gt=0"`
	RetrieveTimeout time.Duration `yaml:"retrieve_timeout" validate:"gt=0"`
	TxIDs           []string      `yaml:"tx_ids" validate:"min=1,dive,len=43"`
}

type RunConfig struct {
	MeasurementInterval time.Duration `yaml:"measurement_interval" validate:"gt=0"`
}

type MonitoringConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" validate:"omitempty,hostname_port"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Directory: DirectoryConfig{
			URL:             "https://api.viewblock.io/arweave/nodes",
			Origin:          "https://viewblock.io",
			Network:         "mainnet",
			RefreshInterval: 10 * time.Minute,
			RequestTimeout:  30 * time.Second,
			PagesPerSecond:  5,
			MaxPages:        100,
		},
		Collector: CollectorConfig{
			URL:            "https://arweave.checker.network/measurements",
			RequestTimeout: 30 * time.Second,
		},
		Probe: ProbeConfig{
			PingTimeout:     10 * time.Second,
			RetrieveTimeout: 10 * time.Second,
			TxIDs:           append([]string(nil), DefaultTxIDs...),
		},
		Run: RunConfig{
			MeasurementInterval: time.Minute,
		},
		Monitoring: MonitoringConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9320",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the YAML file at path on top of the defaults. Keys absent from
// the file keep their default values.
func Load(ctx context.Context, path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}

	return cfg, nil
}

// Resolve builds the effective configuration: a .env file in the working
// directory is loaded if present, then the file named by path (or by
// ARWEAVE_CHECKER_CONFIG) is read, environment overrides are applied and the
// result is validated. An empty path with no environment variable means
// defaults only.
func Resolve(ctx context.Context, path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv(envConfigPath)
	}

	cfg := Default()
	if path != "" {
		loaded, err := Load(ctx, path)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}

	applyEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(envCollectorURL); v != "" {
		cfg.Collector.URL = v
	}
	if v := os.Getenv(envDirectoryURL); v != "" {
		cfg.Directory.URL = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(envMonitoringAddr); v != "" {
		cfg.Monitoring.Addr = v
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports the first offending fields.
func Validate(cfg Config) error {
	if cfg.Monitoring.Enabled && cfg.Monitoring.Addr == "" {
		return fmt.Errorf("invalid config: monitoring.addr is required when monitoring is enabled")
	}
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("invalid config: %s", describe(verrs))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func describe(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
