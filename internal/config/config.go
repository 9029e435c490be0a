// Package config loads server settings from defaults, an optional YAML
// file and TRUSTPLAY_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "TRUSTPLAY"

// PathEnv names the YAML file when no --config flag is given.
const PathEnv = "TRUSTPLAY_CONFIG"

const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Store       string `yaml:"store" envconfig:"STORE"`               // postgres | sqlite
	DatabaseURL string `yaml:"database_url" envconfig:"DATABASE_URL"` // required for postgres
	DataDir     string `yaml:"data_dir" envconfig:"DATA_DIR"`         // sqlite directory; empty = in-memory

	GRPCAddr    string `yaml:"grpc_addr" envconfig:"GRPC_ADDR"`
	HTTPAddr    string `yaml:"http_addr" envconfig:"HTTP_ADDR"`
	MetricsAddr string `yaml:"metrics_addr" envconfig:"METRICS_ADDR"` // empty = no metrics listener

	NATSURL   string `yaml:"nats_url" envconfig:"NATS_URL"`     // empty = no event publishing
	AuthToken string `yaml:"auth_token" envconfig:"AUTH_TOKEN"` // empty = auth disabled

	Log     LogConfig     `yaml:"log" envconfig:"LOG"`
	Tracing TracingConfig `yaml:"tracing" envconfig:"TRACING"`
	Policy  PolicyConfig  `yaml:"policy" envconfig:"POLICY"`
	Sync    SyncConfig    `yaml:"sync" envconfig:"SYNC"`
}

type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`   // debug | info | warn | error
	Format string `yaml:"format" envconfig:"FORMAT"` // text | json
}

type TracingConfig struct {
	Exporter     string `yaml:"exporter" envconfig:"EXPORTER"` // none | stdout | otlp
	OTLPEndpoint string `yaml:"otlp_endpoint" envconfig:"OTLP_ENDPOINT"`
}

// PolicyConfig toggles the optional engine gates.
type PolicyConfig struct {
	GateRoomStatus  bool `yaml:"gate_room_status" envconfig:"GATE_ROOM_STATUS"`
	EnforceDeadline bool `yaml:"enforce_deadline" envconfig:"ENFORCE_DEADLINE"`
}

// SyncConfig controls periodic ledger snapshots. A zero Interval disables
// the scheduler.
type SyncConfig struct {
	Interval   time.Duration `yaml:"interval" envconfig:"INTERVAL"`
	S3Bucket   string        `yaml:"s3_bucket" envconfig:"S3_BUCKET"` // enables S3 when set
	S3Prefix   string        `yaml:"s3_prefix" envconfig:"S3_PREFIX"`
	S3Endpoint string        `yaml:"s3_endpoint" envconfig:"S3_ENDPOINT"` // custom endpoint for MinIO
	S3Region   string        `yaml:"s3_region" envconfig:"S3_REGION"`
	GitRepo    string        `yaml:"git_repo" envconfig:"GIT_REPO"` // enables git when set
	GitFile    string        `yaml:"git_file" envconfig:"GIT_FILE"`
	GitBranch  string        `yaml:"git_branch" envconfig:"GIT_BRANCH"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Store:    StoreSQLite,
		DataDir:  "trustplay-data",
		GRPCAddr: ":9090",
		HTTPAddr: ":8080",
		Log:      LogConfig{Level: "info", Format: "text"},
		Tracing:  TracingConfig{Exporter: "none"},
		Sync: SyncConfig{
			Interval:  3 * time.Minute,
			S3Prefix:  "trustplay/",
			S3Region:  "us-east-1",
			GitFile:   "trustplay.jsonl",
			GitBranch: "main",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (or at
// $TRUSTPLAY_CONFIG when path is empty) and the environment, then
// validates it. A missing file is an error only when a path was given.
func Load(path string) (*Config, error) {
	c := Default()

	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("TRUSTPLAY_DATABASE_URL is required for the postgres store"))
		}
	case StoreSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown store %q (want postgres or sqlite)", c.Store))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	switch c.Tracing.Exporter {
	case "none", "stdout":
	case "otlp":
		if c.Tracing.OTLPEndpoint == "" {
			errs = append(errs, errors.New("tracing exporter otlp needs an endpoint"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown tracing exporter %q", c.Tracing.Exporter))
	}
	if c.Sync.Interval < 0 {
		errs = append(errs, errors.New("sync interval must not be negative"))
	}
	return errors.Join(errs...)
}

// SlogLevel parses Log.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(c.Log.Level))); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return lvl, nil
}

// SyncEnabled reports whether any snapshot destination is configured.
func (c *Config) SyncEnabled() bool {
	return c.Sync.Interval > 0 && (c.Sync.S3Bucket != "" || c.Sync.GitRepo != "")
}
