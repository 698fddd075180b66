// Package config loads socgraph configuration from a YAML file and
// SOCGRAPH_-prefixed environment variables.
//
// Precedence is defaults < file < environment. Environment variables win
// so deployments can override a checked-in config without editing it.
//
// Example:
//
//	cfg, err := config.Load("./socgraph.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
// Environment Variables:
//   - SOCGRAPH_HTTP_ADDRESS=":8080"
//   - SOCGRAPH_SNAPSHOT_PATH="./graph.json"
//   - SOCGRAPH_DATA_DIR="./data"
//   - SOCGRAPH_AUTH_ENABLED=true
//   - SOCGRAPH_AUTH_USERNAME=admin
//   - SOCGRAPH_AUTH_PASSWORD_HASH='$2a$...'
//   - SOCGRAPH_AUTO_CONNECT=true
//   - SOCGRAPH_AUTO_TOP_K=5
//   - SOCGRAPH_CONNECTION_WRITES_ENABLED=false
//   - SOCGRAPH_LOG_LEVEL=debug
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nickadesina/soc-cli/pkg/inference"
)

// Config holds all socgraph settings.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Inference InferenceConfig `yaml:"inference"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Address to bind, host:port.
	Address string `yaml:"address"`
	// ReadTimeout / WriteTimeout guard slow clients.
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// ConnectionWritesEnabled exposes the manual connection endpoints.
	// When false those endpoints answer 410 Gone, steering clients to
	// the inference-driven person upsert instead.
	ConnectionWritesEnabled bool `yaml:"connection_writes_enabled"`
	// MetricsEnabled exposes Prometheus metrics on /metrics.
	MetricsEnabled bool `yaml:"metrics_enabled"`
}

// StorageConfig selects where the graph persists.
type StorageConfig struct {
	// SnapshotPath is a JSON snapshot file. Empty disables it.
	SnapshotPath string `yaml:"snapshot_path"`
	// NodesCSV / EdgesCSV select the tabular pair format instead.
	NodesCSV string `yaml:"nodes_csv"`
	EdgesCSV string `yaml:"edges_csv"`
	// DataDir enables the badger store. Empty disables it.
	DataDir string `yaml:"data_dir"`
}

// AuthConfig holds HTTP basic-auth settings.
type AuthConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	// PasswordHash is a bcrypt hash, never a plaintext password.
	PasswordHash string `yaml:"password_hash"`
}

// InferenceConfig tunes automatic edge creation.
type InferenceConfig struct {
	// AutoConnect runs relationship inference on every person upsert.
	AutoConnect bool `yaml:"auto_connect"`
	// AutoTopK caps inferred edges per person; inference.TopKAll (-1)
	// keeps all relevant candidates.
	AutoTopK int `yaml:"auto_top_k"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:                 ":8080",
			ReadTimeout:             15 * time.Second,
			WriteTimeout:            15 * time.Second,
			ConnectionWritesEnabled: true,
			MetricsEnabled:          true,
		},
		Storage: StorageConfig{
			SnapshotPath: "./socgraph.json",
		},
		Inference: InferenceConfig{
			AutoConnect: true,
			AutoTopK:    inference.TopKAll,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds a Config from defaults, an optional YAML file, and
// environment overrides, in that order. An empty path skips the file
// layer; a named file that cannot be read is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Address = getEnv("SOCGRAPH_HTTP_ADDRESS", c.Server.Address)
	c.Server.ReadTimeout = getEnvDuration("SOCGRAPH_HTTP_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("SOCGRAPH_HTTP_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ConnectionWritesEnabled = getEnvBool("SOCGRAPH_CONNECTION_WRITES_ENABLED", c.Server.ConnectionWritesEnabled)
	c.Server.MetricsEnabled = getEnvBool("SOCGRAPH_METRICS_ENABLED", c.Server.MetricsEnabled)

	c.Storage.SnapshotPath = getEnv("SOCGRAPH_SNAPSHOT_PATH", c.Storage.SnapshotPath)
	c.Storage.NodesCSV = getEnv("SOCGRAPH_NODES_CSV", c.Storage.NodesCSV)
	c.Storage.EdgesCSV = getEnv("SOCGRAPH_EDGES_CSV", c.Storage.EdgesCSV)
	c.Storage.DataDir = getEnv("SOCGRAPH_DATA_DIR", c.Storage.DataDir)

	c.Auth.Enabled = getEnvBool("SOCGRAPH_AUTH_ENABLED", c.Auth.Enabled)
	c.Auth.Username = getEnv("SOCGRAPH_AUTH_USERNAME", c.Auth.Username)
	c.Auth.PasswordHash = getEnv("SOCGRAPH_AUTH_PASSWORD_HASH", c.Auth.PasswordHash)

	c.Inference.AutoConnect = getEnvBool("SOCGRAPH_AUTO_CONNECT", c.Inference.AutoConnect)
	c.Inference.AutoTopK = getEnvInt("SOCGRAPH_AUTO_TOP_K", c.Inference.AutoTopK)

	c.Logging.Level = getEnv("SOCGRAPH_LOG_LEVEL", c.Logging.Level)
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Address == "" {
		errs = append(errs, errors.New("server.address must not be empty"))
	}
	if c.Storage.SnapshotPath != "" && (c.Storage.NodesCSV != "" || c.Storage.EdgesCSV != "") {
		errs = append(errs, errors.New("storage: snapshot_path and nodes_csv/edges_csv are mutually exclusive"))
	}
	if c.Storage.DataDir != "" && (c.Storage.SnapshotPath != "" || c.Storage.NodesCSV != "" || c.Storage.EdgesCSV != "") {
		errs = append(errs, errors.New("storage: data_dir and snapshot_path/nodes_csv/edges_csv are mutually exclusive"))
	}
	if (c.Storage.NodesCSV == "") != (c.Storage.EdgesCSV == "") {
		errs = append(errs, errors.New("storage: nodes_csv and edges_csv must be set together"))
	}
	if c.Auth.Enabled {
		if c.Auth.Username == "" {
			errs = append(errs, errors.New("auth.username required when auth is enabled"))
		}
		if c.Auth.PasswordHash == "" {
			errs = append(errs, errors.New("auth.password_hash required when auth is enabled"))
		}
	}
	if c.Inference.AutoTopK < 0 && c.Inference.AutoTopK != inference.TopKAll {
		errs = append(errs, fmt.Errorf("inference.auto_top_k must be >= 0 or %d", inference.TopKAll))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug|info|warn|error", c.Logging.Level))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
