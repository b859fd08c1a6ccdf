// Package config loads the sentinel YAML configuration.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/sentinel/internal/alert"
	"github.com/ppiankov/sentinel/internal/store"
)

// Config is the top-level sentinel configuration.
type Config struct {
	Constraints string         `yaml:"constraints"`
	AuditLog    string         `yaml:"audit_log"`
	Store       StoreConfig    `yaml:"store"`
	Server      ServerConfig   `yaml:"server"`
	Alerts      []alert.Config `yaml:"alerts"`
	Advisor     AdvisorConfig  `yaml:"advisor"`
}

// StoreConfig selects the assessment store. An empty Path means the
// driver's default location.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// ResolvedPath returns Path or the driver default.
func (s StoreConfig) ResolvedPath() string {
	if s.Path != "" {
		return s.Path
	}
	return store.DefaultPath(s.Driver)
}

// ServerConfig holds listener addresses for `sentinel serve`.
type ServerConfig struct {
	GRPCPort int    `yaml:"grpc_port"`
	HTTPAddr string `yaml:"http_addr"`
}

// AdvisorConfig configures the optional Bedrock reviewer. Empty credentials
// fall back to the default AWS credential chain.
type AdvisorConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Region          string `yaml:"region"`
	ModelID         string `yaml:"model_id"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// DefaultGRPCPort is the default gRPC listen port.
const DefaultGRPCPort = 50051

// Dir returns ~/.sentinel.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "sentinel")
	}
	return filepath.Join(home, ".sentinel")
}

// DefaultPath returns ~/.sentinel/config.yaml.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	dir := Dir()
	return &Config{
		Constraints: filepath.Join(dir, "constraints.yaml"),
		AuditLog:    filepath.Join(dir, "audit.jsonl"),
		Store: StoreConfig{
			Driver: store.DriverFile,
		},
		Server: ServerConfig{
			GRPCPort: DefaultGRPCPort,
			HTTPAddr: ":8080",
		},
		Advisor: AdvisorConfig{
			Region:  "us-east-1",
			ModelID: "anthropic.claude-3-haiku-20240307-v1:0",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg, _, err := LoadWithHash(path)
	return cfg, err
}

// LoadWithHash is Load that also returns "sha256:<hex>" of the file bytes.
// A missing file hashes as empty input.
func LoadWithHash(path string) (*Config, string, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), hashBytes(nil), nil
		}
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.expandPaths()
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, hashBytes(data), nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case store.DriverFile, store.DriverSQLite:
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("config: grpc_port %d out of range", c.Server.GRPCPort)
	}
	for i, a := range c.Alerts {
		if a.URL == "" {
			return fmt.Errorf("config: alerts[%d]: url is required", i)
		}
		switch a.Format {
		case "", alert.FormatGeneric, alert.FormatSlack, alert.FormatPagerDuty, alert.FormatNATS:
		default:
			return fmt.Errorf("config: alerts[%d]: unknown format %q", i, a.Format)
		}
		if len(a.Events) == 0 {
			return fmt.Errorf("config: alerts[%d]: at least one event is required", i)
		}
	}
	if c.Advisor.Enabled && c.Advisor.ModelID == "" {
		return errors.New("config: advisor.model_id is required when the advisor is enabled")
	}
	return nil
}

func (c *Config) expandPaths() {
	c.Constraints = expandHome(c.Constraints)
	c.AuditLog = expandHome(c.AuditLog)
	c.Store.Path = expandHome(c.Store.Path)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(h[:])
}

// DefaultYAML returns a commented configuration file matching Default.
func DefaultYAML() string {
	return `# sentinel configuration
# Generated by: sentinel init

# Constraint set. A missing file means the built-in constraints.
constraints: ~/.sentinel/constraints.yaml

# Hash-chained audit log.
audit_log: ~/.sentinel/audit.jsonl

# Assessment store: driver "file" (one JSON per assessment) or "sqlite".
store:
  driver: file
  # path: ~/.sentinel/assessments   (sqlite default: ~/.sentinel/assessments.db)

server:
  grpc_port: 50051
  http_addr: ":8080"

# Alert destinations. Events: shutdown, critical_flag, risk_critical.
# Formats: generic, slack, pagerduty, nats.
alerts: []
#  - url: https://hooks.slack.com/services/XXX
#    format: slack
#    events: [shutdown, critical_flag]
#  - url: nats://127.0.0.1:4222
#    format: nats
#    subject: sentinel.alerts
#    events: [risk_critical]

# Optional advisory review of generated options through Amazon Bedrock.
advisor:
  enabled: false
  region: us-east-1
  model_id: anthropic.claude-3-haiku-20240307-v1:0
`
}
