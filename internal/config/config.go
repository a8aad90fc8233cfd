package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"controller-dashboard/internal/api"
	"controller-dashboard/pkg/backoff"
	"controller-dashboard/pkg/log"
)

const (
	// DefaultControllerAddress is the gRPC address of the controller.
	DefaultControllerAddress = "controller.discoverd:443"
	// DefaultDashboardURL is the base URL of the dashboard login endpoints.
	DefaultDashboardURL = "https://dashboard.discoverd"
	// DefaultPageSize is the page size of list streams.
	DefaultPageSize = 50
	// DefaultLogLevel is the minimum log level.
	DefaultLogLevel = "info"
	// DefaultLogFormat is the log output format.
	DefaultLogFormat = "json"
)

// RetryConfig configures the reconnect policy of streams.
type RetryConfig struct {
	BaseDelay  time.Duration `yaml:"base_delay,omitempty"`
	Increment  time.Duration `yaml:"increment,omitempty"`
	MaxRetries int           `yaml:"max_retries,omitempty"`
}

// Policy returns the backoff policy described by r.
func (r RetryConfig) Policy() backoff.Policy {
	return backoff.Policy{Base: r.BaseDelay, Increment: r.Increment, MaxRetries: r.MaxRetries}
}

// Config holds the dashboard client configuration
type Config struct {
	// ControllerAddress is the host:port of the controller gRPC endpoint.
	ControllerAddress string `yaml:"controller_address,omitempty"`
	// DashboardURL is the base URL used for login and logout.
	DashboardURL string `yaml:"dashboard_url,omitempty"`
	// AuthKey is the controller key. It is usually read from TokenFile or
	// obtained with a login token instead.
	AuthKey string `yaml:"auth_key,omitempty"`
	// TokenFile holds the controller key and is watched for changes.
	TokenFile string `yaml:"token_file,omitempty"`
	// LoginToken is exchanged for a controller key on start.
	LoginToken string `yaml:"login_token,omitempty"`

	CACert   string `yaml:"ca_cert,omitempty"`
	CertFile string `yaml:"cert_file,omitempty"`
	KeyFile  string `yaml:"key_file,omitempty"`
	Insecure bool   `yaml:"insecure,omitempty"`
	// Codec is the gRPC wire codec, cbor or json.
	Codec string `yaml:"codec,omitempty"`

	// MinControllerVersion makes status warn about older controllers.
	MinControllerVersion string `yaml:"min_controller_version,omitempty"`

	PageSize int32       `yaml:"page_size,omitempty"`
	Retry    RetryConfig `yaml:"retry,omitempty"`

	LogLevel  string `yaml:"log_level,omitempty"`
	LogFormat string `yaml:"log_format,omitempty"`
	// MetricsAddress enables the Prometheus endpoint when set.
	MetricsAddress string `yaml:"metrics_address,omitempty"`

	Features map[string]bool `yaml:"features,omitempty"`
}

// NewConfig returns a configuration with every default applied.
func NewConfig() *Config {
	cfg := &Config{}
	prepareConfig(cfg)
	return cfg
}

// prepareConfig applies defaults and merges features
func prepareConfig(cfg *Config) {
	if cfg.ControllerAddress == "" {
		cfg.ControllerAddress = DefaultControllerAddress
	}
	if cfg.DashboardURL == "" {
		cfg.DashboardURL = DefaultDashboardURL
	}
	cfg.DashboardURL = strings.TrimRight(cfg.DashboardURL, "/")
	if !api.ValidCodec(cfg.Codec) {
		if cfg.Codec != "" {
			log.Warn("Unknown codec, using default", "codec", cfg.Codec, "default", api.CodecCBOR)
		}
		cfg.Codec = api.CodecCBOR
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}

	defaults := backoff.DefaultPolicy()
	if cfg.Retry.BaseDelay <= 0 {
		cfg.Retry.BaseDelay = defaults.Base
	}
	if cfg.Retry.Increment <= 0 {
		cfg.Retry.Increment = defaults.Increment
	}
	if cfg.Retry.MaxRetries <= 0 {
		cfg.Retry.MaxRetries = defaults.MaxRetries
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = DefaultLogFormat
	}

	cfg.Features = validateAndMergeFeatures(cfg.Features)
}

// validateAndMergeFeatures drops unknown features and fills in defaults
func validateAndMergeFeatures(configFeatures map[string]bool) map[string]bool {
	merged := make(map[string]bool, len(DefaultFeatureValues))
	for feature, defaultValue := range DefaultFeatureValues {
		if value, exists := configFeatures[feature]; exists {
			merged[feature] = value
		} else {
			merged[feature] = defaultValue
		}
	}
	for feature := range configFeatures {
		if _, known := DefaultFeatureValues[feature]; !known {
			log.Warn("Ignoring unknown feature", "feature", feature)
		}
	}
	return merged
}

// LoadConfig loads the configuration from a YAML file. A missing file yields
// the defaults.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	prepareConfig(cfg)
	if err := cfg.LoadToken(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadToken reads the controller key from TokenFile when one is configured.
func (c *Config) LoadToken() error {
	if c.TokenFile == "" {
		return nil
	}
	token, err := ReadToken(c.TokenFile)
	if err != nil {
		return err
	}
	c.AuthKey = token
	return nil
}

// ReadToken returns the trimmed contents of a token file.
func ReadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SaveConfig writes the configuration as YAML. Features equal to their
// default are omitted.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return log.Errorf("failed to create config directory: %v", err)
	}

	prepareConfig(cfg)

	toSave := *cfg
	filtered := make(map[string]bool)
	for feature, value := range cfg.Features {
		if defaultValue, exists := DefaultFeatureValues[feature]; !exists || value != defaultValue {
			filtered[feature] = value
		}
	}
	toSave.Features = filtered
	// Keys loaded from a token file stay in the token file.
	if toSave.TokenFile != "" {
		toSave.AuthKey = ""
	}

	data, err := yaml.Marshal(&toSave)
	if err != nil {
		return log.Errorf("failed to marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return log.Errorf("failed to write config file: %v", err)
	}
	return nil
}

// ClientOptions returns the controller client options for c.
func (c *Config) ClientOptions(tokens *api.TokenSource) api.Options {
	return api.Options{
		Address:    c.ControllerAddress,
		CACertPath: c.CACert,
		CertPath:   c.CertFile,
		KeyPath:    c.KeyFile,
		Insecure:   c.Insecure,
		Codec:      c.Codec,
		Tokens:     tokens,
	}
}
