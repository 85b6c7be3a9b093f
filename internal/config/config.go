// Package config loads service configuration from environment variables,
// with an optional YAML overlay file for deploy-time settings. Values in
// the overlay support ${VAR} and $VAR expansion.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`

	// Storage backend: "memory", "sqlite" or "remote"
	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"memory"`
	SQLitePath     string `envconfig:"SQLITE_PATH" default:"projects.db"`
	RemoteBaseURL  string `envconfig:"REMOTE_BASE_URL"`
	RemoteBucket   string `envconfig:"REMOTE_BUCKET" default:"projects"`

	// Storage retries (wraps sqlite/remote backends)
	RetryAttempts  int           `envconfig:"STORAGE_RETRY_ATTEMPTS" default:"3"`
	RetryBaseDelay time.Duration `envconfig:"STORAGE_RETRY_BASE_DELAY" default:"500ms"`
	RetryMaxDelay  time.Duration `envconfig:"STORAGE_RETRY_MAX_DELAY" default:"10s"`

	// Project store
	CacheSize int `envconfig:"PROJECT_CACHE_SIZE" default:"128"`

	// Role policy overlay (optional; compiled-in defaults when empty)
	RolePolicyPath string `envconfig:"ROLE_POLICY_PATH"`

	// API auth: static service key and/or HS256 secret for collaborator JWTs.
	// With both empty the API refuses to start outside development.
	APIKey      string `envconfig:"API_KEY"`
	JWTSecret   string `envconfig:"JWT_SECRET"`
	CORSOrigins string `envconfig:"CORS_ORIGINS"`
}

// RemoteEnabled returns true if the remote storage backend is configured.
func (c *Config) RemoteEnabled() bool {
	return strings.EqualFold(c.StorageBackend, "remote") && c.RemoteBaseURL != ""
}

// AuthConfigured returns true if at least one credential source is set.
func (c *Config) AuthConfigured() bool {
	return c.APIKey != "" || c.JWTSecret != ""
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// Overlay is the optional YAML file shape. Pointer fields distinguish
// "absent" from "set to zero": only present keys override the environment.
type Overlay struct {
	Environment    *string `yaml:"environment"`
	LogLevel       *string `yaml:"log_level"`
	ListenAddr     *string `yaml:"listen_addr"`
	StorageBackend *string `yaml:"storage_backend"`
	SQLitePath     *string `yaml:"sqlite_path"`
	RemoteBaseURL  *string `yaml:"remote_base_url"`
	RemoteBucket   *string `yaml:"remote_bucket"`
	CacheSize      *int    `yaml:"cache_size"`
	RolePolicyPath *string `yaml:"role_policy_path"`
	APIKey         *string `yaml:"api_key"`
	JWTSecret      *string `yaml:"jwt_secret"`
	CORSOrigins    *string `yaml:"cors_origins"`
}

// ApplyFile overlays a YAML file onto the config. A missing file is not
// an error so deployments can share one startup path.
func (c *Config) ApplyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	return c.ApplyBytes(raw)
}

// ApplyBytes overlays YAML data onto the config (useful for testing).
func (c *Config) ApplyBytes(data []byte) error {
	expanded := expandEnvVars(string(data))
	var o Overlay
	if err := yaml.Unmarshal([]byte(expanded), &o); err != nil {
		return fmt.Errorf("config: parse overlay: %w", err)
	}

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&c.Environment, o.Environment)
	setString(&c.LogLevel, o.LogLevel)
	setString(&c.ListenAddr, o.ListenAddr)
	setString(&c.StorageBackend, o.StorageBackend)
	setString(&c.SQLitePath, o.SQLitePath)
	setString(&c.RemoteBaseURL, o.RemoteBaseURL)
	setString(&c.RemoteBucket, o.RemoteBucket)
	setString(&c.RolePolicyPath, o.RolePolicyPath)
	setString(&c.APIKey, o.APIKey)
	setString(&c.JWTSecret, o.JWTSecret)
	setString(&c.CORSOrigins, o.CORSOrigins)
	if o.CacheSize != nil {
		c.CacheSize = *o.CacheSize
	}
	return nil
}

// envVarPattern matches ${VAR_NAME} and $VAR_NAME.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces ${VAR} and $VAR with the corresponding environment
// variable value. Missing vars become empty strings.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimPrefix(match, "${")
		name = strings.TrimSuffix(name, "}")
		name = strings.TrimPrefix(name, "$")
		return os.Getenv(name)
	})
}
