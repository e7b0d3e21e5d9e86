// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/requests/lib/permission"
)

// EnvironmentVariable names the configuration file when --config is
// not given.
const EnvironmentVariable = "BUREAU_REQUESTS_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Permission policy names.
const (
	PolicyGrants   = "grants"
	PolicyAllowAll = "allow-all"
)

// Config is the configuration of the request service.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Store configures the SQLite request store.
	Store StoreConfig `yaml:"store"`

	// Socket configures the service socket.
	Socket SocketConfig `yaml:"socket"`

	// Requests configures request handling.
	Requests RequestsConfig `yaml:"requests"`

	// Links configures the base URLs of result links.
	Links LinksConfig `yaml:"links"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths    *PathsConfig    `yaml:"paths,omitempty"`
	Store    *StoreConfig    `yaml:"store,omitempty"`
	Socket   *SocketConfig   `yaml:"socket,omitempty"`
	Requests *RequestsConfig `yaml:"requests,omitempty"`
	Links    *LinksConfig    `yaml:"links,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for request service data.
	Root string `yaml:"root"`

	// State is where the database lives.
	State string `yaml:"state"`

	// Run is where the socket lives.
	Run string `yaml:"run"`

	// Definitions is the directory of JSONC request type definitions.
	Definitions string `yaml:"definitions"`
}

// StoreConfig configures the request store.
type StoreConfig struct {
	// Path is the SQLite database file.
	// Default: ${BUREAU_STATE}/requests.db
	Path string `yaml:"path"`

	// PoolSize is the number of connections. Zero picks a size from
	// the CPU count.
	PoolSize int `yaml:"pool_size"`

	Compression CompressionConfig `yaml:"compression"`
}

// CompressionConfig selects document compression.
type CompressionConfig struct {
	// Requests and Events are "none", "lz4", or "zstd".
	// Default: lz4 for requests, zstd for events.
	Requests string `yaml:"requests"`
	Events   string `yaml:"events"`

	// MinSize is the smallest document compressed, in bytes.
	// Default: 512
	MinSize int `yaml:"min_size"`
}

// SocketConfig configures the service socket.
type SocketConfig struct {
	// Path is the Unix socket path.
	// Default: ${BUREAU_RUN}/requests.sock
	Path string `yaml:"path"`
}

// RequestsConfig configures request handling.
type RequestsConfig struct {
	// CommentPreviewLimit bounds children previews.
	// Default: 5
	CommentPreviewLimit int `yaml:"comment_preview_limit"`

	// Resolvers lists resolver type ids in registration order.
	// Default: [users, groups, records, communities]
	Resolvers []string `yaml:"resolvers"`

	// RequestTypes lists the enabled request type ids. Empty enables
	// the built-in type and every definition.
	RequestTypes []string `yaml:"request_types"`

	// PermissionPolicy is "grants" or "allow-all".
	// Default: grants
	PermissionPolicy string `yaml:"permission_policy"`

	// Grants apply to every identity. Empty uses the built-in
	// relation grants.
	Grants []permission.Grant `yaml:"grants"`

	// Admins are identity ids allowed every action.
	Admins []string `yaml:"admins"`

	// ExpiryInterval is how often open requests are checked for
	// expiry, as a Go duration.
	// Default: 1m
	ExpiryInterval string `yaml:"expiry_interval"`
}

// LinksConfig configures result links.
type LinksConfig struct {
	// API is the base of machine-readable links.
	API string `yaml:"api"`

	// UI is the base of human-readable links.
	UI string `yaml:"ui"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "bureau", "requests")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:        defaultRoot,
			State:       filepath.Join(defaultRoot, "state"),
			Run:         filepath.Join(defaultRoot, "run"),
			Definitions: filepath.Join(defaultRoot, "definitions"),
		},
		Store: StoreConfig{
			Path: "${BUREAU_STATE}/requests.db",
			Compression: CompressionConfig{
				Requests: "lz4",
				Events:   "zstd",
				MinSize:  512,
			},
		},
		Socket: SocketConfig{
			Path: "${BUREAU_RUN}/requests.sock",
		},
		Requests: RequestsConfig{
			CommentPreviewLimit: 5,
			Resolvers:           []string{"users", "groups", "records", "communities"},
			PermissionPolicy:    PolicyGrants,
			ExpiryInterval:      "1m",
		},
		Links: LinksConfig{
			API: "http://localhost:5000/api",
			UI:  "http://localhost:5000",
		},
	}
}

// Load loads configuration from the BUREAU_REQUESTS_CONFIG
// environment variable.
//
// There are no fallbacks or defaults - if the variable is not set,
// this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your requests.yaml config file, or use --config flag", EnvironmentVariable)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do not
// override config values. The only expansion performed is ${HOME} and similar
// path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Apply environment-specific overrides (development/staging/production sections in the file).
	cfg.applyEnvironmentOverrides()

	// Expand ${HOME} and similar variables in paths for portability.
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		setString(&c.Paths.Root, overrides.Paths.Root)
		setString(&c.Paths.State, overrides.Paths.State)
		setString(&c.Paths.Run, overrides.Paths.Run)
		setString(&c.Paths.Definitions, overrides.Paths.Definitions)
	}

	if overrides.Store != nil {
		setString(&c.Store.Path, overrides.Store.Path)
		if overrides.Store.PoolSize != 0 {
			c.Store.PoolSize = overrides.Store.PoolSize
		}
		setString(&c.Store.Compression.Requests, overrides.Store.Compression.Requests)
		setString(&c.Store.Compression.Events, overrides.Store.Compression.Events)
		if overrides.Store.Compression.MinSize != 0 {
			c.Store.Compression.MinSize = overrides.Store.Compression.MinSize
		}
	}

	if overrides.Socket != nil {
		setString(&c.Socket.Path, overrides.Socket.Path)
	}

	if overrides.Requests != nil {
		if overrides.Requests.CommentPreviewLimit != 0 {
			c.Requests.CommentPreviewLimit = overrides.Requests.CommentPreviewLimit
		}
		if overrides.Requests.Resolvers != nil {
			c.Requests.Resolvers = overrides.Requests.Resolvers
		}
		if overrides.Requests.RequestTypes != nil {
			c.Requests.RequestTypes = overrides.Requests.RequestTypes
		}
		setString(&c.Requests.PermissionPolicy, overrides.Requests.PermissionPolicy)
		if overrides.Requests.Grants != nil {
			c.Requests.Grants = overrides.Requests.Grants
		}
		if overrides.Requests.Admins != nil {
			c.Requests.Admins = overrides.Requests.Admins
		}
		setString(&c.Requests.ExpiryInterval, overrides.Requests.ExpiryInterval)
	}

	if overrides.Links != nil {
		setString(&c.Links.API, overrides.Links.API)
		setString(&c.Links.UI, overrides.Links.UI)
	}
}

func setString(target *string, override string) {
	if override != "" {
		*target = override
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"BUREAU_ROOT": c.Paths.Root,
		"HOME":        os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["BUREAU_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.State = expandVars(c.Paths.State, vars)
	c.Paths.Run = expandVars(c.Paths.Run, vars)
	c.Paths.Definitions = expandVars(c.Paths.Definitions, vars)
	vars["BUREAU_STATE"] = c.Paths.State
	vars["BUREAU_RUN"] = c.Paths.Run

	c.Store.Path = expandVars(c.Store.Path, vars)
	c.Socket.Path = expandVars(c.Socket.Path, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var compressionValues = []string{"none", "lz4", "zstd"}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}

	if c.Store.Path == "" {
		errs = append(errs, fmt.Errorf("store.path is required"))
	}
	if c.Store.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("store.pool_size must not be negative"))
	}
	if !slices.Contains(compressionValues, c.Store.Compression.Requests) {
		errs = append(errs, fmt.Errorf("store.compression.requests must be one of: %v", compressionValues))
	}
	if !slices.Contains(compressionValues, c.Store.Compression.Events) {
		errs = append(errs, fmt.Errorf("store.compression.events must be one of: %v", compressionValues))
	}
	if c.Store.Compression.MinSize < 0 {
		errs = append(errs, fmt.Errorf("store.compression.min_size must not be negative"))
	}

	if c.Socket.Path == "" {
		errs = append(errs, fmt.Errorf("socket.path is required"))
	}

	if c.Requests.CommentPreviewLimit <= 0 {
		errs = append(errs, fmt.Errorf("requests.comment_preview_limit must be positive"))
	}
	if len(c.Requests.Resolvers) == 0 {
		errs = append(errs, fmt.Errorf("requests.resolvers must list at least one resolver"))
	}
	switch c.Requests.PermissionPolicy {
	case PolicyGrants:
	case PolicyAllowAll:
		if c.Environment == Production {
			errs = append(errs, fmt.Errorf("requests.permission_policy %q is not allowed in production", PolicyAllowAll))
		}
	default:
		errs = append(errs, fmt.Errorf("requests.permission_policy must be one of: %v", []string{PolicyGrants, PolicyAllowAll}))
	}
	for index, grant := range c.Requests.Grants {
		if len(grant.Actions) == 0 {
			errs = append(errs, fmt.Errorf("requests.grants[%d]: actions is required", index))
		}
	}
	if interval, err := time.ParseDuration(c.Requests.ExpiryInterval); err != nil {
		errs = append(errs, fmt.Errorf("requests.expiry_interval: %w", err))
	} else if interval <= 0 {
		errs = append(errs, fmt.Errorf("requests.expiry_interval must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ExpiryInterval returns requests.expiry_interval as a duration. Call
// after Validate.
func (c *Config) ExpiryInterval() time.Duration {
	interval, _ := time.ParseDuration(c.Requests.ExpiryInterval)
	return interval
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Paths.State,
		c.Paths.Run,
		filepath.Dir(c.Store.Path),
		filepath.Dir(c.Socket.Path),
	}

	for _, path := range paths {
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
