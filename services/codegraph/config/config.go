// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads codegraph server configuration.
//
// Layers, later wins:
//
//  1. the embedded codegraph.yaml;
//  2. an external YAML file named by --config or CODEGRAPH_CONFIG;
//  3. CODEGRAPH_* environment variables.
//
// The external file only needs the keys it changes. Unknown keys are
// rejected.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/codegraph/services/codegraph/telemetry"
)

// MaxFileSize bounds the external config file.
const MaxFileSize = 1024 * 1024

// EnvConfigPath names the external config file when --config is not given.
const EnvConfigPath = "CODEGRAPH_CONFIG"

//go:embed codegraph.yaml
var defaultYAML []byte

var (
	// ErrInvalidConfig is returned when a loaded value fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConfigTooLarge is returned when the external file exceeds MaxFileSize.
	ErrConfigTooLarge = errors.New("config file too large")
)

var configLoads = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "codegraph_config_loads_total",
	Help: "Configuration loads by source and result",
}, []string{"source", "result"})

// Config is the full server configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Security  SecurityConfig   `yaml:"security"`
	Index     IndexConfig      `yaml:"index"`
	RateLimit RateLimitConfig  `yaml:"rate_limit"`
	Store     StoreConfig      `yaml:"store"`
	Watch     WatchConfig      `yaml:"watch"`
	Snippet   SnippetConfig    `yaml:"snippet"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// ServerConfig is the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Debug           bool          `yaml:"debug"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// SecurityConfig restricts which directories may be indexed.
type SecurityConfig struct {
	// AllowedRoots are absolute directories; empty allows any directory.
	AllowedRoots []string `yaml:"allowed_roots"`
}

// IndexConfig bounds project builds.
type IndexConfig struct {
	Workers          int           `yaml:"workers"`
	MaxProjectFiles  int           `yaml:"max_project_files"`
	MaxFileSize      int64         `yaml:"max_file_size"`
	RespectGitignore bool          `yaml:"respect_gitignore"`
	BuildTimeout     time.Duration `yaml:"build_timeout"`

	// ExcludePatterns are appended to every request's patterns.
	ExcludePatterns []string `yaml:"exclude_patterns"`
}

// RateLimitConfig is the token bucket in front of the build endpoint.
type RateLimitConfig struct {
	BuildRatePerSecond float64 `yaml:"build_rate_per_second"`
	BuildBurst         int     `yaml:"build_burst"`
}

// StoreConfig is the generation snapshot store.
type StoreConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Path       string        `yaml:"path"`
	InMemory   bool          `yaml:"in_memory"`
	GCInterval time.Duration `yaml:"gc_interval"`
}

// WatchConfig controls rebuild-on-change.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// SnippetConfig sizes the file line cache.
type SnippetConfig struct {
	CacheEntries int `yaml:"cache_entries"`
}

// LoggingConfig selects the process logger.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	Dir     string `yaml:"dir"`
	Service string `yaml:"service"`
}

// Default returns the embedded configuration.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := decode(defaultYAML, cfg); err != nil {
		return nil, fmt.Errorf("decode embedded config: %w", err)
	}
	return cfg, nil
}

// Load builds the layered configuration.
//
// Inputs:
//   - path: External YAML file. Empty falls back to $CODEGRAPH_CONFIG; if
//     both are empty only the embedded defaults and environment apply.
//
// Outputs:
//   - *Config: The validated configuration.
//   - error: Read, decode or ErrInvalidConfig failures.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		configLoads.WithLabelValues("embedded", "error").Inc()
		return nil, err
	}

	source := "embedded"
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		source = "file"
		if err := overlayFile(cfg, path); err != nil {
			configLoads.WithLabelValues(source, "error").Inc()
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		configLoads.WithLabelValues(source, "error").Inc()
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		configLoads.WithLabelValues(source, "error").Inc()
		return nil, err
	}
	configLoads.WithLabelValues(source, "success").Inc()
	return cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config %s: %w", path, err)
	}
	if info.Size() > MaxFileSize {
		return fmt.Errorf("%w: %s is %d bytes", ErrConfigTooLarge, path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := decode(data, cfg); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		// An empty document leaves cfg untouched.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// applyEnv overlays CODEGRAPH_* variables.
func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s=%q", ErrInvalidConfig, key, v))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s=%q", ErrInvalidConfig, key, v))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s=%q", ErrInvalidConfig, key, v))
				return
			}
			*dst = d
		}
	}

	str("CODEGRAPH_HOST", &cfg.Server.Host)
	integer("CODEGRAPH_PORT", &cfg.Server.Port)
	boolean("CODEGRAPH_DEBUG", &cfg.Server.Debug)
	if v, ok := os.LookupEnv("CODEGRAPH_ALLOWED_ROOTS"); ok {
		cfg.Security.AllowedRoots = splitList(v)
	}
	integer("CODEGRAPH_WORKERS", &cfg.Index.Workers)
	integer("CODEGRAPH_MAX_PROJECT_FILES", &cfg.Index.MaxProjectFiles)
	duration("CODEGRAPH_BUILD_TIMEOUT", &cfg.Index.BuildTimeout)
	boolean("CODEGRAPH_RESPECT_GITIGNORE", &cfg.Index.RespectGitignore)
	boolean("CODEGRAPH_STORE_ENABLED", &cfg.Store.Enabled)
	str("CODEGRAPH_STORE_PATH", &cfg.Store.Path)
	boolean("CODEGRAPH_WATCH", &cfg.Watch.Enabled)
	str("CODEGRAPH_LOG_LEVEL", &cfg.Logging.Level)
	str("CODEGRAPH_LOG_FORMAT", &cfg.Logging.Format)
	str("CODEGRAPH_LOG_DIR", &cfg.Logging.Dir)
	str("CODEGRAPH_ENV", &cfg.Telemetry.Environment)
	str("OTEL_TRACES_EXPORTER", &cfg.Telemetry.TraceExporter)
	str("OTEL_METRICS_EXPORTER", &cfg.Telemetry.MetricExporter)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == os.PathListSeparator
	}) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports every invalid value, joined.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		bad("server.port %d out of range", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		bad("server.shutdown_timeout must be positive")
	}
	for _, root := range c.Security.AllowedRoots {
		if !filepath.IsAbs(root) {
			bad("security.allowed_roots entry %q is not absolute", root)
		}
	}
	if c.Index.Workers < 0 {
		bad("index.workers must not be negative")
	}
	if c.Index.MaxProjectFiles <= 0 {
		bad("index.max_project_files must be positive")
	}
	if c.Index.MaxFileSize <= 0 {
		bad("index.max_file_size must be positive")
	}
	if c.Index.BuildTimeout <= 0 {
		bad("index.build_timeout must be positive")
	}
	if c.RateLimit.BuildRatePerSecond <= 0 {
		bad("rate_limit.build_rate_per_second must be positive")
	}
	if c.RateLimit.BuildBurst < 1 {
		bad("rate_limit.build_burst must be at least 1")
	}
	if c.Watch.Enabled && c.Watch.Debounce <= 0 {
		bad("watch.debounce must be positive")
	}
	if c.Snippet.CacheEntries < 0 {
		bad("snippet.cache_entries must not be negative")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		bad("logging.level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "auto", "json", "text":
	default:
		bad("logging.format %q", c.Logging.Format)
	}
	return errors.Join(errs...)
}

// StorePath returns the snapshot directory, defaulting under the user's
// home directory.
func (c *Config) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".codegraph", "store"), nil
}
