// Package config loads catalog configuration from a YAML file with
// environment variable overrides, and validates the result before the
// app wires up an object store or a catalog (SPEC_FULL.md §2's Config
// component). Load/defaults/validate layering trimmed from a
// multi-sink log pipeline's configuration surface down to what a
// catalog daemon actually needs: object store connection, insert/merge
// tuning, and the ambient metrics/tracing/server knobs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	catalogerrors "github.com/icedb-go/icedb/pkg/errors"
)

// Config is the top-level configuration for a catalog daemon.
type Config struct {
	App         AppConfig         `yaml:"app"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	Insert      InsertConfig      `yaml:"insert"`
	Merge       MergeConfig       `yaml:"merge"`
	Collect     CollectConfig     `yaml:"collect"`
	Server      ServerConfig      `yaml:"server"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Tracing     TracingConfig     `yaml:"tracing"`
}

// AppConfig carries identity and logging knobs.
type AppConfig struct {
	Name      string `yaml:"name"`
	Environment string `yaml:"environment"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// HostID is embedded in every log object key spec.md §6 names
	// (`<ts>[_m]_<host>.jsonl`). Defaults to os.Hostname().
	HostID string `yaml:"host_id"`
}

// ObjectStoreConfig selects and configures a pkg/objectstore backend.
type ObjectStoreConfig struct {
	// Backend is "s3" or "localdisk".
	Backend string `yaml:"backend"`

	// Bucket selects the S3 backend's bucket. Region and Endpoint are
	// loaded and overridable but are not passed to the S3 client, which
	// takes its region and endpoint from the default AWS configuration.
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`

	// LocalDir configures the localdisk backend.
	LocalDir string `yaml:"local_dir"`

	// TablePrefix scopes every key under this catalog's table/tenant
	// prefix (passed to the catalog as its key prefix).
	TablePrefix string `yaml:"table_prefix"`
}

// InsertConfig tunes Catalog.Insert's fan-out and the reference
// columnar writer's defaults (spec.md §4.5, §6).
type InsertConfig struct {
	MaxWorkers   int      `yaml:"max_workers"`
	RowGroupSize int64    `yaml:"row_group_size"`
	Compression  string   `yaml:"compression"`
	SortColumns  []string `yaml:"sort_columns"`
}

// MergeConfig tunes Catalog.Merge's cohort selection (spec.md §4.6).
type MergeConfig struct {
	MaxFileSize  int64 `yaml:"max_file_size"`
	MaxFileCount int   `yaml:"max_file_count"`
	Ascending    bool  `yaml:"ascending"`
}

// CollectConfig tunes Catalog.Collect (spec.md §4.9).
type CollectConfig struct {
	MinAge string `yaml:"min_age"`
}

// ServerConfig configures the optional HTTP surface (SPEC_FULL.md §2
// ambient "App/daemon" component).
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// TracingConfig configures internal/tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Exporter   string  `yaml:"exporter"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sample_rate"`
}

// Load reads configFile (if non-empty), applies defaults for anything
// left unset, applies environment variable overrides, and validates the
// result.
func Load(configFile string) (*Config, error) {
	cfg := &Config{Metrics: MetricsConfig{Enabled: true}}

	if configFile != "" {
		if err := loadFile(configFile, cfg); err != nil {
			return nil, catalogerrors.ConfigError("load", err.Error())
		}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFile(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "icedb"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "production"
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.LogFormat == "" {
		cfg.App.LogFormat = "json"
	}
	if cfg.App.HostID == "" {
		if h, err := os.Hostname(); err == nil {
			cfg.App.HostID = h
		}
	}

	if cfg.ObjectStore.Backend == "" {
		cfg.ObjectStore.Backend = "localdisk"
	}
	if cfg.ObjectStore.LocalDir == "" {
		cfg.ObjectStore.LocalDir = "/var/lib/icedb/data"
	}

	if cfg.Insert.MaxWorkers == 0 {
		cfg.Insert.MaxWorkers = 4
	}
	if cfg.Insert.RowGroupSize == 0 {
		cfg.Insert.RowGroupSize = 64 * 1024
	}
	if cfg.Insert.Compression == "" {
		cfg.Insert.Compression = "snappy"
	}

	if cfg.Merge.MaxFileSize == 0 {
		cfg.Merge.MaxFileSize = 256 * 1024 * 1024
	}
	if cfg.Merge.MaxFileCount == 0 {
		cfg.Merge.MaxFileCount = 32
	}

	if cfg.Collect.MinAge == "" {
		cfg.Collect.MinAge = "24h"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8401
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 8001
	}
	if cfg.Metrics.Host == "" {
		cfg.Metrics.Host = "0.0.0.0"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Tracing.Exporter == "" {
		cfg.Tracing.Exporter = "console"
	}
	if cfg.Tracing.SampleRate == 0 {
		cfg.Tracing.SampleRate = 1.0
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.App.Name = getEnvString("ICEDB_APP_NAME", cfg.App.Name)
	cfg.App.Environment = getEnvString("ICEDB_ENVIRONMENT", cfg.App.Environment)
	cfg.App.LogLevel = getEnvString("ICEDB_LOG_LEVEL", cfg.App.LogLevel)
	cfg.App.LogFormat = getEnvString("ICEDB_LOG_FORMAT", cfg.App.LogFormat)
	cfg.App.HostID = getEnvString("ICEDB_HOST_ID", cfg.App.HostID)

	cfg.ObjectStore.Backend = getEnvString("ICEDB_OBJECTSTORE_BACKEND", cfg.ObjectStore.Backend)
	cfg.ObjectStore.Bucket = getEnvString("ICEDB_OBJECTSTORE_BUCKET", cfg.ObjectStore.Bucket)
	cfg.ObjectStore.Region = getEnvString("ICEDB_OBJECTSTORE_REGION", cfg.ObjectStore.Region)
	cfg.ObjectStore.Endpoint = getEnvString("ICEDB_OBJECTSTORE_ENDPOINT", cfg.ObjectStore.Endpoint)
	cfg.ObjectStore.LocalDir = getEnvString("ICEDB_OBJECTSTORE_LOCAL_DIR", cfg.ObjectStore.LocalDir)
	cfg.ObjectStore.TablePrefix = getEnvString("ICEDB_TABLE_PREFIX", cfg.ObjectStore.TablePrefix)

	cfg.Insert.MaxWorkers = getEnvInt("ICEDB_INSERT_MAX_WORKERS", cfg.Insert.MaxWorkers)
	cfg.Insert.Compression = getEnvString("ICEDB_INSERT_COMPRESSION", cfg.Insert.Compression)

	cfg.Merge.MaxFileCount = getEnvInt("ICEDB_MERGE_MAX_FILE_COUNT", cfg.Merge.MaxFileCount)

	cfg.Server.Enabled = getEnvBool("ICEDB_SERVER_ENABLED", cfg.Server.Enabled)
	cfg.Server.Host = getEnvString("ICEDB_SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("ICEDB_SERVER_PORT", cfg.Server.Port)

	cfg.Metrics.Enabled = getEnvBool("ICEDB_METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Port = getEnvInt("ICEDB_METRICS_PORT", cfg.Metrics.Port)

	cfg.Tracing.Enabled = getEnvBool("ICEDB_TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = getEnvString("ICEDB_TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = getEnvString("ICEDB_TRACING_ENDPOINT", cfg.Tracing.Endpoint)
}

func getEnvString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Validate checks cfg for internal consistency, returning a single
// AppError (CodeConfigValidation) describing every problem found.
func Validate(cfg *Config) error {
	v := &validator{cfg: cfg}
	v.checkApp()
	v.checkObjectStore()
	v.checkInsert()
	v.checkMerge()
	v.checkCollect()
	v.checkServer()
	v.checkMetrics()

	if len(v.errs) == 0 {
		return nil
	}
	if len(v.errs) == 1 {
		return v.errs[0]
	}
	messages := make([]string, len(v.errs))
	for i, e := range v.errs {
		messages[i] = e.Error()
	}
	return catalogerrors.New(catalogerrors.CodeConfigValidation, "config", "validate",
		fmt.Sprintf("multiple validation errors: %s", strings.Join(messages, "; ")))
}

type validator struct {
	cfg  *Config
	errs []*catalogerrors.AppError
}

func (v *validator) fail(operation, message string) {
	v.errs = append(v.errs, catalogerrors.New(catalogerrors.CodeConfigValidation, "config", operation, message))
}

func (v *validator) checkApp() {
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true}
	if !validLevels[v.cfg.App.LogLevel] {
		v.fail("validate_log_level", fmt.Sprintf("invalid log level: %s", v.cfg.App.LogLevel))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[v.cfg.App.LogFormat] {
		v.fail("validate_log_format", fmt.Sprintf("invalid log format: %s", v.cfg.App.LogFormat))
	}
}

func (v *validator) checkObjectStore() {
	switch v.cfg.ObjectStore.Backend {
	case "s3":
		if v.cfg.ObjectStore.Bucket == "" {
			v.fail("validate_bucket", "bucket cannot be empty for the s3 backend")
		}
	case "localdisk":
		if v.cfg.ObjectStore.LocalDir == "" {
			v.fail("validate_local_dir", "local_dir cannot be empty for the localdisk backend")
		}
	default:
		v.fail("validate_backend", fmt.Sprintf("unknown object store backend: %s", v.cfg.ObjectStore.Backend))
	}
}

func (v *validator) checkInsert() {
	if v.cfg.Insert.MaxWorkers <= 0 {
		v.fail("validate_max_workers", "insert.max_workers must be positive")
	}
	if v.cfg.Insert.RowGroupSize <= 0 {
		v.fail("validate_row_group_size", "insert.row_group_size must be positive")
	}
}

func (v *validator) checkMerge() {
	if v.cfg.Merge.MaxFileSize <= 0 {
		v.fail("validate_max_file_size", "merge.max_file_size must be positive")
	}
	if v.cfg.Merge.MaxFileCount < 2 {
		v.fail("validate_max_file_count", "merge.max_file_count must be at least 2 for a cohort to form")
	}
}

func (v *validator) checkCollect() {
	if _, err := time.ParseDuration(v.cfg.Collect.MinAge); err != nil {
		v.fail("validate_min_age", fmt.Sprintf("invalid collect.min_age: %s", v.cfg.Collect.MinAge))
	}
}

func (v *validator) checkServer() {
	if v.cfg.Server.Enabled && (v.cfg.Server.Port <= 0 || v.cfg.Server.Port > 65535) {
		v.fail("validate_port", fmt.Sprintf("invalid server port: %d", v.cfg.Server.Port))
	}
}

func (v *validator) checkMetrics() {
	if v.cfg.Metrics.Enabled {
		if v.cfg.Metrics.Port <= 0 || v.cfg.Metrics.Port > 65535 {
			v.fail("validate_port", fmt.Sprintf("invalid metrics port: %d", v.cfg.Metrics.Port))
		}
		if v.cfg.Server.Enabled && v.cfg.Server.Port == v.cfg.Metrics.Port {
			v.fail("validate_port_conflict", "metrics port conflicts with server port")
		}
	}
}
