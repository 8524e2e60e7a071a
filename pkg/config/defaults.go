package config

import (
	"strings"
	"time"

	"github.com/marmos91/memfsd/internal/protocol/line"
	"github.com/marmos91/memfsd/pkg/adapter/socket"
	"github.com/marmos91/memfsd/pkg/memfs"
	"github.com/spf13/viper"
)

const (
	defaultShutdownTimeout    = 30 * time.Second
	defaultReadTimeout        = 30 * time.Second
	defaultWriteTimeout       = 30 * time.Second
	defaultMetricsLogInterval = 5 * time.Minute
	defaultMetricsPort        = 9090
	defaultBadgerPath         = "/tmp/memfsd-snapshot"
	defaultS3Region           = "us-east-1"
	defaultS3KeyPrefix        = "memfsd/"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Explicit values are preserved
//   - Booleans that default to true cannot be told apart from an explicit
//     false here; they get their defaults in setViperDefaults instead
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyFilesDefaults(&cfg.Files)
	applySnapshotDefaults(&cfg.Snapshot)
	applyMetricsDefaults(&cfg.Metrics)
	applySocketDefaults(&cfg.Adapters.Socket)

	// The adapter enforces what the accounts section decides
	cfg.Adapters.Socket.RequireAuth = cfg.Accounts.RequireAuth
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
}

func applyFilesDefaults(cfg *memfs.Config) {
	if cfg.MaxOpenFiles == 0 {
		cfg.MaxOpenFiles = memfs.DefaultMaxOpenFiles
	}
}

// applySnapshotDefaults sets snapshot store defaults.
func applySnapshotDefaults(cfg *SnapshotConfig) {
	if cfg.Type == "" {
		cfg.Type = "none"
	}

	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	// Filled for every type so a generated config documents them all
	if _, ok := cfg.Badger["path"]; !ok {
		cfg.Badger["path"] = defaultBadgerPath
	}
	if _, ok := cfg.S3["region"]; !ok {
		cfg.S3["region"] = defaultS3Region
	}
	if _, ok := cfg.S3["key_prefix"]; !ok {
		cfg.S3["key_prefix"] = defaultS3KeyPrefix
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = defaultMetricsPort
	}
}

// applySocketDefaults sets socket adapter defaults.
func applySocketDefaults(cfg *socket.Config) {
	if cfg.Path == "" {
		cfg.Path = socket.DefaultPath
	}

	// MaxConnections defaults to 0 (unlimited)

	if cfg.MaxLineBytes == 0 {
		cfg.MaxLineBytes = line.DefaultMaxLineBytes
	}

	if cfg.Timeouts.Read == 0 {
		cfg.Timeouts.Read = defaultReadTimeout
	}
	if cfg.Timeouts.Write == 0 {
		cfg.Timeouts.Write = defaultWriteTimeout
	}

	// Idle defaults to 0: an interactive client may sit at its prompt forever

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	if cfg.MetricsLogInterval == 0 {
		cfg.MetricsLogInterval = defaultMetricsLogInterval
	}
}

// setViperDefaults registers every key with viper. Registered keys can be
// overridden from the environment, and the booleans that default to true get
// their value here.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	v.SetDefault("files.max_open_files", memfs.DefaultMaxOpenFiles)

	v.SetDefault("accounts.require_auth", true)

	v.SetDefault("snapshot.type", "none")
	v.SetDefault("snapshot.restore_on_start", true)
	v.SetDefault("snapshot.save_on_shutdown", true)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", defaultMetricsPort)

	v.SetDefault("adapters.socket.enabled", true)
	v.SetDefault("adapters.socket.path", socket.DefaultPath)
	v.SetDefault("adapters.socket.max_connections", 0)
	v.SetDefault("adapters.socket.max_line_bytes", line.DefaultMaxLineBytes)
	v.SetDefault("adapters.socket.timeouts.read", defaultReadTimeout)
	v.SetDefault("adapters.socket.timeouts.write", defaultWriteTimeout)
	v.SetDefault("adapters.socket.timeouts.idle", time.Duration(0))
	v.SetDefault("adapters.socket.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("adapters.socket.metrics_log_interval", defaultMetricsLogInterval)
	v.SetDefault("adapters.socket.rate_limit.requests_per_second", 0.0)
	v.SetDefault("adapters.socket.rate_limit.burst", 0)
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Accounts: AccountsConfig{
			RequireAuth: true,
		},
		Snapshot: SnapshotConfig{
			RestoreOnStart: true,
			SaveOnShutdown: true,
		},
		Adapters: AdaptersConfig{
			Socket: socket.Config{
				Enabled: true,
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
