package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/memfsd/pkg/adapter/socket"
	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: "debug"

adapters:
  socket:
    path: "/tmp/memfsd-test.sock"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Files.MaxOpenFiles != 5 {
		t.Errorf("Expected default max_open_files 5, got %d", cfg.Files.MaxOpenFiles)
	}
	if !cfg.Accounts.RequireAuth {
		t.Error("Expected require_auth to default to true")
	}
	if !cfg.Adapters.Socket.Enabled {
		t.Error("Expected socket adapter to be enabled by default")
	}
	if cfg.Adapters.Socket.Path != "/tmp/memfsd-test.sock" {
		t.Errorf("Expected socket path from file, got %q", cfg.Adapters.Socket.Path)
	}
	if !cfg.Adapters.Socket.RequireAuth {
		t.Error("Expected require_auth to be propagated to the socket adapter")
	}
	if cfg.Snapshot.Type != "none" {
		t.Errorf("Expected default snapshot type 'none', got %q", cfg.Snapshot.Type)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Adapters.Socket.Path != socket.DefaultPath {
		t.Errorf("Expected default socket path %q, got %q", socket.DefaultPath, cfg.Adapters.Socket.Path)
	}
	if !cfg.Snapshot.RestoreOnStart || !cfg.Snapshot.SaveOnShutdown {
		t.Error("Expected snapshot restore and save to default to true")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "logging: [unclosed\n")

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  format: "xml"
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestLoad_Durations(t *testing.T) {
	configPath := writeConfig(t, `
adapters:
  socket:
    timeouts:
      read: 5s
      idle: 2m
    rate_limit:
      requests_per_second: 50
      burst: 10
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Adapters.Socket.Timeouts.Read != 5*time.Second {
		t.Errorf("Expected read timeout 5s, got %v", cfg.Adapters.Socket.Timeouts.Read)
	}
	if cfg.Adapters.Socket.Timeouts.Idle != 2*time.Minute {
		t.Errorf("Expected idle timeout 2m, got %v", cfg.Adapters.Socket.Timeouts.Idle)
	}
	if cfg.Adapters.Socket.Timeouts.Write != 30*time.Second {
		t.Errorf("Expected default write timeout 30s, got %v", cfg.Adapters.Socket.Timeouts.Write)
	}
	if cfg.Adapters.Socket.RateLimit.RequestsPerSecond != 50 || cfg.Adapters.Socket.RateLimit.Burst != 10 {
		t.Errorf("Unexpected rate limit %+v", cfg.Adapters.Socket.RateLimit)
	}
}

func TestLoad_ExplicitFalse(t *testing.T) {
	configPath := writeConfig(t, `
accounts:
  require_auth: false
snapshot:
  save_on_shutdown: false
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Accounts.RequireAuth {
		t.Error("Expected explicit require_auth: false to be kept")
	}
	if cfg.Adapters.Socket.RequireAuth {
		t.Error("Expected socket adapter to follow require_auth: false")
	}
	if cfg.Snapshot.SaveOnShutdown {
		t.Error("Expected explicit save_on_shutdown: false to be kept")
	}
	if !cfg.Snapshot.RestoreOnStart {
		t.Error("Expected restore_on_start to keep its default")
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("MEMFSD_LOGGING_LEVEL", "warn")
	t.Setenv("MEMFSD_FILES_MAX_OPEN_FILES", "12")
	t.Setenv("MEMFSD_ACCOUNTS_REQUIRE_AUTH", "false")

	configPath := writeConfig(t, `
logging:
  level: "debug"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected environment to win with 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Files.MaxOpenFiles != 12 {
		t.Errorf("Expected max_open_files 12 from environment, got %d", cfg.Files.MaxOpenFiles)
	}
	if cfg.Accounts.RequireAuth {
		t.Error("Expected require_auth false from environment")
	}
}

func TestLoadWithFlags(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: "debug"
adapters:
  socket:
    path: "/tmp/from-file.sock"
`)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	if err := fs.Parse([]string{"--socket", "/tmp/from-flag.sock", "--require-auth=false", "--max-open-files", "8"}); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	cfg, err := LoadWithFlags(configPath, fs)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Adapters.Socket.Path != "/tmp/from-flag.sock" {
		t.Errorf("Expected flag to override socket path, got %q", cfg.Adapters.Socket.Path)
	}
	if cfg.Accounts.RequireAuth {
		t.Error("Expected --require-auth=false to win")
	}
	if cfg.Files.MaxOpenFiles != 8 {
		t.Errorf("Expected max_open_files 8 from flag, got %d", cfg.Files.MaxOpenFiles)
	}
	// Unset flags must not shadow the file
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level from file, got %q", cfg.Logging.Level)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	if got := GetDefaultConfigPath(); got != "/custom/config/memfsd/config.yaml" {
		t.Errorf("Unexpected default config path %q", got)
	}
}
