package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const configHeader = `memfsd Configuration File

Every value can be overridden with an environment variable named after its
key, e.g. MEMFSD_LOGGING_LEVEL=DEBUG or MEMFSD_ADAPTERS_SOCKET_PATH=/run/fs.sock.`

// sectionComments documents each top-level section in generated files.
var sectionComments = []struct {
	key     string
	comment string
}{
	{"logging", "Log level (DEBUG, INFO, WARN, ERROR), format (text, json) and output\n(stdout, stderr or a file path)."},
	{"server", "Time allowed for adapters to stop and the snapshot to be saved."},
	{"files", "Capacity of the shared open-file table."},
	{"accounts", "Reject file operations until the connection has logged in."},
	{"snapshot", "Where the file and account tables are saved on shutdown.\ntype: none, memory, badger or s3. Only the section matching type is used."},
	{"metrics", "Prometheus endpoint served at http://localhost:<port>/metrics."},
	{"adapters", "Protocol adapters. Timeouts of 0 disable the deadline."},
}

// InitConfig writes a default configuration file to the default location
// and returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateYAMLWithComments renders cfg one section at a time, each preceded
// by its comment block.
func generateYAMLWithComments(cfg *Config) (string, error) {
	sections := map[string]any{
		"logging":  cfg.Logging,
		"server":   cfg.Server,
		"files":    cfg.Files,
		"accounts": cfg.Accounts,
		"snapshot": cfg.Snapshot,
		"metrics":  cfg.Metrics,
		"adapters": cfg.Adapters,
	}

	var buf bytes.Buffer
	writeComment(&buf, configHeader)

	for _, s := range sectionComments {
		buf.WriteString("\n")
		writeComment(&buf, s.comment)

		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]any{s.key: sections[s.key]}); err != nil {
			return "", fmt.Errorf("failed to encode %s section: %w", s.key, err)
		}
		if err := enc.Close(); err != nil {
			return "", fmt.Errorf("failed to encode %s section: %w", s.key, err)
		}
	}

	return buf.String(), nil
}

func writeComment(buf *bytes.Buffer, text string) {
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			buf.WriteString("#\n")
			continue
		}
		buf.WriteString("# " + line + "\n")
	}
}
