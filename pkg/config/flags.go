package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":       "logging.level",
	"log-format":      "logging.format",
	"log-output":      "logging.output",
	"socket":          "adapters.socket.path",
	"max-connections": "adapters.socket.max_connections",
	"max-open-files":  "files.max_open_files",
	"require-auth":    "accounts.require_auth",
	"snapshot-type":   "snapshot.type",
	"metrics":         "metrics.enabled",
	"metrics-port":    "metrics.port",
}

// BindFlags registers the configuration override flags on fs.
//
// Flag defaults are deliberately zero: a flag only overrides the file and
// environment when the user sets it.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("log-level", "", "log level (DEBUG, INFO, WARN, ERROR)")
	fs.String("log-format", "", "log format (text, json)")
	fs.String("log-output", "", "log output (stdout, stderr or a file path)")
	fs.String("socket", "", "path of the Unix socket to listen on")
	fs.Int("max-connections", 0, "maximum concurrent clients (0 = unlimited)")
	fs.Int("max-open-files", 0, "capacity of the open-file table")
	fs.Bool("require-auth", true, "require login before file operations")
	fs.String("snapshot-type", "", "snapshot store (none, memory, badger, s3)")
	fs.Bool("metrics", false, "enable the Prometheus endpoint")
	fs.Int("metrics-port", 0, "port of the Prometheus endpoint")
}

// bindFlags binds the flags the user actually set. Binding an unset flag
// would let its zero default shadow the file and environment.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		if bindErr := v.BindPFlag(key, f); bindErr != nil {
			err = fmt.Errorf("bind flag --%s: %w", f.Name, bindErr)
		}
	})
	return err
}
