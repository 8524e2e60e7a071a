package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/memfsd/pkg/store/badger"
	"github.com/marmos91/memfsd/pkg/store/s3"
	"github.com/mitchellh/mapstructure"
)

// maxSocketPathLen is the longest path that fits in sockaddr_un.sun_path
// together with its terminating NUL on Linux.
const maxSocketPathLen = 107

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if !cfg.Adapters.Socket.Enabled {
		return fmt.Errorf("adapters: at least one adapter must be enabled")
	}

	if n := len(cfg.Adapters.Socket.Path); n > maxSocketPathLen {
		return fmt.Errorf("adapters.socket.path: %d bytes is longer than the %d a Unix socket allows",
			n, maxSocketPathLen)
	}

	if cfg.Adapters.Socket.RateLimit.Burst > 0 && cfg.Adapters.Socket.RateLimit.RequestsPerSecond == 0 {
		return fmt.Errorf("adapters.socket.rate_limit: burst is set but requests_per_second is 0")
	}

	return validateSnapshotOptions(&cfg.Snapshot)
}

// validateSnapshotOptions decodes the option map of the selected store so
// that typos and missing required options fail at load time rather than at
// the first save.
func validateSnapshotOptions(cfg *SnapshotConfig) error {
	switch cfg.Type {
	case "badger":
		var opts badger.BadgerSnapshotStoreConfig
		if err := decodeOptions(cfg.Badger, &opts); err != nil {
			return fmt.Errorf("snapshot.badger: %w", err)
		}
		if opts.Path == "" && !opts.InMemory {
			return fmt.Errorf("snapshot.badger: path is required")
		}

	case "s3":
		var opts s3.S3SnapshotStoreConfig
		if err := decodeOptions(cfg.S3, &opts); err != nil {
			return fmt.Errorf("snapshot.s3: %w", err)
		}
		if opts.Bucket == "" {
			return fmt.Errorf("snapshot.s3: bucket is required")
		}
		if opts.Region == "" {
			return fmt.Errorf("snapshot.s3: region is required")
		}
		if (opts.AccessKeyID == "") != (opts.SecretAccessKey == "") {
			return fmt.Errorf("snapshot.s3: access_key_id and secret_access_key must be set together")
		}
		if opts.MaxRetries < 0 {
			return fmt.Errorf("snapshot.s3: max_retries must be >= 0")
		}
	}

	return nil
}

// decodeOptions decodes a store option map, rejecting unknown keys.
func decodeOptions(input map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
