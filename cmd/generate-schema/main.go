package main

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/memfsd/pkg/config"
	"github.com/marmos91/memfsd/pkg/store/badger"
	"github.com/marmos91/memfsd/pkg/store/s3"
	"github.com/spf13/pflag"
)

func main() {
	output := pflag.StringP("output", "o", "config.schema.json", "file to write, or - for stdout")
	pflag.Parse()

	schemaJSON, err := json.MarshalIndent(generate(), "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling schema: %v\n", err)
		os.Exit(1)
	}

	if *output == "-" {
		fmt.Println(string(schemaJSON))
		return
	}

	if err := os.WriteFile(*output, schemaJSON, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing schema file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("JSON schema written to %s\n", *output)
}

func generate() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		FieldNameTag:              "yaml",
		Mapper:                    durationAsString,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Title = "memfsd Configuration"
	schema.Description = "Configuration schema for the memfsd file server"
	schema.Version = "1.0.0"

	// The store option maps are decoded per type at load time; describe
	// them with the store config structs.
	if snapshot, ok := schema.Properties.Get("snapshot"); ok && snapshot.Properties != nil {
		snapshot.Properties.Set("badger", storeOptions(&reflector, &badger.BadgerSnapshotStoreConfig{}))
		snapshot.Properties.Set("s3", storeOptions(&reflector, &s3.S3SnapshotStoreConfig{}))
	}

	return schema
}

func storeOptions(r *jsonschema.Reflector, v any) *jsonschema.Schema {
	sub := *r
	sub.FieldNameTag = "mapstructure"
	s := sub.Reflect(v)
	s.Version = ""
	return s
}

// durationAsString matches how viper reads durations ("30s", "5m").
func durationAsString(t reflect.Type) *jsonschema.Schema {
	if t == reflect.TypeOf(time.Duration(0)) {
		return &jsonschema.Schema{
			Type:        "string",
			Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$|^0$`,
			Description: "Go duration, e.g. 30s or 5m",
		}
	}
	return nil
}
