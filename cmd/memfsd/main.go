package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/memfsd/internal/logger"
	"github.com/marmos91/memfsd/pkg/config"
	"github.com/marmos91/memfsd/pkg/server"
	"github.com/spf13/pflag"
)

const usage = `memfsd - multi-client in-memory file server

Usage:
  memfsd [flags]               Start the server
  memfsd init [--force]        Write a default configuration file

Flags:
`

func main() {
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := runInit(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(os.Args[1:]); err != nil {
		logger.Error("memfsd: %v", err)
		os.Exit(1)
	}
}

// runInit writes a commented default configuration file.
func runInit(args []string) error {
	fs := pflag.NewFlagSet("init", pflag.ContinueOnError)
	configPath := fs.String("config", "", "where to write the file (default: "+config.GetDefaultConfigPath()+")")
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := *configPath
	if path == "" {
		var err error
		if path, err = config.InitConfig(*force); err != nil {
			return err
		}
	} else if err := config.InitConfigToPath(path, *force); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", path)
	return nil
}

func run(args []string) error {
	fs := pflag.NewFlagSet("memfsd", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	configPath := fs.String("config", "", "configuration file (default: "+config.GetDefaultConfigPath()+")")
	config.BindFlags(fs)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.LoadWithFlags(*configPath, fs)
	if err != nil {
		return err
	}

	if err := config.ConfigureLogging(&cfg.Logging); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("memfsd starting (log level %s)", cfg.Logging.Level)

	services, err := config.InitializeServices(cfg)
	if err != nil {
		return err
	}

	metricsResult := config.InitializeMetrics(cfg)

	snapshots, err := config.CreateSnapshotStore(ctx, &cfg.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to create snapshot store: %w", err)
	}
	if snapshots != nil {
		defer func() {
			if err := snapshots.Close(); err != nil {
				logger.Error("Failed to close snapshot store: %v", err)
			}
		}()
		logger.Info("Snapshot store: %s (restore_on_start=%v, save_on_shutdown=%v)",
			snapshots.Type(), cfg.Snapshot.RestoreOnStart, cfg.Snapshot.SaveOnShutdown)
	} else {
		logger.Info("Snapshot store: none (tables are lost on exit)")
	}

	adapters, err := config.CreateAdapters(cfg, metricsResult.SocketMetrics)
	if err != nil {
		return err
	}

	srv := server.New(services, server.Options{
		Snapshots:       snapshots,
		RestoreOnStart:  cfg.Snapshot.RestoreOnStart,
		SaveOnShutdown:  cfg.Snapshot.SaveOnShutdown,
		SnapshotMetrics: metricsResult.SnapshotMetrics,
		MetricsServer:   metricsResult.Server,
		StopTimeout:     cfg.Server.ShutdownTimeout,
	})

	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			return err
		}
	}

	logger.Info("Press Ctrl+C to stop")

	// A failed final save comes back joined to context.Canceled
	if err := srv.Serve(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
