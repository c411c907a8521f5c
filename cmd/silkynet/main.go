package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/mithun50/silkynet/internal/config"
	"github.com/mithun50/silkynet/internal/inference"
	"github.com/mithun50/silkynet/internal/logging"
	"github.com/mithun50/silkynet/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("silkynet %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("silkynet - organism counting service")
			fmt.Println()
			fmt.Println("Usage: silkynet [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Configuration is read from config.yaml in the working directory.")
			return
		}
	}

	cfg := config.New()

	log, err := logging.New(cfg.Server.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	server.Version = Version

	// The model client is built once at startup and injected; a dead
	// endpoint shows up in /api/health rather than at first request.
	source := inference.NewHTTPSource(
		cfg.Model.Endpoint,
		cfg.Mask.Width,
		cfg.Mask.Height,
		cfg.Model.MaxConcurrent,
	)

	srv := server.New(cfg, log, source)

	log.Info("starting silkynet",
		zap.String("version", Version),
		zap.String("model_endpoint", cfg.Model.Endpoint),
		zap.Int("mask_width", cfg.Mask.Width),
		zap.Int("mask_height", cfg.Mask.Height))

	if err := srv.Run(); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
