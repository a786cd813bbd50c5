package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ivlev/cleo/internal/config"
	"github.com/ivlev/cleo/internal/server"
	"github.com/ivlev/cleo/internal/system"
	"github.com/ivlev/cleo/internal/waitlist"
)

func main() {
	configPath := flag.String("config", "", "Path to cleo.yaml (defaults are used when empty)")
	addr := flag.String("addr", "", "Listen address, overrides server.addr")
	framesDir := flag.String("frames", "", "Directory with animation frames, overrides server.frames_dir")
	migrate := flag.Bool("migrate", false, "Create the waitlist table before serving")
	memoryStore := flag.Bool("memory-waitlist", false, "Keep waitlist signups in memory when no database is configured")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	system.InitResourceLimits(4096)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *framesDir != "" {
		cfg.Server.FramesDir = *framesDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store waitlist.Store
	switch {
	case cfg.Waitlist.DatabaseURL != "":
		pg, err := waitlist.OpenPostgres(cfg.Waitlist.DatabaseURL, cfg.Waitlist.Table)
		if err != nil {
			slog.Error("failed to open waitlist database", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		if *migrate {
			if err := pg.Migrate(ctx); err != nil {
				slog.Error("failed to migrate waitlist table", "error", err)
				os.Exit(1)
			}
		}
		store = pg
	case *memoryStore:
		store = waitlist.NewMemoryStore()
	default:
		slog.Warn("waitlist store not configured, submissions will return 503", "env", config.EnvDatabaseURL)
	}

	srv, err := server.New(cfg, store, logger)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
