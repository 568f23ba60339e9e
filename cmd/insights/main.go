package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	corecfg "github.com/plazalab/plaza-insights/internal/core/config"
	"github.com/plazalab/plaza-insights/internal/core/export"
	"github.com/plazalab/plaza-insights/internal/fetch"
	"github.com/plazalab/plaza-insights/internal/server"
	"github.com/plazalab/plaza-insights/internal/stats"
)

func main() {
	configPath := flag.String("config", "insights.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config",
		"backend", cfg.Backend.BaseURL,
		"timeout", cfg.Backend.Timeout(),
		"definitions", len(cfg.Definitions.List()),
	)

	// 2. Initialize Backend Client
	client := fetch.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout(), fetch.StaticToken(cfg.Backend.Token()))

	// 3. Initialize Stats Service
	downloader := export.NewFileDownloader(cfg.Reports.OutputDir)
	statsSvc := stats.NewService(client, cfg.Definitions, downloader)

	// 4. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), client, cfg.Server.Mode)
	statsSvc.RegisterRoutes(srv.Engine)

	// 5. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handler → triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
