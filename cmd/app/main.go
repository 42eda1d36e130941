package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"TradePulse/internal/di"
	"TradePulse/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	mode := flag.String("mode", "serve", "run mode: run | aggregate | worker | serve")
	flag.Parse()

	// Load .env if present, then config with env overrides
	_ = godotenv.Load()
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s mode=%s dispatcher=%s", cfg.Environment, *mode, cfg.Run.Dispatcher)

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	ctx := context.Background()
	switch *mode {
	case "run":
		err = app.RunOnce(ctx)
	case "aggregate":
		err = app.AggregateOnce(ctx)
	case "worker":
		err = app.Worker(ctx)
	case "serve":
		err = app.Serve(ctx)
	default:
		log.Fatalf("unknown mode %q", *mode)
	}
	if err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
