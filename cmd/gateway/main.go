package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"visionserver/internal/app"
	"visionserver/internal/config"
	"visionserver/internal/logger"
)

func main() {
	port := flag.IntP("port", "p", 0, "listen port (overrides GATEWAY_PORT)")
	backendURL := flag.String("backend-url", "", "detection server URL (overrides AI_BACKEND_URL)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.GatewayPort = *port
	}
	if *backendURL != "" {
		cfg.AIBackendURL = *backendURL
	}

	appLogger, err := logger.NewLogger(cfg.LogDirectory)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Close()

	gw, err := app.NewGatewayApp(cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize gateway: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := gw.Run(ctx); err != nil {
		appLogger.Error("Gateway stopped: %v", err)
		os.Exit(1)
	}
}
