package app

import (
	"context"
	"net/http"

	"visionserver/internal/config"
	"visionserver/internal/gateway"
	"visionserver/internal/logger"
)

// GatewayApp is the public-facing proxy in front of the detection server.
type GatewayApp struct {
	config  *config.Config
	logger  *logger.Logger
	handler http.Handler
}

// NewGatewayApp wires the gateway routes.
func NewGatewayApp(cfg *config.Config, logger *logger.Logger) (*GatewayApp, error) {
	g, err := gateway.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &GatewayApp{
		config:  cfg,
		logger:  logger,
		handler: gateway.SetupRoutes(g, logger),
	}, nil
}

// Run serves until ctx is cancelled.
func (a *GatewayApp) Run(ctx context.Context) error {
	a.logger.Info("🌐 Gateway on http://localhost:%d -> %s", a.config.GatewayPort, a.config.AIBackendURL)
	return serve(ctx, a.logger, a.config.GatewayPort, a.handler)
}
