package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"visionserver/internal/config"
	"visionserver/internal/logger"
	"visionserver/internal/repository"
	"visionserver/internal/repository/sqlite"
	"visionserver/internal/route"
	"visionserver/internal/service"
	"visionserver/internal/service/ai"
	"visionserver/internal/service/storage"
	"visionserver/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

// App is the detection server.
type App struct {
	config           *config.Config
	logger           *logger.Logger
	db               *sqlite.DB
	detector         ai.Detector
	hubService       *websocket.HubService
	detectionService *service.DetectionService
	handler          http.Handler
}

// NewApp loads the model, opens the history database and wires the routes.
func NewApp(cfg *config.Config, logger *logger.Logger) (*App, error) {
	detector, err := ai.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load detector: %w", err)
	}

	var (
		db         *sqlite.DB
		results    repository.ResultRepository
		detections repository.DetectionRepository
	)
	if cfg.DBPath != "" {
		db, err = sqlite.New(cfg.DBPath)
		if err != nil {
			detector.Close()
			return nil, err
		}
		results = sqlite.NewResultRepository(db)
		detections = sqlite.NewDetectionRepository(db)
	} else {
		logger.Warning("DB_PATH is empty, detection history disabled")
	}

	hub := websocket.NewHubService(logger)
	store := storage.NewArtifactStore(cfg.OutputDirectory, logger)
	detectionService := service.NewDetectionService(detector, store, results, hub, logger)

	return &App{
		config:           cfg,
		logger:           logger,
		db:               db,
		detector:         detector,
		hubService:       hub,
		detectionService: detectionService,
		handler:          route.SetupRoutes(detectionService, hub, cfg, logger, results, detections),
	}, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	go a.hubService.Run()
	defer a.close()

	a.logger.Info("🚀 Detection server on http://localhost:%d", a.config.Port)
	a.logger.Info("🤖 Model: %s (%s backend)", a.config.ModelPath, a.config.DetectorBackend)
	a.logger.Info("📁 Outputs: %s", a.config.OutputDirectory)

	return serve(ctx, a.logger, a.config.Port, a.handler)
}

func (a *App) close() {
	a.hubService.Stop()
	if err := a.detector.Close(); err != nil {
		a.logger.Error("Error closing detector: %v", err)
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Error closing database: %v", err)
		}
	}
}

// serve runs an HTTP server on port until ctx is done.
func serve(ctx context.Context, logger *logger.Logger, port int, handler http.Handler) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("Shutting down server on :%d", port)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
