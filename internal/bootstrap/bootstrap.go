package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"vocalis-server-go/internal/domain/voice"
	"vocalis-server-go/internal/domain/voice/onnx"
	"vocalis-server-go/internal/platform/config"
	"vocalis-server-go/internal/platform/logging"
	httptransport "vocalis-server-go/internal/transport/http"
	"vocalis-server-go/internal/transport/http/cloneapi"
)

const shutdownTimeout = 10 * time.Second

// Run loads configuration, wires the pipeline and serves the HTTP API until
// the context is cancelled or a termination signal arrives.
func Run(ctx context.Context, configPath string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewLoader(configPath).Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	server, err := BuildServer(ctx, cfg, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.InfoTag("Boot", "listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.InfoTag("Boot", "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// BuildServer assembles the HTTP server without starting it. Models are not
// loaded here; the pipeline loads them lazily on the first real request.
func BuildServer(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*http.Server, error) {
	pipeline := voice.NewPipeline(cfg, logger, onnx.Loader(cfg.Models, logger))

	router, err := httptransport.Build(httptransport.Options{
		Config: cfg,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}

	service := cloneapi.NewService(cfg, logger, pipeline)
	if err := service.Start(ctx, router.API); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}

	return &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.IP, cfg.Server.Port),
		Handler: router.Engine,
	}, nil
}
