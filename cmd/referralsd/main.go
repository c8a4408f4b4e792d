package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joseph-ayodele/referral-intake/internal/app"
	"github.com/joseph-ayodele/referral-intake/internal/common"
	"github.com/joseph-ayodele/referral-intake/internal/metrics"
	"github.com/joseph-ayodele/referral-intake/internal/server"
)

const serviceName = "referralsd"

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML config file")
	flag.Parse()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := common.NewLogger(serviceName, cfg.Log.Level)
	if err := cfg.Validate(); err != nil {
		logger.Error("config invalid", "error", err)
		os.Exit(1)
	}

	// Context with signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(serviceName)
	a, err := app.New(cfg, logger, m)
	if err != nil {
		logger.Error("wire app", "error", err)
		os.Exit(1)
	}

	srv := server.NewServer(cfg.Server, server.Deps{
		Extractor:   a.Processor,
		Exporter:    a.Exporter,
		Metrics:     m,
		AIAvailable: a.AIAvailable,
	}, logger)

	errCh := make(chan error, 2)
	go func() { errCh <- srv.Start() }()

	var health *server.HealthServer
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("grpc listen", "addr", cfg.Server.GRPCAddr, "error", err)
			os.Exit(1)
		}
		health = server.NewHealthServer(logger)
		go func() { errCh <- health.Serve(lis) }()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped", "error", err)
		}
	}

	if health != nil {
		health.Stop()
	}
	shutdownCtx, cancel := common.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("http shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}
