package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/agenc-io/agenc-registry/pkg/api"
	"github.com/agenc-io/agenc-registry/pkg/config"
	"github.com/agenc-io/agenc-registry/pkg/ledger"
	"github.com/agenc-io/agenc-registry/pkg/node"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	store, err := ledger.OpenDBStore(cfg.DataDir)
	if err != nil {
		logger.Fatal("failed to open ledger store", zap.Error(err))
	}
	l := ledger.New(store)
	defer l.Close()

	n, err := node.New(cfg, l, logger)
	if err != nil {
		logger.Fatal("failed to create node", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := n.Start(ctx); err != nil {
		logger.Fatal("failed to start node", zap.Error(err))
	}

	apiServer, err := api.NewAPI(n.Chain(), logger.Named("api"), cfg.APIPort)
	if err != nil {
		logger.Fatal("failed to create API server", zap.Error(err))
	}

	go func() {
		if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("API server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	// Graceful shutdown
	if err := n.Stop(); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Error("error shutting down API server", zap.Error(err))
	}
}
