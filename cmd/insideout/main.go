// Package main runs the insideout emotion-response API server.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/potipress/insideout/internal/app"
	"github.com/potipress/insideout/internal/config"
	"github.com/potipress/insideout/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	flag.Parse()

	// A .env file is optional; real environments set variables directly.
	_ = godotenv.Load()

	if v := os.Getenv("INSIDEOUT_CONFIG"); v != "" && *configPath == "" {
		*configPath = v
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.NewDefault("main").Errorf("load configuration: %v", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	log := logger.New(cfg.Logging).WithComponent("main")

	stores, db, err := app.NewStores(cfg, log.WithComponent("storage"))
	if err != nil {
		log.Errorf("open storage: %v", err)
		os.Exit(1)
	}

	application, err := app.New(cfg, stores, db, logger.New(cfg.Logging))
	if err != nil {
		log.Errorf("assemble application: %v", err)
		os.Exit(1)
	}
	defer application.Close()

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      application.Handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s (driver=%s)", cfg.Server.Addr, cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Errorf("server error: %v", err)
		os.Exit(1)
	case sig := <-sigCh:
		log.Infof("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("shutdown: %v", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
