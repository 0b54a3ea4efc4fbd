package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/username/deskchat/internal/agent"
	"github.com/username/deskchat/internal/pkg/logutil"
	"github.com/username/deskchat/internal/server"
	"github.com/username/deskchat/internal/server/storage/sqlite"
	"github.com/username/deskchat/internal/server/ws"
	"github.com/username/deskchat/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logutil.New(logutil.Config{
		Level:   logutil.ParseLevel(cfg.Logging.Level),
		Format:  cfg.Logging.Format,
		Service: "deskchat-server",
	})

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	storage, err := sqlite.NewAdapter(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer storage.Close()

	roster := agent.NewRoster(cfg.Agents)
	responder := agent.NewResponder(cfg.LLM, logger)
	if responder.Enabled() {
		logger.Info("automated replies use configured model", logutil.Fields{"model": cfg.LLM.Model})
	} else {
		logger.Info("no model configured, automated replies are canned")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	handlers := server.NewHandlers(storage, roster, responder, hub, logger)
	handlers.SetupRoutes(router, cfg.Server.CORSEnabled)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", logutil.Fields{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", logutil.Fields{"error": err.Error()})
	}
}
