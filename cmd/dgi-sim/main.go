package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hypernova-labs/dgi-console/internal/config"
	"github.com/hypernova-labs/dgi-console/internal/simulator"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	logger := setupLogger(cfg)
	logger.Info("Starting DGI simulator...")

	gin.SetMode(gin.ReleaseMode)

	store, err := simulator.NewStore(cfg.Redis, logger)
	if err != nil {
		logger.Fatalf("Error opening store: %v", err)
	}
	defer store.Close()

	apiHandler := simulator.NewAPI(store, cfg.Sim, logger)
	router := apiHandler.Router()
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "dgi-sim",
		})
	})

	server := &http.Server{
		Addr:         cfg.SimAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	agentServer := &http.Server{
		Addr:    cfg.SimAgentAddr(),
		Handler: simulator.NewAgentStub(cfg.Sim.AgentMode, logger),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Infof("Backend simulator listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	go func() {
		logger.Infof("Signing agent stub listening on %s (mode %s)", agentServer.Addr, cfg.Sim.AgentMode)
		if err := agentServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Error starting agent stub: %v", err)
		}
	}()

	<-quit
	logger.Info("Shutting down simulator...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}
	if err := agentServer.Shutdown(ctx); err != nil {
		logger.Errorf("Agent stub forced to shutdown: %v", err)
	}

	logger.Info("Simulator exited")
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}
