package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tobenna/aria/internal/app"
	"github.com/tobenna/aria/internal/config"
	"github.com/tobenna/aria/internal/database"
	"github.com/tobenna/aria/internal/server"
	"github.com/tobenna/aria/pkg/Logger"
)

// Entry point for the voice turn API server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := Logger.New(cfg.Debug)
	logger.Info("Logger initialized")

	db, err := database.InitDB(*cfg)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.MigrateDB(db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	rc, err := database.NewRedis(cfg.Redis)
	if err != nil {
		// the turn cache is an accelerator, not a dependency
		logger.Warnf("Redis unavailable, history served from database only: %v", err)
		rc = nil
	}

	application, err := app.NewApp(cfg, logger, db, rc)
	if err != nil {
		logger.Fatalf("Failed to wire application: %v", err)
	}
	defer application.Close()

	router := gin.Default()
	server.InitializeRoutes(router, application.GetServerDependencies())

	port := cfg.Port
	if port == 0 {
		port = 8080
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router.Handler(),
	}
	go func() {
		logger.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server exiting %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Shutdown err %v", err)
	}
	logger.Info("Shutdown system")
}
