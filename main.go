package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"exercisetracker/internal/app"
	"exercisetracker/internal/config"
	"exercisetracker/internal/logging"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log, err := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}

	application, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Infof("Your app is listening on %s", cfg.Addr())
		if err := application.Server.Listen(cfg.Addr()); err != nil {
			log.WithError(err).Error("Server stopped")
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	log.Info("Shutting down server...")

	if err := application.Server.Shutdown(); err != nil {
		log.WithError(err).Error("Error during Fiber shutdown")
	}
	if err := application.Close(); err != nil {
		log.WithError(err).Error("Error releasing resources")
	}
	log.Info("Server gracefully stopped")
}
