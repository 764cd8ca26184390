package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"benchhub/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	app := NewApplication()

	if err := app.Initialize(); err != nil {
		logger.Fatalf("initialization failed: %v", err)
	}
	if err := app.Start(); err != nil {
		logger.Fatalf("startup failed: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logger.Infof("Caught %v, shutting down", sig)

	if err := app.Shutdown(shutdownTimeout); err != nil {
		logger.Errorf("shutdown did not complete cleanly: %v", err)
		os.Exit(1)
	}
	logger.Infof("Orchestrator stopped")
}
