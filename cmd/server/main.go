package main

import (
	"log/slog"
	"os"

	"go-auth-starter/internal/app"
	"go-auth-starter/internal/logger"
)

func main() {
	logger.Setup(os.Stdout, os.Getenv("LOG_FORMAT"), slog.LevelInfo)

	application, err := app.New()
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}
