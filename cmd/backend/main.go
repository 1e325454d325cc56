package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"analytica-chat/internal/app"
	"analytica-chat/internal/config"
	"analytica-chat/internal/telemetry"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.LoadBackend(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	if _, _, err := telemetry.InitLogger(telemetry.LogOptions{Level: cfg.LogLevel}); err != nil {
		slog.Error("failed to init logger", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := app.NewBackendHandler(ctx, cfg)
	if err != nil {
		slog.Error("failed to build handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
