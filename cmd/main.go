package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"portfolio-chat-proxy/internal/app"
	"portfolio-chat-proxy/internal/config"
)

func main() {
	ctx := context.Background()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := app.NewHandler(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	slog.Info("chat proxy ready",
		"allowed_origins", cfg.AllowedOrigins,
		"usage_ledger", cfg.UsageTable != "",
		"key_from_ssm", cfg.APIKey == "",
	)
	lambda.Start(h.Handle)
}
