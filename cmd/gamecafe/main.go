package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	_ "github.com/kirinyoku/gamecafe/docs"
	"github.com/kirinyoku/gamecafe/internal/app"
	"github.com/kirinyoku/gamecafe/internal/config"
	"github.com/kirinyoku/gamecafe/internal/logger"
)

// @title GameCafe API
// @version 1.0
// @description Sessions, billing, wallets and devices for gaming cafés.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.New()
	if err != nil {
		boot, _ := logger.New(nil, "")
		boot.Fatal("failed to load config", zap.Error(err))
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}, "")
	if err != nil {
		os.Stderr.WriteString("failed to create logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to create application", zap.Error(err))
	}

	if err := application.Run(ctx); err != nil {
		log.Error("application finished with error", zap.Error(err))
		os.Exit(1)
	}
}
