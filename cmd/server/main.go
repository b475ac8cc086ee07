package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/dgallion1/pdfloc/internal/config"
	"github.com/dgallion1/pdfloc/internal/server"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := server.Run(context.Background(), cfg, log); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
