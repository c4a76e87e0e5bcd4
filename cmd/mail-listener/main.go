package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tariffbench/internal/config"
	"tariffbench/internal/listener"
	"tariffbench/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	must(cfg.Require("OPENAI_API_KEY", cfg.OpenAIAPIKey))

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	svc := listener.NewService(db, cfg)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
