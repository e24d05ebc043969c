package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/meghashyamc/driveindex/api"
	"github.com/meghashyamc/driveindex/config"
)

// The indexing backend. Searches are served by cmd/search against it.
func main() {
	godotenv.Load()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %s\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := api.Run(ctx, cfg); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
