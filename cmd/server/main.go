package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/lockboxhq/lockbox/internal/server"
	"github.com/lockboxhq/lockbox/internal/server/config"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Printf("config: %v", err)
		os.Exit(1)
	}

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("startup: %v", err)
		if errors.Is(err, server.ErrMigration) {
			os.Exit(2)
		}
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("server: %v", err)
		os.Exit(1)
	}
}
