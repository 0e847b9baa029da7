// Command testconn checks that the optional Redis and NATS endpoints are reachable.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/playforge/api/internal/config"
	"github.com/playforge/api/internal/database"
	"github.com/playforge/api/internal/eventbus"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	failed := false

	if cfg.RedisURL == "" {
		fmt.Println("Redis: not configured (REDIS_URL)")
	} else {
		fmt.Println("Connecting to Redis...")
		rdb, err := database.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			fmt.Printf("Error connecting to Redis: %v\n", err)
			failed = true
		} else {
			fmt.Println("Redis connection successful!")
			rdb.Close()
		}
	}

	if cfg.NATSURL == "" {
		fmt.Println("NATS: not configured (NATS_URL)")
	} else {
		fmt.Println("Connecting to NATS...")
		pub, err := eventbus.Connect(cfg.NATSURL)
		if err != nil {
			fmt.Printf("Error connecting to NATS: %v\n", err)
			failed = true
		} else {
			fmt.Println("NATS status:", pub.Status())
			pub.Close()
		}
	}

	if cfg.Anthropic.Configured() {
		fmt.Println("Generator: external,", cfg.Anthropic.Model)
	} else {
		fmt.Println("Generator: local only (ANTHROPIC_API_KEY not set)")
	}

	if failed {
		os.Exit(1)
	}
}
