// Command flowmium-init is the Init Side-car binary (spec.md §4.8): the
// same image runs twice per task pod, selected by its first argument
// ("fetch" as an init container, "push" alongside the main container).
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/flowmium-io/flowmium/internal/artifacts"
	"github.com/flowmium-io/flowmium/internal/platform/logger"
	"github.com/flowmium-io/flowmium/internal/sidecar"
)

func main() {
	log, err := logger.New(strings.TrimSpace(os.Getenv("LOG_MODE")))
	if err != nil {
		fmt.Fprintln(os.Stderr, "flowmium-init: failed to build logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if len(os.Args) < 2 {
		log.Fatal("usage: flowmium-init {fetch|push}")
	}
	subcommand := os.Args[1]

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	cfg, err := sidecar.LoadConfigFromEnv()
	if err != nil {
		log.Fatal("load config", "error", err)
	}

	bucket := strings.TrimSpace(os.Getenv("BUCKET_NAME"))
	storeURL := strings.TrimSpace(os.Getenv("STORE_URL"))
	client, err := artifacts.New(ctx, bucket, storeURL, log)
	if err != nil {
		log.Fatal("build artifact client", "error", err)
	}

	switch subcommand {
	case "fetch":
		if err := sidecar.Fetch(ctx, cfg, client, log); err != nil {
			log.Fatal("fetch failed", "error", err)
		}
	case "push":
		if err := sidecar.Push(ctx, cfg, client, log); err != nil {
			log.Fatal("push failed", "error", err)
		}
	default:
		log.Fatal("unknown subcommand", "subcommand", subcommand)
	}
}
