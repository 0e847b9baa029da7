// Command generate runs the synthesis pipeline once, without the HTTP server,
// and writes the resulting document to a file or stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/playforge/api/internal/anthropic"
	"github.com/playforge/api/internal/config"
	"github.com/playforge/api/internal/models"
	"github.com/playforge/api/internal/synthesis"
)

func main() {
	prompt := flag.String("prompt", "", "game idea")
	out := flag.String("out", "", "output file (default stdout)")
	local := flag.Bool("local", false, "skip the external generator")
	verbose := flag.Bool("v", false, "log pipeline steps to stderr")
	flag.Parse()

	if strings.TrimSpace(*prompt) == "" {
		log.Fatal("Missing -prompt")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// logs go to stderr so stdout carries only the document
	logger := zap.NewNop()
	if *verbose {
		zapConfig := zap.NewDevelopmentConfig()
		zapConfig.OutputPaths = []string{"stderr"}
		if logger, err = zapConfig.Build(); err != nil {
			log.Fatalf("Failed to create logger: %v", err)
		}
	}
	defer logger.Sync()

	var generator synthesis.Generator
	if !*local {
		generator = anthropic.NewClient(cfg.Anthropic, nil)
	}
	service := synthesis.NewService(generator, logger, nil)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	outcome, err := service.Generate(ctx, models.GenerationRequest{Prompt: *prompt})
	if err != nil {
		log.Fatalf("Generation failed: %v", err)
	}

	if *out == "" {
		fmt.Println(outcome.Result.Document)
	} else if err := os.WriteFile(*out, []byte(outcome.Result.Document), 0o644); err != nil {
		log.Fatalf("Failed to write %s: %v", *out, err)
	}

	log.Printf("source=%s variant=%s bytes=%d took=%s", outcome.Source, outcome.Variant, len(outcome.Result.Document), time.Since(start).Round(time.Millisecond))
	if outcome.Result.Note != "" {
		log.Printf("note: %s", outcome.Result.Note)
	}
}
