// Command smoke posts one prompt to a running server and reports what came back.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/playforge/api/internal/models"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	prompt := flag.String("prompt", "a pong game", "game idea to send")
	flag.Parse()

	client := &http.Client{Timeout: 45 * time.Second}

	// Retry loop for server startup
	var health *http.Response
	var err error
	for i := 0; i < 10; i++ {
		health, err = client.Get(*baseURL + "/health")
		if err == nil {
			break
		}
		log.Printf("Server not ready, retrying in 1s... (%v)", err)
		time.Sleep(1 * time.Second)
	}
	if err != nil {
		log.Fatalf("Server never became healthy: %v", err)
	}
	health.Body.Close()

	jsonBody, _ := json.Marshal(models.GenerationRequest{Prompt: *prompt})
	start := time.Now()
	resp, err := client.Post(*baseURL+"/api/generate-game", "application/json", bytes.NewReader(jsonBody))
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Failed to read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Expected 200 OK, got %d. Body: %s", resp.StatusCode, body)
	}

	var result models.GenerationResult
	if err := json.Unmarshal(body, &result); err != nil {
		log.Fatalf("Response is not a generation result: %v", err)
	}

	lower := strings.ToLower(strings.TrimSpace(result.Document))
	if !strings.HasPrefix(lower, "<!doctype html") && !strings.HasPrefix(lower, "<html") {
		log.Fatalf("Document does not start with a doctype or <html>: %.80q", result.Document)
	}

	log.Printf("SUCCESS: %d bytes in %s", len(result.Document), time.Since(start).Round(time.Millisecond))
	if result.Note != "" {
		log.Printf("Note: %s", result.Note)
	}
}
