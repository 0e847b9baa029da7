package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/playforge/api/internal/anthropic"
	"github.com/playforge/api/internal/config"
	"github.com/playforge/api/internal/fallback"
	"github.com/playforge/api/internal/middleware"
	"github.com/playforge/api/internal/models"
	"github.com/playforge/api/internal/synthesis"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type upstream struct {
	server *httptest.Server
	hits   atomic.Int32
}

func newUpstream(t *testing.T, handler http.HandlerFunc) *upstream {
	t.Helper()
	u := &upstream{}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(u.server.Close)
	return u
}

type recordingPublisher struct {
	events []models.GenerationEvent
	err    error
}

func (p *recordingPublisher) PublishGeneration(evt models.GenerationEvent) error {
	p.events = append(p.events, evt)
	return p.err
}

func newRouter(t *testing.T, apiKey, baseURL string, timeout time.Duration, events EventPublisher) *gin.Engine {
	t.Helper()
	logger := zaptest.NewLogger(t)
	client := anthropic.NewClient(config.AnthropicConfig{APIKey: apiKey, BaseURL: baseURL}, nil)
	svc := synthesis.NewService(client, logger, nil)
	h := NewGenerationHandler(svc, events, timeout, logger)

	r := gin.New()
	r.Use(middleware.Recovery(), middleware.RequestID())
	r.POST("/api/generate-game", h.GenerateGame)
	return r
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/generate-game", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) models.GenerationResult {
	t.Helper()
	var res models.GenerationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func TestGenerateGameWithoutKey(t *testing.T) {
	events := &recordingPublisher{}
	r := newRouter(t, "", "", time.Second, events)

	w := post(r, `{"prompt":"pong"}`)
	require.Equal(t, http.StatusOK, w.Code)

	res := decodeResult(t, w)
	assert.True(t, strings.HasPrefix(res.Document, "<!DOCTYPE html>"))
	assert.Equal(t, synthesis.NoteUnconfigured, res.Note)

	// the document is written without HTML escaping
	assert.Contains(t, w.Body.String(), `"document":"<!DOCTYPE html>`)

	require.Len(t, events.events, 1)
	assert.Equal(t, models.SourceFallbackUnconfigured, events.events[0].Source)
	assert.Equal(t, "pong", events.events[0].Variant)
	assert.Equal(t, len(res.Document), events.events[0].DocBytes)
	assert.NotEmpty(t, events.events[0].RequestID)
}

func TestGenerateGameUpstreamServerError(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error"}}`))
	})
	r := newRouter(t, "test-key", up.server.URL, time.Second, nil)

	w := post(r, `{"prompt":"a game about collecting stars"}`)
	require.Equal(t, http.StatusOK, w.Code)

	res := decodeResult(t, w)
	expected, variant, err := fallback.Render("a game about collecting stars")
	require.NoError(t, err)
	assert.Equal(t, fallback.VariantCollector, variant)
	assert.Equal(t, expected, res.Document)
	assert.Equal(t, synthesis.NoteExternalFailure, res.Note)
	assert.Equal(t, int32(1), up.hits.Load())
}

func TestGenerateGameFencedReply(t *testing.T) {
	doc := "<!DOCTYPE html><html><head><title>x</title></head><body><canvas></canvas></body></html>"
	up := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.ExternalReply{
			Content: []models.ContentBlock{{Type: "text", Text: "Sure!\n```html\n" + doc + "\n```\nHave fun."}},
		})
	})
	r := newRouter(t, "test-key", up.server.URL, time.Second, nil)

	w := post(r, `{"prompt":"a snake game"}`)
	require.Equal(t, http.StatusOK, w.Code)

	res := decodeResult(t, w)
	assert.Equal(t, doc, res.Document)
	assert.Empty(t, res.Note)
	assert.NotContains(t, w.Body.String(), `"note"`)
}

func TestGenerateGameUpstreamTimeout(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	r := newRouter(t, "test-key", up.server.URL, 50*time.Millisecond, nil)

	start := time.Now()
	w := post(r, `{"prompt":"flappy bird"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Less(t, time.Since(start), time.Second)

	res := decodeResult(t, w)
	assert.Equal(t, synthesis.NoteExternalFailure, res.Note)
	assert.Contains(t, res.Document, "location.reload")
}

func TestGenerateGameRejectsInvalidBodies(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r := newRouter(t, "test-key", up.server.URL, time.Second, nil)

	for _, body := range []string{`{"prompt":""}`, `{"prompt":"   "}`, `{}`, `{"prompt":7}`, `{"prompt":`} {
		w := post(r, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.JSONEq(t, `{"error":"Missing prompt"}`, w.Body.String(), body)
	}
	assert.Zero(t, up.hits.Load())
}

func TestGenerateGameBodyTooLarge(t *testing.T) {
	r := newRouter(t, "", "", time.Second, nil)

	w := post(r, `{"prompt":"`+strings.Repeat("a", MaxRequestBytes)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.JSONEq(t, `{"error":"Request too large"}`, w.Body.String())
}

type brokenGenerator struct{}

func (brokenGenerator) Generate(context.Context, string) (*models.ExternalReply, error) {
	return nil, errors.New("unexpected")
}

func TestGenerateGameInternalError(t *testing.T) {
	logger := zaptest.NewLogger(t)
	events := &recordingPublisher{}
	h := NewGenerationHandler(synthesis.NewService(brokenGenerator{}, logger, nil), events, time.Second, logger)
	r := gin.New()
	r.POST("/api/generate-game", h.GenerateGame)

	w := post(r, `{"prompt":"pong"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal error"}`, w.Body.String())
	assert.Empty(t, events.events)

	w = post(r, `{"prompt":" "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateGamePublishErrorIsIgnored(t *testing.T) {
	events := &recordingPublisher{err: errors.New("nats down")}
	r := newRouter(t, "", "", time.Second, events)

	w := post(r, `{"prompt":"pong"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, events.events, 1)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeStatus string

func (s fakeStatus) Status() string { return string(s) }

func TestHealth(t *testing.T) {
	r := gin.New()
	r.GET("/health", NewHealthHandler(nil, nil, false, "").Health)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestDeepHealth(t *testing.T) {
	tests := []struct {
		name       string
		handler    *HealthHandler
		wantStatus int
		wantDeps   map[string]string
	}{
		{
			name:       "nothing configured",
			handler:    NewHealthHandler(nil, nil, false, ""),
			wantStatus: http.StatusOK,
			wantDeps: map[string]string{
				"redis":     "not configured",
				"nats":      "not configured",
				"generator": "local only (no API key configured)",
			},
		},
		{
			name:       "all healthy",
			handler:    NewHealthHandler(fakePinger{}, fakeStatus("healthy"), true, "claude-test"),
			wantStatus: http.StatusOK,
			wantDeps: map[string]string{
				"redis":     "healthy",
				"nats":      "healthy",
				"generator": "external: claude-test",
			},
		},
		{
			name:       "redis down",
			handler:    NewHealthHandler(fakePinger{err: errors.New("refused")}, nil, true, "m"),
			wantStatus: http.StatusServiceUnavailable,
			wantDeps: map[string]string{
				"redis":     "unhealthy: refused",
				"nats":      "not configured",
				"generator": "external: m",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/health/deep", tt.handler.DeepHealth)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/deep", nil))
			assert.Equal(t, tt.wantStatus, w.Code)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantDeps, resp.Dependencies)
		})
	}
}
