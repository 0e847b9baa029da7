package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/playforge/api/internal/middleware"
	"github.com/playforge/api/internal/models"
	"github.com/playforge/api/internal/synthesis"
)

// MaxRequestBytes bounds the generate request body
const MaxRequestBytes = 1 << 20

// EventPublisher receives metadata about each served document
type EventPublisher interface {
	PublishGeneration(evt models.GenerationEvent) error
}

// GenerationHandler serves the generate-game endpoint
type GenerationHandler struct {
	service *synthesis.Service
	events  EventPublisher
	timeout time.Duration
	logger  *zap.Logger
}

// NewGenerationHandler creates a new generation handler. events may be nil.
func NewGenerationHandler(service *synthesis.Service, events EventPublisher, timeout time.Duration, logger *zap.Logger) *GenerationHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GenerationHandler{service: service, events: events, timeout: timeout, logger: logger}
}

// GenerateGame turns a game idea into a playable HTML document
// @Summary Generate a game
// @Description Returns one self-contained HTML document for the idea. A local example is returned when external generation is unavailable.
// @Tags generation
// @Accept json
// @Produce json
// @Param request body models.GenerationRequest true "Game idea"
// @Success 200 {object} models.GenerationResult
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 413 {object} middleware.ErrorResponse
// @Failure 429 {object} middleware.ErrorResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /generate-game [post]
func (h *GenerationHandler) GenerateGame(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxRequestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.RequestTooLarge(c)
			return
		}
		h.logger.Warn("failed to read request body", zap.Error(err))
		middleware.BadRequest(c, middleware.MsgMissingPrompt)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	outcome, err := h.service.Handle(ctx, raw)
	switch {
	case errors.Is(err, synthesis.ErrInvalidRequest):
		h.logger.Warn("rejected generate request", zap.Error(err))
		middleware.BadRequest(c, middleware.MsgMissingPrompt)
		return
	case err != nil:
		h.logger.Error("generation failed", zap.Error(err))
		_ = c.Error(err)
		middleware.InternalError(c)
		return
	}

	h.publish(c, outcome)
	c.PureJSON(http.StatusOK, outcome.Result)
}

func (h *GenerationHandler) publish(c *gin.Context, outcome *synthesis.Outcome) {
	if h.events == nil {
		return
	}
	evt := models.GenerationEvent{
		ID:        uuid.NewString(),
		RequestID: middleware.GetRequestID(c),
		Source:    outcome.Source,
		Variant:   outcome.Variant,
		LatencyMs: outcome.Latency.Milliseconds(),
		DocBytes:  len(outcome.Result.Document),
		CreatedAt: time.Now().Unix(),
	}
	if err := h.events.PublishGeneration(evt); err != nil {
		h.logger.Warn("failed to publish generation event", zap.Error(err))
	}
}
