// Package synthesis runs the prompt-to-document pipeline: validate, call the
// external generator, extract a document, and fall back to a local game
// whenever the external path cannot deliver one.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/playforge/api/internal/anthropic"
	"github.com/playforge/api/internal/extract"
	"github.com/playforge/api/internal/fallback"
	"github.com/playforge/api/internal/models"
	"github.com/playforge/api/internal/telemetry"
)

var tracer = otel.Tracer("github.com/playforge/api/internal/synthesis")

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternal       = errors.New("internal error")
)

// Notes attached to results that did not come from a clean external success.
// An unusable reply shares the failure note with a failed call.
const (
	NoteUnconfigured    = "Local generator used (no API key configured)."
	NoteExternalFailure = "External generation failed; a local example was returned."
)

// Generator performs one call to the external generation service. Expected
// failures are reported as *anthropic.Failure.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*models.ExternalReply, error)
}

// Outcome is a result plus how it was produced
type Outcome struct {
	Result   models.GenerationResult
	Source   models.Source
	Variant  string
	Strategy extract.Strategy
	Latency  time.Duration
}

// Service sequences the pipeline. It holds no per-request state.
type Service struct {
	generator Generator
	logger    *zap.Logger
	metrics   *telemetry.Metrics
}

// NewService creates a service. A nil generator always uses the local path.
func NewService(generator Generator, logger *zap.Logger, metrics *telemetry.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{generator: generator, logger: logger, metrics: metrics}
}

// Handle validates raw and generates a document for it
func (s *Service) Handle(ctx context.Context, raw []byte) (*Outcome, error) {
	req, err := ParseRequest(raw)
	if err != nil {
		return nil, err
	}
	return s.Generate(ctx, req)
}

// Generate produces a document for an already validated request. The only
// errors returned wrap ErrInternal; every expected failure ends in a fallback.
func (s *Service) Generate(ctx context.Context, req models.GenerationRequest) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "synthesis.Generate")
	defer span.End()
	span.SetAttributes(attribute.Int("prompt.length", len(req.Prompt)))

	start := time.Now()
	outcome, err := s.generate(ctx, req.Prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	outcome.Latency = time.Since(start)
	span.SetAttributes(attribute.String("generation.source", string(outcome.Source)))
	s.metrics.ObserveGeneration(string(outcome.Source), outcome.Variant, outcome.Latency)
	return outcome, nil
}

func (s *Service) generate(ctx context.Context, prompt string) (*Outcome, error) {
	if s.generator == nil {
		return s.fallback(prompt, models.SourceFallbackUnconfigured, NoteUnconfigured)
	}

	reply, err := s.generator.Generate(ctx, prompt)
	switch {
	case err == nil:
	case anthropic.IsUnconfigured(err):
		s.logger.Info("no API key configured, using local generator")
		return s.fallback(prompt, models.SourceFallbackUnconfigured, NoteUnconfigured)
	case anthropic.IsExternalFailure(err):
		s.logExternalFailure(err)
		return s.fallback(prompt, models.SourceFallbackExternalFailure, NoteExternalFailure)
	default:
		return nil, fmt.Errorf("%w: generator: %v", ErrInternal, err)
	}

	doc, strategy := extract.DocumentWithStrategy(reply)
	s.metrics.ObserveExtraction(string(strategy))
	if strategy == extract.StrategyNone {
		fields := []zap.Field{zap.Int("text_blocks", len(reply.TextBlocks()))}
		if reply != nil {
			fields = append(fields, zap.String("stop_reason", reply.StopReason))
		}
		s.logger.Warn("external reply has no usable document", fields...)
		return s.fallback(prompt, models.SourceFallbackUnusable, NoteExternalFailure)
	}

	s.logger.Info("external document extracted",
		zap.String("strategy", string(strategy)),
		zap.Int("doc_bytes", len(doc)),
	)
	return &Outcome{
		Result:   models.GenerationResult{Document: doc},
		Source:   models.SourceExternal,
		Strategy: strategy,
	}, nil
}

func (s *Service) fallback(prompt string, source models.Source, note string) (*Outcome, error) {
	doc, variant, err := fallback.Render(prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	s.logger.Info("local document generated",
		zap.String("source", string(source)),
		zap.String("variant", variant.String()),
	)
	return &Outcome{
		Result:   models.GenerationResult{Document: doc, Note: note},
		Source:   source,
		Variant:  variant.String(),
		Strategy: extract.StrategyNone,
	}, nil
}

func (s *Service) logExternalFailure(err error) {
	var failure *anthropic.Failure
	if !errors.As(err, &failure) {
		return
	}
	s.metrics.ObserveUpstreamFailure(string(failure.Reason))

	fields := []zap.Field{
		zap.String("reason", string(failure.Reason)),
		zap.Error(err),
	}
	if failure.Status != 0 {
		fields = append(fields, zap.Int("status", failure.Status))
	}
	if failure.Body != "" {
		fields = append(fields, zap.String("body", failure.Body))
	}
	s.logger.Error("external generation failed", fields...)
}
