package synthesis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/playforge/api/internal/anthropic"
	"github.com/playforge/api/internal/config"
	"github.com/playforge/api/internal/extract"
	"github.com/playforge/api/internal/fallback"
	"github.com/playforge/api/internal/models"
	"github.com/playforge/api/internal/telemetry"
)

type fakeGenerator struct {
	reply   *models.ExternalReply
	err     error
	hits    int
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (*models.ExternalReply, error) {
	f.hits++
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func textReply(texts ...string) *models.ExternalReply {
	reply := &models.ExternalReply{}
	for _, t := range texts {
		reply.Content = append(reply.Content, models.ContentBlock{Type: models.ContentTypeText, Text: t})
	}
	return reply
}

func newTestService(t *testing.T, gen Generator) (*Service, *telemetry.Metrics) {
	t.Helper()
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	return NewService(gen, zaptest.NewLogger(t), metrics), metrics
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{name: "valid", body: `{"prompt":"a pong game"}`, want: "a pong game"},
		{name: "untrimmed prompt kept", body: `{"prompt":"  space  "}`, want: "  space  "},
		{name: "extra fields ignored", body: `{"prompt":"x","mode":"fast"}`, want: "x"},
		{name: "missing prompt", body: `{}`, wantErr: true},
		{name: "blank prompt", body: `{"prompt":"   \n\t"}`, wantErr: true},
		{name: "empty prompt", body: `{"prompt":""}`, wantErr: true},
		{name: "number prompt", body: `{"prompt":42}`, wantErr: true},
		{name: "null prompt", body: `{"prompt":null}`, wantErr: true},
		{name: "array body", body: `["prompt"]`, wantErr: true},
		{name: "malformed", body: `{"prompt":`, wantErr: true},
		{name: "empty body", body: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.Prompt)
		})
	}
}

func TestHandleRejectsInvalidBeforeGenerating(t *testing.T) {
	gen := &fakeGenerator{}
	svc, _ := newTestService(t, gen)

	_, err := svc.Handle(context.Background(), []byte(`{"prompt":"  "}`))
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Zero(t, gen.hits)
}

func TestGenerateWithoutGeneratorUsesLocalPath(t *testing.T) {
	svc, metrics := newTestService(t, nil)

	out, err := svc.Handle(context.Background(), []byte(`{"prompt":"a pong game with power-ups"}`))
	require.NoError(t, err)

	expected, _, err := fallback.Render("a pong game with power-ups")
	require.NoError(t, err)

	assert.Equal(t, expected, out.Result.Document)
	assert.Equal(t, NoteUnconfigured, out.Result.Note)
	assert.Equal(t, models.SourceFallbackUnconfigured, out.Source)
	assert.Equal(t, "pong", out.Variant)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Generations.WithLabelValues("fallback_unconfigured", "pong")))
}

func TestGenerateUnconfiguredClientMakesNoCall(t *testing.T) {
	client := anthropic.NewClient(config.AnthropicConfig{}, nil)
	svc, _ := newTestService(t, client)

	out, err := svc.Generate(context.Background(), models.GenerationRequest{Prompt: "flappy bird clone"})
	require.NoError(t, err)
	assert.Equal(t, NoteUnconfigured, out.Result.Note)
	assert.Equal(t, "flappy", out.Variant)
	assert.True(t, strings.HasPrefix(out.Result.Document, "<!DOCTYPE html>"))
}

func TestGenerateExternalSuccess(t *testing.T) {
	gen := &fakeGenerator{reply: textReply("Here you go:\n```html\n<!DOCTYPE html><html><body>hi</body></html>\n```\nEnjoy!")}
	svc, metrics := newTestService(t, gen)

	out, err := svc.Generate(context.Background(), models.GenerationRequest{Prompt: "a space shooter"})
	require.NoError(t, err)

	assert.Equal(t, "<!DOCTYPE html><html><body>hi</body></html>", out.Result.Document)
	assert.Empty(t, out.Result.Note)
	assert.Equal(t, models.SourceExternal, out.Source)
	assert.Equal(t, extract.StrategyLabeledFence, out.Strategy)
	assert.Equal(t, 1, gen.hits)
	assert.Equal(t, []string{"a space shooter"}, gen.prompts)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Extractions.WithLabelValues("labeled_fence")))
}

func TestGenerateExternalFailuresFallBack(t *testing.T) {
	failures := map[string]error{
		"status":    &anthropic.Failure{Reason: anthropic.ReasonStatus, Status: 529, Body: `{"type":"error"}`},
		"transport": &anthropic.Failure{Reason: anthropic.ReasonTransport, Err: errors.New("connection refused")},
		"decode":    &anthropic.Failure{Reason: anthropic.ReasonDecode, Err: errors.New("unexpected EOF")},
		"timeout":   &anthropic.Failure{Reason: anthropic.ReasonTransport, Err: context.DeadlineExceeded},
	}

	for name, failure := range failures {
		t.Run(name, func(t *testing.T) {
			gen := &fakeGenerator{err: failure}
			svc, metrics := newTestService(t, gen)

			out, err := svc.Generate(context.Background(), models.GenerationRequest{Prompt: "collect the stars"})
			require.NoError(t, err)

			expected, _, err := fallback.Render("collect the stars")
			require.NoError(t, err)
			assert.Equal(t, expected, out.Result.Document)
			assert.Equal(t, NoteExternalFailure, out.Result.Note)
			assert.Equal(t, models.SourceFallbackExternalFailure, out.Source)
			assert.Equal(t, "generic-collector", out.Variant)

			var f *anthropic.Failure
			require.True(t, errors.As(failure, &f))
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.UpstreamFailures.WithLabelValues(string(f.Reason))))
		})
	}
}

func TestGenerateUnusableReplyFallsBack(t *testing.T) {
	replies := map[string]*models.ExternalReply{
		"prose only":      textReply("Sorry, I cannot help with that."),
		"no text blocks":  {Content: []models.ContentBlock{{Type: models.ContentTypeToolUse, Name: "noop"}}},
		"empty content":   {},
		"javascript only": textReply("```js\nconsole.log(1)\n```"),
	}

	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			gen := &fakeGenerator{reply: reply}
			svc, _ := newTestService(t, gen)

			out, err := svc.Generate(context.Background(), models.GenerationRequest{Prompt: "pong"})
			require.NoError(t, err)
			assert.Equal(t, NoteExternalFailure, out.Result.Note)
			assert.Equal(t, models.SourceFallbackUnusable, out.Source)
			assert.Equal(t, "pong", out.Variant)
			assert.Equal(t, extract.StrategyNone, out.Strategy)
		})
	}
}

func TestGenerateUnexpectedErrorIsInternal(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("boom")}
	svc, _ := newTestService(t, gen)

	_, err := svc.Generate(context.Background(), models.GenerationRequest{Prompt: "anything"})
	assert.ErrorIs(t, err, ErrInternal)
}

func TestGenerateUnconfiguredFailureFromGenerator(t *testing.T) {
	gen := &fakeGenerator{err: &anthropic.Failure{Reason: anthropic.ReasonUnconfigured}}
	svc, _ := newTestService(t, gen)

	out, err := svc.Generate(context.Background(), models.GenerationRequest{Prompt: "anything"})
	require.NoError(t, err)
	assert.Equal(t, NoteUnconfigured, out.Result.Note)
	assert.Equal(t, models.SourceFallbackUnconfigured, out.Source)
}

func TestGenerateWithNilMetricsAndLogger(t *testing.T) {
	svc := NewService(nil, nil, nil)
	out, err := svc.Generate(context.Background(), models.GenerationRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Result.Document)
}
