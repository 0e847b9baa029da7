package models

// GenerationRequest is a validated request for a game document
type GenerationRequest struct {
	Prompt string `json:"prompt"`
}

// GenerationResult is what the generate endpoint returns on success.
// Note is empty on a clean external success.
type GenerationResult struct {
	Document string `json:"document"`
	Note     string `json:"note,omitempty"`
}

// Source records which branch of the pipeline produced a result
type Source string

const (
	SourceExternal                Source = "external"
	SourceFallbackUnconfigured    Source = "fallback_unconfigured"
	SourceFallbackExternalFailure Source = "fallback_external_failure"
	SourceFallbackUnusable        Source = "fallback_unusable"
)

// IsFallback reports whether the document was computed locally
func (s Source) IsFallback() bool {
	return s != SourceExternal
}

// Content block types returned by the Messages API
const (
	ContentTypeText    = "text"
	ContentTypeToolUse = "tool_use"
)

// ContentBlock is one unit of an external reply
type ContentBlock struct {
	Type  string         `json:"type"`
	Text  string         `json:"text,omitempty"`
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

// ExternalReply is the decoded body of a successful Messages API call.
// It lives for one request and is discarded after extraction.
type ExternalReply struct {
	ID         string         `json:"id,omitempty"`
	Model      string         `json:"model,omitempty"`
	StopReason string         `json:"stop_reason,omitempty"`
	Content    []ContentBlock `json:"content"`
}

// TextBlocks returns the text of every text block, in order
func (r *ExternalReply) TextBlocks() []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, b := range r.Content {
		if b.Type == ContentTypeText {
			out = append(out, b.Text)
		}
	}
	return out
}

// GenerationEvent is published after each successful generation.
// It never carries the prompt or the document.
type GenerationEvent struct {
	ID        string `json:"id"`
	RequestID string `json:"request_id,omitempty"`
	Source    Source `json:"source"`
	Variant   string `json:"variant,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
	DocBytes  int    `json:"doc_bytes"`
	CreatedAt int64  `json:"created_at"`
}
