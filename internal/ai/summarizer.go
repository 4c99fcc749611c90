// Package ai refines session summaries with an Anthropic model call.
// Everything here is optional: with no API key, or on any API failure,
// callers fall back to the locally derived summary.
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// outputTailLimit bounds how much session transcript is sent per request.
const outputTailLimit = 8000

// Summarizer turns a session's raw output tail into a one-sentence
// summary.
type Summarizer struct {
	client *anthropic.Client
	model  string
	retry  RetryConfig
	log    *slog.Logger
}

// NewSummarizer builds a Summarizer. An empty apiKey returns nil, which
// callers treat as "summarization disabled".
func NewSummarizer(apiKey, model string, log *slog.Logger) *Summarizer {
	if apiKey == "" {
		return nil
	}
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	if log == nil {
		log = slog.Default()
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Summarizer{
		client: &client,
		model:  model,
		retry:  DefaultRetryConfig(),
		log:    log,
	}
}

// Summarize produces a one-sentence summary of the session output,
// returning fallback on any failure.
func (s *Summarizer) Summarize(ctx context.Context, output, fallback string) string {
	if s == nil || strings.TrimSpace(output) == "" {
		return fallback
	}

	tail := output
	if len(tail) > outputTailLimit {
		tail = tail[len(tail)-outputTailLimit:]
	}

	prompt := fmt.Sprintf(`Summarize in one plain sentence what this coding session accomplished. No preamble, no markdown, just the sentence.

Session output:
%s`, tail)

	var response *anthropic.Message
	err := s.retryWithBackoff(ctx, "summarize", func(attemptCtx context.Context) error {
		resp, apiErr := s.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(s.model),
			MaxTokens: 256,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if err != nil {
		s.log.Warn("summary refinement failed, using derived summary", "error", err)
		return fallback
	}

	var text string
	for _, block := range response.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fallback
	}
	return text
}
