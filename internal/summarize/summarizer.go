// Package summarize produces the one-per-job summary of a final transcript.
// Unlike reformatting, a summary is a primary deliverable, so transient
// failures are retried with backoff before the caller decides to degrade.
package summarize

import (
	"context"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sonoscribe/sonoscribe/internal/apierr"
)

// Default configuration values.
const (
	defaultModel = "gpt-4o-mini"

	// Three attempts total: summarization is worth retrying, reformatting
	// is not.
	defaultMaxRetries = 2
	defaultBaseDelay  = 2 * time.Second
	defaultMaxDelay   = 20 * time.Second
)

// summaryPrompt instructs the model to produce a compact factual summary.
const summaryPrompt = `Summarize this transcript in a few short paragraphs.
Cover the main topics, decisions, and action items. Do not invent anything that is not in the text.`

// Summarizer produces a summary of a transcript.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// chatCompleter is an internal interface for OpenAI chat completion.
// *openai.Client implements this implicitly; tests inject mocks.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Compile-time interface compliance checks.
var (
	_ Summarizer    = (*OpenAISummarizer)(nil)
	_ chatCompleter = (*openai.Client)(nil)
)

// OpenAISummarizer summarizes transcripts using OpenAI's chat completion API
// with automatic retries for transient errors.
type OpenAISummarizer struct {
	client     chatCompleter
	model      string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// Option configures an OpenAISummarizer.
type Option func(*OpenAISummarizer)

// WithModel sets the completion model.
func WithModel(model string) Option {
	return func(s *OpenAISummarizer) {
		s.model = model
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) Option {
	return func(s *OpenAISummarizer) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithRetryDelays sets the base and max delays for exponential backoff.
func WithRetryDelays(base, max time.Duration) Option {
	return func(s *OpenAISummarizer) {
		if base > 0 {
			s.baseDelay = base
		}
		if max > 0 {
			s.maxDelay = max
		}
	}
}

// withChatCompleter sets a custom chat completer (for testing).
func withChatCompleter(cc chatCompleter) Option {
	return func(s *OpenAISummarizer) {
		s.client = cc
	}
}

// NewOpenAISummarizer creates an OpenAISummarizer backed by the given client.
func NewOpenAISummarizer(client *openai.Client, opts ...Option) *OpenAISummarizer {
	s := &OpenAISummarizer{
		client:     client,
		model:      defaultModel,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize produces a summary of the transcript text.
// Transient errors are retried with exponential backoff.
func (s *OpenAISummarizer) Summarize(ctx context.Context, text string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summaryPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0,
	}

	cfg := apierr.RetryConfig{
		Attempts:  s.maxRetries + 1,
		BaseDelay: s.baseDelay,
		MaxDelay:  s.maxDelay,
	}
	return apierr.RetryWithBackoff(ctx, cfg, func() (string, error) {
		resp, err := s.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", apierr.Classify(err)
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			return "", apierr.ErrEmptyResponse
		}
		return resp.Choices[0].Message.Content, nil
	}, apierr.Retryable)
}
