// Package reformat normalizes punctuation and casing of a merged transcript
// through an LLM capability. Reformatting is best-effort by contract: any
// slice that fails comes back verbatim, and the transcript's segments and
// timestamps are never touched.
package reformat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sonoscribe/sonoscribe/internal/apierr"
)

// Default configuration values.
const (
	// DefaultSliceBudget bounds each request payload in bytes. Large slices
	// risk downstream timeouts; 5000 bytes keeps completions fast.
	DefaultSliceBudget = 5000

	defaultModel        = "gpt-4o-mini"
	defaultSliceTimeout = 60 * time.Second

	// Retry configuration for transient per-slice failures.
	defaultMaxRetries = 2
	defaultBaseDelay  = 1 * time.Second
	defaultMaxDelay   = 10 * time.Second
)

// reformatPrompt instructs the model to fix punctuation without rewriting.
const reformatPrompt = `Fix the punctuation, capitalization, and paragraph breaks of this raw speech transcript.
Do not rephrase, summarize, translate, or drop any words. Return only the corrected text.`

// chatCompleter is an internal interface for OpenAI chat completion.
// *openai.Client implements this implicitly; tests inject mocks.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Compile-time interface compliance check.
var _ chatCompleter = (*openai.Client)(nil)

// Reformatter normalizes transcript text slice by slice.
type Reformatter struct {
	client       chatCompleter
	model        string
	sliceBudget  int
	sliceTimeout time.Duration
	maxRetries   int
	baseDelay    time.Duration
	maxDelay     time.Duration
	logger       *slog.Logger
}

// Option configures a Reformatter.
type Option func(*Reformatter)

// WithModel sets the completion model.
func WithModel(model string) Option {
	return func(r *Reformatter) {
		r.model = model
	}
}

// WithSliceBudget sets the maximum UTF-8 byte length per slice.
func WithSliceBudget(bytes int) Option {
	return func(r *Reformatter) {
		if bytes > 0 {
			r.sliceBudget = bytes
		}
	}
}

// WithSliceTimeout sets the per-slice completion timeout.
func WithSliceTimeout(d time.Duration) Option {
	return func(r *Reformatter) {
		if d > 0 {
			r.sliceTimeout = d
		}
	}
}

// WithMaxRetries sets the per-slice retry attempts for transient errors.
func WithMaxRetries(n int) Option {
	return func(r *Reformatter) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reformatter) {
		r.logger = l
	}
}

// withChatCompleter sets a custom chat completer (for testing).
func withChatCompleter(cc chatCompleter) Option {
	return func(r *Reformatter) {
		r.client = cc
	}
}

// NewReformatter creates a Reformatter backed by the given client.
func NewReformatter(client *openai.Client, opts ...Option) *Reformatter {
	r := &Reformatter{
		client:       client,
		model:        defaultModel,
		sliceBudget:  DefaultSliceBudget,
		sliceTimeout: defaultSliceTimeout,
		maxRetries:   defaultMaxRetries,
		baseDelay:    defaultBaseDelay,
		maxDelay:     defaultMaxDelay,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reformat normalizes text and returns the result. Slices that fail come
// back verbatim, so the return value is always usable and the method never
// returns an error: reformatting failure is never fatal to a job.
func (r *Reformatter) Reformat(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}

	slices := sliceBytes(text, r.sliceBudget)
	out := make([]string, len(slices))
	for i, slice := range slices {
		formatted, err := r.reformatSlice(ctx, slice)
		if err != nil {
			r.logger.Warn("reformat slice failed, keeping verbatim text",
				"slice", i, "slices", len(slices), "error", err)
			out[i] = slice
			continue
		}
		out[i] = formatted
	}
	return strings.Join(out, "")
}

// reformatSlice runs one slice through the completion capability with retry
// and sanity checks. A response under half the input length is treated as a
// failed rewrite rather than a normalization.
func (r *Reformatter) reformatSlice(ctx context.Context, slice string) (string, error) {
	sliceCtx, cancel := context.WithTimeout(ctx, r.sliceTimeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: reformatPrompt},
			{Role: openai.ChatMessageRoleUser, Content: slice},
		},
		Temperature: 0, // deterministic output for reproducibility
	}

	cfg := apierr.RetryConfig{
		Attempts:  r.maxRetries + 1,
		BaseDelay: r.baseDelay,
		MaxDelay:  r.maxDelay,
	}
	return apierr.RetryWithBackoff(sliceCtx, cfg, func() (string, error) {
		resp, err := r.client.CreateChatCompletion(sliceCtx, req)
		if err != nil {
			return "", apierr.Classify(err)
		}
		if len(resp.Choices) == 0 {
			return "", apierr.ErrEmptyResponse
		}
		content := resp.Choices[0].Message.Content
		if strings.TrimSpace(content) == "" {
			return "", apierr.ErrEmptyResponse
		}
		if len(content)*2 < len(slice) {
			// Suspiciously short: the model summarized instead of
			// reformatting. Fall back to the verbatim slice.
			return "", apierr.ErrEmptyResponse
		}
		return content, nil
	}, apierr.Retryable)
}
