// Package engine wraps the speech-to-text capability and runs it across a
// job's chunks with bounded concurrency. The neural model behind the
// capability is opaque; only the segment contract matters here.
package engine

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sonoscribe/sonoscribe/internal/apierr"
	"github.com/sonoscribe/sonoscribe/internal/segment"
)

// Options configures a transcription request.
type Options struct {
	// Language is an optional ISO 639-1 hint for the audio language.
	// Empty means auto-detect.
	Language string

	// Prompt provides context to improve transcription accuracy, such as
	// domain vocabulary or expected speaker names.
	Prompt string
}

// Result is the output of transcribing one audio chunk. Segment timestamps
// are chunk-local; the pool re-bases them into the job timeline.
type Result struct {
	Segments []segment.Segment
	Language string // detected language reported by the model
}

// Engine converts one audio chunk into ordered timestamped text segments.
type Engine interface {
	Transcribe(ctx context.Context, audioPath string, opts Options) (Result, error)
}

// audioTranscriber is an internal interface for OpenAI audio transcription.
// *openai.Client implements this implicitly; tests inject mocks.
type audioTranscriber interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// Compile-time interface compliance checks.
var (
	_ Engine           = (*OpenAIEngine)(nil)
	_ audioTranscriber = (*openai.Client)(nil)
)

// defaultModel is the transcription model. whisper-1 is the only OpenAI
// model that returns per-segment timestamps in verbose JSON.
const defaultModel = openai.Whisper1

// OpenAIEngine transcribes audio chunks using OpenAI's transcription API.
//
// Transcription errors are classified but never retried here: a failed
// chunk fails the whole job so no partial transcript is ever persisted.
type OpenAIEngine struct {
	client audioTranscriber
	model  string
}

// EngineOption configures an OpenAIEngine.
type EngineOption func(*OpenAIEngine)

// WithModel overrides the transcription model.
func WithModel(model string) EngineOption {
	return func(e *OpenAIEngine) {
		e.model = model
	}
}

// withAudioTranscriber sets a custom transcription client (for testing).
func withAudioTranscriber(at audioTranscriber) EngineOption {
	return func(e *OpenAIEngine) {
		e.client = at
	}
}

// NewOpenAIEngine creates an OpenAIEngine backed by the given client.
func NewOpenAIEngine(client *openai.Client, opts ...EngineOption) *OpenAIEngine {
	e := &OpenAIEngine{
		client: client,
		model:  defaultModel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Transcribe converts one audio chunk into timestamped segments.
func (e *OpenAIEngine) Transcribe(ctx context.Context, audioPath string, opts Options) (Result, error) {
	req := openai.AudioRequest{
		Model:    e.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Prompt:   opts.Prompt,
		Language: opts.Language,
	}

	resp, err := e.client.CreateTranscription(ctx, req)
	if err != nil {
		return Result{}, apierr.Classify(err)
	}

	segments := make([]segment.Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		seg := segment.Segment{
			Start: floatSeconds(s.Start),
			End:   floatSeconds(s.End),
			Text:  s.Text,
		}
		if seg.End <= seg.Start {
			continue // model occasionally emits zero-width segments
		}
		segments = append(segments, seg)
	}
	if len(segments) == 0 && resp.Text != "" {
		// Plain response with no segment breakdown: treat the whole chunk
		// as one segment so downstream invariants still hold.
		segments = append(segments, segment.Segment{
			Start: 0,
			End:   floatSeconds(resp.Duration),
			Text:  resp.Text,
		})
	}

	return Result{Segments: segments, Language: resp.Language}, nil
}

// floatSeconds converts the API's decimal seconds to a Duration.
func floatSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
