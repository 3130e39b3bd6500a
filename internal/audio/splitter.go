package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sonoscribe/sonoscribe/internal/format"
)

// Compile-time interface implementation checks.
var (
	_ Splitter = (*TimeSplitter)(nil)
	_ Splitter = (*SilenceSplitter)(nil)
)

// Default splitting parameters.
const (
	// DefaultSplitThreshold is the duration below which audio is never split.
	// A file at or under the threshold is transcribed as a single chunk.
	DefaultSplitThreshold = 10 * time.Minute

	// DefaultChunkSize is the target length of each chunk.
	DefaultChunkSize = 10 * time.Minute

	// DefaultOverlap is the duplicated span shared by adjacent chunks.
	// 15s is enough for the merger to realign words cut at a boundary.
	DefaultOverlap = 15 * time.Second

	// tempDirPattern marks chunk temp directories so cleanup can verify
	// it only ever removes directories this package created.
	tempDirPattern = "sonoscribe-chunks-*"
	tempDirMarker  = "sonoscribe-chunks-"
)

// Policy controls how audio is split into chunks.
// The zero value is normalized to the package defaults.
type Policy struct {
	SplitThreshold time.Duration // no split at or below this duration
	ChunkSize      time.Duration // target chunk length
	Overlap        time.Duration // overlap between adjacent chunks
}

// normalize fills zero fields with defaults and validates relationships.
func (p *Policy) normalize() error {
	if p.SplitThreshold <= 0 {
		p.SplitThreshold = DefaultSplitThreshold
	}
	if p.ChunkSize <= 0 {
		p.ChunkSize = DefaultChunkSize
	}
	if p.Overlap < 0 {
		p.Overlap = 0
	}
	if p.Overlap >= p.ChunkSize {
		return fmt.Errorf("%w: overlap %v >= chunk size %v", ErrInvalidOverlap, p.Overlap, p.ChunkSize)
	}
	return nil
}

// Chunk represents a bounded time window of one job's audio, extracted to its
// own file. The caller is responsible for cleaning up chunk files after use.
type Chunk struct {
	Path    string        // Absolute path to the chunk file.
	Index   int           // Zero-based index for ordering.
	Start   time.Duration // Start offset in the source audio.
	End     time.Duration // End offset in the source audio.
	Overlap time.Duration // Span shared with the next chunk; zero for the last.
}

// Duration returns the length of this chunk.
func (c Chunk) Duration() time.Duration {
	return c.End - c.Start
}

// String returns a human-readable representation for logging.
func (c Chunk) String() string {
	return fmt.Sprintf("chunk %d: %s-%s",
		c.Index,
		format.Duration(c.Start),
		format.Duration(c.End))
}

// Splitter decides chunk boundaries for an audio file and extracts the chunks.
type Splitter interface {
	// Split divides audioPath into ordered chunks covering [0, duration].
	// When duration is at or below the policy threshold it returns a single
	// chunk referencing the source file itself, with no extraction.
	// The caller cleans up extracted chunk files via CleanupChunks.
	Split(ctx context.Context, audioPath string, duration time.Duration) ([]Chunk, error)
}

// span is a planned chunk window before extraction.
type span struct {
	start time.Duration
	end   time.Duration
}

// planFixed computes fixed-length chunk windows with symmetric overlap.
// Nominal boundaries sit at multiples of ChunkSize; each internal boundary is
// widened by Overlap/2 on both sides, so adjacent chunks share exactly
// Overlap of audio. The union of spans always covers [0, duration].
func planFixed(duration time.Duration, p Policy) []span {
	n := int((duration + p.ChunkSize - 1) / p.ChunkSize) // ceiling division
	if n < 1 {
		n = 1
	}

	half := p.Overlap / 2
	spans := make([]span, 0, n)
	for i := 0; i < n; i++ {
		start := time.Duration(i)*p.ChunkSize - half
		end := time.Duration(i+1)*p.ChunkSize + half
		if start < 0 {
			start = 0
		}
		if end > duration {
			end = duration
		}
		spans = append(spans, span{start: start, end: end})
	}
	return spans
}

// spansFromCuts widens internal cut points by Overlap/2 on each side.
// cuts must be strictly increasing and inside (0, duration).
func spansFromCuts(duration time.Duration, cuts []time.Duration, overlap time.Duration) []span {
	half := overlap / 2
	spans := make([]span, 0, len(cuts)+1)
	start := time.Duration(0)
	for _, cut := range cuts {
		spans = append(spans, span{start: start, end: min(cut+half, duration)})
		start = max(cut-half, 0)
	}
	spans = append(spans, span{start: start, end: duration})
	return spans
}

// chunksFromSpans converts planned spans to Chunk values, recording the
// actual overlap shared with the following chunk.
func chunksFromSpans(spans []span) []Chunk {
	chunks := make([]Chunk, len(spans))
	for i, s := range spans {
		chunks[i] = Chunk{Index: i, Start: s.start, End: s.end}
		if i > 0 {
			chunks[i-1].Overlap = chunks[i-1].End - s.start
		}
	}
	return chunks
}

// WarnFunc is a callback for warning messages during splitting.
// Set to nil to suppress warnings.
type WarnFunc func(msg string)

// defaultWarnFunc writes warnings to stderr.
func defaultWarnFunc(msg string) {
	fmt.Fprintln(os.Stderr, msg)
}

// TimeSplitter splits audio into fixed-length chunks with overlap.
// It is also the deterministic fallback for SilenceSplitter.
type TimeSplitter struct {
	ffmpegPath string
	policy     Policy

	// Injectable dependencies (defaults to OS implementations).
	cmd     commandRunner
	tempDir tempDirCreator
	files   fileRemover
}

// TimeSplitterOption configures a TimeSplitter.
type TimeSplitterOption func(*TimeSplitter)

// WithTimeSplitterCommandRunner sets the command runner for TimeSplitter.
func WithTimeSplitterCommandRunner(r commandRunner) TimeSplitterOption {
	return func(ts *TimeSplitter) {
		ts.cmd = r
	}
}

// WithTimeSplitterTempDir sets the temp directory creator for TimeSplitter.
func WithTimeSplitterTempDir(t tempDirCreator) TimeSplitterOption {
	return func(ts *TimeSplitter) {
		ts.tempDir = t
	}
}

// WithTimeSplitterFileRemover sets the file remover for TimeSplitter.
func WithTimeSplitterFileRemover(f fileRemover) TimeSplitterOption {
	return func(ts *TimeSplitter) {
		ts.files = f
	}
}

// NewTimeSplitter creates a TimeSplitter with the given policy.
func NewTimeSplitter(ffmpegPath string, policy Policy, opts ...TimeSplitterOption) (*TimeSplitter, error) {
	if ffmpegPath == "" {
		return nil, fmt.Errorf("ffmpegPath cannot be empty")
	}
	if err := policy.normalize(); err != nil {
		return nil, err
	}

	ts := &TimeSplitter{
		ffmpegPath: ffmpegPath,
		policy:     policy,
		cmd:        osCommandRunner{},
		tempDir:    osTempDirCreator{},
		files:      osFileRemover{},
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts, nil
}

// Split divides the audio file into fixed-length chunks with overlap.
func (ts *TimeSplitter) Split(ctx context.Context, audioPath string, duration time.Duration) ([]Chunk, error) {
	if single, ok := singleChunk(audioPath, duration, ts.policy); ok {
		return single, nil
	}
	spans := planFixed(duration, ts.policy)
	return extractSpans(ctx, ts.cmd, ts.tempDir, ts.files, ts.ffmpegPath, audioPath, spans)
}

// singleChunk returns the no-split result when duration is at or below the
// policy threshold: one chunk referencing the source file directly.
func singleChunk(audioPath string, duration time.Duration, p Policy) ([]Chunk, bool) {
	if duration > p.SplitThreshold {
		return nil, false
	}
	return []Chunk{{Path: audioPath, Index: 0, Start: 0, End: duration}}, true
}

// chunkEncodingArgs returns FFmpeg encoding arguments for chunk extraction.
// Re-encodes to OGG Vorbis at 16kHz mono, which keeps chunks valid even from
// corrupted or truncated sources and is optimal for speech transcription.
func chunkEncodingArgs() []string {
	return []string{
		"-c:a", "libvorbis",
		"-ar", "16000",
		"-ac", "1",
		"-q:a", "2",
	}
}

// extractSpans creates one chunk file per span in a fresh temp directory.
// On any failure the temp directory is removed and the error returned.
func extractSpans(
	ctx context.Context,
	cmd commandRunner,
	tempDirs tempDirCreator,
	files fileRemover,
	ffmpegPath, audioPath string,
	spans []span,
) ([]Chunk, error) {
	tempDir, err := tempDirs.MkdirTemp("", tempDirPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	chunks := chunksFromSpans(spans)
	for i := range chunks {
		chunkPath := filepath.Join(tempDir, fmt.Sprintf("chunk_%03d.ogg", i))
		if err := runExtract(ctx, cmd, ffmpegPath, audioPath, chunkPath, chunks[i].Start, chunks[i].End); err != nil {
			_ = files.RemoveAll(tempDir) // best-effort cleanup; original error takes precedence
			return nil, err
		}
		chunks[i].Path = chunkPath
	}
	return chunks, nil
}

// runExtract extracts a window from audioPath to chunkPath using FFmpeg.
func runExtract(ctx context.Context, cmd commandRunner, ffmpegPath, audioPath, chunkPath string, start, end time.Duration) error {
	args := []string{
		"-y",
		"-i", audioPath,
		"-ss", format.FFmpegTime(start),
		"-to", format.FFmpegTime(end),
	}
	args = append(args, chunkEncodingArgs()...)
	args = append(args, chunkPath)

	output, err := cmd.CombinedOutput(ctx, ffmpegPath, args)
	if err != nil {
		return fmt.Errorf("%w: %s: %v\nOutput: %s",
			ErrExtractFailed, chunkPath, err, string(output))
	}
	return nil
}

// CleanupChunks removes extracted chunk files and their parent directory.
// Chunks referencing the source file directly (the no-split case) are never
// removed, and nothing outside a directory this package created is touched.
func CleanupChunks(chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tempDir := filepath.Dir(chunks[0].Path)
	if !strings.Contains(tempDir, tempDirMarker) {
		// Single-chunk case or unknown location: leave the files alone.
		return nil
	}
	return os.RemoveAll(tempDir)
}
