package audio

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Default silence detection parameters.
const (
	// defaultNoiseDB is the silence detection threshold in dB.
	// -30dB is suitable for voice recordings with typical background noise.
	defaultNoiseDB = -30.0

	// defaultMinSilence is the minimum silence duration to detect.
	// 0.5s catches natural pauses in speech without over-splitting.
	defaultMinSilence = 500 * time.Millisecond
)

// SilenceSplitter splits audio at detected silence points near fixed-length
// targets, so cuts avoid bisecting spoken words. When silence analysis fails
// or yields degenerate boundaries it falls back to fixed-length splitting.
type SilenceSplitter struct {
	ffmpegPath string
	policy     Policy
	noiseDB    float64
	minSilence time.Duration
	fallback   Splitter
	warn       WarnFunc

	// Injectable dependencies (defaults to OS implementations).
	cmd     commandRunner
	tempDir tempDirCreator
	files   fileRemover
}

// SilenceSplitterOption configures a SilenceSplitter.
type SilenceSplitterOption func(*SilenceSplitter)

// WithNoiseDB sets the silence detection threshold in dB.
// Lower values (more negative) detect quieter sounds as silence.
func WithNoiseDB(db float64) SilenceSplitterOption {
	return func(ss *SilenceSplitter) {
		ss.noiseDB = db
	}
}

// WithMinSilence sets the minimum silence duration to detect.
func WithMinSilence(d time.Duration) SilenceSplitterOption {
	return func(ss *SilenceSplitter) {
		ss.minSilence = d
	}
}

// WithFallback sets a custom fallback Splitter.
// Default: a TimeSplitter with the same policy.
func WithFallback(s Splitter) SilenceSplitterOption {
	return func(ss *SilenceSplitter) {
		ss.fallback = s
	}
}

// WithWarnFunc sets a callback for warning messages.
// By default, warnings are written to stderr. Set to nil to suppress.
func WithWarnFunc(fn WarnFunc) SilenceSplitterOption {
	return func(ss *SilenceSplitter) {
		ss.warn = fn
	}
}

// WithSilenceCommandRunner sets the command runner for SilenceSplitter.
func WithSilenceCommandRunner(r commandRunner) SilenceSplitterOption {
	return func(ss *SilenceSplitter) {
		ss.cmd = r
	}
}

// WithSilenceTempDir sets the temp directory creator for SilenceSplitter.
func WithSilenceTempDir(t tempDirCreator) SilenceSplitterOption {
	return func(ss *SilenceSplitter) {
		ss.tempDir = t
	}
}

// WithSilenceFileRemover sets the file remover for SilenceSplitter.
func WithSilenceFileRemover(f fileRemover) SilenceSplitterOption {
	return func(ss *SilenceSplitter) {
		ss.files = f
	}
}

// NewSilenceSplitter creates a SilenceSplitter with functional options.
// If no fallback is provided, a TimeSplitter with the same policy is used.
func NewSilenceSplitter(ffmpegPath string, policy Policy, opts ...SilenceSplitterOption) (*SilenceSplitter, error) {
	if ffmpegPath == "" {
		return nil, fmt.Errorf("ffmpegPath cannot be empty")
	}
	if err := policy.normalize(); err != nil {
		return nil, err
	}

	ss := &SilenceSplitter{
		ffmpegPath: ffmpegPath,
		policy:     policy,
		noiseDB:    defaultNoiseDB,
		minSilence: defaultMinSilence,
		warn:       defaultWarnFunc,
		cmd:        osCommandRunner{},
		tempDir:    osTempDirCreator{},
		files:      osFileRemover{},
	}
	for _, opt := range opts {
		opt(ss)
	}

	if ss.fallback == nil {
		fallback, err := NewTimeSplitter(ffmpegPath, policy,
			WithTimeSplitterCommandRunner(ss.cmd),
			WithTimeSplitterTempDir(ss.tempDir),
			WithTimeSplitterFileRemover(ss.files))
		if err != nil {
			return nil, fmt.Errorf("failed to create fallback splitter: %w", err)
		}
		ss.fallback = fallback
	}
	return ss, nil
}

// Split divides the audio file at silence points near fixed-length targets.
// Falls back to fixed-length splitting when detection fails, finds nothing,
// or produces degenerate boundaries.
func (ss *SilenceSplitter) Split(ctx context.Context, audioPath string, duration time.Duration) ([]Chunk, error) {
	if single, ok := singleChunk(audioPath, duration, ss.policy); ok {
		return single, nil
	}

	// Above the split threshold but within one chunk there is no internal
	// boundary for silence analysis to move. Re-encode the single span
	// without running detection.
	if duration <= ss.policy.ChunkSize {
		spans := spansFromCuts(duration, nil, ss.policy.Overlap)
		return extractSpans(ctx, ss.cmd, ss.tempDir, ss.files, ss.ffmpegPath, audioPath, spans)
	}

	silences, err := ss.detectSilences(ctx, audioPath)
	if err != nil {
		ss.warnf("silence detection failed (%v), using fixed-length splitting", err)
		return ss.fallback.Split(ctx, audioPath, duration)
	}
	if len(silences) == 0 {
		ss.warnf("no silences detected, using fixed-length splitting (may cut mid-word)")
		return ss.fallback.Split(ctx, audioPath, duration)
	}

	cuts, ok := planSilenceCuts(duration, ss.policy.ChunkSize, silences)
	if !ok {
		ss.warnf("silence analysis produced degenerate boundaries, using fixed-length splitting")
		return ss.fallback.Split(ctx, audioPath, duration)
	}

	spans := spansFromCuts(duration, cuts, ss.policy.Overlap)
	return extractSpans(ctx, ss.cmd, ss.tempDir, ss.files, ss.ffmpegPath, audioPath, spans)
}

func (ss *SilenceSplitter) warnf(format string, args ...any) {
	if ss.warn != nil {
		ss.warn("Warning: " + fmt.Sprintf(format, args...))
	}
}

// silenceRange is a detected near-silent interval in the audio.
type silenceRange struct {
	start time.Duration
	end   time.Duration
}

// midpoint returns the middle of the silence, ideal for cutting.
func (s silenceRange) midpoint() time.Duration {
	return s.start + (s.end-s.start)/2
}

// detectSilences runs FFmpeg silencedetect and parses the output.
func (ss *SilenceSplitter) detectSilences(ctx context.Context, audioPath string) ([]silenceRange, error) {
	args := []string{
		"-i", audioPath,
		"-af", fmt.Sprintf("silencedetect=noise=%ddB:d=%.2f",
			int(ss.noiseDB),
			ss.minSilence.Seconds()),
		"-f", "null",
		"-",
	}

	output, err := ss.cmd.CombinedOutput(ctx, ss.ffmpegPath, args)
	if err != nil {
		// FFmpeg may return non-zero even on success, try parsing output.
		if len(output) == 0 {
			return nil, err
		}
	}
	return parseSilenceOutput(string(output)), nil
}

// parseSilenceOutput extracts silence ranges from FFmpeg silencedetect output.
// FFmpeg prints lines like:
//
//	[silencedetect @ 0x...] silence_start: 42.123
//	[silencedetect @ 0x...] silence_end: 43.456 | silence_duration: 1.333
func parseSilenceOutput(output string) []silenceRange {
	var silences []silenceRange
	var currentStart time.Duration
	hasStart := false

	startRe := regexp.MustCompile(`silence_start:\s*([\d.]+)`)
	endRe := regexp.MustCompile(`silence_end:\s*([\d.]+)`)

	for _, line := range strings.Split(output, "\n") {
		if matches := startRe.FindStringSubmatch(line); matches != nil {
			seconds, err := strconv.ParseFloat(matches[1], 64)
			if err == nil {
				currentStart = time.Duration(seconds * float64(time.Second))
				hasStart = true
			}
		}
		if matches := endRe.FindStringSubmatch(line); matches != nil && hasStart {
			seconds, err := strconv.ParseFloat(matches[1], 64)
			if err == nil {
				silences = append(silences, silenceRange{
					start: currentStart,
					end:   time.Duration(seconds * float64(time.Second)),
				})
				hasStart = false
			}
		}
	}

	return silences
}

// planSilenceCuts chooses one cut per fixed-length target, preferring the
// silence midpoint nearest the target. A target with no silence within
// ChunkSize/4 keeps the fixed boundary. Returns ok=false when the resulting
// cut sequence is degenerate (not strictly increasing inside (0, duration)),
// in which case the caller must fall back to fixed-length splitting.
func planSilenceCuts(duration, chunkSize time.Duration, silences []silenceRange) ([]time.Duration, bool) {
	n := int((duration + chunkSize - 1) / chunkSize)
	if n < 2 {
		return nil, false
	}

	maxDrift := chunkSize / 4
	cuts := make([]time.Duration, 0, n-1)
	prev := time.Duration(0)

	for k := 1; k < n; k++ {
		target := time.Duration(k) * chunkSize
		cut := target
		if mid, ok := nearestMidpoint(silences, target); ok && absDuration(mid-target) <= maxDrift {
			cut = mid
		}
		if cut <= prev || cut >= duration {
			return nil, false
		}
		cuts = append(cuts, cut)
		prev = cut
	}
	return cuts, true
}

// nearestMidpoint returns the silence midpoint closest to target.
func nearestMidpoint(silences []silenceRange, target time.Duration) (time.Duration, bool) {
	if len(silences) == 0 {
		return 0, false
	}
	best := silences[0].midpoint()
	for _, s := range silences[1:] {
		mid := s.midpoint()
		if absDuration(mid-target) < absDuration(best-target) {
			best = mid
		}
	}
	return best, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
