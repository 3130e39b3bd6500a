package audio

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DurationProbe reads container metadata to obtain the total duration of an
// audio file. It shells out to FFmpeg and parses the duration from stderr,
// which works even where ffprobe is not installed.
type DurationProbe struct {
	ffmpegPath string
	cmd        commandRunner
}

// ProbeOption configures a DurationProbe.
type ProbeOption func(*DurationProbe)

// WithProbeCommandRunner sets the command runner (for testing).
func WithProbeCommandRunner(r commandRunner) ProbeOption {
	return func(p *DurationProbe) {
		p.cmd = r
	}
}

// NewDurationProbe creates a DurationProbe using the given FFmpeg binary.
func NewDurationProbe(ffmpegPath string, opts ...ProbeOption) *DurationProbe {
	p := &DurationProbe{
		ffmpegPath: ffmpegPath,
		cmd:        osCommandRunner{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Duration returns the total duration of the audio file.
func (p *DurationProbe) Duration(ctx context.Context, audioPath string) (time.Duration, error) {
	args := []string{
		"-i", audioPath,
		"-f", "null", "-",
	}
	output, err := p.cmd.CombinedOutput(ctx, p.ffmpegPath, args)
	if err != nil {
		// FFmpeg returns non-zero even when it successfully reads file info,
		// so we try to parse the output anyway.
		if len(output) == 0 {
			return 0, fmt.Errorf("%w: %v", ErrProbeFailed, err)
		}
	}

	d, err := parseFFmpegDuration(string(output))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	return d, nil
}

// parseFFmpegDuration extracts duration from FFmpeg stderr.
// Looks for: "Duration: HH:MM:SS.ms" or "time=HH:MM:SS.ms"
func parseFFmpegDuration(output string) (time.Duration, error) {
	// Pattern: Duration: 00:05:23.45
	durationRe := regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)
	if matches := durationRe.FindStringSubmatch(output); matches != nil {
		return parseTimeComponents(matches[1], matches[2], matches[3], matches[4])
	}

	// Fallback pattern: time=00:05:23.45 (from progress output).
	// Use the last match, which carries the final position.
	timeRe := regexp.MustCompile(`time=(\d+):(\d+):(\d+)\.(\d+)`)
	allMatches := timeRe.FindAllStringSubmatch(output, -1)
	if len(allMatches) > 0 {
		matches := allMatches[len(allMatches)-1]
		return parseTimeComponents(matches[1], matches[2], matches[3], matches[4])
	}

	return 0, fmt.Errorf("could not parse duration from ffmpeg output")
}

// parseTimeComponents converts HH:MM:SS.ms strings to a Duration.
func parseTimeComponents(hours, minutes, seconds, fractional string) (time.Duration, error) {
	h, _ := strconv.Atoi(hours)
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.Atoi(seconds)

	// Normalize the fractional part to milliseconds.
	// Input may be 1-6+ digits (e.g., ".4", ".45", ".456", ".456789").
	frac, _ := strconv.Atoi(fractional)
	ms := frac
	switch n := len(fractional); {
	case n == 1:
		ms = frac * 100
	case n == 2:
		ms = frac * 10
	case n == 3:
		// Already milliseconds.
	case n > 3:
		for i := n; i > 3; i-- {
			ms /= 10
		}
	}

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}
