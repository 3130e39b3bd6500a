package audio_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sonoscribe/sonoscribe/internal/audio"
)

func TestParseSilenceOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		output string
		want   int
	}{
		{
			name:   "empty output",
			output: "",
			want:   0,
		},
		{
			name: "single silence",
			output: "[silencedetect @ 0x1] silence_start: 42.1\n" +
				"[silencedetect @ 0x1] silence_end: 43.4 | silence_duration: 1.3\n",
			want: 1,
		},
		{
			name: "multiple silences",
			output: "[silencedetect @ 0x1] silence_start: 10.0\n" +
				"[silencedetect @ 0x1] silence_end: 11.0 | silence_duration: 1.0\n" +
				"[silencedetect @ 0x1] silence_start: 20.5\n" +
				"[silencedetect @ 0x1] silence_end: 21.0 | silence_duration: 0.5\n",
			want: 2,
		},
		{
			name:   "end without start ignored",
			output: "[silencedetect @ 0x1] silence_end: 43.4 | silence_duration: 1.3\n",
			want:   0,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := audio.ParseSilenceOutput(tt.output)
			if len(got) != tt.want {
				t.Errorf("got %d silences, want %d", len(got), tt.want)
			}
		})
	}
}

func TestPlanSilenceCuts(t *testing.T) {
	t.Parallel()

	chunkSize := 600 * time.Second
	duration := 1800 * time.Second

	t.Run("prefers nearby silence midpoints", func(t *testing.T) {
		t.Parallel()
		silences := []audio.SilenceRange{
			audio.NewSilenceRange(590*time.Second, 594*time.Second),   // mid 592s, near target 600s
			audio.NewSilenceRange(1210*time.Second, 1214*time.Second), // mid 1212s, near target 1200s
		}
		cuts, ok := audio.PlanSilenceCuts(duration, chunkSize, silences)
		if !ok {
			t.Fatal("expected a valid plan")
		}
		want := []time.Duration{592 * time.Second, 1212 * time.Second}
		if len(cuts) != len(want) {
			t.Fatalf("got %d cuts, want %d", len(cuts), len(want))
		}
		for i := range want {
			if cuts[i] != want[i] {
				t.Errorf("cut %d = %v, want %v", i, cuts[i], want[i])
			}
		}
	})

	t.Run("falls back to fixed boundary when silence is far", func(t *testing.T) {
		t.Parallel()
		// Only silence is at 100s, more than ChunkSize/4 from both targets.
		silences := []audio.SilenceRange{audio.NewSilenceRange(99*time.Second, 101*time.Second)}
		cuts, ok := audio.PlanSilenceCuts(duration, chunkSize, silences)
		if !ok {
			t.Fatal("expected a valid plan")
		}
		want := []time.Duration{600 * time.Second, 1200 * time.Second}
		for i := range want {
			if cuts[i] != want[i] {
				t.Errorf("cut %d = %v, want %v", i, cuts[i], want[i])
			}
		}
	})

	t.Run("rejects single chunk durations", func(t *testing.T) {
		t.Parallel()
		_, ok := audio.PlanSilenceCuts(500*time.Second, chunkSize, nil)
		if ok {
			t.Error("expected no plan for sub-chunk duration")
		}
	})
}

func TestSpansFromCuts_AppliesOverlap(t *testing.T) {
	t.Parallel()

	cuts := []time.Duration{600 * time.Second}
	spans := audio.SpansFromCuts(1200*time.Second, cuts, 15*time.Second)
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[0].EndOffset() != 607500*time.Millisecond {
		t.Errorf("span 0 end = %v, want 607.5s", spans[0].EndOffset())
	}
	if spans[1].StartOffset() != 592500*time.Millisecond {
		t.Errorf("span 1 start = %v, want 592.5s", spans[1].StartOffset())
	}
	if spans[1].EndOffset() != 1200*time.Second {
		t.Errorf("span 1 end = %v, want 1200s", spans[1].EndOffset())
	}
}

func TestSilenceSplitter_FallsBackOnDetectionFailure(t *testing.T) {
	t.Parallel()

	// Runner output parses as duration info but contains no silence lines,
	// so the splitter must warn and hand over to the fixed-length fallback.
	runner := &fakeRunner{outputs: map[string][]byte{
		"silencedetect": []byte("Duration: 00:20:00.00\n"),
		"-to":           []byte(""),
	}}

	var warned []string
	fallback := &recordingSplitter{}
	ss, err := audio.NewSilenceSplitter("ffmpeg",
		audio.Policy{SplitThreshold: 600 * time.Second, ChunkSize: 600 * time.Second, Overlap: 15 * time.Second},
		audio.WithSilenceCommandRunner(runner),
		audio.WithFallback(fallback),
		audio.WithWarnFunc(func(msg string) { warned = append(warned, msg) }))
	if err != nil {
		t.Fatalf("NewSilenceSplitter: %v", err)
	}

	_, err = ss.Split(context.Background(), "/audio/long.ogg", 1200*time.Second)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if !fallback.called {
		t.Error("fallback splitter was not invoked")
	}
	if len(warned) != 1 || !strings.Contains(warned[0], "no silences") {
		t.Errorf("warnings = %v, want a no-silences warning", warned)
	}
}

func TestSilenceSplitter_SingleSpanWithinChunkSize(t *testing.T) {
	t.Parallel()

	// Over the threshold but within one chunk: the span is re-encoded
	// directly, with no silence detection and no fallback warning.
	runner := &fakeRunner{}
	fallback := &recordingSplitter{}
	var warned []string
	ss, err := audio.NewSilenceSplitter("ffmpeg",
		audio.Policy{SplitThreshold: 600 * time.Second, ChunkSize: 900 * time.Second, Overlap: 15 * time.Second},
		audio.WithSilenceCommandRunner(runner),
		audio.WithSilenceTempDir(fakeTempDir{dir: "/tmp/sonoscribe-chunks-1"}),
		audio.WithFallback(fallback),
		audio.WithWarnFunc(func(msg string) { warned = append(warned, msg) }))
	if err != nil {
		t.Fatalf("NewSilenceSplitter: %v", err)
	}

	chunks, err := ss.Split(context.Background(), "/audio/medium.ogg", 700*time.Second)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Start != 0 || chunks[0].End != 700*time.Second {
		t.Errorf("chunk span = [%v, %v], want [0s, 700s]", chunks[0].Start, chunks[0].End)
	}
	for _, call := range runner.calls {
		if strings.Contains(call, "silencedetect") {
			t.Errorf("silence detection ran for a single-chunk duration: %q", call)
		}
	}
	if fallback.called {
		t.Error("fallback splitter was invoked")
	}
	if len(warned) != 0 {
		t.Errorf("warnings = %v, want none", warned)
	}
}

func TestSilenceSplitter_NoSplitBelowThreshold(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	fallback := &recordingSplitter{}
	ss, err := audio.NewSilenceSplitter("ffmpeg",
		audio.Policy{SplitThreshold: 600 * time.Second, ChunkSize: 600 * time.Second, Overlap: 15 * time.Second},
		audio.WithSilenceCommandRunner(runner),
		audio.WithFallback(fallback),
		audio.WithWarnFunc(nil))
	if err != nil {
		t.Fatalf("NewSilenceSplitter: %v", err)
	}

	chunks, err := ss.Split(context.Background(), "/audio/short.ogg", 120*time.Second)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Path != "/audio/short.ogg" {
		t.Fatalf("chunks = %+v, want single source-file chunk", chunks)
	}
	if fallback.called || len(runner.calls) != 0 {
		t.Error("no splitter logic may run at or below the threshold")
	}
}

// recordingSplitter records whether the fallback path was taken.
type recordingSplitter struct{ called bool }

func (r *recordingSplitter) Split(_ context.Context, audioPath string, duration time.Duration) ([]audio.Chunk, error) {
	r.called = true
	return []audio.Chunk{{Path: audioPath, Index: 0, Start: 0, End: duration}}, nil
}
