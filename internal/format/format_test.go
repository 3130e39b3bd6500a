package format_test

import (
	"testing"
	"time"

	"github.com/sonoscribe/sonoscribe/internal/format"
)

func TestDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"zero", 0, "00:00"},
		{"seconds only", 42 * time.Second, "00:42"},
		{"minutes and seconds", 5*time.Minute + 3*time.Second, "05:03"},
		{"with hours", time.Hour + 30*time.Minute + 15*time.Second, "01:30:15"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := format.Duration(tt.d); got != tt.want {
				t.Errorf("Duration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestFFmpegTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"zero", 0, "00:00:00.000"},
		{"subsecond", 250 * time.Millisecond, "00:00:00.250"},
		{"ten minutes", 10 * time.Minute, "00:10:00.000"},
		{"overlap boundary", 607*time.Second + 500*time.Millisecond, "00:10:07.500"},
		{"with hours", 2*time.Hour + 5*time.Second, "02:00:05.000"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := format.FFmpegTime(tt.d); got != tt.want {
				t.Errorf("FFmpegTime(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"bytes", 512, "512 bytes"},
		{"kilobytes", 4 * 1024, "4 KB"},
		{"megabytes", 20 * 1024 * 1024, "20 MB"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := format.Size(tt.bytes); got != tt.want {
				t.Errorf("Size(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}
