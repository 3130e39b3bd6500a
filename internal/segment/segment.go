// Package segment defines the transcript data model and the merge step that
// combines per-chunk segment lists into a single time-ordered transcript
// without duplicated overlap text.
package segment

import (
	"strings"
	"time"
)

// Segment is one timestamped unit of transcribed text. Start and End are
// offsets in the original job timeline, not chunk-local offsets.
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Transcript is the job-level ordered segment list plus the concatenated
// plain text. It is the system of record for timestamps: reformatting
// produces a parallel artifact and never mutates a Transcript.
type Transcript struct {
	Segments []Segment
	Text     string
}

// Duration returns the span covered by the transcript.
func (t Transcript) Duration() time.Duration {
	if len(t.Segments) == 0 {
		return 0
	}
	return t.Segments[len(t.Segments)-1].End - t.Segments[0].Start
}

// JoinText concatenates segment texts in order, separated by single spaces.
// The stored Transcript.Text always equals JoinText of its segments.
func JoinText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		text := strings.TrimSpace(s.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
