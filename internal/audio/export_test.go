package audio

import "time"

// Internal functions exposed for black-box testing.

type Span = span

func (s Span) StartOffset() time.Duration { return s.start }
func (s Span) EndOffset() time.Duration   { return s.end }

var (
	PlanFixed           = planFixed
	PlanSilenceCuts     = planSilenceCuts
	SpansFromCuts       = spansFromCuts
	ChunksFromSpans     = chunksFromSpans
	ParseSilenceOutput  = parseSilenceOutput
	ParseFFmpegDuration = parseFFmpegDuration
)

type SilenceRange = silenceRange

func NewSilenceRange(start, end time.Duration) silenceRange {
	return silenceRange{start: start, end: end}
}
