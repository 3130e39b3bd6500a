package segment

import (
	"sort"
	"strings"
	"time"
)

// Merge algorithm selection.
const (
	// alignmentChunkLimit is the chunk count below which alignment-based
	// merging is used. The word alignment is quadratic in overlap token
	// count, which is acceptable only for small chunk counts; longer files
	// use the linear timestamp-based merge and accept a small risk of a
	// duplicated or missing word at a boundary.
	alignmentChunkLimit = 10

	// minAlignedWords is the minimum matched word count for the alignment
	// merge to treat a head prefix as re-transcribed overlap.
	minAlignedWords = 2
)

// Algorithm identifies a merge strategy.
type Algorithm string

// Merge strategies, auto-selected by chunk count.
const (
	AlgorithmAlignment Algorithm = "alignment"
	AlgorithmTimestamp Algorithm = "timestamp"
)

// AlgorithmFor returns the merge strategy used for a given chunk count.
func AlgorithmFor(chunkCount int) Algorithm {
	if chunkCount < alignmentChunkLimit {
		return AlgorithmAlignment
	}
	return AlgorithmTimestamp
}

// Merge combines per-chunk segment lists into one ordered transcript,
// deduplicating overlap text. Chunks must already carry original-timeline
// timestamps. The algorithm is selected by chunk count: alignment-based
// below alignmentChunkLimit, timestamp-based at or above it.
func Merge(chunks [][]Segment, overlap time.Duration) Transcript {
	var merged []Segment
	switch {
	case len(chunks) == 0:
		merged = nil
	case len(chunks) == 1:
		merged = chunks[0]
	case AlgorithmFor(len(chunks)) == AlgorithmAlignment:
		merged = alignmentMerge(chunks, overlap)
	default:
		merged = timestampMerge(chunks, overlap)
	}

	merged = enforceOrder(merged)
	return Transcript{
		Segments: merged,
		Text:     JoinText(merged),
	}
}

// alignmentMerge deduplicates each boundary by aligning words: the longest
// common subsequence between the tail of the accumulated transcript and the
// head of the next chunk identifies re-transcribed overlap, which is trimmed
// from the next chunk before concatenation. Robust to timing drift because
// it matches text, not timestamps.
func alignmentMerge(chunks [][]Segment, overlap time.Duration) []Segment {
	merged := chunks[0]
	for _, next := range chunks[1:] {
		merged = appendAligned(merged, next, overlap)
	}
	return merged
}

// appendAligned appends next to merged, dropping next's re-transcribed head.
func appendAligned(merged, next []Segment, overlap time.Duration) []Segment {
	if len(merged) == 0 {
		return next
	}
	if len(next) == 0 {
		return merged
	}

	boundary := merged[len(merged)-1].End
	// The overlap window is widened to tolerate timing drift between the
	// two independent transcriptions of the same audio.
	window := 2 * overlap
	if window <= 0 {
		return append(merged, next...)
	}

	tailWords := wordsInWindow(merged, boundary-window)

	// Find the longest prefix of next that still starts inside the overlap
	// and whose words are mostly present in the tail. That prefix is the
	// duplicated span.
	drop := 0
	var headWords []string
	for k := 0; k < len(next) && next[k].Start < boundary; k++ {
		headWords = append(headWords, splitWords(next[k].Text)...)
		matched := lcsLength(tailWords, headWords)
		if matched >= minAlignedWords && matched*2 >= len(headWords) {
			drop = k + 1
		}
	}

	return append(merged, next[drop:]...)
}

// wordsInWindow collects lowercased words of segments ending after cutoff.
func wordsInWindow(segments []Segment, cutoff time.Duration) []string {
	var words []string
	for _, s := range segments {
		if s.End <= cutoff {
			continue
		}
		words = append(words, splitWords(s.Text)...)
	}
	return words
}

// splitWords tokenizes text into lowercased, punctuation-trimmed words.
func splitWords(text string) []string {
	fields := strings.Fields(text)
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.ToLower(strings.Trim(f, ".,!?;:\"'()[]"))
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

// lcsLength returns the length of the longest common subsequence of a and b.
// Quadratic in input length; callers bound the inputs to the overlap window.
func lcsLength(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// timestampMerge deduplicates each boundary by cutting both chunks at the
// overlap midpoint: segments of chunk[i] starting at or after
// (end[i] - overlap/2) are dropped, as are segments of chunk[i+1] starting
// before that midpoint. Linear in total segment count.
func timestampMerge(chunks [][]Segment, overlap time.Duration) []Segment {
	half := overlap / 2
	var merged []Segment

	for i, chunk := range chunks {
		lo := time.Duration(-1)
		if i > 0 {
			prev := chunks[i-1]
			if end, ok := chunkEnd(prev); ok {
				lo = end - half
			}
		}
		hi := time.Duration(-1)
		if i < len(chunks)-1 {
			if end, ok := chunkEnd(chunk); ok {
				hi = end - half
			}
		}

		for _, s := range chunk {
			if lo >= 0 && s.Start < lo {
				continue // belongs to the previous chunk's half of the overlap
			}
			if hi >= 0 && s.Start >= hi {
				continue // the next chunk owns this half of the overlap
			}
			merged = append(merged, s)
		}
	}
	return merged
}

// chunkEnd returns the end timestamp of a chunk's content.
func chunkEnd(segments []Segment) (time.Duration, bool) {
	if len(segments) == 0 {
		return 0, false
	}
	end := segments[0].End
	for _, s := range segments[1:] {
		if s.End > end {
			end = s.End
		}
	}
	return end, true
}

// enforceOrder sorts segments by start time and clamps residual overlaps so
// the output is strictly time-ordered and pairwise non-overlapping. Segments
// collapsed to nothing by clamping are dropped.
func enforceOrder(segments []Segment) []Segment {
	if len(segments) == 0 {
		return nil
	}

	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})

	out := segments[:0]
	var prevEnd time.Duration
	for _, s := range segments {
		if len(out) > 0 && s.Start < prevEnd {
			s.Start = prevEnd
		}
		if s.End <= s.Start {
			continue
		}
		out = append(out, s)
		prevEnd = s.End
	}
	return out
}
