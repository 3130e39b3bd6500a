package audio

import "errors"

// ErrInvalidOverlap indicates the configured overlap is not smaller than the chunk size.
var ErrInvalidOverlap = errors.New("overlap must be smaller than chunk size")

// ErrExtractFailed indicates FFmpeg could not extract a chunk from the source audio.
var ErrExtractFailed = errors.New("chunk extraction failed")

// ErrProbeFailed indicates the audio duration could not be determined.
var ErrProbeFailed = errors.New("duration probe failed")
