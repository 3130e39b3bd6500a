package engine

// Internal hooks exposed for black-box testing.

var WithAudioTranscriber = withAudioTranscriber
