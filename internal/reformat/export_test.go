package reformat

// Internal hooks exposed for black-box testing.

var (
	SliceBytes        = sliceBytes
	WithChatCompleter = withChatCompleter
)
