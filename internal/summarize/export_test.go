package summarize

// Internal hooks exposed for black-box testing.

var WithChatCompleter = withChatCompleter
