// Package chatlog holds the collaborators chat delivery reports to: a
// persistence sink for the chat history and a notifier for the live feed.
package chatlog

import "time"

// Line is one chat line, sent or received.
type Line struct {
    Username string
    Text     string
    Time     time.Time
}

// Sink persists chat lines.
type Sink interface {
    AppendChatLine(username, text string, ts time.Time) error
}

// Notifier is told about every newly received chat line. Implementations
// must not block.
type Notifier interface {
    OnChatReceived(Line)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Line)

func (f NotifierFunc) OnChatReceived(l Line) { f(l) }

// Multi fans one line out to several sinks. The first error is returned after
// every sink has been tried.
type Multi []Sink

func (m Multi) AppendChatLine(username, text string, ts time.Time) error {
    var first error
    for _, s := range m {
        if err := s.AppendChatLine(username, text, ts); err != nil && first == nil { first = err }
    }
    return first
}

// Discard drops every line.
var Discard Sink = discard{}

type discard struct{}

func (discard) AppendChatLine(string, string, time.Time) error { return nil }
