package chatlog

import (
    "bytes"
    "errors"
    "os"
    "path/filepath"
    "testing"
    "time"

    "github.com/stretchr/testify/require"
)

func TestFormatLine(t *testing.T) {
    ts := time.Date(2024, 3, 1, 9, 5, 0, 0, time.UTC)
    require.Equal(t, " [09:05] alice: hi there\n", FormatLine("alice", "hi there", ts))
}

func TestFileSinkAppends(t *testing.T) {
    path := filepath.Join(t.TempDir(), "hist", "persMsgHistory.txt")
    ts := time.Date(2024, 3, 1, 18, 30, 0, 0, time.UTC)

    s, err := OpenFile(path, RotationConfig{})
    require.NoError(t, err)
    require.NoError(t, s.AppendChatLine("alice", "one", ts))
    require.NoError(t, s.Close())

    s, err = OpenFile(path, RotationConfig{})
    require.NoError(t, err)
    require.NoError(t, s.AppendChatLine("bob", "two", ts))
    require.NoError(t, s.Close())

    b, err := os.ReadFile(path)
    require.NoError(t, err)
    require.Equal(t, " [18:30] alice: one\n [18:30] bob: two\n", string(b))
}

func TestRotatingFileSink(t *testing.T) {
    path := filepath.Join(t.TempDir(), "chat.log")
    s, err := OpenFile(path, RotationConfig{Enable: true, MaxSizeMB: 1, MaxBackups: 2})
    require.NoError(t, err)
    require.NoError(t, s.AppendChatLine("carol", "rotating", time.Now()))
    require.NoError(t, s.Close())
    b, err := os.ReadFile(path)
    require.NoError(t, err)
    require.Contains(t, string(b), "carol: rotating")
}

type failingSink struct{}

func (failingSink) AppendChatLine(string, string, time.Time) error { return errors.New("disk full") }

func TestMultiTriesEverySink(t *testing.T) {
    var buf bytes.Buffer
    m := Multi{failingSink{}, NewWriterSink(&buf)}
    err := m.AppendChatLine("dave", "x", time.Now())
    require.EqualError(t, err, "disk full")
    require.Contains(t, buf.String(), "dave: x")
}

func TestFeedFanOutAndDrop(t *testing.T) {
    f := NewFeed(1)
    a, cancelA := f.Subscribe()
    b, cancelB := f.Subscribe()
    defer cancelB()

    f.OnChatReceived(Line{Username: "u", Text: "1"})
    f.OnChatReceived(Line{Username: "u", Text: "2"}) // dropped: buffers hold one line

    require.Equal(t, "1", (<-a).Text)
    require.Equal(t, "1", (<-b).Text)

    cancelA()
    cancelA()
    _, ok := <-a
    require.False(t, ok)

    f.Close()
    _, ok = <-b
    require.False(t, ok)
}
