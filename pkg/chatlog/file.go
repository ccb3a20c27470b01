package chatlog

import (
    "fmt"
    "io"
    "os"
    "path/filepath"
    "sync"
    "time"

    "gopkg.in/natefinch/lumberjack.v2"
)

// RotationConfig mirrors the log rotation knobs for the chat history file.
type RotationConfig struct {
    Enable     bool
    MaxSizeMB  int
    MaxBackups int
    MaxAgeDays int
    Compress   bool
}

// FileSink appends chat lines to a text file, one line per message:
//
//   [15:04] alice: hello
//
// With rotation enabled the file is managed by lumberjack.
type FileSink struct {
    mu  sync.Mutex
    w   io.WriteCloser
    now func() time.Time
}

// OpenFile opens (creating if needed) the history file at path.
func OpenFile(path string, rot RotationConfig) (*FileSink, error) {
    if dir := filepath.Dir(path); dir != "." && dir != "" {
        if err := os.MkdirAll(dir, 0o755); err != nil { return nil, fmt.Errorf("chat log dir: %w", err) }
    }
    if rot.Enable {
        return &FileSink{w: &lumberjack.Logger{
            Filename:   path,
            MaxSize:    max(rot.MaxSizeMB, 1),
            MaxBackups: rot.MaxBackups,
            MaxAge:     rot.MaxAgeDays,
            Compress:   rot.Compress,
        }}, nil
    }
    f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
    if err != nil { return nil, fmt.Errorf("open chat log: %w", err) }
    return &FileSink{w: f}, nil
}

// NewWriterSink writes lines to w. Useful for consoles and tests.
func NewWriterSink(w io.Writer) *FileSink { return &FileSink{w: nopCloser{w}} }

// FormatLine renders a line the way it is stored.
func FormatLine(username, text string, ts time.Time) string {
    return " [" + ts.Format("15:04") + "] " + username + ": " + text + "\n"
}

func (s *FileSink) AppendChatLine(username, text string, ts time.Time) error {
    s.mu.Lock(); defer s.mu.Unlock()
    _, err := io.WriteString(s.w, FormatLine(username, text, ts))
    return err
}

func (s *FileSink) Close() error {
    s.mu.Lock(); defer s.mu.Unlock()
    return s.w.Close()
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
