package observability

import (
    "os"
    "path/filepath"
    "testing"

    "github.com/stretchr/testify/require"
    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"

    "pearnet/pkg/config"
)

func TestParseLevel(t *testing.T) {
    require.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
    require.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
    require.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
    require.Equal(t, zapcore.InfoLevel, ParseLevel("chatty"))
}

func TestSetupLoggerWritesJSONToFile(t *testing.T) {
    prev := zap.L()
    t.Cleanup(func() { zap.ReplaceGlobals(prev) })

    path := filepath.Join(t.TempDir(), "logs", "node.log")
    logger, err := SetupLogger(config.LogConfig{Level: "debug", Format: "json", Outputs: []string{path}})
    require.NoError(t, err)

    zap.L().Debug("connection open", zap.String("peer", "10.0.0.2:22222"))
    _ = logger.Sync()

    data, err := os.ReadFile(path)
    require.NoError(t, err)
    require.Contains(t, string(data), `"msg":"connection open"`)
    require.Contains(t, string(data), `"peer":"10.0.0.2:22222"`)
}
