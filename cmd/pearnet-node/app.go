package main

import (
    "context"
    "fmt"
    "os"
    "os/signal"
    "os/user"
    "syscall"
    "time"

    "go.uber.org/zap"

    "pearnet/pkg/chatlog"
    "pearnet/pkg/config"
    "pearnet/pkg/core/peering"
    "pearnet/pkg/observability"
    "pearnet/pkg/overlay"
    "pearnet/pkg/protocol"
    "pearnet/pkg/transport"
)

// run is the main entry point after CLI parsing.
func run(opts Options) int {
    cfg, err := config.Load(opts.ConfigPath)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
        return 1
    }
    if opts.Listen != "" { cfg.Node.Listen = opts.Listen }
    cfg.Node.Bootstrap = append(cfg.Node.Bootstrap, opts.Bootstrap...)

    logger, err := observability.SetupLogger(cfg.Log)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
        return 1
    }
    defer func() { _ = logger.Sync() }()
    zap.L().Info("pearnet-node starting", zap.String("app", cfg.AppName), zap.String("user", opts.Username))
    zap.L().Debug("effective configuration", zap.Any("config", cfg))

    history, err := chatlog.OpenFile(cfg.Chat.HistoryFile, chatRotation(cfg.Chat.Rotation))
    if err != nil {
        zap.L().Error("failed to open chat history", zap.Error(err))
        return 1
    }
    defer func() { _ = history.Close() }()
    feed := chatlog.NewFeed(64)
    defer feed.Close()

    sopts, err := serviceOptions(cfg, history, feed)
    if err != nil {
        zap.L().Error("invalid node options", zap.Error(err))
        return 1
    }
    svc, err := overlay.New(sopts)
    if err != nil {
        zap.L().Error("failed to build overlay", zap.Error(err))
        return 1
    }

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    if err := svc.Start(ctx, cfg.Node.Bootstrap); err != nil {
        zap.L().Error("failed to start overlay", zap.Error(err))
        return 1
    }
    defer func() { _ = svc.Stop() }()

    lines, unsubscribe := feed.Subscribe()
    defer unsubscribe()
    go printIncoming(os.Stdout, lines)

    con := &console{svc: svc, user: opts.Username, out: os.Stdout}
    done := make(chan struct{})
    go func() { con.serve(ctx, os.Stdin); close(done) }()

    fmt.Fprintf(os.Stdout, "listening on %s; type to chat, /help for commands\n", svc.Addr())
    select {
    case <-ctx.Done():
    case <-done:
    }
    zap.L().Info("pearnet-node shutting down")
    return 0
}

// serviceOptions maps configuration onto the overlay service.
func serviceOptions(cfg *config.Config, sink chatlog.Sink, n chatlog.Notifier) (overlay.Options, error) {
    format, err := protocol.ParseFormat(cfg.Node.PayloadFormat)
    if err != nil { return overlay.Options{}, err }
    return overlay.Options{
        Listen:    cfg.Node.Listen,
        Advertise: cfg.Node.Advertise,
        Transport: cfg.Node.Transport,
        TransportOptions: transport.Options{
            WriteTimeout: cfg.Net.WriteTimeout(),
            MaxFrame:     cfg.Net.MaxFrameBytes,
            KeepAlive:    cfg.Net.KeepAlive(),
        },
        MaxPeers: cfg.Node.MaxPeers,
        Format:   format,
        Ping: peering.PingSchedule{
            InitialMin: time.Duration(cfg.Ping.InitialMinMS) * time.Millisecond,
            InitialMax: time.Duration(cfg.Ping.InitialMaxMS) * time.Millisecond,
            PeriodMin:  time.Duration(cfg.Ping.PeriodMinMS) * time.Millisecond,
            PeriodMax:  time.Duration(cfg.Ping.PeriodMaxMS) * time.Millisecond,
            TTL:        uint8(cfg.Ping.TTL),
        },
        ChatTTL:     uint8(cfg.Chat.TTL),
        DialTimeout: cfg.Net.DialTimeout(),
        Breaker: overlay.BreakerSettings{
            MaxFailures: cfg.Net.Breaker.MaxFailures,
            OpenTimeout: cfg.Net.Breaker.OpenTimeout(),
        },
        DedupTTL:    cfg.Dedup.TTL(),
        DefaultPort: protocol.DefaultPort,
        Sink:        sink,
        Notifier:    n,
    }, nil
}

func chatRotation(r config.RotationConfig) chatlog.RotationConfig {
    return chatlog.RotationConfig{
        Enable:     r.Enable,
        MaxSizeMB:  r.MaxSizeMB,
        MaxBackups: r.MaxBackups,
        MaxAgeDays: r.MaxAgeDays,
        Compress:   r.Compress,
    }
}

func defaultUser() string {
    if u, err := user.Current(); err == nil && u.Username != "" { return u.Username }
    return "anonymous"
}
