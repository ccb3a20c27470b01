package config

import (
    "fmt"
    "strings"
    "time"
)

// NodeConfig is the overlay identity of this process.
type NodeConfig struct {
    // Listen is the bind address; a bare port means all interfaces.
    Listen string `mapstructure:"listen"`
    // Advertise is sent in Pongs and SYNs; empty derives it per connection.
    Advertise string `mapstructure:"advertise"`
    // Transport: tcp, quic, mem, winpipe
    Transport string `mapstructure:"transport"`
    // Bootstrap peers as host, host:port or /ip4/.../tcp/... multiaddrs.
    Bootstrap []string `mapstructure:"bootstrap"`
    MaxPeers  int      `mapstructure:"max_peers"`
    // PayloadFormat: cbor, json, proto
    PayloadFormat string `mapstructure:"payload_format"`
}

func (n *NodeConfig) validate() error {
    n.Transport = strings.ToLower(strings.TrimSpace(n.Transport))
    n.PayloadFormat = strings.ToLower(strings.TrimSpace(n.PayloadFormat))
    if strings.TrimSpace(n.Listen) == "" { return fmt.Errorf("node.listen is required") }
    if n.MaxPeers < 1 { return fmt.Errorf("invalid node.max_peers: %d", n.MaxPeers) }
    switch n.PayloadFormat {
    case "", "cbor", "json", "proto", "protobuf":
    default:
        return fmt.Errorf("invalid node.payload_format: %q", n.PayloadFormat)
    }
    // bootstrap entries may arrive as one comma separated env value
    var boot []string
    for _, b := range n.Bootstrap {
        for _, part := range strings.Split(b, ",") {
            if part = strings.TrimSpace(part); part != "" { boot = append(boot, part) }
        }
    }
    n.Bootstrap = boot
    return nil
}

// PingConfig is the per-connection ping schedule in milliseconds.
type PingConfig struct {
    InitialMinMS int `mapstructure:"initial_min_ms"`
    InitialMaxMS int `mapstructure:"initial_max_ms"`
    PeriodMinMS  int `mapstructure:"period_min_ms"`
    PeriodMaxMS  int `mapstructure:"period_max_ms"`
    TTL          int `mapstructure:"ttl"`
}

func (p PingConfig) validate() error {
    if p.InitialMinMS <= 0 || p.InitialMaxMS < p.InitialMinMS {
        return fmt.Errorf("invalid ping initial range [%d,%d]", p.InitialMinMS, p.InitialMaxMS)
    }
    if p.PeriodMinMS <= 0 || p.PeriodMaxMS < p.PeriodMinMS {
        return fmt.Errorf("invalid ping period range [%d,%d]", p.PeriodMinMS, p.PeriodMaxMS)
    }
    if p.TTL < 1 || p.TTL > 255 { return fmt.Errorf("invalid ping.ttl: %d", p.TTL) }
    return nil
}

// ChatConfig controls chat flooding and the local history file.
type ChatConfig struct {
    TTL         int            `mapstructure:"ttl"`
    HistoryFile string         `mapstructure:"history_file"`
    Rotation    RotationConfig `mapstructure:"rotation"`
}

// DedupConfig bounds how long seen GUIDs are remembered. 0 keeps them forever.
type DedupConfig struct {
    TTLMS int `mapstructure:"ttl_ms"`
}

func (d DedupConfig) TTL() time.Duration { return ms(d.TTLMS) }
