// Package config loads pearnet node configuration from YAML and the environment.
package config

import (
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
    // AppName is the logical name of the node, used as a log field.
    AppName string `mapstructure:"app_name"`

    Log   LogConfig   `mapstructure:"log"`
    Node  NodeConfig  `mapstructure:"node"`
    Net   NetConfig   `mapstructure:"net"`
    Ping  PingConfig  `mapstructure:"ping"`
    Chat  ChatConfig  `mapstructure:"chat"`
    Dedup DedupConfig `mapstructure:"dedup"`
}

// LogConfig defines logger settings.
type LogConfig struct {
    // Level: debug, info, warn, error
    Level string `mapstructure:"level"`
    // Format: console or json
    Format string `mapstructure:"format"`
    // Outputs: stdout, stderr, or file paths
    Outputs []string `mapstructure:"outputs"`

    Rotation    RotationConfig `mapstructure:"rotation"`
    Development bool           `mapstructure:"development"`
}

// RotationConfig controls file rotation for log and chat history files.
type RotationConfig struct {
    Enable     bool   `mapstructure:"enable"`
    Filename   string `mapstructure:"filename"`
    MaxSizeMB  int    `mapstructure:"max_size_mb"`
    MaxBackups int    `mapstructure:"max_backups"`
    MaxAgeDays int    `mapstructure:"max_age_days"`
    Compress   bool   `mapstructure:"compress"`
}

// Default returns a Config populated with the protocol defaults.
func Default() *Config {
    return &Config{
        AppName: "pearnet-node",
        Log: LogConfig{
            Level:       "info",
            Format:      "console",
            Outputs:     []string{"stderr"},
            Development: false,
            Rotation: RotationConfig{
                Filename:   "logs/pearnet.log",
                MaxSizeMB:  50,
                MaxBackups: 3,
                MaxAgeDays: 28,
                Compress:   true,
            },
        },
        Node: NodeConfig{
            Listen:        ":22222",
            Transport:     "tcp",
            MaxPeers:      5,
            PayloadFormat: "cbor",
        },
        Net: NetConfig{
            DialTimeoutMS:  5000,
            WriteTimeoutMS: 10000,
            MaxFrameBytes:  64 << 10,
            Breaker:        BreakerConfig{MaxFailures: 3, OpenMS: 60000},
        },
        Ping: PingConfig{InitialMinMS: 8000, InitialMaxMS: 16000, PeriodMinMS: 9000, PeriodMaxMS: 11000, TTL: 5},
        Chat: ChatConfig{
            TTL:         2,
            HistoryFile: "persMsgHistory.txt",
            Rotation:    RotationConfig{MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 90},
        },
    }
}

// Load reads configuration from path (if non-empty), otherwise it searches
// the usual locations. Environment variables use the prefix PEARNET and
// `.`/`-` are replaced with `_`, e.g. PEARNET_NODE_MAX_PEERS=8.
func Load(path string) (*Config, error) {
    cfg := Default()

    v := viper.New()
    v.SetConfigType("yaml")
    v.SetEnvPrefix("PEARNET")
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
    v.AutomaticEnv()
    seed(v, cfg)

    if path == "" {
        path = os.Getenv("PEARNET_CONFIG")
    }
    if path != "" {
        v.SetConfigFile(path)
    } else {
        v.SetConfigName("pearnet")
        v.AddConfigPath(".")
        v.AddConfigPath("./configs")
        if home, err := os.UserHomeDir(); err == nil {
            v.AddConfigPath(filepath.Join(home, ".pearnet"))
        }
    }

    if err := v.ReadInConfig(); err != nil {
        var notFound viper.ConfigFileNotFoundError
        if !errors.As(err, &notFound) {
            return nil, fmt.Errorf("read config: %w", err)
        }
    }

    if err := v.Unmarshal(&cfg); err != nil {
        return nil, fmt.Errorf("decode config: %w", err)
    }
    if err := cfg.validate(); err != nil {
        return nil, err
    }
    return cfg, nil
}

// seed registers every key with viper so env-only configs work.
func seed(v *viper.Viper, cfg *Config) {
    v.SetDefault("app_name", cfg.AppName)

    v.SetDefault("log.level", cfg.Log.Level)
    v.SetDefault("log.format", cfg.Log.Format)
    v.SetDefault("log.outputs", cfg.Log.Outputs)
    v.SetDefault("log.development", cfg.Log.Development)
    seedRotation(v, "log.rotation", cfg.Log.Rotation)

    v.SetDefault("node.listen", cfg.Node.Listen)
    v.SetDefault("node.advertise", cfg.Node.Advertise)
    v.SetDefault("node.transport", cfg.Node.Transport)
    v.SetDefault("node.bootstrap", cfg.Node.Bootstrap)
    v.SetDefault("node.max_peers", cfg.Node.MaxPeers)
    v.SetDefault("node.payload_format", cfg.Node.PayloadFormat)

    v.SetDefault("net.dial_timeout_ms", cfg.Net.DialTimeoutMS)
    v.SetDefault("net.write_timeout_ms", cfg.Net.WriteTimeoutMS)
    v.SetDefault("net.max_frame_bytes", cfg.Net.MaxFrameBytes)
    v.SetDefault("net.keepalive_ms", cfg.Net.KeepAliveMS)
    v.SetDefault("net.breaker.max_failures", cfg.Net.Breaker.MaxFailures)
    v.SetDefault("net.breaker.open_ms", cfg.Net.Breaker.OpenMS)

    v.SetDefault("ping.initial_min_ms", cfg.Ping.InitialMinMS)
    v.SetDefault("ping.initial_max_ms", cfg.Ping.InitialMaxMS)
    v.SetDefault("ping.period_min_ms", cfg.Ping.PeriodMinMS)
    v.SetDefault("ping.period_max_ms", cfg.Ping.PeriodMaxMS)
    v.SetDefault("ping.ttl", cfg.Ping.TTL)

    v.SetDefault("chat.ttl", cfg.Chat.TTL)
    v.SetDefault("chat.history_file", cfg.Chat.HistoryFile)
    seedRotation(v, "chat.rotation", cfg.Chat.Rotation)

    v.SetDefault("dedup.ttl_ms", cfg.Dedup.TTLMS)
}

func seedRotation(v *viper.Viper, prefix string, r RotationConfig) {
    v.SetDefault(prefix+".enable", r.Enable)
    v.SetDefault(prefix+".filename", r.Filename)
    v.SetDefault(prefix+".max_size_mb", r.MaxSizeMB)
    v.SetDefault(prefix+".max_backups", r.MaxBackups)
    v.SetDefault(prefix+".max_age_days", r.MaxAgeDays)
    v.SetDefault(prefix+".compress", r.Compress)
}

func (c *Config) validate() error {
    switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
    case "debug", "info", "warn", "warning", "error":
    default:
        return fmt.Errorf("invalid log.level: %q", c.Log.Level)
    }
    if c.Log.Format == "" { c.Log.Format = "console" }
    if len(c.Log.Outputs) == 0 { c.Log.Outputs = []string{"stderr"} }

    if err := c.Node.validate(); err != nil { return err }
    if err := c.Ping.validate(); err != nil { return err }
    if c.Net.MaxFrameBytes < 0 || c.Net.DialTimeoutMS < 0 || c.Net.WriteTimeoutMS < 0 {
        return fmt.Errorf("net: negative limits are not allowed")
    }
    if c.Chat.TTL < 1 || c.Chat.TTL > 255 {
        return fmt.Errorf("invalid chat.ttl: %d", c.Chat.TTL)
    }
    if c.Dedup.TTLMS < 0 {
        return fmt.Errorf("invalid dedup.ttl_ms: %d", c.Dedup.TTLMS)
    }
    return nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
    cfg, err := Load(path)
    if err != nil {
        panic(err)
    }
    return cfg
}
