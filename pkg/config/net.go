package config

import "time"

// NetConfig contains socket and dial tuning.
type NetConfig struct {
    DialTimeoutMS  int           `mapstructure:"dial_timeout_ms"`
    WriteTimeoutMS int           `mapstructure:"write_timeout_ms"`
    MaxFrameBytes  int           `mapstructure:"max_frame_bytes"`
    KeepAliveMS    int           `mapstructure:"keepalive_ms"` // 0 = OS default
    Breaker        BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig drives the per-address dial circuit breaker.
type BreakerConfig struct {
    MaxFailures uint32 `mapstructure:"max_failures"`
    OpenMS      int    `mapstructure:"open_ms"`
}

func (n NetConfig) DialTimeout() time.Duration  { return ms(n.DialTimeoutMS) }
func (n NetConfig) WriteTimeout() time.Duration { return ms(n.WriteTimeoutMS) }
func (n NetConfig) KeepAlive() time.Duration    { return ms(n.KeepAliveMS) }
func (b BreakerConfig) OpenTimeout() time.Duration { return ms(b.OpenMS) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
