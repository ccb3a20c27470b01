package overlay

import (
    "fmt"
    "net"
    "strconv"
    "strings"

    ma "github.com/multiformats/go-multiaddr"
    manet "github.com/multiformats/go-multiaddr/net"
)

// NormalizeAddr turns a bootstrap or advertised address into host:port.
// Accepted forms are a bare host (defaultPort is appended), host:port, and
// multiaddrs such as /ip4/10.0.0.2/tcp/22222 or /dns4/node.example/tcp/22222.
func NormalizeAddr(s string, defaultPort int) (string, error) {
    s = strings.TrimSpace(s)
    if s == "" { return "", fmt.Errorf("empty address") }
    if strings.HasPrefix(s, "/") {
        m, err := ma.NewMultiaddr(s)
        if err != nil { return "", fmt.Errorf("parse multiaddr %q: %w", s, err) }
        network, hostport, err := manet.DialArgs(m)
        if err != nil { return "", fmt.Errorf("multiaddr %q: %w", s, err) }
        switch network {
        case "ip4", "ip6":
            // no transport component; treat it like a bare host
            return net.JoinHostPort(hostport, strconv.Itoa(defaultPort)), nil
        case "tcp", "tcp4", "tcp6", "udp", "udp4", "udp6":
            return hostport, nil
        }
        return "", fmt.Errorf("multiaddr %q: unsupported network %s", s, network)
    }
    if host, port, err := net.SplitHostPort(s); err == nil {
        if host == "" { return "", fmt.Errorf("address %q has no host", s) }
        if _, err := strconv.ParseUint(port, 10, 16); err != nil { return "", fmt.Errorf("address %q: bad port", s) }
        return s, nil
    }
    return net.JoinHostPort(strings.Trim(s, "[]"), strconv.Itoa(defaultPort)), nil
}

// ListenAddr accepts a bare port ("22222") as shorthand for ":22222".
func ListenAddr(s string) string {
    s = strings.TrimSpace(s)
    if _, err := strconv.ParseUint(s, 10, 16); err == nil { return ":" + s }
    return s
}
