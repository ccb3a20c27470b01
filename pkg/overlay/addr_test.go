package overlay

import (
    "testing"

    "github.com/stretchr/testify/require"
)

func TestNormalizeAddr(t *testing.T) {
    cases := []struct {
        in, want string
    }{
        {"10.0.0.5", "10.0.0.5:22222"},
        {" 10.0.0.5:4000 ", "10.0.0.5:4000"},
        {"node.example", "node.example:22222"},
        {"::1", "[::1]:22222"},
        {"[::1]:4000", "[::1]:4000"},
        {"/ip4/10.0.0.2/tcp/4000", "10.0.0.2:4000"},
        {"/ip6/::1/tcp/4000", "[::1]:4000"},
        {"/ip4/10.0.0.2", "10.0.0.2:22222"},
    }
    for _, c := range cases {
        got, err := NormalizeAddr(c.in, 22222)
        require.NoError(t, err, c.in)
        require.Equal(t, c.want, got, c.in)
    }
}

func TestNormalizeAddrRejects(t *testing.T) {
    for _, in := range []string{"", "  ", ":4000", "host:99999", "host:http", "/nope/1", "/unix/tmp/sock"} {
        _, err := NormalizeAddr(in, 22222)
        require.Error(t, err, in)
    }
}

func TestListenAddr(t *testing.T) {
    require.Equal(t, ":22222", ListenAddr("22222"))
    require.Equal(t, "127.0.0.1:0", ListenAddr("127.0.0.1:0"))
    require.Equal(t, "node-a", ListenAddr("node-a"))
}
