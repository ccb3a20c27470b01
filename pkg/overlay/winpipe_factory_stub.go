//go:build !windows

package overlay

import (
    "fmt"

    "pearnet/pkg/transport"
)

func newWinPipeTransport(transport.Options) (transport.Transport, error) {
    return nil, fmt.Errorf("winpipe transport is not supported on this platform")
}
