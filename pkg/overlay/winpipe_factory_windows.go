//go:build windows

package overlay

import (
    "pearnet/pkg/transport"
    "pearnet/pkg/transport/winpipe"
)

func newWinPipeTransport(opts transport.Options) (transport.Transport, error) { return winpipe.New(opts), nil }
