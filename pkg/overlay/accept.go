package overlay

import (
    "context"
    "errors"

    "go.uber.org/zap"

    "pearnet/pkg/protocol"
    "pearnet/pkg/transport"
)

func (s *Service) acceptLoop(ctx context.Context, l transport.Listener) {
    defer s.wg.Done()
    for {
        sess, err := l.Accept(ctx)
        if err != nil {
            if ctx.Err() != nil || errors.Is(err, transport.ErrListenerClosed) { return }
            zap.L().Error("accept failed", zap.String("addr", l.Addr().String()), zap.Error(err))
            return
        }
        addr := sess.RemoteAddr().String()
        zap.L().Info("inbound session", zap.String("peer", addr), zap.String("kind", sess.Kind().String()))
        if err := s.admit(addr, sess, false); err != nil {
            zap.L().Info("inbound session rejected", zap.String("peer", addr), zap.Error(err))
        }
    }
}

// refuse tells the peer goodbye and drops the session without blocking the caller.
func refuse(sess transport.Session) {
    go func() {
        if buf, err := protocol.Encode(protocol.NewBye()); err == nil { _ = sess.SendBytes(buf) }
        _ = sess.Close()
    }()
}
