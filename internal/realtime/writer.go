package realtime

import (
	"encoding/json"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"
)

// socketWriter serializes access to the connection's write half. All
// three session tasks produce frames; funneling them through one mutex
// yields a total order on the frames the client observes.
type socketWriter struct {
	mu     sync.Mutex
	conn   net.Conn
	logger *zap.Logger
}

// writeResponse marshals resp and sends it as a single text frame.
func (w *socketWriter) writeResponse(resp any) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return &serializationError{cause: err}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.logger.Debug("sending response to client", zap.ByteString("payload", payload))
	if err := wsutil.WriteServerText(w.conn, payload); err != nil {
		return &socketWriteError{cause: err}
	}
	return nil
}

// writeClose sends a close frame. Best-effort; failures are expected
// when the peer is already gone.
func (w *socketWriter) writeClose(code ws.StatusCode, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	body := ws.NewCloseFrameBody(code, reason)
	if err := ws.WriteFrame(w.conn, ws.NewCloseFrame(body)); err != nil {
		w.logger.Debug("failed to write close frame", zap.Error(err))
	}
}

// writePong answers a ping.
func (w *socketWriter) writePong(payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := wsutil.WriteServerMessage(w.conn, ws.OpPong, payload); err != nil {
		return &socketWriteError{cause: err}
	}
	return nil
}
