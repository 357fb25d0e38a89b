package realtime

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"github.com/kalgynirae/sudoku/internal/cursors"
	"github.com/kalgynirae/sudoku/internal/metrics"
	"github.com/kalgynirae/sudoku/internal/room"
)

// maxFrameSize bounds incoming messages, fragmented or not. Board
// states aren't very big and we keep our own board diff queue, so this
// stays small.
const maxFrameSize = 512 * 1024

// errMessageTooBig marks a message that exceeded maxFrameSize across
// all of its fragments.
var errMessageTooBig = errors.New("message exceeds the size limit")

// errPeerClosed marks a close frame that arrived between the fragments
// of a message.
var errPeerClosed = errors.New("peer closed the connection mid-message")

// syncIDs is the per-session sync-id pair shared between the request
// receiver and the diff broadcast receiver.
type syncIDs struct {
	mu sync.Mutex
	// lastReceived is the highest sync id seen from this session's own
	// client; nil until the first applyDiffs.
	lastReceived *uint64
	// lastSent is the sync id most recently echoed back to the client.
	lastSent *uint64
}

// requestReceiver reads frames from the socket and applies them to the
// room. Task one of three.
type requestReceiver struct {
	room      *room.Room
	conn      net.Conn
	writer    *socketWriter
	sessionID room.SessionID
	syncIDs   *syncIDs
	cursorTx  *cursors.Sender
	logger    *zap.Logger
	metrics   *metrics.Registry
}

func (t *requestReceiver) run(ctx context.Context) error {
	reader := wsutil.NewReader(t.conn, ws.StateServerSide)
	reader.OnIntermediate = t.handleControl
	for {
		if ctx.Err() != nil {
			return nil
		}
		head, err := reader.NextFrame()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			t.logger.Warn("error reading from socket", zap.Error(err))
			return nil
		}
		if head.Length > maxFrameSize {
			t.logger.Warn("dropping oversized frame", zap.Int64("length", head.Length))
			t.writer.writeClose(ws.StatusPolicyViolation, "frame too large")
			return nil
		}

		switch head.OpCode {
		case ws.OpClose:
			t.writer.writeClose(ws.StatusNormalClosure, "")
			return nil
		case ws.OpPing:
			payload := make([]byte, head.Length)
			if _, err := io.ReadFull(reader, payload); err != nil {
				return nil
			}
			if err := t.writer.writePong(payload); err != nil {
				return err
			}
		case ws.OpBinary:
			if err := reader.Discard(); err != nil {
				return nil
			}
			t.logger.Debug("received unsupported binary message from client")
			if err := t.writer.writeResponse(newErrorResponse(errBinaryMessage)); err != nil {
				return err
			}
		case ws.OpText:
			payload, err := readMessage(reader)
			if err != nil {
				if errors.Is(err, errMessageTooBig) {
					t.logger.Warn("dropping oversized message")
					t.writer.writeClose(ws.StatusMessageTooBig, "message too large")
					return nil
				}
				var writeErr *socketWriteError
				if errors.As(err, &writeErr) {
					return err
				}
				return nil
			}
			t.logger.Debug("received text message from client", zap.ByteString("payload", payload))
			if err := t.handleText(payload); err != nil {
				return err
			}
		default:
			if err := reader.Discard(); err != nil {
				return nil
			}
		}
	}
}

// readMessage reads the remainder of the current message, following
// continuation frames, bounded by maxFrameSize.
func readMessage(reader *wsutil.Reader) ([]byte, error) {
	payload, err := io.ReadAll(io.LimitReader(reader, maxFrameSize+1))
	if err != nil {
		return nil, err
	}
	if len(payload) > maxFrameSize {
		return nil, errMessageTooBig
	}
	return payload, nil
}

// handleControl answers control frames that arrive between the
// fragments of a message. Control frames between messages are handled
// by run directly.
func (t *requestReceiver) handleControl(head ws.Header, rd io.Reader) error {
	payload := make([]byte, head.Length)
	if _, err := io.ReadFull(rd, payload); err != nil {
		return err
	}
	switch head.OpCode {
	case ws.OpPing:
		return t.writer.writePong(payload)
	case ws.OpClose:
		return errPeerClosed
	}
	return nil
}

// handleText parses and dispatches one request. Client-fault errors
// are answered with an error frame and the socket stays open; only
// write failures terminate the task.
func (t *requestReceiver) handleText(payload []byte) error {
	req, err := parseRequest(payload)
	if err != nil {
		return t.writer.writeResponse(newErrorResponse(&parseError{cause: err}))
	}
	switch {
	case req.SetBoardState != nil:
		t.room.SetBoard(req.SetBoardState.BoardState)
	case req.ApplyDiffs != nil:
		r := req.ApplyDiffs
		t.syncIDs.mu.Lock()
		syncID := r.SyncID
		t.syncIDs.lastReceived = &syncID
		t.syncIDs.mu.Unlock()
		if err := t.room.ApplyDiffs(t.sessionID, r.SyncID, r.Diffs); err != nil {
			return t.writer.writeResponse(newErrorResponse(err))
		}
		t.metrics.Diffs.GroupsApplied.Inc()
	case req.UpdateCursor != nil:
		if err := t.cursorTx.Update(req.UpdateCursor.Selection); err != nil {
			// this should never happen
			t.logger.Error("failed to update cursor", zap.Error(err))
			return t.writer.writeResponse(newErrorResponse(errInternal))
		}
	}
	return nil
}

// diffBroadcastReceiver forwards room broadcasts to the socket,
// tracking the session's own echo and recovering from lag with a full
// update. Task two of three.
type diffBroadcastReceiver struct {
	room      *room.Room
	writer    *socketWriter
	diffRx    *room.DiffSubscriber
	sessionID room.SessionID
	syncIDs   *syncIDs
	logger    *zap.Logger
	metrics   *metrics.Registry
}

func (t *diffBroadcastReceiver) run(ctx context.Context) error {
	defer func() { t.diffRx.Close() }()
	for {
		bc, err := t.diffRx.Recv(ctx)
		switch {
		case errors.Is(err, room.ErrClosed):
			return nil
		case errors.Is(err, room.ErrLagged):
			t.metrics.Diffs.LagRecoveries.Inc()
			t.syncIDs.mu.Lock()
			t.syncIDs.lastSent = t.syncIDs.lastReceived
			syncID := t.syncIDs.lastReceived
			t.syncIDs.mu.Unlock()
			// point a fresh subscriber at "now" and resync the client
			t.diffRx.Close()
			t.diffRx = t.room.Resubscribe()
			resp := newFullUpdateResponse(syncID, t.room.BoardSnapshot())
			if err := t.writer.writeResponse(resp); err != nil {
				return err
			}
		case err != nil:
			// context cancellation during teardown
			return nil
		default:
			t.syncIDs.mu.Lock()
			if bc.SenderID == t.sessionID {
				// our own edit echoed back: the authoritative ack
				syncID := bc.SyncID
				t.syncIDs.lastSent = &syncID
			}
			syncID := t.syncIDs.lastSent
			t.syncIDs.mu.Unlock()
			if err := t.writer.writeResponse(newPartialUpdateResponse(syncID, bc.Diffs)); err != nil {
				return err
			}
		}
	}
}

// cursorNotifyReceiver forwards cursor map changes to the socket.
// Task three of three.
type cursorNotifyReceiver struct {
	writer   *socketWriter
	cursorRx *cursors.Receiver
}

func (t *cursorNotifyReceiver) run(ctx context.Context) error {
	for {
		view, err := t.cursorRx.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// the room holds the watch open for its lifetime, so this is
			// an invariant violation
			return err
		}
		if err := t.writer.writeResponse(newUpdateCursorResponse(view)); err != nil {
			return err
		}
	}
}
