// Package realtime implements the websocket session protocol: one
// connection per session, JSON text frames, and three concurrent tasks
// per session (request receiver, diff broadcast receiver, cursor
// notify receiver) sharing a single serialized socket writer.
package realtime

import (
	"context"
	"errors"
	"net"

	"go.uber.org/zap"

	"github.com/kalgynirae/sudoku/internal/metrics"
	"github.com/kalgynirae/sudoku/internal/room"
)

// Handle runs one websocket session against rm until the client
// disconnects, a task fails, or ctx is cancelled. The connection must
// already be upgraded; Handle closes it before returning.
func Handle(ctx context.Context, conn net.Conn, rm *room.Room, logger *zap.Logger, m *metrics.Registry) {
	defer conn.Close()

	writer := &socketWriter{conn: conn, logger: logger}

	sess, err := rm.NewSession()
	if err != nil {
		var full *room.RoomFullError
		if errors.As(err, &full) {
			logger.Info("rejecting connection to full room")
			writer.writeResponse(newErrorResponse(err))
		} else {
			logger.Error("failed to create session", zap.Error(err))
			writer.writeResponse(newErrorResponse(errInternal))
		}
		return
	}
	logger = logger.With(zap.Uint64("session", uint64(sess.ID)))
	defer func() {
		if err := sess.Cursor.Tx.Close(); err != nil {
			logger.Error("failed to release cursor slot", zap.Error(err))
		}
	}()

	m.Sessions.Active.Inc()
	defer m.Sessions.Active.Dec()
	logger.Info("session started")

	if err := writer.writeResponse(newInitResponse(rm.ID().String(), rm.BoardSnapshot())); err != nil {
		logSessionError(logger, err)
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shared := &syncIDs{}
	tasks := []interface {
		run(ctx context.Context) error
	}{
		&requestReceiver{
			room:      rm,
			conn:      conn,
			writer:    writer,
			sessionID: sess.ID,
			syncIDs:   shared,
			cursorTx:  sess.Cursor.Tx,
			logger:    logger,
			metrics:   m,
		},
		&diffBroadcastReceiver{
			room:      rm,
			writer:    writer,
			diffRx:    sess.DiffRx,
			sessionID: sess.ID,
			syncIDs:   shared,
			logger:    logger,
			metrics:   m,
		},
		&cursorNotifyReceiver{
			writer:   writer,
			cursorRx: sess.Cursor.Rx,
		},
	}

	results := make(chan error, len(tasks))
	for _, task := range tasks {
		task := task
		go func() {
			results <- task.run(ctx)
		}()
	}

	// first task to finish decides the session's fate; cancel the rest
	// and close the socket so the blocked reader unwinds too
	first := <-results
	cancel()
	conn.Close()
	for i := 1; i < len(tasks); i++ {
		if err := <-results; err != nil && first == nil {
			first = err
		}
	}

	if first != nil {
		logSessionError(logger, first)
	}
	logger.Info("session ended")
}

// logSessionError maps a task error to its log severity: losing the
// peer mid-write is routine, everything else is a bug.
func logSessionError(logger *zap.Logger, err error) {
	var writeErr *socketWriteError
	if errors.As(err, &writeErr) {
		logger.Warn("session task failed", zap.Error(err))
		return
	}
	logger.Error("session task failed", zap.Error(err))
}
