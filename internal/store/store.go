// Package store persists room boards to SQLite. Boards travel as
// fixed-width blobs; the schema is managed by embedded migrations
// applied at open time.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	_ "modernc.org/sqlite"

	"github.com/kalgynirae/sudoku/internal/board"
	"github.com/kalgynirae/sudoku/internal/metrics"
	"github.com/kalgynirae/sudoku/internal/room"
)

// writebackParallelism bounds concurrent board serialization during a
// writeback pass.
const writebackParallelism = 5

// Store wraps the SQLite handle.
type Store struct {
	db      *sql.DB
	logger  *zap.Logger
	metrics *metrics.Registry
}

// Open connects to the database at uri and applies pending migrations.
func Open(ctx context.Context, uri string, logger *zap.Logger, m *metrics.Registry) (*Store, error) {
	db, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite serializes writers anyway; a single connection sidesteps
	// SQLITE_BUSY entirely.
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: logger, metrics: m}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ReadRoom fetches the persisted board for id. found is false when the
// room has never been written.
func (s *Store) ReadRoom(ctx context.Context, id room.ID) (board.State, bool, error) {
	idBytes := id.Bytes()
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT board FROM rooms WHERE id = ?`, idBytes[:]).Scan(&blob)
	if err == sql.ErrNoRows {
		return board.State{}, false, nil
	}
	if err != nil {
		return board.State{}, false, fmt.Errorf("read room: %w", err)
	}
	bs, err := decodeBoard(blob)
	if err != nil {
		return board.State{}, false, fmt.Errorf("decode room %s: %w", id, err)
	}
	return bs, true, nil
}

// RoomRecord is one room's contribution to a writeback pass.
type RoomRecord struct {
	ID    room.ID
	Board board.State
}

// WriteRooms upserts every record in one transaction. Serialization
// runs concurrently ahead of the transaction; a failure writing one
// row is logged and skipped so the rest of the batch still commits.
func (s *Store) WriteRooms(ctx context.Context, records []RoomRecord) error {
	if len(records) == 0 {
		return nil
	}

	blobs := make([][]byte, len(records))
	sem := semaphore.NewWeighted(writebackParallelism)
	for i := range records {
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		i := i
		go func() {
			defer sem.Release(1)
			blobs[i] = encodeBoard(records[i].Board)
		}()
	}
	if err := sem.Acquire(ctx, writebackParallelism); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin writeback: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rooms (id, board) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE
		SET board = excluded.board,
		    updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
	`)
	if err != nil {
		return fmt.Errorf("prepare writeback: %w", err)
	}
	defer stmt.Close()

	for i, record := range records {
		idBytes := record.ID.Bytes()
		if _, err := stmt.ExecContext(ctx, idBytes[:], blobs[i]); err != nil {
			s.metrics.Writeback.Errors.Inc()
			s.logger.Error("failed to write room, skipping",
				zap.Stringer("room", record.ID), zap.Error(err))
			continue
		}
		s.metrics.Writeback.RoomsWritten.Inc()
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit writeback: %w", err)
	}
	return nil
}
