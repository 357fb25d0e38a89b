// Package room owns the per-room coordination core: the authoritative
// board, the diff broadcast channel, the session counter, and the
// cursor fan-out. One mutex per room linearizes all mutations; clones
// of the board are taken under the lock and emitted without it.
package room

import (
	"sync"

	"go.uber.org/zap"

	"github.com/kalgynirae/sudoku/internal/board"
	"github.com/kalgynirae/sudoku/internal/cursors"
)

// MaxSessionsPerRoom caps concurrent sessions in a room. We have to
// send O(n^2) messages per n clients, and each cursor needs a
// unique-looking color on the client, so keep this small.
const MaxSessionsPerRoom = cursors.MaxSessions

// MaxDiffGroupQueue bounds the diff broadcast channel. If a client
// exhausts this queue and the websocket buffer, it has lagged and gets
// a full update next time.
const MaxDiffGroupQueue = 32

// MaxDiffGroupSize caps the number of diffs in one request. The
// client's high-level operations are applied as a group of diffs; this
// needs to be larger than the largest group a single operation can
// generate.
const MaxDiffGroupSize = 8

// SessionID identifies a session within its room. Ids are allocated
// from a per-room counter and never reused.
type SessionID uint64

// Session is one connected client's membership in a room: a cursor
// into the diff broadcast plus a cursor-map slot.
type Session struct {
	ID     SessionID
	DiffRx *DiffSubscriber
	Cursor *cursors.SessionCursor
}

// Room is the ownership root for one room. All exported methods are
// safe for concurrent use.
type Room struct {
	mu             sync.Mutex
	id             ID
	board          board.State
	diffs          *diffBroadcaster
	sessionCounter SessionID
	cursors        *cursors.Cursors
	dirty          bool
	logger         *zap.Logger
}

// New creates a room with a default board. New rooms start dirty so a
// freshly minted room reaches the store even if nobody edits it.
func New(id ID, logger *zap.Logger) *Room {
	return &Room{
		id:      id,
		board:   board.NewState(),
		diffs:   newDiffBroadcaster(MaxDiffGroupQueue),
		cursors: cursors.New(),
		dirty:   true,
		logger:  logger.With(zap.Stringer("room", id)),
	}
}

// Restore creates a room around a board loaded from storage. Restored
// rooms start clean.
func Restore(id ID, bs board.State, logger *zap.Logger) *Room {
	r := New(id, logger)
	r.board = bs
	r.dirty = false
	return r
}

// ID returns the room's identifier.
func (r *Room) ID() ID {
	return r.id
}

// NewSession allocates a session id, a diff subscription, and a cursor
// slot. When the cursor map is full the session is rejected with
// ErrRoomFull.
func (r *Room) NewSession() (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessionCounter++
	cursor, err := r.cursors.NewSession(uint64(r.sessionCounter))
	if err != nil {
		return nil, &RoomFullError{Max: MaxSessionsPerRoom}
	}
	return &Session{
		ID:     r.sessionCounter,
		DiffRx: r.diffs.subscribe(),
		Cursor: cursor,
	}, nil
}

// Resubscribe creates a diff subscriber without creating a new
// session. Used to reset the cursor of an already-existing session
// after it lagged.
func (r *Room) Resubscribe() *DiffSubscriber {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.diffs.subscribe()
}

// ApplyDiffs applies a group of diffs to the board and broadcasts them
// to every subscriber. The room is marked dirty even when diffs is
// empty. The first apply error is propagated and nothing is broadcast.
func (r *Room) ApplyDiffs(senderID SessionID, syncID uint64, diffs []board.Diff) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(diffs) > MaxDiffGroupSize {
		return &TooManyDiffsError{Count: len(diffs), Max: MaxDiffGroupSize}
	}
	for i := range diffs {
		if err := r.board.Apply(&diffs[i]); err != nil {
			return err
		}
	}
	r.dirty = true
	if !r.diffs.publish(&DiffBroadcast{Diffs: diffs, SenderID: senderID, SyncID: syncID}) {
		// the session doing the sending should also be receiving
		r.logger.Error("tried to send message to broadcast with no receivers")
	}
	return nil
}

// SetBoard overwrites the board wholesale. This is an administrative
// request and deliberately does not broadcast a diff: other clients
// learn of the change only via subsequent diffs or lag recovery.
func (r *Room) SetBoard(bs board.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.board = bs
	r.dirty = true
}

// BoardSnapshot returns a clone of the current board.
func (r *Room) BoardSnapshot() board.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.board.Clone()
}

// Dirty reports whether the room has unpersisted changes.
func (r *Room) Dirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty
}

// SnapshotForWriteback clears the dirty flag and returns a clone of
// the board for serialization. The flag is cleared before the database
// write on purpose: the service is best-effort, and a duplicate write
// after a crash is preferred to losing edits made between snapshot and
// commit.
func (r *Room) SnapshotForWriteback() board.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirty = false
	return r.board.Clone()
}

// Close shuts the room's fan-out cores down, waking any remaining
// subscribers with their closed errors. Called when the process drops
// its rooms at shutdown.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diffs.close()
	r.cursors.Close()
}

// markClean is a test hook for exercising the dirty-tracking paths.
func (r *Room) markClean() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirty = false
}
