// Package state owns the process-wide registry of resident rooms and
// mediates loading them from storage.
package state

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kalgynirae/sudoku/internal/board"
	"github.com/kalgynirae/sudoku/internal/metrics"
	"github.com/kalgynirae/sudoku/internal/room"
)

// ErrRoomNotFound is returned by Join for ids that are neither
// resident nor present in storage.
var ErrRoomNotFound = errors.New("room not found")

// RoomLoader fetches a room's persisted board. found is false when the
// id has never been written.
type RoomLoader interface {
	ReadRoom(ctx context.Context, id room.ID) (bs board.State, found bool, err error)
}

// Global is the registry of rooms resident in memory. Rooms are loaded
// at most once: concurrent joins for the same absent id share a single
// storage read.
type Global struct {
	mu      sync.RWMutex
	rooms   map[room.ID]*room.Room
	loading singleflight.Group
	loader  RoomLoader
	logger  *zap.Logger
	metrics *metrics.Registry
}

func New(loader RoomLoader, logger *zap.Logger, m *metrics.Registry) *Global {
	return &Global{
		rooms:   make(map[room.ID]*room.Room),
		loader:  loader,
		logger:  logger,
		metrics: m,
	}
}

// Mint creates a room under a fresh random id and makes it resident.
func (g *Global) Mint() (*room.Room, error) {
	id, err := room.NewID()
	if err != nil {
		return nil, err
	}
	rm := room.New(id, g.logger)
	g.mu.Lock()
	g.rooms[id] = rm
	g.mu.Unlock()
	g.metrics.Rooms.Active.Inc()
	g.metrics.Rooms.Minted.Inc()
	g.logger.Info("minted new room", zap.Stringer("room", id))
	return rm, nil
}

// Join returns the resident room for id, loading it from storage if
// needed. Returns ErrRoomNotFound for ids with no persisted board.
func (g *Global) Join(ctx context.Context, id room.ID) (*room.Room, error) {
	g.mu.RLock()
	rm, ok := g.rooms[id]
	g.mu.RUnlock()
	if ok {
		return rm, nil
	}

	v, err, _ := g.loading.Do(id.String(), func() (any, error) {
		// a racing join may have won before we entered the group
		g.mu.RLock()
		rm, ok := g.rooms[id]
		g.mu.RUnlock()
		if ok {
			return rm, nil
		}
		bs, found, err := g.loader.ReadRoom(ctx, id)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, ErrRoomNotFound
		}
		rm = room.Restore(id, bs, g.logger)
		g.mu.Lock()
		g.rooms[id] = rm
		g.mu.Unlock()
		g.metrics.Rooms.Active.Inc()
		g.metrics.Rooms.Loaded.Inc()
		g.logger.Info("loaded room from database", zap.Stringer("room", id))
		return rm, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*room.Room), nil
}

// Close drops every resident room, closing their broadcast and cursor
// fan-outs. The listener must be stopped first so no session is still
// attached.
func (g *Global) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, rm := range g.rooms {
		rm.Close()
	}
	g.metrics.Rooms.Active.Sub(float64(len(g.rooms)))
	g.rooms = make(map[room.ID]*room.Room)
}

// RoomSnapshot pairs a room id with a clone of its board, taken for
// writeback.
type RoomSnapshot struct {
	ID    room.ID
	Board board.State
}

// SnapshotDirty collects a writeback snapshot from every dirty room,
// clearing each room's dirty flag as it goes.
func (g *Global) SnapshotDirty() []RoomSnapshot {
	g.mu.RLock()
	rooms := make([]*room.Room, 0, len(g.rooms))
	for _, rm := range g.rooms {
		rooms = append(rooms, rm)
	}
	g.mu.RUnlock()

	var snapshots []RoomSnapshot
	for _, rm := range rooms {
		if !rm.Dirty() {
			continue
		}
		snapshots = append(snapshots, RoomSnapshot{
			ID:    rm.ID(),
			Board: rm.SnapshotForWriteback(),
		})
	}
	return snapshots
}
