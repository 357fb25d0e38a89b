package state

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kalgynirae/sudoku/internal/board"
	"github.com/kalgynirae/sudoku/internal/metrics"
	"github.com/kalgynirae/sudoku/internal/room"
)

type fakeLoader struct {
	mu     sync.Mutex
	boards map[room.ID]board.State
	calls  atomic.Int64
	gate   chan struct{} // when non-nil, ReadRoom blocks on it
}

func (l *fakeLoader) ReadRoom(ctx context.Context, id room.ID) (board.State, bool, error) {
	l.calls.Add(1)
	if l.gate != nil {
		<-l.gate
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bs, ok := l.boards[id]
	if !ok {
		return board.State{}, false, nil
	}
	return bs.Clone(), true, nil
}

func newTestGlobal(loader *fakeLoader) *Global {
	return New(loader, zap.NewNop(), metrics.NewRegistry())
}

func TestMintThenJoin(t *testing.T) {
	g := newTestGlobal(&fakeLoader{})
	rm, err := g.Mint()
	require.NoError(t, err)

	joined, err := g.Join(context.Background(), rm.ID())
	require.NoError(t, err)
	assert.Same(t, rm, joined)
}

func TestJoinUnknownRoom(t *testing.T) {
	g := newTestGlobal(&fakeLoader{})
	id, err := room.NewID()
	require.NoError(t, err)

	_, err = g.Join(context.Background(), id)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestJoinLoadsFromStorageOnce(t *testing.T) {
	id, err := room.NewID()
	require.NoError(t, err)
	bs := board.NewState()
	bs.Squares[7].Locked = true
	loader := &fakeLoader{boards: map[room.ID]board.State{id: bs}}
	g := newTestGlobal(loader)

	rm, err := g.Join(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, rm.BoardSnapshot().Squares[7].Locked)
	// restored rooms have nothing to write back yet
	assert.False(t, rm.Dirty())

	again, err := g.Join(context.Background(), id)
	require.NoError(t, err)
	assert.Same(t, rm, again)
	assert.Equal(t, int64(1), loader.calls.Load())
}

func TestConcurrentJoinsShareOneLoad(t *testing.T) {
	id, err := room.NewID()
	require.NoError(t, err)
	loader := &fakeLoader{
		boards: map[room.ID]board.State{id: board.NewState()},
		gate:   make(chan struct{}),
	}
	g := newTestGlobal(loader)

	const joiners = 8
	rooms := make([]*room.Room, joiners)
	var wg sync.WaitGroup
	var started sync.WaitGroup
	for i := 0; i < joiners; i++ {
		i := i
		wg.Add(1)
		started.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			rm, err := g.Join(context.Background(), id)
			assert.NoError(t, err)
			rooms[i] = rm
		}()
	}
	started.Wait()
	close(loader.gate)
	wg.Wait()

	for _, rm := range rooms[1:] {
		assert.Same(t, rooms[0], rm)
	}
	// singleflight may let a second call through after the first
	// completes, but never one per joiner
	assert.LessOrEqual(t, loader.calls.Load(), int64(2))
}

func TestCloseDropsRooms(t *testing.T) {
	g := newTestGlobal(&fakeLoader{})
	rm, err := g.Mint()
	require.NoError(t, err)
	sess, err := rm.NewSession()
	require.NoError(t, err)

	g.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = sess.DiffRx.Recv(ctx)
	assert.ErrorIs(t, err, room.ErrClosed)

	// the dropped room is no longer resident; rejoining consults the
	// loader, which has never seen it
	assert.Empty(t, g.SnapshotDirty())
	_, err = g.Join(context.Background(), rm.ID())
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestSnapshotDirty(t *testing.T) {
	g := newTestGlobal(&fakeLoader{})
	dirty, err := g.Mint()
	require.NoError(t, err)

	id, err := room.NewID()
	require.NoError(t, err)
	g.mu.Lock()
	g.rooms[id] = room.Restore(id, board.NewState(), zap.NewNop())
	g.mu.Unlock()

	snapshots := g.SnapshotDirty()
	require.Len(t, snapshots, 1)
	assert.Equal(t, dirty.ID(), snapshots[0].ID)
	assert.False(t, dirty.Dirty())

	// nothing left to write
	assert.Empty(t, g.SnapshotDirty())
}
