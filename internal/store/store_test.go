package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kalgynirae/sudoku/internal/board"
	"github.com/kalgynirae/sudoku/internal/metrics"
	"github.com/kalgynirae/sudoku/internal/room"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"),
		zap.NewNop(), metrics.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReadRoomNotFound(t *testing.T) {
	s := openTestStore(t)
	id, err := room.NewID()
	require.NoError(t, err)

	_, found, err := s.ReadRoom(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestWriteThenReadRoom(t *testing.T) {
	s := openTestStore(t)
	id, err := room.NewID()
	require.NoError(t, err)
	bs := testBoard()

	require.NoError(t, s.WriteRooms(context.Background(), []RoomRecord{{ID: id, Board: bs}}))

	loaded, found, err := s.ReadRoom(context.Background(), id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, bs, loaded)
}

func TestWriteRoomsUpserts(t *testing.T) {
	s := openTestStore(t)
	id, err := room.NewID()
	require.NoError(t, err)

	require.NoError(t, s.WriteRooms(context.Background(),
		[]RoomRecord{{ID: id, Board: board.NewState()}}))

	bs := board.NewState()
	n := board.Digit(3)
	bs.Squares[10].Number = &n
	require.NoError(t, s.WriteRooms(context.Background(), []RoomRecord{{ID: id, Board: bs}}))

	loaded, found, err := s.ReadRoom(context.Background(), id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, board.Digit(3), *loaded.Squares[10].Number)
}

func TestWriteRoomsEmptyBatch(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.WriteRooms(context.Background(), nil))
}

func TestWriteRoomsBatch(t *testing.T) {
	s := openTestStore(t)
	var records []RoomRecord
	for i := 0; i < 12; i++ {
		id, err := room.NewID()
		require.NoError(t, err)
		bs := board.NewState()
		n := board.Digit(i%9 + 1)
		bs.Squares[i].Number = &n
		records = append(records, RoomRecord{ID: id, Board: bs})
	}
	require.NoError(t, s.WriteRooms(context.Background(), records))

	for i, record := range records {
		loaded, found, err := s.ReadRoom(context.Background(), record.ID)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, board.Digit(i%9+1), *loaded.Squares[i].Number)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()
	uri := filepath.Join(dir, "test.db")
	ctx := context.Background()

	s, err := Open(ctx, uri, zap.NewNop(), metrics.NewRegistry())
	require.NoError(t, err)
	id, err := room.NewID()
	require.NoError(t, err)
	require.NoError(t, s.WriteRooms(ctx, []RoomRecord{{ID: id, Board: testBoard()}}))
	require.NoError(t, s.Close())

	// reopening applies no migrations and keeps existing rows
	s, err = Open(ctx, uri, zap.NewNop(), metrics.NewRegistry())
	require.NoError(t, err)
	defer s.Close()
	_, found, err := s.ReadRoom(ctx, id)
	require.NoError(t, err)
	assert.True(t, found)
}
