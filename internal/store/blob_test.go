package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kalgynirae/sudoku/internal/board"
)

func testBoard() board.State {
	bs := board.NewState()
	n := board.Digit(7)
	bs.Squares[0].Number = &n
	bs.Squares[0].Locked = true
	bs.Squares[40].Corners.Insert(1)
	bs.Squares[40].Corners.Insert(9)
	bs.Squares[80].Centers.Insert(5)
	return bs
}

func TestBoardBlobRoundTrip(t *testing.T) {
	bs := testBoard()
	blob := encodeBoard(bs)
	assert.Len(t, blob, boardBlobSize)

	decoded, err := decodeBoard(blob)
	require.NoError(t, err)
	assert.Equal(t, bs, decoded)
}

func TestBoardBlobRoundTripRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bs := board.NewState()
		for i := range bs.Squares {
			if n := rapid.Uint8Range(0, 9).Draw(t, "number"); n != 0 {
				d := board.Digit(n)
				bs.Squares[i].Number = &d
			}
			bs.Squares[i].Corners = board.DigitSetFromBits(
				rapid.Uint16Range(0, digitSetMask).Draw(t, "corners") & digitSetMask)
			bs.Squares[i].Centers = board.DigitSetFromBits(
				rapid.Uint16Range(0, digitSetMask).Draw(t, "centers") & digitSetMask)
			bs.Squares[i].Locked = rapid.Bool().Draw(t, "locked")
		}

		decoded, err := decodeBoard(encodeBoard(bs))
		require.NoError(t, err)
		require.Equal(t, bs, decoded)
	})
}

func TestDecodeBoardWrongLength(t *testing.T) {
	_, err := decodeBoard(make([]byte, boardBlobSize-1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "485 bytes")
}

func TestDecodeBoardInvalidNumber(t *testing.T) {
	blob := encodeBoard(board.NewState())
	blob[0] = 10
	_, err := decodeBoard(blob)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid number")
}

func TestDecodeBoardInvalidPencilBits(t *testing.T) {
	blob := encodeBoard(board.NewState())
	// bit 0 may never be set in a digit mask
	blob[1] = 0x01
	_, err := decodeBoard(blob)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corner bits")

	blob = encodeBoard(board.NewState())
	// bits above digit 9
	blob[4] = 0x04
	_, err = decodeBoard(blob)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "center bits")
}

func TestDecodeBoardInvalidLockedFlag(t *testing.T) {
	blob := encodeBoard(board.NewState())
	blob[5] = 2
	_, err := decodeBoard(blob)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked flag")
}
