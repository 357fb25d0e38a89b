package store

import (
	"encoding/binary"
	"fmt"

	"github.com/kalgynirae/sudoku/internal/board"
)

// Boards are stored as a fixed-width binary blob: 6 bytes per square
// (number, corner bitmask LE, center bitmask LE, locked flag), 81
// squares, 486 bytes total. The format has no version byte; a format
// change means a new migration that rewrites the column.
const (
	squareBlobSize = 6
	boardBlobSize  = board.NumSquares * squareBlobSize
)

// digitSetMask covers the bits digits 1..9 may occupy.
const digitSetMask = 0x03FE

// encodeBoard serializes bs into its blob form.
func encodeBoard(bs board.State) []byte {
	blob := make([]byte, boardBlobSize)
	for i, sq := range bs.Squares {
		off := i * squareBlobSize
		if sq.Number != nil {
			blob[off] = byte(*sq.Number)
		}
		binary.LittleEndian.PutUint16(blob[off+1:], sq.Corners.Bits())
		binary.LittleEndian.PutUint16(blob[off+3:], sq.Centers.Bits())
		if sq.Locked {
			blob[off+5] = 1
		}
	}
	return blob
}

// decodeBoard parses a blob back into a board, validating every field.
// Stored blobs are written only by us, so a failure here means
// corruption and the room is treated as unreadable.
func decodeBoard(blob []byte) (board.State, error) {
	if len(blob) != boardBlobSize {
		return board.State{}, fmt.Errorf("board blob is %d bytes, want %d", len(blob), boardBlobSize)
	}
	bs := board.NewState()
	for i := range bs.Squares {
		off := i * squareBlobSize
		sq := &bs.Squares[i]
		if n := blob[off]; n != 0 {
			d := board.Digit(n)
			if !d.Valid() {
				return board.State{}, fmt.Errorf("square %d has invalid number %d", i, n)
			}
			sq.Number = &d
		}
		corners := binary.LittleEndian.Uint16(blob[off+1:])
		if corners&^digitSetMask != 0 {
			return board.State{}, fmt.Errorf("square %d has invalid corner bits %#04x", i, corners)
		}
		sq.Corners = board.DigitSetFromBits(corners)
		centers := binary.LittleEndian.Uint16(blob[off+3:])
		if centers&^digitSetMask != 0 {
			return board.State{}, fmt.Errorf("square %d has invalid center bits %#04x", i, centers)
		}
		sq.Centers = board.DigitSetFromBits(centers)
		switch blob[off+5] {
		case 0:
		case 1:
			sq.Locked = true
		default:
			return board.State{}, fmt.Errorf("square %d has invalid locked flag %d", i, blob[off+5])
		}
	}
	return bs, nil
}
