package cursors

import (
	"encoding/json"
	"fmt"
	"math/bits"
)

// Selection is a set of selected square indices stored as an 81-bit
// mask split over two words. It is externalized as an ascending
// sequence of indices; indices of 81 or more are rejected in both
// directions.
type Selection struct {
	lo, hi uint64 // bits 0..63 and 64..80
}

const numSquareBits = 81

// IsEmpty reports whether no squares are selected.
func (s Selection) IsEmpty() bool {
	return s.lo == 0 && s.hi == 0
}

func (s Selection) contains(idx int) bool {
	if idx < 64 {
		return s.lo&(1<<idx) != 0
	}
	return s.hi&(1<<(idx-64)) != 0
}

func (s *Selection) insert(idx int) {
	if idx < 64 {
		s.lo |= 1 << idx
	} else {
		s.hi |= 1 << (idx - 64)
	}
}

// Indices returns the selected squares in ascending order.
func (s Selection) Indices() []uint8 {
	result := make([]uint8, 0, bits.OnesCount64(s.lo)+bits.OnesCount64(s.hi))
	for i := 0; i < numSquareBits; i++ {
		if s.contains(i) {
			result = append(result, uint8(i))
		}
	}
	return result
}

// MarshalJSON emits the ascending index sequence, rejecting any stray
// high bit above index 80.
func (s Selection) MarshalJSON() ([]byte, error) {
	if s.hi>>(numSquareBits-64) != 0 {
		return nil, fmt.Errorf("cursor selection contains an invalid high bit")
	}
	return json.Marshal(s.Indices())
}

// UnmarshalJSON reads an index sequence, rejecting indices >= 81.
func (s *Selection) UnmarshalJSON(data []byte) error {
	var indices []uint8
	if err := json.Unmarshal(data, &indices); err != nil {
		return err
	}
	var sel Selection
	for _, idx := range indices {
		if idx >= numSquareBits {
			return fmt.Errorf("square index %d is out of range", idx)
		}
		sel.insert(int(idx))
	}
	*s = sel
	return nil
}
