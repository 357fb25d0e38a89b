package board

import (
	"encoding/json"
	"fmt"
	"math/bits"
)

// Digit is a sudoku digit in the range 1..9. The zero value is not a
// valid digit; optional digits are represented as *Digit.
type Digit uint8

// Valid reports whether d is in the range 1..9.
func (d Digit) Valid() bool {
	return d >= 1 && d <= 9
}

// UnmarshalJSON parses a digit and rejects values outside 1..9.
func (d *Digit) UnmarshalJSON(data []byte) error {
	var raw uint8
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw < 1 || raw > 9 {
		return fmt.Errorf("digit %d is out of range", raw)
	}
	*d = Digit(raw)
	return nil
}

// DigitSet is a set of Digit values stored as bitflags on a uint16,
// making it much cheaper than a real set. Bit n is set when digit n is
// a member; bit 0 is never used.
type DigitSet uint16

// Contains reports whether d is a member of the set.
func (s DigitSet) Contains(d Digit) bool {
	return s&(1<<d) != 0
}

// Insert adds d to the set.
func (s *DigitSet) Insert(d Digit) {
	*s |= 1 << d
}

// Remove deletes d from the set.
func (s *DigitSet) Remove(d Digit) {
	*s &^= 1 << d
}

// Len returns the number of digits in the set.
func (s DigitSet) Len() int {
	return bits.OnesCount16(uint16(s))
}

// Digits returns the members in ascending numeric order.
func (s DigitSet) Digits() []Digit {
	result := make([]Digit, 0, s.Len())
	for d := Digit(1); d <= 9; d++ {
		if s.Contains(d) {
			result = append(result, d)
		}
	}
	return result
}

// Bits exposes the raw bitmask for the on-disk codec.
func (s DigitSet) Bits() uint16 {
	return uint16(s)
}

// DigitSetFromBits reconstructs a set from a raw bitmask.
func DigitSetFromBits(raw uint16) DigitSet {
	return DigitSet(raw)
}

// MarshalJSON externalizes the set as an ascending sequence of digits.
func (s DigitSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Digits())
}

// UnmarshalJSON reads a sequence of digits, rejecting out-of-range
// values.
func (s *DigitSet) UnmarshalJSON(data []byte) error {
	var digits []Digit
	if err := json.Unmarshal(data, &digits); err != nil {
		return err
	}
	var set DigitSet
	for _, d := range digits {
		set.Insert(d)
	}
	*s = set
	return nil
}
