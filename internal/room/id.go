package room

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/bits"
	"sort"
	"strings"
)

// idAlphabet is the sorted set of characters used in the textual form
// of a room id: alphanumerics, excluding ilIoO01 since they look too
// similar. Parsing relies on the alphabet being sorted.
const idAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz"

// ID is a 128-bit opaque room identifier. The textual form is "r"
// followed by little-endian digits over idAlphabet; the on-disk form
// is the 16-byte little-endian value.
type ID struct {
	lo, hi uint64
}

// NewID returns a uniformly random room id.
func NewID() (ID, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ID{}, fmt.Errorf("generate room id: %w", err)
	}
	return IDFromBytes(buf), nil
}

// IDFromBytes reconstructs an id from its 16-byte little-endian form.
func IDFromBytes(buf [16]byte) ID {
	return ID{
		lo: binary.LittleEndian.Uint64(buf[0:8]),
		hi: binary.LittleEndian.Uint64(buf[8:16]),
	}
}

// Bytes returns the 16-byte little-endian form used as the SQL key.
func (id ID) Bytes() [16]byte {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], id.lo)
	binary.LittleEndian.PutUint64(buf[8:16], id.hi)
	return buf
}

func (id ID) isZero() bool {
	return id.lo == 0 && id.hi == 0
}

// divmod divides id by the alphabet length, returning the quotient and
// remainder.
func (id ID) divmod() (ID, int) {
	base := uint64(len(idAlphabet))
	hiQ := id.hi / base
	hiR := id.hi % base
	loQ, loR := bits.Div64(hiR, id.lo, base)
	return ID{lo: loQ, hi: hiQ}, int(loR)
}

// mulAdd computes id*m + a, reporting overflow of the 128-bit range.
func (id ID) mulAdd(m, a uint64) (ID, bool) {
	carryLo, lo := bits.Mul64(id.lo, m)
	carryHi, hi := bits.Mul64(id.hi, m)
	if carryHi != 0 {
		return ID{}, false
	}
	hi, c := bits.Add64(hi, carryLo, 0)
	if c != 0 {
		return ID{}, false
	}
	lo, c = bits.Add64(lo, a, 0)
	hi, c = bits.Add64(hi, 0, c)
	if c != 0 {
		return ID{}, false
	}
	return ID{lo: lo, hi: hi}, true
}

// String formats the id with the "r" prefix. The prefix lets us detect
// possible future changes to this format.
func (id ID) String() string {
	var sb strings.Builder
	sb.WriteByte('r')
	rest := id
	for !rest.isZero() {
		var rem int
		rest, rem = rest.divmod()
		sb.WriteByte(idAlphabet[rem])
	}
	return sb.String()
}

// add returns id + other, reporting overflow.
func (id ID) add(other ID) (ID, bool) {
	lo, c := bits.Add64(id.lo, other.lo, 0)
	hi, c := bits.Add64(id.hi, other.hi, c)
	if c != 0 {
		return ID{}, false
	}
	return ID{lo: lo, hi: hi}, true
}

// alphabetIndex finds ch in the sorted alphabet by binary search.
func alphabetIndex(ch byte) (int, bool) {
	idx := sort.Search(len(idAlphabet), func(i int) bool { return idAlphabet[i] >= ch })
	if idx < len(idAlphabet) && idAlphabet[idx] == ch {
		return idx, true
	}
	return 0, false
}

// ParseID parses the textual form of a room id. A missing "r" prefix,
// a character outside the alphabet, or overflow of the 128-bit
// accumulator all fail.
func ParseID(s string) (ID, error) {
	if len(s) == 0 || s[0] != 'r' {
		return ID{}, &InvalidIDError{Input: s}
	}
	var result ID
	coefficient := ID{lo: 1}
	coefficientValid := true
	for i := 1; i < len(s); i++ {
		idx, ok := alphabetIndex(s[i])
		if !ok {
			return ID{}, &InvalidIDError{Input: s}
		}
		if !coefficientValid {
			// a previous position already overflowed the accumulator
			return ID{}, &InvalidIDError{Input: s}
		}
		term, ok := coefficient.mulAdd(uint64(idx), 0)
		if !ok {
			return ID{}, &InvalidIDError{Input: s}
		}
		result, ok = result.add(term)
		if !ok {
			return ID{}, &InvalidIDError{Input: s}
		}
		coefficient, coefficientValid = coefficient.mulAdd(uint64(len(idAlphabet)), 0)
	}
	return result, nil
}

// InvalidIDError reports a string that is not a valid room id.
type InvalidIDError struct {
	Input string
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("%q is not a valid room id", e.Input)
}
