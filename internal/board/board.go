package board

// NumSquares is the number of squares on a board. Square index is
// row*9 + column.
const NumSquares = 81

// Square is the state of a single board square.
type Square struct {
	Number  *Digit   `json:"number"`
	Corners DigitSet `json:"corners"`
	Centers DigitSet `json:"centers"`
	Locked  bool     `json:"locked"`
}

// apply mutates the square according to op. Locked squares silently
// absorb every operation; that is not an error.
func (sq *Square) apply(op *DiffOperation) {
	if sq.Locked {
		return
	}
	switch op.Fn {
	case FnSetNumber:
		sq.Number = op.Digit
	case FnAddPencilMark:
		switch op.Type {
		case PencilCenters:
			sq.Centers.Insert(*op.Digit)
		case PencilCorners:
			sq.Corners.Insert(*op.Digit)
		}
	case FnRemovePencilMark:
		switch op.Type {
		case PencilCenters:
			sq.Centers.Remove(*op.Digit)
		case PencilCorners:
			sq.Corners.Remove(*op.Digit)
		}
	case FnClearPencilMarks:
		switch op.Type {
		case PencilCenters:
			sq.Centers = 0
		case PencilCorners:
			sq.Corners = 0
		}
	}
}

// State is the full state of a board: exactly 81 squares.
type State struct {
	Squares []Square `json:"squares"`
}

// NewState returns a board of 81 default squares.
func NewState() State {
	return State{Squares: make([]Square, NumSquares)}
}

// Clone returns a deep copy of the board.
func (s *State) Clone() State {
	squares := make([]Square, len(s.Squares))
	copy(squares, s.Squares)
	return State{Squares: squares}
}

// Apply applies a diff to the board. The diff is validated as it is
// applied: a diff addressing more squares than the board has fails up
// front, and an out-of-range index fails when it is reached, leaving
// the squares addressed before it mutated. There is no rollback.
func (s *State) Apply(diff *Diff) error {
	if len(diff.Squares) > len(s.Squares) {
		// not strictly needed, but provides a sanity check
		return &TooManySquaresError{Count: len(diff.Squares), Max: len(s.Squares)}
	}
	for _, idx := range diff.Squares {
		if int(idx) >= len(s.Squares) {
			return &InvalidSquareIndexError{Index: int(idx)}
		}
		s.Squares[idx].apply(&diff.Operation)
	}
	return nil
}
