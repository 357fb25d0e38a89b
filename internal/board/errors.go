package board

import "fmt"

// InvalidSquareIndexError is returned when a diff addresses a square
// index outside the board. The message is sent to clients verbatim.
type InvalidSquareIndexError struct {
	Index int
}

func (e *InvalidSquareIndexError) Error() string {
	return fmt.Sprintf("Got a diff containing an index of %d, which is out of bounds.", e.Index)
}

// TooManySquaresError is returned when a single diff addresses more
// squares than the board has.
type TooManySquaresError struct {
	Count int
	Max   int
}

func (e *TooManySquaresError) Error() string {
	return fmt.Sprintf(
		"Received a diff containing %d squares, but a diff can't contain more than %d squares.",
		e.Count, e.Max)
}
