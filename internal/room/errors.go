package room

import "fmt"

// RoomFullError is returned when a session cannot be allocated because
// every cursor slot is taken. The message is sent to clients verbatim.
type RoomFullError struct {
	Max int
}

func (e *RoomFullError) Error() string {
	return fmt.Sprintf(
		"This room is full. No more than %d connections are allowed to a single room.", e.Max)
}

// TooManyDiffsError is returned when a single request carries more
// diffs than MaxDiffGroupSize.
type TooManyDiffsError struct {
	Count int
	Max   int
}

func (e *TooManyDiffsError) Error() string {
	return fmt.Sprintf(
		"Got %d diffs in a request, but there is a maximum of %d diffs per request.",
		e.Count, e.Max)
}
