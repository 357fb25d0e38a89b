package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/kalgynirae/sudoku/internal/board"
	"github.com/kalgynirae/sudoku/internal/cursors"
)

// Request is one parsed client request: exactly one variant is
// non-nil. The wire form is JSON tagged by a camelCase "type" field;
// unknown tags are a parse error.
type Request struct {
	SetBoardState *SetBoardStateRequest
	ApplyDiffs    *ApplyDiffsRequest
	UpdateCursor  *UpdateCursorRequest
}

type SetBoardStateRequest struct {
	BoardState board.State `json:"boardState"`
}

type ApplyDiffsRequest struct {
	// SyncID is a client-chosen monotonic handle. We echo back the
	// highest value we have seen so the client can tell which of its
	// optimistic edits are not yet reflected in the stream.
	SyncID uint64       `json:"syncId"`
	Diffs  []board.Diff `json:"diffs"`
}

type UpdateCursorRequest struct {
	Selection cursors.Selection `json:"selection"`
}

func parseRequest(data []byte) (*Request, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, err
	}
	req := &Request{}
	switch tag.Type {
	case "setBoardState":
		req.SetBoardState = &SetBoardStateRequest{}
		if err := json.Unmarshal(data, req.SetBoardState); err != nil {
			return nil, err
		}
		if len(req.SetBoardState.BoardState.Squares) != board.NumSquares {
			return nil, fmt.Errorf("a board must contain exactly %d squares", board.NumSquares)
		}
	case "applyDiffs":
		req.ApplyDiffs = &ApplyDiffsRequest{}
		if err := json.Unmarshal(data, req.ApplyDiffs); err != nil {
			return nil, err
		}
	case "updateCursor":
		req.UpdateCursor = &UpdateCursorRequest{}
		if err := json.Unmarshal(data, req.UpdateCursor); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown request type %q", tag.Type)
	}
	return req, nil
}

// Response messages. Each carries its own "type" tag so the structs
// marshal directly into the wire form.

type initResponse struct {
	Type       string      `json:"type"`
	RoomID     string      `json:"roomId"`
	BoardState board.State `json:"boardState"`
}

func newInitResponse(roomID string, bs board.State) initResponse {
	return initResponse{Type: "init", RoomID: roomID, BoardState: bs}
}

type partialUpdateResponse struct {
	Type   string       `json:"type"`
	SyncID *uint64      `json:"syncId"`
	Diffs  []board.Diff `json:"diffs"`
}

func newPartialUpdateResponse(syncID *uint64, diffs []board.Diff) partialUpdateResponse {
	if diffs == nil {
		diffs = []board.Diff{}
	}
	return partialUpdateResponse{Type: "partialUpdate", SyncID: syncID, Diffs: diffs}
}

// fullUpdateResponse is sent when the client falls too far behind the
// diff broadcast.
type fullUpdateResponse struct {
	Type       string      `json:"type"`
	SyncID     *uint64     `json:"syncId"`
	BoardState board.State `json:"boardState"`
}

func newFullUpdateResponse(syncID *uint64, bs board.State) fullUpdateResponse {
	return fullUpdateResponse{Type: "fullUpdate", SyncID: syncID, BoardState: bs}
}

type updateCursorResponse struct {
	Type string          `json:"type"`
	Map  cursors.MapView `json:"map"`
}

func newUpdateCursorResponse(view cursors.MapView) updateCursorResponse {
	return updateCursorResponse{Type: "updateCursor", Map: view}
}

type errorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newErrorResponse(err error) errorResponse {
	return errorResponse{Type: "error", Message: err.Error()}
}
