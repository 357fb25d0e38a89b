package board

import (
	"encoding/json"
	"fmt"
)

// DiffFn names a diff operation variant. It is the value of the "fn"
// tag on the wire.
type DiffFn string

const (
	FnSetNumber        DiffFn = "setNumber"
	FnAddPencilMark    DiffFn = "addPencilMark"
	FnRemovePencilMark DiffFn = "removePencilMark"
	FnClearPencilMarks DiffFn = "clearPencilMarks"
)

// PencilType selects which of the two pencil-mark stores an operation
// targets.
type PencilType string

const (
	PencilCenters PencilType = "centers"
	PencilCorners PencilType = "corners"
)

// Diff is a tagged mutation over a set of board squares.
type Diff struct {
	Squares   []uint8       `json:"squares"`
	Operation DiffOperation `json:"operation"`
}

// DiffOperation is one of four operation variants, tagged by Fn.
// Digit is required for the pencil-mark add/remove variants and
// optional (nullable) for setNumber; Type is required for all
// pencil-mark variants.
type DiffOperation struct {
	Fn    DiffFn
	Type  PencilType
	Digit *Digit
}

type setNumberJSON struct {
	Fn    DiffFn `json:"fn"`
	Digit *Digit `json:"digit"`
}

type pencilMarkJSON struct {
	Fn    DiffFn     `json:"fn"`
	Type  PencilType `json:"type"`
	Digit Digit      `json:"digit"`
}

type clearPencilJSON struct {
	Fn   DiffFn     `json:"fn"`
	Type PencilType `json:"type"`
}

// MarshalJSON emits only the fields belonging to the tagged variant.
func (o DiffOperation) MarshalJSON() ([]byte, error) {
	switch o.Fn {
	case FnSetNumber:
		return json.Marshal(setNumberJSON{Fn: o.Fn, Digit: o.Digit})
	case FnAddPencilMark, FnRemovePencilMark:
		if o.Digit == nil {
			return nil, fmt.Errorf("%s requires a digit", o.Fn)
		}
		return json.Marshal(pencilMarkJSON{Fn: o.Fn, Type: o.Type, Digit: *o.Digit})
	case FnClearPencilMarks:
		return json.Marshal(clearPencilJSON{Fn: o.Fn, Type: o.Type})
	default:
		return nil, fmt.Errorf("unknown operation %q", o.Fn)
	}
}

// UnmarshalJSON dispatches on the "fn" tag and validates the payload
// fields required by that variant.
func (o *DiffOperation) UnmarshalJSON(data []byte) error {
	var raw struct {
		Fn    DiffFn          `json:"fn"`
		Type  *PencilType     `json:"type"`
		Digit json.RawMessage `json:"digit"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	parseDigit := func() (*Digit, error) {
		if len(raw.Digit) == 0 || string(raw.Digit) == "null" {
			return nil, nil
		}
		var d Digit
		if err := json.Unmarshal(raw.Digit, &d); err != nil {
			return nil, err
		}
		return &d, nil
	}

	switch raw.Fn {
	case FnSetNumber:
		digit, err := parseDigit()
		if err != nil {
			return err
		}
		*o = DiffOperation{Fn: raw.Fn, Digit: digit}
	case FnAddPencilMark, FnRemovePencilMark:
		pencil, err := parsePencilType(raw.Type)
		if err != nil {
			return err
		}
		digit, err := parseDigit()
		if err != nil {
			return err
		}
		if digit == nil {
			return fmt.Errorf("%s requires a digit", raw.Fn)
		}
		*o = DiffOperation{Fn: raw.Fn, Type: pencil, Digit: digit}
	case FnClearPencilMarks:
		pencil, err := parsePencilType(raw.Type)
		if err != nil {
			return err
		}
		*o = DiffOperation{Fn: raw.Fn, Type: pencil}
	default:
		return fmt.Errorf("unknown operation %q", raw.Fn)
	}
	return nil
}

func parsePencilType(t *PencilType) (PencilType, error) {
	if t == nil {
		return "", fmt.Errorf("pencil mark operation requires a type")
	}
	switch *t {
	case PencilCenters, PencilCorners:
		return *t, nil
	default:
		return "", fmt.Errorf("unknown pencil mark type %q", *t)
	}
}
