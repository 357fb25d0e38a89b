package cursors

import (
	"encoding/json"
	"strconv"
)

// MaxSessions is the fixed capacity of the cursor map, and with it the
// session cap for a room.
const MaxSessions = 8

type slot struct {
	used      bool
	sessionID uint64
	selection Selection
}

// Map associates session ids with cursor selections. MaxSessions is
// small, so instead of a real map the entries live in a fixed array
// that is cheap to copy by value. A slot keeps its index for the
// lifetime of its session, so iteration order is stable and equality
// between snapshots works.
type Map struct {
	slots [MaxSessions]slot
}

// newSession claims the first free slot for sessionID. Returns the
// slot index, or ErrMapFull when every slot is taken.
func (m *Map) newSession(sessionID uint64) (int, error) {
	for i := range m.slots {
		if !m.slots[i].used {
			m.slots[i] = slot{used: true, sessionID: sessionID}
			return i, nil
		}
	}
	return 0, ErrMapFull
}

// update overwrites the selection in slot idx.
func (m *Map) update(idx int, sel Selection) error {
	if idx < 0 || idx >= len(m.slots) || !m.slots[idx].used {
		return &InvalidSlotError{Index: idx}
	}
	m.slots[idx].selection = sel
	return nil
}

// remove clears slot idx without shifting the others.
func (m *Map) remove(idx int) error {
	if idx < 0 || idx >= len(m.slots) || !m.slots[idx].used {
		return &InvalidSlotError{Index: idx}
	}
	m.slots[idx] = slot{}
	return nil
}

// View binds a snapshot of the map to the receiving session's slot so
// that serialization can elide it.
func (m Map) View(ownIdx int) MapView {
	return MapView{m: m, ownIdx: ownIdx}
}

// MapView is a serializable snapshot of the cursor map as seen by one
// session: an object keyed by slot index, omitting the session's own
// slot and every empty selection.
type MapView struct {
	m      Map
	ownIdx int
}

// MarshalJSON emits {"<slotIdx>": [indices...], ...}.
func (v MapView) MarshalJSON() ([]byte, error) {
	out := make(map[string]Selection, MaxSessions)
	for idx, entry := range v.m.slots {
		if idx == v.ownIdx || !entry.used || entry.selection.IsEmpty() {
			continue
		}
		out[strconv.Itoa(idx)] = entry.selection
	}
	return json.Marshal(out)
}
