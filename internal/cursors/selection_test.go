package cursors

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func selectionFromJSON(t *testing.T, raw string) Selection {
	t.Helper()
	var sel Selection
	require.NoError(t, json.Unmarshal([]byte(raw), &sel))
	return sel
}

func TestSelectionMarshal(t *testing.T) {
	data, err := json.Marshal(Selection{})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	data, err = json.Marshal(Selection{lo: 0b10101})
	require.NoError(t, err)
	assert.JSONEq(t, `[0,2,4]`, string(data))

	data, err = json.Marshal(Selection{hi: 1 << (80 - 64)})
	require.NoError(t, err)
	assert.JSONEq(t, `[80]`, string(data))

	_, err = json.Marshal(Selection{hi: 1 << (81 - 64)})
	assert.Error(t, err)
}

func TestSelectionUnmarshal(t *testing.T) {
	assert.Equal(t, Selection{}, selectionFromJSON(t, `[]`))
	assert.Equal(t, Selection{lo: 0b10101}, selectionFromJSON(t, `[0,2,4]`))
	assert.Equal(t, Selection{hi: 1 << (80 - 64)}, selectionFromJSON(t, `[80]`))

	var sel Selection
	assert.Error(t, json.Unmarshal([]byte(`[81]`), &sel))
	assert.Error(t, json.Unmarshal([]byte(`[255]`), &sel))
}

func TestSelectionRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		indices := rapid.SliceOfDistinct(
			rapid.IntRange(0, 80),
			func(i int) int { return i },
		).Draw(t, "indices")

		var sel Selection
		for _, idx := range indices {
			sel.insert(idx)
		}

		data, err := json.Marshal(sel)
		require.NoError(t, err)
		var decoded Selection
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, sel, decoded)

		out := decoded.Indices()
		assert.True(t, sort.SliceIsSorted(out, func(i, j int) bool { return out[i] < out[j] }))
		assert.Len(t, out, len(indices))
	})
}
