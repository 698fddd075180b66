package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvents(t *testing.T) {
	input := `[
		{"type": "person", "person": {"id": "alice"}, "overwrite": true, "top_k": 3},
		{"type": "edge", "source": "alice", "target": "bob", "weight_delta": 2, "contexts": {"declared": 12}},
		{"type": "edge", "source": "bob", "target": "carol", "weight_delta": 4, "symmetric": false}
	]`

	events, err := DecodeEvents(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, events, 3)

	person, ok := events[0].(PersonEvent)
	require.True(t, ok)
	assert.Equal(t, "alice", person.Person.ID)
	assert.True(t, person.Overwrite)
	require.NotNil(t, person.AutoTopK)
	assert.Equal(t, 3, *person.AutoTopK)

	edge, ok := events[1].(EdgeEvent)
	require.True(t, ok)
	assert.Equal(t, 2, edge.WeightDelta)
	assert.True(t, edge.Symmetric, "symmetric defaults on")
	assert.Equal(t, map[string]int{"declared": 12}, edge.Contexts)

	oneWay, ok := events[2].(EdgeEvent)
	require.True(t, ok)
	assert.False(t, oneWay.Symmetric)
}

func TestDecodeEventsUnknownType(t *testing.T) {
	_, err := DecodeEvents(strings.NewReader(`[{"type": "merge"}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}

func TestDecodeEventsPersonWithoutRecord(t *testing.T) {
	_, err := DecodeEvents(strings.NewReader(`[{"type": "person"}]`))
	require.Error(t, err)
}

func TestDecodeEventsMalformedJSON(t *testing.T) {
	_, err := DecodeEvents(strings.NewReader(`{not json`))
	require.Error(t, err)
}
