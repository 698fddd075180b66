package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickadesina/soc-cli/pkg/graph"
)

func snapshotFixture(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	require.NoError(t, g.AddPerson(&graph.PersonRecord{
		ID: "alice", Name: "Alice", Schools: []string{"stanford"},
		Societies: map[string]int{"skull": 1},
		DecisionNodes: []graph.DecisionNode{
			{Org: "acme-board", Role: "director", Start: "2020-01-01"},
		},
		FamilyFriendsLinks: []graph.FamilyFriendLink{
			{PersonID: "bob", Relationship: "sibling", AllianceSignal: true},
		},
	}, false))
	require.NoError(t, g.AddPerson(&graph.PersonRecord{ID: "bob", Name: "Bob"}, false))
	require.NoError(t, g.AddPerson(&graph.PersonRecord{ID: "carol"}, false))
	require.NoError(t, g.AddConnection("alice", "bob", 2, map[string]int{"declared": 12}, true))
	require.NoError(t, g.AddConnection("bob", "carol", 7, nil, false))
	return g
}

func TestJSONRoundTrip(t *testing.T) {
	g := snapshotFixture(t)
	path := filepath.Join(t.TempDir(), "graph.json")

	require.NoError(t, SaveJSON(path, g))
	loaded, err := LoadJSON(path)
	require.NoError(t, err)

	assert.Equal(t, g.People(), loaded.People())
	assert.Equal(t, g.Edges(), loaded.Edges())
}

func TestLoadJSONMissingFile(t *testing.T) {
	g, err := LoadJSON(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, g.PersonCount())
}

func TestLoadJSONMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadJSON(path)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestCollapseEdgesMergesSymmetricPairs(t *testing.T) {
	g := snapshotFixture(t)

	entries := CollapseEdges(g)
	require.Len(t, entries, 2)

	byPair := make(map[[2]string]EdgeEntry)
	for _, e := range entries {
		byPair[[2]string{e.Source, e.Target}] = e
	}

	sym, ok := byPair[[2]string{"alice", "bob"}]
	require.True(t, ok, "mirrored pair collapses into canonical order")
	assert.True(t, sym.Symmetric)
	assert.Equal(t, 2.0, sym.Weight)

	oneWay, ok := byPair[[2]string{"bob", "carol"}]
	require.True(t, ok)
	assert.False(t, oneWay.Symmetric)
}

func TestCollapseEdgesKeepsAsymmetricWeights(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddPerson(&graph.PersonRecord{ID: "a"}, false))
	require.NoError(t, g.AddPerson(&graph.PersonRecord{ID: "b"}, false))
	require.NoError(t, g.AddConnection("a", "b", 3, nil, false))
	require.NoError(t, g.AddConnection("b", "a", 5, nil, false))

	entries := CollapseEdges(g)
	// Different weights per direction must stay as two directed entries.
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.False(t, e.Symmetric)
	}
}

func TestLoadJSONLegacyStrengthConversion(t *testing.T) {
	doc := Document{
		// No edge_weight_model marker: old strength-weighted snapshot.
		People: []*graph.PersonRecord{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Edges: []EdgeEntry{
			{Source: "a", Target: "b", Weight: 10, Symmetric: true},
			{Source: "b", Target: "c", Weight: 5, Symmetric: true},
		},
	}
	path := filepath.Join(t.TempDir(), "legacy.json")
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	g, err := LoadJSON(path)
	require.NoError(t, err)

	// Strongest tie maps to the distance floor; the half-strength tie
	// projects to the middle of the scale.
	w, _ := g.EdgeWeight("a", "b")
	assert.Equal(t, 1, w)
	w, _ = g.EdgeWeight("b", "c")
	assert.Equal(t, 7, w)
}

func TestLoadJSONDistanceModelNotConverted(t *testing.T) {
	doc := Document{
		EdgeWeightModel: DistanceWeightModel,
		People:          []*graph.PersonRecord{{ID: "a"}, {ID: "b"}},
		Edges:           []EdgeEntry{{Source: "a", Target: "b", Weight: 12, Symmetric: true}},
	}
	path := filepath.Join(t.TempDir(), "current.json")
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	g, err := LoadJSON(path)
	require.NoError(t, err)
	w, _ := g.EdgeWeight("a", "b")
	assert.Equal(t, 12, w)
}

func TestLoadJSONRejectsFractionalDistanceWeights(t *testing.T) {
	doc := Document{
		EdgeWeightModel: DistanceWeightModel,
		People:          []*graph.PersonRecord{{ID: "a"}, {ID: "b"}},
		Edges:           []EdgeEntry{{Source: "a", Target: "b", Weight: 2.5, Symmetric: true}},
	}
	path := filepath.Join(t.TempDir(), "frac.json")
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = LoadJSON(path)
	assert.ErrorIs(t, err, graph.ErrInvalidDelta)
}
