package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickadesina/soc-cli/pkg/graph"
)

func TestCSVRoundTrip(t *testing.T) {
	g := snapshotFixture(t)
	dir := t.TempDir()
	nodes := filepath.Join(dir, "nodes.csv")
	edges := filepath.Join(dir, "edges.csv")

	require.NoError(t, SaveCSV(nodes, edges, g))
	loaded, err := LoadCSV(nodes, edges)
	require.NoError(t, err)

	assert.Equal(t, g.Edges(), loaded.Edges())

	alice, err := loaded.GetPerson("alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"stanford"}, alice.Schools)
	assert.Equal(t, map[string]int{"skull": 1}, alice.Societies)
	// Structured cells survive as JSON.
	require.Len(t, alice.DecisionNodes, 1)
	assert.Equal(t, "acme-board", alice.DecisionNodes[0].Org)
	require.Len(t, alice.FamilyFriendsLinks, 1)
	assert.True(t, alice.FamilyFriendsLinks[0].AllianceSignal)
}

func TestCSVDelimitedFields(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddPerson(&graph.PersonRecord{
		ID:        "multi",
		Schools:   []string{"one", "two", "three"},
		Platforms: map[string]string{"github": "m", "x": "multi"},
		Tier:      2,
	}, false))

	dir := t.TempDir()
	nodes := filepath.Join(dir, "nodes.csv")
	edges := filepath.Join(dir, "edges.csv")
	require.NoError(t, SaveCSV(nodes, edges, g))

	loaded, err := LoadCSV(nodes, edges)
	require.NoError(t, err)
	person, err := loaded.GetPerson("multi")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, person.Schools)
	assert.Equal(t, map[string]string{"github": "m", "x": "multi"}, person.Platforms)
	assert.Equal(t, 2, person.Tier)
}

func TestLoadCSVMissingFiles(t *testing.T) {
	dir := t.TempDir()
	g, err := LoadCSV(filepath.Join(dir, "nodes.csv"), filepath.Join(dir, "edges.csv"))
	require.NoError(t, err)
	assert.Equal(t, 0, g.PersonCount())
}

func TestLoadCSVLegacyWeights(t *testing.T) {
	dir := t.TempDir()
	nodes := filepath.Join(dir, "nodes.csv")
	edges := filepath.Join(dir, "edges.csv")

	require.NoError(t, os.WriteFile(nodes, []byte(
		"id,name\na,Alice\nb,Bob\n"), 0o644))
	// Fractional weights mark a legacy strength file.
	require.NoError(t, os.WriteFile(edges, []byte(
		"source,target,weight,contexts,symmetric\na,b,2.5,,true\n"), 0o644))

	g, err := LoadCSV(nodes, edges)
	require.NoError(t, err)
	w, ok := g.EdgeWeight("a", "b")
	require.True(t, ok)
	// 2.5 is the strongest (only) tie, so it lands on the distance floor.
	assert.Equal(t, 1, w)
}

func TestLoadCSVDistanceWeightsUntouched(t *testing.T) {
	dir := t.TempDir()
	nodes := filepath.Join(dir, "nodes.csv")
	edges := filepath.Join(dir, "edges.csv")

	require.NoError(t, os.WriteFile(nodes, []byte(
		"id,name\na,Alice\nb,Bob\n"), 0o644))
	require.NoError(t, os.WriteFile(edges, []byte(
		"source,target,weight,contexts,symmetric\na,b,8,school=8,true\n"), 0o644))

	g, err := LoadCSV(nodes, edges)
	require.NoError(t, err)
	w, _ := g.EdgeWeight("a", "b")
	assert.Equal(t, 8, w)
	assert.Equal(t, map[string]int{"school": 8}, g.EdgeContexts("b", "a"))
}

func TestLoadCSVMalformedWeight(t *testing.T) {
	dir := t.TempDir()
	nodes := filepath.Join(dir, "nodes.csv")
	edges := filepath.Join(dir, "edges.csv")

	require.NoError(t, os.WriteFile(nodes, []byte("id\na\nb\n"), 0o644))
	require.NoError(t, os.WriteFile(edges, []byte(
		"source,target,weight,contexts,symmetric\na,b,lots,,true\n"), 0o644))

	_, err := LoadCSV(nodes, edges)
	assert.ErrorIs(t, err, ErrMalformed)
}
