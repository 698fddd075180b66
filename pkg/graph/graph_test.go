package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGraph(t *testing.T, ids ...string) *Graph {
	t.Helper()
	g := New()
	for _, id := range ids {
		require.NoError(t, g.AddPerson(&PersonRecord{ID: id}, false))
	}
	return g
}

func TestAddPersonConflict(t *testing.T) {
	g := newTestGraph(t, "alice")

	err := g.AddPerson(&PersonRecord{ID: "alice"}, false)
	require.ErrorIs(t, err, ErrConflict)

	// Overwrite replaces the record wholesale.
	require.NoError(t, g.AddPerson(&PersonRecord{ID: "alice", Name: "Alice"}, true))
	person, err := g.GetPerson("alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", person.Name)
}

func TestAddPersonValidation(t *testing.T) {
	g := New()

	err := g.AddPerson(&PersonRecord{ID: "   "}, false)
	require.ErrorIs(t, err, ErrValidation)

	err = g.AddPerson(&PersonRecord{ID: "x", Tier: 9}, false)
	require.ErrorIs(t, err, ErrValidation)

	err = g.AddPerson(nil, false)
	require.ErrorIs(t, err, ErrValidation)
}

func TestGetPersonReturnsCopy(t *testing.T) {
	g := New()
	require.NoError(t, g.AddPerson(&PersonRecord{ID: "alice", Schools: []string{"stanford"}}, false))

	got, err := g.GetPerson("alice")
	require.NoError(t, err)
	got.Schools[0] = "mutated"

	again, err := g.GetPerson("alice")
	require.NoError(t, err)
	assert.Equal(t, "stanford", again.Schools[0])
}

func TestAddConnectionSymmetric(t *testing.T) {
	g := newTestGraph(t, "alice", "bob")

	require.NoError(t, g.AddConnection("alice", "bob", 4, map[string]int{"school": 4}, true))

	w, ok := g.EdgeWeight("alice", "bob")
	require.True(t, ok)
	assert.Equal(t, 4, w)
	w, ok = g.EdgeWeight("bob", "alice")
	require.True(t, ok)
	assert.Equal(t, 4, w)
	assert.Equal(t, map[string]int{"school": 4}, g.EdgeContexts("bob", "alice"))
}

func TestAddConnectionAccumulates(t *testing.T) {
	g := newTestGraph(t, "alice", "bob")

	require.NoError(t, g.AddConnection("alice", "bob", 3, map[string]int{"school": 3}, true))
	require.NoError(t, g.AddConnection("alice", "bob", 2, map[string]int{"school": 1, "employer": 1}, true))

	w, _ := g.EdgeWeight("alice", "bob")
	assert.Equal(t, 5, w)
	assert.Equal(t, map[string]int{"school": 4, "employer": 1}, g.EdgeContexts("alice", "bob"))
}

func TestAddConnectionErrors(t *testing.T) {
	g := newTestGraph(t, "alice", "bob")

	assert.ErrorIs(t, g.AddConnection("alice", "alice", 1, nil, true), ErrSelfLoop)
	assert.ErrorIs(t, g.AddConnection("alice", "bob", 0, nil, true), ErrInvalidDelta)
	assert.ErrorIs(t, g.AddConnection("alice", "ghost", 1, nil, true), ErrNotFound)
	assert.ErrorIs(t, g.AddConnection("ghost", "bob", 1, nil, true), ErrNotFound)
}

func TestWeightFloorDeletesEdge(t *testing.T) {
	g := newTestGraph(t, "alice", "bob")

	require.NoError(t, g.AddConnection("alice", "bob", 3, map[string]int{"manual": 3}, true))
	require.NoError(t, g.AddConnection("alice", "bob", -3, nil, true))

	_, ok := g.EdgeWeight("alice", "bob")
	assert.False(t, ok)
	_, ok = g.EdgeWeight("bob", "alice")
	assert.False(t, ok)
	// Context maps go with the edge.
	assert.Empty(t, g.EdgeContexts("alice", "bob"))
	assert.Equal(t, 0, g.EdgeCount())
}

func TestWeightDrivenBelowZero(t *testing.T) {
	g := newTestGraph(t, "alice", "bob")

	require.NoError(t, g.AddConnection("alice", "bob", 2, nil, true))
	require.NoError(t, g.AddConnection("alice", "bob", -10, nil, true))

	_, ok := g.EdgeWeight("alice", "bob")
	assert.False(t, ok)
}

func TestRemoveConnection(t *testing.T) {
	g := newTestGraph(t, "alice", "bob")
	require.NoError(t, g.AddConnection("alice", "bob", 2, nil, true))

	require.NoError(t, g.RemoveConnection("alice", "bob", true))
	assert.Equal(t, 0, g.EdgeCount())

	// Removing a missing edge is a no-op, missing people are not.
	require.NoError(t, g.RemoveConnection("alice", "bob", true))
	assert.ErrorIs(t, g.RemoveConnection("alice", "ghost", true), ErrNotFound)
}

func TestRemoveConnectionAsymmetric(t *testing.T) {
	g := newTestGraph(t, "alice", "bob")
	require.NoError(t, g.AddConnection("alice", "bob", 2, nil, true))

	require.NoError(t, g.RemoveConnection("alice", "bob", false))

	_, ok := g.EdgeWeight("alice", "bob")
	assert.False(t, ok)
	_, ok = g.EdgeWeight("bob", "alice")
	assert.True(t, ok)
}

func TestRemovePersonCascade(t *testing.T) {
	g := New()
	require.NoError(t, g.AddPerson(&PersonRecord{ID: "alice"}, false))
	require.NoError(t, g.AddPerson(&PersonRecord{ID: "bob", FamilyFriendsLinks: []FamilyFriendLink{
		{PersonID: "alice", Relationship: "sibling"},
		{PersonID: "carol", Relationship: "friend"},
	}}, false))
	require.NoError(t, g.AddPerson(&PersonRecord{ID: "carol"}, false))
	require.NoError(t, g.AddConnection("alice", "bob", 2, nil, true))
	require.NoError(t, g.AddConnection("carol", "alice", 3, nil, false))

	require.NoError(t, g.RemovePerson("alice"))

	assert.False(t, g.HasPerson("alice"))
	assert.Equal(t, 0, g.EdgeCount())

	// The dangling family link in bob's record is scrubbed graph-wide.
	bob, err := g.GetPerson("bob")
	require.NoError(t, err)
	require.Len(t, bob.FamilyFriendsLinks, 1)
	assert.Equal(t, "carol", bob.FamilyFriendsLinks[0].PersonID)

	assert.ErrorIs(t, g.RemovePerson("alice"), ErrNotFound)
}

func TestClearIncidentEdges(t *testing.T) {
	g := newTestGraph(t, "alice", "bob", "carol")
	require.NoError(t, g.AddConnection("alice", "bob", 2, nil, true))
	require.NoError(t, g.AddConnection("bob", "carol", 3, nil, true))

	g.ClearIncidentEdges("bob")

	assert.Equal(t, 0, g.Degree("bob"))
	_, ok := g.EdgeWeight("alice", "bob")
	assert.False(t, ok)
	_, ok = g.EdgeWeight("carol", "bob")
	assert.False(t, ok)
	assert.True(t, g.HasPerson("bob"))
}

func TestMaxWeightRecomputes(t *testing.T) {
	g := newTestGraph(t, "a", "b", "c")
	require.NoError(t, g.AddConnection("a", "b", 9, nil, false))
	require.NoError(t, g.AddConnection("b", "c", 4, nil, false))
	assert.Equal(t, 9, g.MaxWeight())

	// Retiring the strongest tie must not leave a stale maximum.
	require.NoError(t, g.RemoveConnection("a", "b", false))
	assert.Equal(t, 4, g.MaxWeight())

	require.NoError(t, g.AddConnection("b", "c", -4, nil, false))
	assert.Equal(t, 0, g.MaxWeight())
}

func TestEdgesSortedAndComplete(t *testing.T) {
	g := newTestGraph(t, "a", "b", "c")
	require.NoError(t, g.AddConnection("b", "c", 2, nil, true))
	require.NoError(t, g.AddConnection("a", "b", 1, nil, false))

	edges := g.Edges()
	require.Len(t, edges, 3)
	assert.Equal(t, "a", edges[0].Source)
	assert.Equal(t, "b", edges[1].Source)
	assert.Equal(t, "c", edges[2].Source)
}

func TestNeighborsSorted(t *testing.T) {
	g := newTestGraph(t, "hub", "zeta", "alpha")
	require.NoError(t, g.AddConnection("hub", "zeta", 2, nil, false))
	require.NoError(t, g.AddConnection("hub", "alpha", 2, nil, false))

	neighbors := g.Neighbors("hub")
	require.Len(t, neighbors, 2)
	assert.Equal(t, "alpha", neighbors[0].Target)
	assert.Equal(t, "zeta", neighbors[1].Target)
}

func TestGetPersonNotFound(t *testing.T) {
	g := New()
	_, err := g.GetPerson("ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}
