package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	p := &PersonRecord{ID: "x"}
	p.Normalize()
	assert.Equal(t, DefaultDependencyWeight, p.DependencyWeight)

	// An explicit weight survives normalization.
	p2 := &PersonRecord{ID: "y", DependencyWeight: 1}
	p2.Normalize()
	assert.Equal(t, 1, p2.DependencyWeight)
}

func TestNormalizeDedupesLinks(t *testing.T) {
	p := &PersonRecord{ID: "x", FamilyFriendsLinks: []FamilyFriendLink{
		{PersonID: "a", Relationship: "friend"},
		{PersonID: " a ", Relationship: "friend"},
		{PersonID: "a", Relationship: "friend", AllianceSignal: true},
	}}
	p.Normalize()
	// Whitespace-trimmed duplicates collapse; the alliance variant is distinct.
	require.Len(t, p.FamilyFriendsLinks, 2)
}

func TestValidateBounds(t *testing.T) {
	cases := []struct {
		name   string
		record PersonRecord
		ok     bool
	}{
		{"minimal", PersonRecord{ID: "x"}, true},
		{"full tier range", PersonRecord{ID: "x", Tier: 4}, true},
		{"tier too high", PersonRecord{ID: "x", Tier: 5}, false},
		{"dependency out of range", PersonRecord{ID: "x", DependencyWeight: 6}, false},
		{"society rank out of range", PersonRecord{ID: "x", Societies: map[string]int{"club": 9}}, false},
		{"society rank valid", PersonRecord{ID: "x", Societies: map[string]int{"club": 5}}, true},
		{"blank id", PersonRecord{ID: "  "}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.record.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrValidation)
			}
		})
	}
}

func TestLinksTo(t *testing.T) {
	p := &PersonRecord{ID: "x", FamilyFriendsLinks: []FamilyFriendLink{
		{PersonID: "a", Relationship: "cousin"},
		{PersonID: "b", Relationship: "partner", AllianceSignal: true},
	}}

	linked, alliance := p.LinksTo("a")
	assert.True(t, linked)
	assert.False(t, alliance)

	linked, alliance = p.LinksTo("b")
	assert.True(t, linked)
	assert.True(t, alliance)

	linked, _ = p.LinksTo("ghost")
	assert.False(t, linked)
}

func TestCloneIsDeep(t *testing.T) {
	p := &PersonRecord{
		ID:        "x",
		Schools:   []string{"stanford"},
		Platforms: map[string]string{"gh": "x-dev"},
		Societies: map[string]int{"club": 2},
	}
	c := p.Clone()
	c.Schools[0] = "mutated"
	c.Platforms["gh"] = "mutated"
	c.Societies["club"] = 5

	assert.Equal(t, "stanford", p.Schools[0])
	assert.Equal(t, "x-dev", p.Platforms["gh"])
	assert.Equal(t, 2, p.Societies["club"])
}

func TestDecisionNodeDates(t *testing.T) {
	d := DecisionNode{Org: "acme", Start: "2020-01-15", End: "2022-06-01"}
	assert.Equal(t, time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC), d.ParseStart())
	assert.Equal(t, time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC), d.ParseEnd())

	// Malformed dates degrade to zero rather than erroring.
	bad := DecisionNode{Org: "acme", Start: "June 2020"}
	assert.True(t, bad.ParseStart().IsZero())

	open := DecisionNode{Org: "acme", Start: "2020-01-15"}
	assert.True(t, open.ParseEnd().IsZero())
}
