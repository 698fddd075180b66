package inference

import (
	"fmt"
	"sort"
	"time"

	"github.com/nickadesina/soc-cli/pkg/graph"
)

// TopKAll disables the admission cap: every surviving candidate is proposed.
const TopKAll = -1

// Proposal is one candidate edge produced by ProposeEdges.
type Proposal struct {
	PersonID string
	Distance int
	Explicit bool
	// Contexts is the per-category evidence breakdown, suitable for
	// storage as the edge's provenance.
	Contexts map[string]int
}

// ProposeEdges evaluates person against every other record in g and returns
// the proposed edges. It never mutates the graph; applying proposals is the
// caller's responsibility.
//
// Admission policy with topK >= 0: every explicit candidate is always
// retained (declared ties are never dropped for budget reasons), then the
// remaining budget max(0, topK-explicitCount) is filled with inferred
// candidates closest-first. Ties at equal distance break by ascending
// candidate id, so results are deterministic. topK = TopKAll returns all
// survivors.
//
// Cost: O(n) candidate evaluations, each O(|attributes|). Re-scoring a whole
// graph is therefore O(n^2) and should be batched by the caller.
func ProposeEdges(person *graph.PersonRecord, g *graph.Graph, topK int, today time.Time) ([]Proposal, error) {
	if topK < 0 && topK != TopKAll {
		return nil, fmt.Errorf("%w: topK must be >= 0, got %d", graph.ErrValidation, topK)
	}
	if today.IsZero() {
		today = time.Now()
	}

	var explicit, inferred []Proposal
	for _, other := range g.People() {
		if other.ID == person.ID {
			continue
		}
		ev := Score(person, other, today)
		distance, ok := MapScore(ev.Total(), ev.Explicit)
		if !ok {
			continue
		}
		p := Proposal{PersonID: other.ID, Distance: distance, Explicit: ev.Explicit, Contexts: ev.Contexts()}
		if ev.Explicit {
			explicit = append(explicit, p)
		} else {
			inferred = append(inferred, p)
		}
	}

	sort.Slice(inferred, func(i, j int) bool {
		if inferred[i].Distance != inferred[j].Distance {
			return inferred[i].Distance < inferred[j].Distance
		}
		return inferred[i].PersonID < inferred[j].PersonID
	})
	sort.Slice(explicit, func(i, j int) bool {
		if explicit[i].Distance != explicit[j].Distance {
			return explicit[i].Distance < explicit[j].Distance
		}
		return explicit[i].PersonID < explicit[j].PersonID
	})

	if topK == TopKAll {
		return append(explicit, inferred...), nil
	}
	room := topK - len(explicit)
	if room < 0 {
		room = 0
	}
	if room > len(inferred) {
		room = len(inferred)
	}
	return append(explicit, inferred[:room]...), nil
}

// ProposalMap flattens proposals into the id -> distance form used by the
// CLI and HTTP responses.
func ProposalMap(proposals []Proposal) map[string]int {
	out := make(map[string]int, len(proposals))
	for _, p := range proposals {
		out[p.PersonID] = p.Distance
	}
	return out
}

// UpsertWithAutoEdges adds or replaces person in g, clears any stale
// incident edges when replacing, then applies the proposed edges
// symmetrically with their evidence breakdown as edge contexts.
//
// This is the compound mutation behind the add-person command and the
// people endpoint; callers must serialize it against other writers.
func UpsertWithAutoEdges(g *graph.Graph, person *graph.PersonRecord, overwrite bool, topK int, today time.Time) (map[string]int, error) {
	existed := g.HasPerson(person.ID)
	if err := g.AddPerson(person, overwrite); err != nil {
		return nil, err
	}
	if existed {
		g.ClearIncidentEdges(person.ID)
	}

	proposals, err := ProposeEdges(person, g, topK, today)
	if err != nil {
		return nil, err
	}
	for _, p := range proposals {
		// Replace rather than accumulate: the proposal is the full
		// re-derived distance for this pair.
		if err := g.RemoveConnection(person.ID, p.PersonID, true); err != nil {
			return nil, err
		}
		if err := g.AddConnection(person.ID, p.PersonID, p.Distance, p.Contexts, true); err != nil {
			return nil, err
		}
	}
	return ProposalMap(proposals), nil
}
