package graph

import (
	"fmt"
	"sort"
	"sync"
)

// Edge is an outgoing neighbor entry returned by Neighbors.
type Edge struct {
	Target string
	Weight int
}

// edgeKey identifies a directed edge for context lookups.
type edgeKey struct {
	src, dst string
}

// Graph is the weighted relationship graph.
//
// Structure:
//   - people: id -> record (stored as deep copies)
//   - adjacency: source -> target -> positive integer weight
//   - contexts: (source, target) -> category -> integer contribution,
//     the provenance of the cumulative weight, kept for explainability
//
// Symmetric connections are stored as two mirrored directed edges with
// identical weight and contexts.
//
// The maximum edge weight is cached and recomputed lazily after any
// operation that can lower it; the legacy snapshot importer normalizes
// against the strongest tie and needs it cheap.
type Graph struct {
	mu        sync.RWMutex
	people    map[string]*PersonRecord
	adjacency map[string]map[string]int
	contexts  map[edgeKey]map[string]int

	maxWeight      int
	maxWeightStale bool
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		people:    make(map[string]*PersonRecord),
		adjacency: make(map[string]map[string]int),
		contexts:  make(map[edgeKey]map[string]int),
	}
}

// AddPerson inserts a record, or replaces it wholesale when overwrite is set.
//
// Returns ErrConflict if the id exists and overwrite is false, or a
// ErrValidation-wrapped error if the record violates its invariants.
// The record is validated, normalized and deep-copied before storage.
func (g *Graph) AddPerson(record *PersonRecord, overwrite bool) error {
	if record == nil {
		return fmt.Errorf("%w: nil record", ErrValidation)
	}
	if err := record.Validate(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.people[record.ID]; exists && !overwrite {
		return fmt.Errorf("%w: %q", ErrConflict, record.ID)
	}
	g.people[record.ID] = record.Clone()
	if g.adjacency[record.ID] == nil {
		g.adjacency[record.ID] = make(map[string]int)
	}
	return nil
}

// HasPerson reports whether id is present.
func (g *Graph) HasPerson(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.people[id]
	return ok
}

// GetPerson returns a copy of the record for id, or ErrNotFound.
func (g *Graph) GetPerson(id string) (*PersonRecord, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	person, ok := g.people[id]
	if !ok {
		return nil, fmt.Errorf("%w: person %q", ErrNotFound, id)
	}
	return person.Clone(), nil
}

// People returns copies of every record, sorted by id for determinism.
func (g *Graph) People() []*PersonRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*PersonRecord, 0, len(g.people))
	for _, person := range g.people {
		out = append(out, person.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PersonCount returns the number of people in the graph.
func (g *Graph) PersonCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.people)
}

// RemovePerson deletes a node and cascades.
//
// The cascade is a required invariant, not best effort:
//  1. every incident edge is removed, incoming and outgoing, along with
//     its context map
//  2. every family/friends link anywhere in the graph whose PersonID is the
//     removed id is scrubbed
//
// Returns ErrNotFound if the id is absent.
func (g *Graph) RemovePerson(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.people[id]; !ok {
		return fmt.Errorf("%w: person %q", ErrNotFound, id)
	}
	delete(g.people, id)

	for target := range g.adjacency[id] {
		delete(g.contexts, edgeKey{id, target})
	}
	delete(g.adjacency, id)

	for source, neighbors := range g.adjacency {
		if _, ok := neighbors[id]; ok {
			delete(neighbors, id)
			delete(g.contexts, edgeKey{source, id})
		}
	}

	for _, person := range g.people {
		kept := person.FamilyFriendsLinks[:0]
		for _, link := range person.FamilyFriendsLinks {
			if link.PersonID != id {
				kept = append(kept, link)
			}
		}
		person.FamilyFriendsLinks = kept
	}

	// Removals can retire the strongest tie.
	g.maxWeightStale = true
	return nil
}

// AddConnection adds weightDelta to the cumulative weight of the
// source->target edge, creating it if absent, and merges contexts
// additively into the edge's context map.
//
// When symmetric is true the same operation is mirrored on target->source.
// A cumulative weight driven to zero or below deletes the edge (and mirror)
// entirely, including its context map.
//
// Errors: ErrSelfLoop when source == target, ErrNotFound when either
// endpoint is missing, ErrInvalidDelta when the delta is zero (a no-op
// delta is almost always a caller bug, e.g. a failed numeric parse upstream).
func (g *Graph) AddConnection(source, target string, weightDelta int, contexts map[string]int, symmetric bool) error {
	if source == target {
		return fmt.Errorf("%w: %q", ErrSelfLoop, source)
	}
	if weightDelta == 0 {
		return fmt.Errorf("%w: delta must be non-zero", ErrInvalidDelta)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.people[source]; !ok {
		return fmt.Errorf("%w: person %q", ErrNotFound, source)
	}
	if _, ok := g.people[target]; !ok {
		return fmt.Errorf("%w: person %q", ErrNotFound, target)
	}

	g.incrementEdge(source, target, weightDelta, contexts)
	if symmetric {
		g.incrementEdge(target, source, weightDelta, contexts)
	}
	return nil
}

// incrementEdge applies one directed delta. Caller holds the write lock.
func (g *Graph) incrementEdge(source, target string, delta int, contexts map[string]int) {
	current := g.adjacency[source][target]
	weight := current + delta
	if weight <= 0 {
		// Non-positive ties are dropped to keep traversal semantics clean.
		delete(g.adjacency[source], target)
		delete(g.contexts, edgeKey{source, target})
		g.maxWeightStale = true
		return
	}
	if g.adjacency[source] == nil {
		g.adjacency[source] = make(map[string]int)
	}
	g.adjacency[source][target] = weight
	if weight < current && current >= g.maxWeight {
		g.maxWeightStale = true
	}
	if weight > g.maxWeight && !g.maxWeightStale {
		g.maxWeight = weight
	}
	if len(contexts) > 0 {
		key := edgeKey{source, target}
		contextMap := g.contexts[key]
		if contextMap == nil {
			contextMap = make(map[string]int, len(contexts))
			g.contexts[key] = contextMap
		}
		for name, d := range contexts {
			contextMap[name] += d
		}
	}
}

// RemoveConnection deletes the source->target edge and, when symmetric,
// its mirror. Missing edges are a no-op; missing endpoints are ErrNotFound.
func (g *Graph) RemoveConnection(source, target string, symmetric bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.people[source]; !ok {
		return fmt.Errorf("%w: person %q", ErrNotFound, source)
	}
	if _, ok := g.people[target]; !ok {
		return fmt.Errorf("%w: person %q", ErrNotFound, target)
	}

	g.removeEdge(source, target)
	if symmetric {
		g.removeEdge(target, source)
	}
	return nil
}

func (g *Graph) removeEdge(source, target string) {
	if neighbors, ok := g.adjacency[source]; ok {
		if weight, present := neighbors[target]; present {
			delete(neighbors, target)
			if weight >= g.maxWeight {
				g.maxWeightStale = true
			}
		}
	}
	delete(g.contexts, edgeKey{source, target})
}

// ClearIncidentEdges removes every edge touching id in either direction.
// Used when a person is replaced and their relationships are re-derived.
func (g *Graph) ClearIncidentEdges(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for target := range g.adjacency[id] {
		delete(g.contexts, edgeKey{id, target})
	}
	g.adjacency[id] = make(map[string]int)

	for source, neighbors := range g.adjacency {
		if _, ok := neighbors[id]; ok {
			delete(neighbors, id)
			delete(g.contexts, edgeKey{source, id})
		}
	}
	g.maxWeightStale = true
}

// EdgeWeight returns the weight of source->target and whether it exists.
func (g *Graph) EdgeWeight(source, target string) (int, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	weight, ok := g.adjacency[source][target]
	return weight, ok
}

// EdgeContexts returns a copy of the context map for source->target.
// An edge without contexts yields an empty, non-nil map.
func (g *Graph) EdgeContexts(source, target string) map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	stored := g.contexts[edgeKey{source, target}]
	out := make(map[string]int, len(stored))
	for k, v := range stored {
		out[k] = v
	}
	return out
}

// Neighbors returns the outgoing edges of id sorted by target id.
func (g *Graph) Neighbors(id string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	neighbors := g.adjacency[id]
	out := make([]Edge, 0, len(neighbors))
	for target, weight := range neighbors {
		out = append(out, Edge{Target: target, Weight: weight})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out
}

// Degree returns the outgoing degree of id.
func (g *Graph) Degree(id string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.adjacency[id])
}

// EdgeCount returns the number of directed edges.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	count := 0
	for _, neighbors := range g.adjacency {
		count += len(neighbors)
	}
	return count
}

// MaxWeight returns the largest edge weight, recomputing lazily when a
// removal or reduction may have retired the previous maximum.
func (g *Graph) MaxWeight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.maxWeightStale {
		g.maxWeight = 0
		for _, neighbors := range g.adjacency {
			for _, weight := range neighbors {
				if weight > g.maxWeight {
					g.maxWeight = weight
				}
			}
		}
		g.maxWeightStale = false
	}
	return g.maxWeight
}

// DirectedEdge is a flattened view of one stored edge, used by codecs and
// the HTTP layer.
type DirectedEdge struct {
	Source   string         `json:"source"`
	Target   string         `json:"target"`
	Weight   int            `json:"weight"`
	Contexts map[string]int `json:"contexts,omitempty"`
}

// Edges returns every directed edge sorted by (source, target).
func (g *Graph) Edges() []DirectedEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]DirectedEdge, 0)
	for source, neighbors := range g.adjacency {
		for target, weight := range neighbors {
			contexts := make(map[string]int)
			for k, v := range g.contexts[edgeKey{source, target}] {
				contexts[k] = v
			}
			out = append(out, DirectedEdge{Source: source, Target: target, Weight: weight, Contexts: contexts})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out
}
